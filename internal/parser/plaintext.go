package parser

import (
	"fmt"
	"regexp"
	"strings"

	"srg/internal/models"
)

// PlaintextStrategy is the chain's last resort: a loose scan for anything
// that looks like a total, with the first non-empty line of text kept as a
// single unstructured line item. It exists so the registry always has somewhere
// to land rather than failing ingestion outright, and is never terminal
// below its own fixed confidence floor.
type PlaintextStrategy struct{}

func NewPlaintextStrategy() *PlaintextStrategy { return &PlaintextStrategy{} }

func (p *PlaintextStrategy) Name() string              { return "plaintext_fallback" }
func (p *PlaintextStrategy) Priority() int              { return 10 }
func (p *PlaintextStrategy) AcceptanceThreshold() float64 { return 0.3 }

var (
	looseTotalRe  = regexp.MustCompile(`(?i)total[^0-9]{0,10}([0-9][0-9.,]*)`)
	looseNumberRe = regexp.MustCompile(`[0-9][0-9.,]{2,}`)
)

func (p *PlaintextStrategy) Parse(pages []models.Page) (*ParsedInvoice, error) {
	text := strings.TrimSpace(joinPages(pages))
	if text == "" {
		return nil, fmt.Errorf("plaintext_fallback: no extractable text")
	}

	out := &ParsedInvoice{ParserName: p.Name()}
	if m := looseTotalRe.FindStringSubmatch(text); m != nil {
		out.TotalAmount = MustParseNumber(m[1])
	} else if m := looseNumberRe.FindString(text); m != "" {
		out.TotalAmount = MustParseNumber(m)
	}

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out.Items = append(out.Items, models.LineItem{
			LineNumber:       i + 1,
			ItemName:         line,
			RowType:          models.RowLineItem,
			TrustStatedTotal: true,
		})
		break
	}

	out.Confidence = 0.3
	return out, nil
}
