package parser

import (
	"fmt"
	"regexp"
	"strings"

	"srg/internal/models"
)

// TableAwareStrategy recognizes line items laid out as whitespace- or
// pipe-delimited table rows, without relying on explicit field labels.
// It is tried after TemplateStrategy declines.
type TableAwareStrategy struct{}

func NewTableAwareStrategy() *TableAwareStrategy { return &TableAwareStrategy{} }

func (t *TableAwareStrategy) Name() string              { return "table_aware" }
func (t *TableAwareStrategy) Priority() int              { return 80 }
func (t *TableAwareStrategy) AcceptanceThreshold() float64 { return 0.55 }

var tableColumnSplitRe = regexp.MustCompile(`\s{2,}|\t|\s*\|\s*`)

func (t *TableAwareStrategy) Parse(pages []models.Page) (*ParsedInvoice, error) {
	lines := strings.Split(joinPages(pages), "\n")

	var items []models.LineItem
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cols := trimEmpty(tableColumnSplitRe.Split(line, -1))
		if len(cols) < 4 {
			continue
		}
		n := len(cols)
		total, errTotal := ParseNumber(cols[n-1])
		unitPrice, errUnit := ParseNumber(cols[n-2])
		qty, errQty := ParseNumber(cols[n-3])
		if errTotal != nil || errUnit != nil || errQty != nil {
			continue
		}
		name := strings.TrimSpace(strings.Join(cols[:n-3], " "))
		if name == "" {
			continue
		}
		items = append(items, models.LineItem{
			LineNumber: len(items) + 1,
			ItemName:   name,
			Quantity:   qty,
			UnitPrice:  unitPrice,
			TotalPrice: total,
			RowType:    models.RowLineItem,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("table_aware: no tabular rows recognized")
	}

	out := &ParsedInvoice{ParserName: t.Name(), Items: items}
	out.TotalAmount = sumLineItems(items)

	conf := 0.4 + 0.05*float64(len(items))
	if conf > 0.9 {
		conf = 0.9
	}
	out.Confidence = conf
	if conf < t.AcceptanceThreshold() {
		return nil, fmt.Errorf("table_aware: confidence %.2f below threshold %.2f", conf, t.AcceptanceThreshold())
	}
	return out, nil
}
