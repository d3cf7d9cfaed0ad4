package parser

import (
	"strings"
	"time"

	"srg/internal/models"
)

// joinPages concatenates every page's text in page-number order, separated
// by blank lines, giving the regex-based strategies one contiguous document
// to scan.
func joinPages(pages []models.Page) string {
	var b strings.Builder
	for _, p := range pages {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// invoicePage returns the first page typed as an invoice, or the first page
// at all if none is explicitly typed, or nil if pages is empty.
func invoicePage(pages []models.Page) *models.Page {
	for i := range pages {
		if pages[i].Type == models.PageInvoice {
			return &pages[i]
		}
	}
	if len(pages) > 0 {
		return &pages[0]
	}
	return nil
}

func trimEmpty(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func sumLineItems(items []models.LineItem) float64 {
	var total float64
	for _, it := range items {
		total += it.TotalPrice
	}
	return total
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	"01/02/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"02.01.2006",
}

// parseFlexibleDate tries every known layout in turn, since the source
// document's date format is not known ahead of the parse (spec.md §4.B).
func parseFlexibleDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	s = NormalizeDigits(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// extractJSONObject returns the first balanced {...} substring of s, since
// model output often wraps JSON in prose or markdown fences.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
