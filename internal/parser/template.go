package parser

import (
	"fmt"
	"regexp"
	"strings"

	"srg/internal/models"
)

// TemplateStrategy extracts fields from documents that follow a
// labeled-field layout ("Invoice No: ...", "Total: ..."). It is the
// highest-priority, highest-confidence strategy and is tried first.
type TemplateStrategy struct{}

func NewTemplateStrategy() *TemplateStrategy { return &TemplateStrategy{} }

func (t *TemplateStrategy) Name() string              { return "template" }
func (t *TemplateStrategy) Priority() int              { return 100 }
func (t *TemplateStrategy) AcceptanceThreshold() float64 { return 0.75 }

var templateFieldPatterns = map[string]*regexp.Regexp{
	"invoice_no":   regexp.MustCompile(`(?i)(?:invoice|proforma)\s*(?:no\.?|number|#)\s*[:\-]\s*([A-Za-z0-9/\-]+)`),
	"invoice_date": regexp.MustCompile(`(?i)(?:invoice\s*)?date\s*[:\-]\s*([0-9]{1,4}[/\-.][0-9]{1,2}[/\-.][0-9]{1,4})`),
	"due_date":     regexp.MustCompile(`(?i)due\s*date\s*[:\-]\s*([0-9]{1,4}[/\-.][0-9]{1,2}[/\-.][0-9]{1,4})`),
	"seller":       regexp.MustCompile(`(?im)^\s*(?:seller|supplier|vendor|from)\s*[:\-]\s*(.+)$`),
	"buyer":        regexp.MustCompile(`(?im)^\s*(?:buyer|client|bill\s*to|to)\s*[:\-]\s*(.+)$`),
	"currency":     regexp.MustCompile(`(?i)currency\s*[:\-]\s*([A-Za-z]{3})`),
	"subtotal":     regexp.MustCompile(`(?i)sub\s*-?\s*total\s*[:\-]\s*([0-9.,()\s$€£¥]+)`),
	"tax":          regexp.MustCompile(`(?i)(?:vat|tax)\s*[:\-]\s*([0-9.,()\s$€£¥%]+)`),
	"discount":     regexp.MustCompile(`(?i)discount\s*[:\-]\s*([0-9.,()\s$€£¥%]+)`),
	"total":        regexp.MustCompile(`(?i)\b(?:grand\s*)?total\s*(?:amount)?\s*[:\-]\s*([0-9.,() \t$€£¥]+)`),
}

var templateLineItemRe = regexp.MustCompile(`(?m)^\s*\d+\s+(.+?)\s+([0-9]+(?:[.,][0-9]+)?)\s+([0-9.,()$€£¥]+)\s+([0-9.,()$€£¥]+)\s*$`)

func (t *TemplateStrategy) Parse(pages []models.Page) (*ParsedInvoice, error) {
	text := joinPages(pages)

	fields := map[string]string{}
	for key, re := range templateFieldPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			fields[key] = strings.TrimSpace(m[1])
		}
	}
	if fields["invoice_no"] == "" || fields["total"] == "" {
		return nil, fmt.Errorf("template: missing required labeled field (invoice number or total)")
	}

	out := &ParsedInvoice{ParserName: t.Name()}
	out.InvoiceNo = fields["invoice_no"]
	out.InvoiceDate, _ = parseFlexibleDate(fields["invoice_date"])
	out.DueDate, _ = parseFlexibleDate(fields["due_date"])
	out.SellerName = fields["seller"]
	out.BuyerName = fields["buyer"]
	out.Currency = strings.ToUpper(fields["currency"])
	out.Subtotal = MustParseNumber(fields["subtotal"])
	out.Tax = MustParseNumber(fields["tax"])
	out.Discount = MustParseNumber(fields["discount"])
	out.TotalAmount = MustParseNumber(fields["total"])

	for i, m := range templateLineItemRe.FindAllStringSubmatch(text, -1) {
		out.Items = append(out.Items, models.LineItem{
			LineNumber: i + 1,
			ItemName:   strings.TrimSpace(m[1]),
			Quantity:   MustParseNumber(m[2]),
			UnitPrice:  MustParseNumber(m[3]),
			TotalPrice: MustParseNumber(m[4]),
			RowType:    models.RowLineItem,
		})
	}

	conf := float64(len(fields)) / float64(len(templateFieldPatterns))
	if len(out.Items) > 0 {
		conf += 0.1
	}
	if conf > 1 {
		conf = 1
	}
	out.Confidence = conf
	if conf < t.AcceptanceThreshold() {
		return nil, fmt.Errorf("template: confidence %.2f below threshold %.2f", conf, t.AcceptanceThreshold())
	}
	return out, nil
}
