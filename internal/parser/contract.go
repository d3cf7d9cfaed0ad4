// Package parser implements the ordered strategy chain of spec.md §4.B: an
// invoice document is tried against parsers in descending static priority
// until one accepts, producing a ParsedInvoice with a confidence score and a
// recorded attempt trail.
package parser

import (
	"time"

	"srg/internal/models"
)

// ParsedInvoice is the strategy chain's output: a structured invoice plus
// the confidence the producing parser assigned it.
type ParsedInvoice struct {
	InvoiceNo   string
	InvoiceDate *time.Time
	DueDate     *time.Time
	SellerName  string
	BuyerName   string
	Currency    string
	Subtotal    float64
	Tax         float64
	Discount    float64
	TotalAmount float64
	BankDetails map[string]any
	Items       []models.LineItem

	Confidence float64
	ParserName string
}

// Attempt records one parser's try, successful or not, for the ingestion
// trail the spec requires invoices to carry.
type Attempt struct {
	ParserName string
	Accepted   bool
	Confidence float64
	Reason     string // populated when not accepted
}

// Strategy is one parser in the chain. Priority is static (set at
// construction, never mutated at runtime per spec.md §9's "no runtime
// mutation of the selection"). Parse returns a nil ParsedInvoice (and a
// reason) when it declines rather than accepts.
type Strategy interface {
	Name() string
	Priority() int
	AcceptanceThreshold() float64
	Parse(pages []models.Page) (*ParsedInvoice, error)
}
