package parser

import (
	"strings"
	"testing"

	"srg/internal/models"
)

func pagesOf(text string) []models.Page {
	return []models.Page{{PageNumber: 1, Type: models.PageInvoice, Text: text}}
}

func TestTemplateStrategy_AcceptsLabeledInvoice(t *testing.T) {
	text := strings.Join([]string{
		"Invoice No: INV-2024-001",
		"Invoice Date: 2024-03-15",
		"Seller: Acme Trading LLC",
		"Buyer: Gulf Importers Co",
		"Currency: USD",
		"Subtotal: 1000.00",
		"Tax: 50.00",
		"Total: 1050.00",
		"1 Widget A 10 10.00 100.00",
	}, "\n")

	s := NewTemplateStrategy()
	out, err := s.Parse(pagesOf(text))
	if err != nil {
		t.Fatalf("expected acceptance, got error: %v", err)
	}
	if out.InvoiceNo != "INV-2024-001" {
		t.Fatalf("unexpected invoice no: %q", out.InvoiceNo)
	}
	if out.TotalAmount != 1050.00 {
		t.Fatalf("unexpected total: %v", out.TotalAmount)
	}
	if len(out.Items) != 1 || out.Items[0].ItemName != "Widget A" {
		t.Fatalf("unexpected items: %+v", out.Items)
	}
}

func TestTemplateStrategy_DeclinesOnMissingFields(t *testing.T) {
	s := NewTemplateStrategy()
	if _, err := s.Parse(pagesOf("some unlabeled free text with no structure")); err == nil {
		t.Fatal("expected decline for unlabeled text")
	}
}

func TestTableAwareStrategy_AcceptsTabularRows(t *testing.T) {
	text := strings.Join([]string{
		"Item Name        Qty    Unit Price    Total",
		"Steel Pipe 10mm   5      20.00         100.00",
		"Copper Wire       2      15.50         31.00",
		"Rubber Gasket     10     1.25          12.50",
	}, "\n")

	s := NewTableAwareStrategy()
	out, err := s.Parse(pagesOf(text))
	if err != nil {
		t.Fatalf("expected acceptance, got error: %v", err)
	}
	if len(out.Items) != 3 {
		t.Fatalf("expected 3 recognized rows, got %d: %+v", len(out.Items), out.Items)
	}
}

func TestTableAwareStrategy_DeclinesOnNoRows(t *testing.T) {
	s := NewTableAwareStrategy()
	if _, err := s.Parse(pagesOf("just a single line of prose")); err == nil {
		t.Fatal("expected decline when no tabular rows are found")
	}
}

func TestPlaintextStrategy_AlwaysAcceptsNonEmptyText(t *testing.T) {
	s := NewPlaintextStrategy()
	out, err := s.Parse(pagesOf("Thanks for your business. Total due: 452.10"))
	if err != nil {
		t.Fatalf("plaintext fallback should never decline non-empty text: %v", err)
	}
	if out.Confidence != s.AcceptanceThreshold() {
		t.Fatalf("expected confidence pinned to threshold %.2f, got %.2f", s.AcceptanceThreshold(), out.Confidence)
	}
	if out.TotalAmount != 452.10 {
		t.Fatalf("unexpected total: %v", out.TotalAmount)
	}
}

func TestPlaintextStrategy_DeclinesOnEmptyText(t *testing.T) {
	s := NewPlaintextStrategy()
	if _, err := s.Parse(pagesOf("   ")); err == nil {
		t.Fatal("expected decline for empty text")
	}
}
