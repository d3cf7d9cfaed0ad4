package audit

import (
	"testing"
	"time"

	"srg/internal/models"
)

func TestMathErrorIssues_FlagsBadLineArithmetic(t *testing.T) {
	inv := &models.Invoice{Items: []models.LineItem{
		{LineNumber: 1, RowType: models.RowLineItem, Quantity: 2, UnitPrice: 10, TotalPrice: 25},
	}}
	issues := mathErrorIssues(inv)
	if len(issues) != 1 || issues[0].Code != RuleMathError {
		t.Fatalf("expected one MATH_ERROR issue, got %+v", issues)
	}
}

func TestMathErrorIssues_RespectsTrustStatedTotal(t *testing.T) {
	inv := &models.Invoice{Items: []models.LineItem{
		{LineNumber: 1, RowType: models.RowLineItem, Quantity: 2, UnitPrice: 10, TotalPrice: 25, TrustStatedTotal: true},
	}}
	if issues := mathErrorIssues(inv); len(issues) != 0 {
		t.Fatalf("expected no issues for a trusted-total line, got %+v", issues)
	}
}

func TestMathErrorIssues_WithinTolerancePasses(t *testing.T) {
	inv := &models.Invoice{Items: []models.LineItem{
		{LineNumber: 1, RowType: models.RowLineItem, Quantity: 3, UnitPrice: 1.005, TotalPrice: 3.015},
	}}
	if issues := mathErrorIssues(inv); len(issues) != 0 {
		t.Fatalf("expected sub-tolerance rounding to pass, got %+v", issues)
	}
}

func TestSubtotalMismatch(t *testing.T) {
	inv := &models.Invoice{
		Subtotal: 100,
		Items:    []models.LineItem{{RowType: models.RowLineItem, TotalPrice: 50}, {RowType: models.RowLineItem, TotalPrice: 40}},
	}
	if _, ok := subtotalMismatch(inv); !ok {
		t.Fatal("expected a subtotal mismatch")
	}
}

func TestTotalMismatch_Over10Percent(t *testing.T) {
	inv := &models.Invoice{Subtotal: 100, Tax: 10, TotalAmount: 150}
	if _, ok := totalMismatch(inv); !ok {
		t.Fatal("expected a total mismatch beyond 10%")
	}
}

func TestTotalMismatch_Within10PercentPasses(t *testing.T) {
	inv := &models.Invoice{Subtotal: 100, Tax: 10, TotalAmount: 115}
	if _, ok := totalMismatch(inv); ok {
		t.Fatal("expected a total within 10% to pass")
	}
}

func TestMissingRequired(t *testing.T) {
	inv := &models.Invoice{}
	issues := missingRequired(inv)
	if len(issues) != 3 {
		t.Fatalf("expected 3 missing-required issues, got %d: %+v", len(issues), issues)
	}
}

func TestDateOrdering_DueBeforeInvoice(t *testing.T) {
	invoiceDate := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	dueDate := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	inv := &models.Invoice{InvoiceDate: &invoiceDate, DueDate: &dueDate}
	if _, ok := dateOrdering(inv); !ok {
		t.Fatal("expected a date-ordering issue")
	}
}

func TestFutureDate(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)
	inv := &models.Invoice{InvoiceDate: &future}
	if _, ok := futureDate(inv); !ok {
		t.Fatal("expected a future-date issue")
	}
}

func TestMissingBankDetails_NoIBANOrSWIFT(t *testing.T) {
	inv := &models.Invoice{BankDetails: map[string]any{"note": "pay within 30 days"}}
	if _, ok := missingBankDetails(inv); !ok {
		t.Fatal("expected a missing-bank-details issue")
	}
}

func TestMissingBankDetails_IBANPresentPasses(t *testing.T) {
	inv := &models.Invoice{BankDetails: map[string]any{"iban": "DE89370400440532013000"}}
	if _, ok := missingBankDetails(inv); ok {
		t.Fatal("expected an IBAN-bearing invoice to pass")
	}
}

func TestPriceAnomalies_NilStoreReturnsNil(t *testing.T) {
	inv := &models.Invoice{Items: []models.LineItem{{RowType: models.RowLineItem, UnitPrice: 10, ItemName: "bolt"}}}
	if issues := priceAnomalies(nil, nil, inv, 0.2); issues != nil {
		t.Fatalf("expected nil issues with a nil store, got %+v", issues)
	}
}
