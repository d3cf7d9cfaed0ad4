package audit

import (
	"testing"

	"srg/internal/models"
)

func TestFinalStatus_PassWhenClean(t *testing.T) {
	if got := finalStatus(nil, true, true); got != models.AuditPass {
		t.Fatalf("expected PASS, got %s", got)
	}
}

func TestFinalStatus_FailOnError(t *testing.T) {
	issues := []models.Issue{{Severity: models.IssueError}}
	if got := finalStatus(issues, true, true); got != models.AuditFail {
		t.Fatalf("expected FAIL, got %s", got)
	}
}

func TestFinalStatus_HoldOnWarningOnly(t *testing.T) {
	issues := []models.Issue{{Severity: models.IssueWarning}}
	if got := finalStatus(issues, true, true); got != models.AuditHold {
		t.Fatalf("expected HOLD, got %s", got)
	}
}

func TestFinalStatus_FailWhenNotSane(t *testing.T) {
	if got := finalStatus(nil, false, true); got != models.AuditFail {
		t.Fatalf("expected FAIL when sanity gate fails, got %s", got)
	}
}

func TestFinalStatus_ErrorWhenBothPassesFailed(t *testing.T) {
	if got := finalStatus(nil, true, false); got != models.AuditError {
		t.Fatalf("expected ERROR when success=false, got %s", got)
	}
}

func TestSanityOK_FalseWhenItemsEmptyAndNoInvoiceNumber(t *testing.T) {
	inv := &models.Invoice{}
	if sanityOK(inv, nil) {
		t.Fatal("expected sanity gate to fail for an empty invoice with no number")
	}
}

func TestSanityOK_TrueWithInvoiceNumber(t *testing.T) {
	inv := &models.Invoice{InvoiceNo: "INV-1"}
	if !sanityOK(inv, nil) {
		t.Fatal("expected sanity gate to pass when an invoice number is present")
	}
}

func TestPromoteWarningsToErrors(t *testing.T) {
	issues := []models.Issue{{Severity: models.IssueWarning}, {Severity: models.IssueInfo}}
	out := promoteWarningsToErrors(issues)
	if out[0].Severity != models.IssueError {
		t.Fatalf("expected warning promoted to error, got %s", out[0].Severity)
	}
	if out[1].Severity != models.IssueInfo {
		t.Fatalf("expected info severity untouched, got %s", out[1].Severity)
	}
}
