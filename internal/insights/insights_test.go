package insights

import (
	"testing"
	"time"

	"srg/internal/models"
)

func TestExpirySeverity_CriticalWithinWindow(t *testing.T) {
	soon := time.Now().Add(3 * 24 * time.Hour)
	d := models.CompanyDocument{ExpiryDate: &soon}
	if got := expirySeverity(d); got != models.SeverityCritical {
		t.Fatalf("expected CRITICAL, got %v", got)
	}
}

func TestExpirySeverity_WarningOutsideWindow(t *testing.T) {
	later := time.Now().Add(20 * 24 * time.Hour)
	d := models.CompanyDocument{ExpiryDate: &later}
	if got := expirySeverity(d); got != models.SeverityWarning {
		t.Fatalf("expected WARNING, got %v", got)
	}
}

func TestExpirySeverity_NilExpiryDefaultsWarning(t *testing.T) {
	d := models.CompanyDocument{ExpiryDate: nil}
	if got := expirySeverity(d); got != models.SeverityWarning {
		t.Fatalf("expected WARNING for nil expiry, got %v", got)
	}
}

func TestNormalizeName(t *testing.T) {
	if got := normalizeName("  Steel Pipe  "); got != "steel pipe" {
		t.Fatalf("expected %q, got %q", "steel pipe", got)
	}
}

func TestDaysUntil(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)
	if got := daysUntil(&future); got < 1 || got > 2 {
		t.Fatalf("expected ~2 days, got %d", got)
	}
}

func TestFormatDate_Nil(t *testing.T) {
	if got := formatDate(nil); got != "unknown" {
		t.Fatalf("expected %q, got %q", "unknown", got)
	}
}
