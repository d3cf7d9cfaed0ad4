// Package audit implements the Audit Engine of spec.md §4.E: deterministic
// arithmetic/format/bank rules composed with an optional model-assisted
// semantic pass, price-history anomaly detection, and cross-invoice
// duplicate detection. Grounded on reposearch's Store-backed lookups for
// the history-aware rules and on the teacher's JSON-repair style for the
// semantic pass's three-stage recovery.
package audit

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"srg/internal/models"
	"srg/internal/repository"
)

const tolerance = 0.01

// Rule names recognized by Options.Rules. An empty set means "all".
const (
	RuleMathError              = "MATH_ERROR"
	RuleSubtotalMismatch       = "SUBTOTAL_MISMATCH"
	RuleTotalMismatch          = "TOTAL_MISMATCH"
	RuleMissingRequired        = "MISSING_REQUIRED"
	RuleDateOrdering           = "DATE_ORDERING"
	RuleFutureDate             = "FUTURE_DATE"
	RuleMissingBankDetails     = "MISSING_BANK_DETAILS"
	RulePriceAnomaly           = "PRICE_ANOMALY"
	RuleCrossInvoiceDuplicate  = "CROSS_INVOICE_DUPLICATE"
)

var allRules = []string{
	RuleMathError, RuleSubtotalMismatch, RuleTotalMismatch, RuleMissingRequired,
	RuleDateOrdering, RuleFutureDate, RuleMissingBankDetails, RulePriceAnomaly, RuleCrossInvoiceDuplicate,
}

func ruleEnabled(enabled map[string]bool, name string) bool {
	if len(enabled) == 0 {
		return true
	}
	return enabled[name]
}

func enabledSet(rules []string) map[string]bool {
	if len(rules) == 0 {
		return nil
	}
	m := make(map[string]bool, len(rules))
	for _, r := range rules {
		m[r] = true
	}
	return m
}

// runDeterministicRules evaluates every enabled deterministic check against
// inv, returning issues in the fixed table order of spec.md §4.E. store may
// be nil in rule-only test contexts that don't exercise the history-aware
// rules.
func runDeterministicRules(ctx context.Context, store *repository.Store, inv *models.Invoice, opts Options) []models.Issue {
	enabled := enabledSet(opts.Rules)
	var issues []models.Issue

	if ruleEnabled(enabled, RuleMathError) {
		issues = append(issues, mathErrorIssues(inv)...)
	}
	if ruleEnabled(enabled, RuleSubtotalMismatch) {
		if iss, ok := subtotalMismatch(inv); ok {
			issues = append(issues, iss)
		}
	}
	if ruleEnabled(enabled, RuleTotalMismatch) {
		if iss, ok := totalMismatch(inv); ok {
			issues = append(issues, iss)
		}
	}
	if ruleEnabled(enabled, RuleMissingRequired) {
		issues = append(issues, missingRequired(inv)...)
	}
	if ruleEnabled(enabled, RuleDateOrdering) {
		if iss, ok := dateOrdering(inv); ok {
			issues = append(issues, iss)
		}
	}
	if ruleEnabled(enabled, RuleFutureDate) {
		if iss, ok := futureDate(inv); ok {
			issues = append(issues, iss)
		}
	}
	if ruleEnabled(enabled, RuleMissingBankDetails) {
		if iss, ok := missingBankDetails(inv); ok {
			issues = append(issues, iss)
		}
	}
	if ruleEnabled(enabled, RulePriceAnomaly) {
		issues = append(issues, priceAnomalies(ctx, store, inv, opts.PriceAnomalyThreshold)...)
	}
	if ruleEnabled(enabled, RuleCrossInvoiceDuplicate) {
		issues = append(issues, crossInvoiceDuplicates(ctx, store, inv, opts.DuplicateWindowDays)...)
	}
	return issues
}

func mathErrorIssues(inv *models.Invoice) []models.Issue {
	var out []models.Issue
	for _, item := range inv.Items {
		if item.RowType != models.RowLineItem || item.TrustStatedTotal {
			continue
		}
		expected := item.Quantity * item.UnitPrice
		if math.Abs(expected-item.TotalPrice) >= tolerance {
			out = append(out, models.Issue{
				Code:     RuleMathError,
				Category: "arithmetic",
				Severity: models.IssueError,
				Message:  fmt.Sprintf("line %d: %.2f x %.2f = %.2f, but line total is %.2f", item.LineNumber, item.Quantity, item.UnitPrice, expected, item.TotalPrice),
			})
		}
	}
	return out
}

func subtotalMismatch(inv *models.Invoice) (models.Issue, bool) {
	var sum float64
	for _, item := range inv.Items {
		if item.RowType == models.RowLineItem {
			sum += item.TotalPrice
		}
	}
	if math.Abs(sum-inv.Subtotal) >= tolerance {
		return models.Issue{
			Code:     RuleSubtotalMismatch,
			Category: "arithmetic",
			Severity: models.IssueError,
			Message:  fmt.Sprintf("line items sum to %.2f but stated subtotal is %.2f", sum, inv.Subtotal),
		}, true
	}
	return models.Issue{}, false
}

func totalMismatch(inv *models.Invoice) (models.Issue, bool) {
	expected := inv.Subtotal + inv.Tax
	if inv.TotalAmount == 0 {
		return models.Issue{}, false
	}
	deviation := math.Abs(expected-inv.TotalAmount) / math.Abs(inv.TotalAmount)
	if deviation > 0.10 {
		return models.Issue{
			Code:     RuleTotalMismatch,
			Category: "arithmetic",
			Severity: models.IssueError,
			Message:  fmt.Sprintf("subtotal %.2f + tax %.2f = %.2f, more than 10%% off the stated total %.2f", inv.Subtotal, inv.Tax, expected, inv.TotalAmount),
		}, true
	}
	return models.Issue{}, false
}

func missingRequired(inv *models.Invoice) []models.Issue {
	var out []models.Issue
	if strings.TrimSpace(inv.InvoiceNo) == "" {
		out = append(out, models.Issue{Code: RuleMissingRequired, Category: "format", Severity: models.IssueError, Message: "invoice number is missing"})
	}
	if inv.InvoiceDate == nil {
		out = append(out, models.Issue{Code: RuleMissingRequired, Category: "format", Severity: models.IssueError, Message: "invoice date is missing"})
	}
	if strings.TrimSpace(inv.SellerName) == "" {
		out = append(out, models.Issue{Code: RuleMissingRequired, Category: "format", Severity: models.IssueError, Message: "seller name is missing"})
	}
	return out
}

func dateOrdering(inv *models.Invoice) (models.Issue, bool) {
	if inv.InvoiceDate == nil || inv.DueDate == nil {
		return models.Issue{}, false
	}
	if inv.DueDate.Before(*inv.InvoiceDate) {
		return models.Issue{
			Code:     RuleDateOrdering,
			Category: "format",
			Severity: models.IssueWarning,
			Message:  fmt.Sprintf("due date %s precedes invoice date %s", inv.DueDate.Format("2006-01-02"), inv.InvoiceDate.Format("2006-01-02")),
		}, true
	}
	return models.Issue{}, false
}

func futureDate(inv *models.Invoice) (models.Issue, bool) {
	if inv.InvoiceDate == nil {
		return models.Issue{}, false
	}
	if inv.InvoiceDate.After(time.Now()) {
		return models.Issue{
			Code:     RuleFutureDate,
			Category: "format",
			Severity: models.IssueWarning,
			Message:  fmt.Sprintf("invoice date %s is in the future", inv.InvoiceDate.Format("2006-01-02")),
		}, true
	}
	return models.Issue{}, false
}

var ibanLikeRe = regexp.MustCompile(`(?i)\b[A-Z]{2}[0-9]{2}[A-Z0-9]{10,30}\b`)
var swiftLikeRe = regexp.MustCompile(`(?i)\b[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}[A-Z0-9]{0,3}\b`)

func missingBankDetails(inv *models.Invoice) (models.Issue, bool) {
	blob := bankDetailsText(inv.BankDetails)
	if ibanLikeRe.MatchString(blob) || swiftLikeRe.MatchString(blob) {
		return models.Issue{}, false
	}
	return models.Issue{
		Code:     RuleMissingBankDetails,
		Category: "bank",
		Severity: models.IssueWarning,
		Message:  "no IBAN or SWIFT code found in bank details",
	}, true
}

func bankDetailsText(bank map[string]any) string {
	var sb strings.Builder
	for k, v := range bank {
		sb.WriteString(k)
		sb.WriteByte(' ')
		fmt.Fprintf(&sb, "%v ", v)
	}
	return sb.String()
}

func priceAnomalies(ctx context.Context, store *repository.Store, inv *models.Invoice, threshold float64) []models.Issue {
	if store == nil {
		return nil
	}
	var out []models.Issue
	var statsErrorEmitted bool
	for _, item := range inv.Items {
		if item.RowType != models.RowLineItem || item.UnitPrice <= 0 {
			continue
		}
		stats, err := store.GetPriceStats(ctx, normalizeName(item.ItemName), inv.Currency, inv.SellerName)
		if err != nil {
			if !statsErrorEmitted {
				out = append(out, models.Issue{Code: "PRICE_STATS_UNAVAILABLE", Category: "pricing", Severity: models.IssueInfo, Message: "price history lookup failed; skipping anomaly check"})
				statsErrorEmitted = true
			}
			continue
		}
		if stats.OccurrenceCount < 2 || stats.AvgPrice <= 0 {
			continue
		}
		deviation := math.Abs(item.UnitPrice-stats.AvgPrice) / stats.AvgPrice
		if deviation > threshold {
			out = append(out, models.Issue{
				Code:     RulePriceAnomaly,
				Category: "pricing",
				Severity: models.IssueWarning,
				Message:  fmt.Sprintf("line %d: unit price %.2f deviates %.0f%% from historical average %.2f", item.LineNumber, item.UnitPrice, deviation*100, stats.AvgPrice),
			})
		}
	}
	return out
}

func crossInvoiceDuplicates(ctx context.Context, store *repository.Store, inv *models.Invoice, windowDays int) []models.Issue {
	if store == nil || inv.InvoiceDate == nil {
		return nil
	}
	var out []models.Issue
	for _, item := range inv.Items {
		if item.RowType != models.RowLineItem {
			continue
		}
		dupes, err := store.FindCrossInvoiceDuplicates(ctx, inv.ID, normalizeName(item.ItemName), windowDays)
		if err != nil || len(dupes) == 0 {
			continue
		}
		out = append(out, models.Issue{
			Code:     RuleCrossInvoiceDuplicate,
			Category: "duplicate",
			Severity: models.IssueWarning,
			Message:  fmt.Sprintf("line %d: matches %d line item(s) on other invoices within %d days", item.LineNumber, len(dupes), windowDays),
		})
	}
	return out
}

// normalizeName mirrors the catalog reconciler's Normalize without importing
// the catalog package, keeping audit's dependency graph one-directional
// (catalog depends on nothing audit-specific; audit shouldn't depend on
// catalog just for a one-line string transform).
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
