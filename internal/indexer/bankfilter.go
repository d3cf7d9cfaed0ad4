package indexer

import (
	"regexp"
	"strings"
)

// ibanRe matches an IBAN: two letters, two check digits, then 2 to 7 groups
// of up to four alphanumerics (at most 28), optionally space-separated.
var ibanRe = regexp.MustCompile(`(?i)\b[A-Z]{2}[0-9]{2}(?:[ ]?[A-Z0-9]{1,4}){2,7}\b`)

// swiftRe matches a SWIFT/BIC code: 4-letter bank code, 2-letter country
// code, 2 alphanumeric location chars, optional 3-char branch code.
var swiftRe = regexp.MustCompile(`(?i)\b[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`)

// bankKeywords is the fixed English+Arabic keyword set whose presence
// excludes a line item from the line-item vector index (spec.md §4.D).
var bankKeywords = []string{
	"iban", "swift", "bic", "routing number", "account number",
	"bank name", "bank details", "beneficiary", "sort code",
	"آيبان", "سويفت", "رقم الحساب", "اسم البنك", "المستفيد",
}

// isBankInfo reports whether text looks like bank/payment routing detail
// rather than a genuine catalog line item. Applied only to line-item
// indexing, never to document chunks.
func isBankInfo(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 3 {
		return true
	}
	if ibanRe.MatchString(trimmed) || swiftRe.MatchString(trimmed) {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range bankKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
