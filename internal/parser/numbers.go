package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// arabicDigits maps Arabic-Indic digits (and the Persian variants) to
// Western digits 0-9, in code-point order.
var arabicDigits = map[rune]rune{
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

// NormalizeDigits rewrites any Arabic-Indic/Persian digits in s to Western
// digits, leaving everything else untouched.
func NormalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if w, ok := arabicDigits[r]; ok {
			b.WriteRune(w)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var currencySymbolRe = regexp.MustCompile(`[$€£¥₹﷼]|USD|EUR|GBP|AED|SAR|EGP`)

// ParseNumber parses a numeric string that may be in European form
// (1.234,56), US form (1,234.56), or plain form (1234.56), with currency
// symbols and surrounding whitespace stripped, and Arabic digits normalized
// first (spec.md §4.B).
func ParseNumber(raw string) (float64, error) {
	s := NormalizeDigits(raw)
	s = currencySymbolRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty numeric string")
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimPrefix(s, "-")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	var normalized string
	switch {
	case lastComma == -1 && lastDot == -1:
		normalized = s
	case lastComma != -1 && lastDot == -1:
		// Only commas: European decimal comma if exactly one comma with
		// 1-2 trailing digits and no other commas, else thousands grouping.
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			normalized = parts[0] + "." + parts[1]
		} else {
			normalized = strings.ReplaceAll(s, ",", "")
		}
	case lastDot != -1 && lastComma == -1:
		parts := strings.Split(s, ".")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			normalized = s
		} else {
			normalized = strings.ReplaceAll(s, ".", "")
		}
	case lastComma > lastDot:
		// European: '.' is thousands separator, ',' is decimal.
		normalized = strings.ReplaceAll(s[:lastComma], ".", "") + "." + s[lastComma+1:]
	default:
		// US: ',' is thousands separator, '.' is decimal.
		normalized = strings.ReplaceAll(s[:lastDot], ",", "") + "." + s[lastDot+1:]
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric string %q: %w", raw, err)
	}
	if neg {
		v = -v
	}
	return v, nil
}

// MustParseNumber parses raw, returning 0 on failure instead of an error —
// used where a missing/garbled number should degrade an item's confidence
// rather than abort the whole parse.
func MustParseNumber(raw string) float64 {
	v, err := ParseNumber(raw)
	if err != nil {
		return 0
	}
	return v
}
