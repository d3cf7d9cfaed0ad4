package parser

import "testing"

func TestParseNumber(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
	}{
		{"european", "1.234,56", 1234.56},
		{"us", "1,234.56", 1234.56},
		{"plain", "1234.56", 1234.56},
		{"thousands_only_us", "12,000", 12000},
		{"decimal_comma_only", "12,50", 12.5},
		{"currency_symbol", "$1,234.56", 1234.56},
		{"euro_symbol", "€1.234,56", 1234.56},
		{"parens_negative", "(100.00)", -100},
		{"arabic_digits", "١٢٣٤.٥٦", 1234.56},
		{"whitespace", " 1 234.56 ", 1234.56},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseNumber(c.in)
			if err != nil {
				t.Fatalf("ParseNumber(%q) returned error: %v", c.in, err)
			}
			if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("ParseNumber(%q) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestParseNumber_Empty(t *testing.T) {
	if _, err := ParseNumber("   "); err == nil {
		t.Fatal("expected error for empty numeric string")
	}
}

func TestMustParseNumber_FailsSilently(t *testing.T) {
	if got := MustParseNumber("not a number"); got != 0 {
		t.Fatalf("expected 0 for unparseable input, got %v", got)
	}
}

func TestNormalizeDigits(t *testing.T) {
	got := NormalizeDigits("٠١٢٣٤٥٦٧٨٩")
	want := "0123456789"
	if got != want {
		t.Fatalf("NormalizeDigits = %q, want %q", got, want)
	}
}
