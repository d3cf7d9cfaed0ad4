package catalog

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Stainless Steel Bolt  ": "stainless steel bolt",
		"ALREADY LOWER":            "already lower",
		"":                         "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_IsIdempotent(t *testing.T) {
	v := Normalize("  Hex Nut M8  ")
	if Normalize(v) != v {
		t.Fatalf("expected Normalize to be idempotent, got %q then %q", v, Normalize(v))
	}
}
