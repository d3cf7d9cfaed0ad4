package inventory

import "testing"

func TestComputeSaleLine(t *testing.T) {
	costBasis, lineTotal, profit := computeSaleLine(10, 25.0, 15.0)
	if costBasis != 150 {
		t.Fatalf("expected cost basis 150, got %v", costBasis)
	}
	if lineTotal != 250 {
		t.Fatalf("expected line total 250, got %v", lineTotal)
	}
	if profit != 100 {
		t.Fatalf("expected profit 100, got %v", profit)
	}
}

func TestComputeSaleLine_ZeroQuantity(t *testing.T) {
	costBasis, lineTotal, profit := computeSaleLine(0, 25.0, 15.0)
	if costBasis != 0 || lineTotal != 0 || profit != 0 {
		t.Fatalf("expected all-zero result for zero quantity, got (%v,%v,%v)", costBasis, lineTotal, profit)
	}
}
