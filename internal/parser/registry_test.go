package parser

import (
	"fmt"
	"testing"

	"srg/internal/apperr"
	"srg/internal/models"
)

type fakeStrategy struct {
	name       string
	priority   int
	threshold  float64
	confidence float64
	declineErr error
}

func (f *fakeStrategy) Name() string                { return f.name }
func (f *fakeStrategy) Priority() int                { return f.priority }
func (f *fakeStrategy) AcceptanceThreshold() float64 { return f.threshold }
func (f *fakeStrategy) Parse(pages []models.Page) (*ParsedInvoice, error) {
	if f.declineErr != nil {
		return nil, f.declineErr
	}
	return &ParsedInvoice{Confidence: f.confidence}, nil
}

func TestRegistry_TriesInDescendingPriority(t *testing.T) {
	low := &fakeStrategy{name: "low", priority: 10, threshold: 0.3, confidence: 0.9}
	high := &fakeStrategy{name: "high", priority: 100, threshold: 0.3, confidence: 0.9}

	r := NewRegistry(low, high)
	result, trail, err := r.Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ParserName != "high" {
		t.Fatalf("expected high-priority strategy to win, got %q", result.ParserName)
	}
	if len(trail) != 1 {
		t.Fatalf("expected only the winning strategy to be attempted, got %d attempts", len(trail))
	}
}

func TestRegistry_FallsThroughOnDecline(t *testing.T) {
	declines := &fakeStrategy{name: "declines", priority: 100, threshold: 0.3, declineErr: fmt.Errorf("nope")}
	lowConf := &fakeStrategy{name: "low_conf", priority: 80, threshold: 0.5, confidence: 0.2}
	accepts := &fakeStrategy{name: "accepts", priority: 10, threshold: 0.3, confidence: 0.3}

	r := NewRegistry(declines, lowConf, accepts)
	result, trail, err := r.Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ParserName != "accepts" {
		t.Fatalf("expected fallback strategy to win, got %q", result.ParserName)
	}
	if len(trail) != 3 {
		t.Fatalf("expected all 3 strategies in the trail, got %d", len(trail))
	}
	if trail[0].Accepted || trail[1].Accepted || !trail[2].Accepted {
		t.Fatalf("unexpected acceptance pattern in trail: %+v", trail)
	}
}

func TestRegistry_AllDeclineReturnsParsingFailed(t *testing.T) {
	a := &fakeStrategy{name: "a", priority: 100, threshold: 0.5, confidence: 0.1}
	r := NewRegistry(a)
	_, _, err := r.Parse(nil)
	if err == nil {
		t.Fatal("expected an error when every strategy declines")
	}
	e, ok := apperr.As(err)
	if !ok || e.Code != apperr.CodeParsingFailed {
		t.Fatalf("expected PARSING_FAILED, got %v", err)
	}
}
