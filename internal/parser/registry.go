package parser

import (
	"fmt"
	"sort"
	"sync"

	"srg/internal/apperr"
	"srg/internal/models"
)

// Registry holds an ordered chain of Strategy implementations and is the
// entry point ingestion calls for every document.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
}

// NewRegistry builds a chain sorted by descending Priority(); ties keep the
// order they were passed in.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: append([]Strategy(nil), strategies...)}
	sort.SliceStable(r.strategies, func(i, j int) bool {
		return r.strategies[i].Priority() > r.strategies[j].Priority()
	})
	return r
}

// Parse tries each strategy in priority order and returns the first one
// whose result clears its own acceptance threshold, along with the full
// attempt trail (including every declined strategy) for audit/debugging.
// If every strategy declines, it returns a PARSING_FAILED error — this
// should only happen if the chain has no fallback registered, since
// PlaintextStrategy's threshold is low enough to always accept non-empty
// text.
func (r *Registry) Parse(pages []models.Page) (*ParsedInvoice, []Attempt, error) {
	r.mu.RLock()
	strategies := r.strategies
	r.mu.RUnlock()

	trail := make([]Attempt, 0, len(strategies))
	for _, s := range strategies {
		result, err := s.Parse(pages)
		if err != nil {
			trail = append(trail, Attempt{ParserName: s.Name(), Accepted: false, Reason: err.Error()})
			continue
		}
		if result.Confidence < s.AcceptanceThreshold() {
			trail = append(trail, Attempt{
				ParserName: s.Name(),
				Accepted:   false,
				Confidence: result.Confidence,
				Reason:     fmt.Sprintf("confidence %.2f below threshold %.2f", result.Confidence, s.AcceptanceThreshold()),
			})
			continue
		}
		result.ParserName = s.Name()
		trail = append(trail, Attempt{ParserName: s.Name(), Accepted: true, Confidence: result.Confidence})
		return result, trail, nil
	}

	return nil, trail, apperr.New(
		apperr.CodeParsingFailed,
		"no parser strategy accepted this document",
		"try re-scanning the source document at higher quality",
	)
}

// Strategies returns the chain in priority order, for introspection
// (e.g. an admin endpoint listing what ran and why).
func (r *Registry) Strategies() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}
