package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"srg/internal/llm"
	"srg/internal/models"
)

const memoryExtractionPrompt = `Extract any durable facts worth remembering from this exchange (user preferences, entities mentioned, temporal commitments). Respond with a JSON array of objects, each {"fact_type": one of user_preference|document_context|entity|relationship|temporal, "key": short slug, "value": string, "confidence": 0-1}. Respond with [] if nothing is worth remembering.

User: %s
Assistant: %s`

type extractedFact struct {
	FactType   string  `json:"fact_type"`
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// extractMemory runs the secondary provider call of spec.md §4.G step 6,
// persisting each fact with (session_id, key) upsert semantics.
func (o *Orchestrator) extractMemory(ctx context.Context, sessionID, userText, assistantText string) ([]models.MemoryFact, error) {
	resp, err := o.provider.Generate(ctx, fmt.Sprintf(memoryExtractionPrompt, userText, assistantText), llm.GenerateOptions{MaxTokens: 400})
	if err != nil {
		return nil, err
	}

	raw := extractBalancedArray(resp)
	var facts []extractedFact
	if err := json.Unmarshal([]byte(raw), &facts); err != nil {
		return nil, nil
	}

	out := make([]models.MemoryFact, 0, len(facts))
	for _, f := range facts {
		if f.Key == "" || f.Value == "" {
			continue
		}
		fact := models.MemoryFact{
			ID:           uuid.NewString(),
			SessionID:    sessionID,
			Type:         models.MemoryFactType(f.FactType),
			Key:          f.Key,
			Value:        f.Value,
			Confidence:   f.Confidence,
			LastAccessed: time.Now(),
		}
		if err := o.store.UpsertMemoryFact(ctx, &fact); err != nil {
			continue
		}
		out = append(out, fact)
	}
	return out, nil
}

// extractBalancedArray scans resp for the first balanced [...] region,
// tolerating brackets inside quoted strings — mirrors the audit engine's
// object-extraction repair stage but for a top-level JSON array.
func extractBalancedArray(resp string) string {
	start := -1
	for i, c := range resp {
		if c == '[' {
			start = i
			break
		}
	}
	if start == -1 {
		return "[]"
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(resp); i++ {
		c := resp[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return resp[start : i+1]
			}
		}
	}
	return "[]"
}
