package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"srg/internal/llm"
)

// Reranker re-scores an already-fused result set using a more expensive
// relevance signal than RRF alone.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []Result) ([]Result, error)
}

// CrossEncoderReranker asks the model provider to score each candidate
// chunk's relevance to the query directly, trading one provider call per
// candidate for a sharper top-of-list ordering than RRF alone gives. Only
// the top RerankerTopK fused candidates are sent through it, to bound cost.
type CrossEncoderReranker struct {
	provider llm.Provider
}

func NewCrossEncoderReranker(provider llm.Provider) *CrossEncoderReranker {
	return &CrossEncoderReranker{provider: provider}
}

const rerankPrompt = "Rate how relevant the following passage is to the query on a scale from 0 to 100. Respond with only the number.\n\nQuery: %s\n\nPassage: %s"

func (c *CrossEncoderReranker) Rerank(ctx context.Context, query string, results []Result) ([]Result, error) {
	scored := make([]Result, len(results))
	copy(scored, results)

	for i := range scored {
		resp, err := c.provider.Generate(ctx, fmt.Sprintf(rerankPrompt, query, scored[i].Text), llm.GenerateOptions{MaxTokens: 8})
		if err != nil {
			// A single candidate failing to score shouldn't sink the whole
			// rerank; it keeps its RRF score and falls toward the back of
			// ties rather than aborting the request.
			continue
		}
		if v, ok := parseRelevanceScore(resp); ok {
			scored[i].Score = v
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

func parseRelevanceScore(resp string) (float64, bool) {
	resp = strings.TrimSpace(resp)
	fields := strings.Fields(resp)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimRight(fields[0], "."), 64)
	if err != nil {
		return 0, false
	}
	return v / 100.0, true
}
