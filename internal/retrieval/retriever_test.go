package retrieval

import (
	"testing"
	"time"

	"srg/internal/repository"
)

func TestFuse_CombinesBothRankings(t *testing.T) {
	lex := []repository.LexicalHit{
		{ChunkID: "a", DocumentID: "doc1", Text: "alpha"},
		{ChunkID: "b", DocumentID: "doc2", Text: "beta"},
	}
	sem := []repository.SemanticHit{
		{ChunkID: "b", DocumentID: "doc2", Text: "beta"},
		{ChunkID: "c", DocumentID: "doc3", Text: "gamma"},
	}

	out := fuse(lex, sem, 10)
	if len(out) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(out))
	}
	// "b" appears in both rankings at rank 2 and rank 1 respectively, so it
	// should outscore chunks appearing in only one ranking.
	if out[0].ChunkID != "b" {
		t.Fatalf("expected chunk 'b' to rank first, got %q (results: %+v)", out[0].ChunkID, out)
	}
}

func TestFuse_RespectsTopK(t *testing.T) {
	lex := []repository.LexicalHit{
		{ChunkID: "a", DocumentID: "doc1"},
		{ChunkID: "b", DocumentID: "doc2"},
		{ChunkID: "c", DocumentID: "doc3"},
	}
	out := fuse(lex, nil, 2)
	if len(out) != 2 {
		t.Fatalf("expected topK=2 results, got %d", len(out))
	}
}

func TestFuse_StableTiebreakBySemanticRank(t *testing.T) {
	// Single-entry lexical rankings score identically at rank 1.
	lexA := []repository.LexicalHit{{ChunkID: "z", DocumentID: "doc1"}}
	lexB := []repository.LexicalHit{{ChunkID: "a", DocumentID: "doc2"}}

	outA := fuse(lexA, nil, 10)
	outB := fuse(lexB, nil, 10)
	if outA[0].Score != outB[0].Score {
		t.Fatalf("expected identical rank-1 scores for single-hit lexical results")
	}

	// "z" is lexical rank 1 and semantic rank 2, "a" the reverse, so both
	// fuse to exactly 1/61 + 1/62 and the lower semantic rank breaks the tie.
	merged := append(append([]repository.LexicalHit{}, lexA...), lexB...)
	sem := []repository.SemanticHit{{ChunkID: "a", DocumentID: "doc2"}, {ChunkID: "z", DocumentID: "doc1"}}
	out := fuse(merged, sem, 10)
	if out[0].ChunkID != "a" || out[1].ChunkID != "z" {
		t.Fatalf("expected semantic-rank tiebreak, got order %+v", out)
	}
}

func TestResultCache_SetGetAndEviction(t *testing.T) {
	c := newResultCache(2, time.Hour)

	c.set("q1", []Result{{ChunkID: "1"}})
	c.set("q2", []Result{{ChunkID: "2"}})
	c.set("q3", []Result{{ChunkID: "3"}})

	if _, ok := c.get("q1"); ok {
		t.Fatal("expected q1 to be evicted as least-recently-used")
	}
	if _, ok := c.get("q2"); !ok {
		t.Fatal("expected q2 to still be cached")
	}
	if _, ok := c.get("q3"); !ok {
		t.Fatal("expected q3 to still be cached")
	}
}

func TestResultCache_DisabledWhenCapacityZero(t *testing.T) {
	c := newResultCache(0, time.Hour)
	c.set("q1", []Result{{ChunkID: "1"}})
	if _, ok := c.get("q1"); ok {
		t.Fatal("expected caching to be a no-op at capacity 0")
	}
}

func TestMaxScale_NormalizesToUnitRange(t *testing.T) {
	results := []Result{{ChunkID: "a", Score: 0.5}, {ChunkID: "b", Score: 0.25}}
	maxScale(results)
	if results[0].Score != 1.0 {
		t.Fatalf("expected top score to scale to 1.0, got %v", results[0].Score)
	}
	if results[1].Score != 0.5 {
		t.Fatalf("expected second score to scale to 0.5, got %v", results[1].Score)
	}
}

func TestFilterMinScore_DropsBelowThreshold(t *testing.T) {
	results := []Result{{ChunkID: "a", Score: 0.9}, {ChunkID: "b", Score: 0.1}}
	out := filterMinScore(results, 0.5)
	if len(out) != 1 || out[0].ChunkID != "a" {
		t.Fatalf("expected only the high-scoring result to survive, got %+v", out)
	}
}

func TestFilterMinScore_NoopWhenUnset(t *testing.T) {
	results := []Result{{ChunkID: "a", Score: 0.9}, {ChunkID: "b", Score: 0.1}}
	out := filterMinScore(results, 0)
	if len(out) != 2 {
		t.Fatalf("expected min_score <= 0 to keep every result, got %+v", out)
	}
}

func TestFuse_TagsSourcePerChunk(t *testing.T) {
	lex := []repository.LexicalHit{{ChunkID: "a", DocumentID: "doc1"}, {ChunkID: "shared", DocumentID: "doc2"}}
	sem := []repository.SemanticHit{{ChunkID: "shared", DocumentID: "doc2"}, {ChunkID: "b", DocumentID: "doc3"}}

	out := fuse(lex, sem, 10)
	bySource := map[string]string{}
	for _, r := range out {
		bySource[r.ChunkID] = r.Source
	}
	if bySource["a"] != "fts_only" {
		t.Fatalf("expected chunk 'a' tagged fts_only, got %q", bySource["a"])
	}
	if bySource["b"] != "faiss_only" {
		t.Fatalf("expected chunk 'b' tagged faiss_only, got %q", bySource["b"])
	}
	if bySource["shared"] != "hybrid" {
		t.Fatalf("expected chunk 'shared' tagged hybrid, got %q", bySource["shared"])
	}
}

func TestCacheKeyFor_VariesWithStrategyRerankerAndFilters(t *testing.T) {
	base := cacheKeyFor("widgets", 10, StrategyHybrid, SearchOptions{})
	withReranker := cacheKeyFor("widgets", 10, StrategyHybrid, SearchOptions{UseReranker: true})
	withFilter := cacheKeyFor("widgets", 10, StrategyHybrid, SearchOptions{Filters: Filters{DocumentID: "doc1"}})
	withStrategy := cacheKeyFor("widgets", 10, StrategyKeyword, SearchOptions{})

	keys := []string{base, withReranker, withFilter, withStrategy}
	for i := range keys {
		for j := range keys {
			if i != j && keys[i] == keys[j] {
				t.Fatalf("expected distinct cache keys, got collision between %q and %q", keys[i], keys[j])
			}
		}
	}
}
