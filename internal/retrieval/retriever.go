// Package retrieval implements the Hybrid Retriever of spec.md §4.C: lexical
// and semantic candidate search fused by Reciprocal Rank Fusion, with a
// bounded result cache and an optional reranker. Grounded on reposearch's
// Store.Search (itself a blended single query); here the two retrieval
// modes run as independent queries fanned out with errgroup and fused in Go
// so the RRF constant (k=60, frozen) is explicit rather than buried in SQL.
package retrieval

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"srg/internal/apperr"
	"srg/internal/config"
	"srg/internal/llm"
	"srg/internal/repository"
)

// Result is one fused hit returned to callers.
type Result struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	LexRank    int     `json:"lexical_rank,omitempty"`
	SemRank    int     `json:"semantic_rank,omitempty"`
	Source     string  `json:"source"` // hybrid, faiss_only, fts_only
}

// Strategy values accepted by Search's SearchOptions.Strategy.
const (
	StrategyHybrid   = "hybrid"
	StrategySemantic = "semantic"
	StrategyKeyword  = "keyword"
)

// Filters narrows candidate retrieval to a subset of the chunk index.
// Zero-value Filters applies no restriction.
type Filters struct {
	DocumentID string
	CompanyKey string
}

func (f Filters) toRepository() repository.SearchFilters {
	return repository.SearchFilters{DocumentID: f.DocumentID, CompanyKey: f.CompanyKey}
}

// SearchOptions carries every per-call knob spec.md §4.C's search operation
// exposes beyond query/top_k. The zero value runs the hybrid strategy with
// reranking and caching both off — callers that want the defaulted
// (enabled) behavior set UseReranker/UseCache explicitly, matching how
// handlers_search.go maps *bool request fields (nil ⇒ default true).
type SearchOptions struct {
	Strategy    string
	UseReranker bool
	UseCache    bool
	Filters     Filters
	MinScore    float64
}

// Retriever is the component's entry point, holding the store, the model
// provider (for query embedding), and the bounded cache.
type Retriever struct {
	store    *repository.Store
	provider llm.Provider
	cfg      config.SearchConfig

	cache    *resultCache
	reranker Reranker

	mu       sync.Mutex
	lastPlan QueryPlan
}

// New builds a Retriever. cacheCfg.SearchCacheSize <= 0 disables caching.
// The reranker is only invoked when both cfg.RerankerEnabled (at wiring
// time) and SearchOptions.UseReranker (per call) hold.
func New(store *repository.Store, provider llm.Provider, cfg config.SearchConfig, cacheCfg config.CacheConfig, reranker Reranker) *Retriever {
	return &Retriever{
		store:    store,
		provider: provider,
		cfg:      cfg,
		cache:    newResultCache(cacheCfg.SearchCacheSize, cacheCfg.SearchCacheTTL),
		reranker: reranker,
	}
}

// QueryPlan records what a Search call actually did, for ExplainLastQuery.
type QueryPlan struct {
	Query           string
	Strategy        string
	CacheHit        bool
	LexicalCount    int
	SemanticCount   int
	FusedCount      int
	Degraded        string // non-empty if one retrieval mode failed and the other carried the query
	RerankerApplied bool
}

// rrfK is spec.md's frozen Reciprocal Rank Fusion constant. Never made
// configurable — changing it would silently reorder every historical
// search result.
const rrfK = 60

// Search runs the selected retrieval strategy (hybrid by default): keyword
// and/or semantic candidate retrieval, RRF fusion, optional reranking,
// max-scale normalization, min-score filtering, and caching. An empty query
// (after trimming) returns an empty result set, never an error.
func (r *Retriever) Search(ctx context.Context, query string, topK int, opts SearchOptions) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	if topK <= 0 {
		topK = 10
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyHybrid
	}

	cacheKey := cacheKeyFor(query, topK, strategy, opts)
	if opts.UseCache {
		if cached, ok := r.cache.get(cacheKey); ok {
			r.recordPlan(QueryPlan{Query: query, Strategy: strategy, CacheHit: true, FusedCount: len(cached)})
			return cached, nil
		}
	}

	lexCandidates := r.cfg.FTSCandidates
	if lexCandidates <= 0 {
		lexCandidates = 60
	}
	semCandidates := r.cfg.FaissCandidates
	if semCandidates <= 0 {
		semCandidates = 60
	}

	var lexHits []repository.LexicalHit
	var semHits []repository.SemanticHit
	var degraded string

	switch strategy {
	case StrategyKeyword:
		hits, err := r.searchKeyword(ctx, query, lexCandidates, opts.Filters)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeIndexNotReady, "keyword search failed", "check lexical index health", err)
		}
		lexHits = hits
	case StrategySemantic:
		hits, err := r.searchSemantic(ctx, query, semCandidates, opts.Filters)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeIndexNotReady, "semantic search failed", "check embedding provider and vector index", err)
		}
		semHits = hits
	default:
		var lexErr, semErr error
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hits, err := r.searchKeyword(gctx, query, lexCandidates, opts.Filters)
			if err != nil {
				lexErr = err
				return nil // keyword failure degrades to semantic-only, not a hard error
			}
			lexHits = hits
			return nil
		})
		g.Go(func() error {
			hits, err := r.searchSemantic(gctx, query, semCandidates, opts.Filters)
			if err != nil {
				semErr = err
				return nil
			}
			semHits = hits
			return nil
		})
		_ = g.Wait()
		switch {
		case lexErr != nil && semErr != nil:
			return nil, apperr.Wrap(apperr.CodeIndexNotReady, "both retrieval modes failed", "check embedding provider and database connectivity", semErr)
		case lexErr != nil:
			degraded = "lexical"
		case semErr != nil:
			degraded = "semantic"
		}
	}

	fused := fuse(lexHits, semHits, topK)

	reranked := false
	if opts.UseReranker && r.reranker != nil && len(fused) > 0 {
		rerankN := r.cfg.RerankerTopK
		if rerankN <= 0 || rerankN > len(fused) {
			rerankN = len(fused)
		}
		if out, err := r.reranker.Rerank(ctx, query, fused[:rerankN]); err == nil {
			copy(fused, out)
			reranked = true
		}
	}

	maxScale(fused)
	fused = filterMinScore(fused, opts.MinScore)

	r.recordPlan(QueryPlan{
		Query:           query,
		Strategy:        strategy,
		LexicalCount:    len(lexHits),
		SemanticCount:   len(semHits),
		FusedCount:      len(fused),
		Degraded:        degraded,
		RerankerApplied: reranked,
	})

	if opts.UseCache {
		r.cache.set(cacheKey, fused)
	}
	return fused, nil
}

// cacheKeyFor builds spec.md §4.C step 2's cache key: canonical query,
// strategy, top_k, reranker flag, and a filters hash.
func cacheKeyFor(query string, topK int, strategy string, opts SearchOptions) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s", opts.Filters.DocumentID, opts.Filters.CompanyKey)
	return fmt.Sprintf("%s\x00%s\x00%d\x00%t\x00%x", strings.ToLower(query), strategy, topK, opts.UseReranker, h.Sum64())
}

// searchKeyword runs only the lexical half of the pipeline — exposed as its
// own operation (spec.md §4.C's search_keyword) for callers that want pure
// BM25-style matching without vector fusion.
func (r *Retriever) searchKeyword(ctx context.Context, query string, k int, filters Filters) ([]repository.LexicalHit, error) {
	return r.store.SearchLexical(ctx, query, k, filters.toRepository())
}

// searchSemantic runs only the vector half of the pipeline (spec.md §4.C's
// search_semantic), embedding the query text first.
func (r *Retriever) searchSemantic(ctx context.Context, query string, k int, filters Filters) ([]repository.SemanticHit, error) {
	vec, err := r.provider.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.store.SearchSemantic(ctx, vec, k, filters.toRepository())
}

// SearchKeyword exposes searchKeyword to callers outside the package (the
// /api/search/keyword surface).
func (r *Retriever) SearchKeyword(ctx context.Context, query string, k int, filters Filters) ([]repository.LexicalHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []repository.LexicalHit{}, nil
	}
	return r.searchKeyword(ctx, query, k, filters)
}

// SearchSemantic exposes searchSemantic to callers outside the package (the
// /api/search/semantic surface).
func (r *Retriever) SearchSemantic(ctx context.Context, query string, k int, filters Filters) ([]repository.SemanticHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []repository.SemanticHit{}, nil
	}
	return r.searchSemantic(ctx, query, k, filters)
}

// fuse combines lexical and semantic rankings with Reciprocal Rank Fusion:
// score(doc) = sum(1 / (rrfK + rank)) over every ranking the doc appears in.
// Ties are broken by vector rank first, then chunk id ascending, for
// deterministic output given identical inputs (spec.md §8 stability
// invariant). A chunk found by both sources is tagged source=hybrid; a
// single-source chunk is tagged faiss_only or fts_only.
func fuse(lex []repository.LexicalHit, sem []repository.SemanticHit, topK int) []Result {
	type acc struct {
		documentID string
		text       string
		score      float64
		lexRank    int
		semRank    int
	}
	byChunk := map[string]*acc{}

	for i, h := range lex {
		rank := i + 1
		a, ok := byChunk[h.ChunkID]
		if !ok {
			a = &acc{documentID: h.DocumentID, text: h.Text}
			byChunk[h.ChunkID] = a
		}
		a.lexRank = rank
		a.score += 1.0 / float64(rrfK+rank)
	}
	for i, h := range sem {
		rank := i + 1
		a, ok := byChunk[h.ChunkID]
		if !ok {
			a = &acc{documentID: h.DocumentID, text: h.Text}
			byChunk[h.ChunkID] = a
		}
		a.semRank = rank
		a.score += 1.0 / float64(rrfK+rank)
	}

	out := make([]Result, 0, len(byChunk))
	for chunkID, a := range byChunk {
		source := "hybrid"
		switch {
		case a.lexRank == 0:
			source = "faiss_only"
		case a.semRank == 0:
			source = "fts_only"
		}
		out = append(out, Result{
			ChunkID:    chunkID,
			DocumentID: a.documentID,
			Text:       a.text,
			Score:      a.score,
			LexRank:    a.lexRank,
			SemRank:    a.semRank,
			Source:     source,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		// Stable tiebreak: vector rank (0 = absent, sorts last), then
		// chunk id ascending.
		ri, rj := tieRank(out[i].SemRank), tieRank(out[j].SemRank)
		if ri != rj {
			return ri < rj
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func tieRank(rank int) int {
	if rank == 0 {
		return int(^uint(0) >> 1) // absent from the semantic ranking sorts last
	}
	return rank
}

// maxScale normalizes every result's score into [0,1] by dividing by the
// maximum score in the set (spec.md §4.C step 6). A no-op on an empty set
// or when the maximum is zero.
func maxScale(results []Result) {
	if len(results) == 0 {
		return
	}
	max := results[0].Score
	for _, r := range results[1:] {
		if r.Score > max {
			max = r.Score
		}
	}
	if max <= 0 {
		return
	}
	for i := range results {
		results[i].Score /= max
	}
}

// filterMinScore drops every result scoring below minScore. minScore <= 0
// disables the filter.
func filterMinScore(results []Result, minScore float64) []Result {
	if minScore <= 0 {
		return results
	}
	out := results[:0]
	for _, res := range results {
		if res.Score >= minScore {
			out = append(out, res)
		}
	}
	return out
}

func (r *Retriever) recordPlan(p QueryPlan) {
	r.mu.Lock()
	r.lastPlan = p
	r.mu.Unlock()
}

// ExplainLastQuery returns diagnostics for the most recent Search call on
// this Retriever instance — a debug aid, not part of the search result
// shape itself.
func (r *Retriever) ExplainLastQuery() QueryPlan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPlan
}

// CacheStats reports the cache's current occupancy.
func (r *Retriever) CacheStats() (size, capacity int) {
	return r.cache.stats()
}

// CacheInvalidate clears the entire result cache — called after a
// reindexing pass so stale fused results can't outlive the index they were
// computed from.
func (r *Retriever) CacheInvalidate() {
	r.cache.clear()
}
