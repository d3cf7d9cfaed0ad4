package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"srg/internal/retrieval"
)

func registerSearchRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/search", s.handleSearch).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/search/quick", s.handleSearchQuick).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/search/semantic", s.handleSearchSemantic).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/search/keyword", s.handleSearchKeyword).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/search/cache/stats", s.handleSearchCacheStats).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/search/cache/invalidate", s.handleSearchCacheInvalidate).Methods("POST", "OPTIONS")
}

type searchFilters struct {
	DocumentID string `json:"document_id"`
	CompanyKey string `json:"company_key"`
}

func (f searchFilters) toRetrieval() retrieval.Filters {
	return retrieval.Filters{DocumentID: f.DocumentID, CompanyKey: f.CompanyKey}
}

type searchRequest struct {
	Query       string        `json:"query"`
	TopK        int           `json:"top_k"`
	Strategy    string        `json:"strategy"`
	UseReranker *bool         `json:"use_reranker"`
	UseCache    *bool         `json:"use_cache"`
	MinScore    float64       `json:"min_score"`
	Filters     searchFilters `json:"filters"`
}

// boolOrDefault returns *v when set, else def. Used for the use_reranker/
// use_cache knobs, which default to enabled when the caller omits them.
func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (body searchRequest) toOptions() retrieval.SearchOptions {
	return retrieval.SearchOptions{
		Strategy:    body.Strategy,
		UseReranker: boolOrDefault(body.UseReranker, true),
		UseCache:    boolOrDefault(body.UseCache, true),
		Filters:     body.Filters.toRetrieval(),
		MinScore:    body.MinScore,
	}
}

// handleSearch runs spec.md §4.C's full search operation. An empty query is
// not a validation error: it returns an empty result list, per the
// canonicalization step of the hybrid algorithm.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.TopK <= 0 {
		body.TopK = 10
	}
	results, err := s.retriever.Search(r.Context(), body.Query, body.TopK, body.toOptions())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"plan":    s.retriever.ExplainLastQuery(),
	})
}

func (s *Server) handleSearchQuick(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	topK := parseIntQuery(r, "top_k", 5)
	opts := retrieval.SearchOptions{UseReranker: true, UseCache: true}
	results, err := s.retriever.Search(r.Context(), query, topK, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSearchSemantic(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.TopK <= 0 {
		body.TopK = 10
	}
	hits, err := s.retriever.SearchSemantic(r.Context(), body.Query, body.TopK, body.Filters.toRetrieval())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (s *Server) handleSearchKeyword(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.TopK <= 0 {
		body.TopK = 10
	}
	hits, err := s.retriever.SearchKeyword(r.Context(), body.Query, body.TopK, body.Filters.toRetrieval())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (s *Server) handleSearchCacheStats(w http.ResponseWriter, r *http.Request) {
	size, capacity := s.retriever.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{"size": size, "capacity": capacity})
}

func (s *Server) handleSearchCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	s.retriever.CacheInvalidate()
	w.WriteHeader(http.StatusNoContent)
}
