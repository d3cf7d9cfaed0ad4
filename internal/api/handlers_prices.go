package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"srg/internal/apperr"
	"srg/internal/catalog"
)

func registerPriceRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/prices/history", s.handlePriceHistory).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/prices/stats", s.handlePriceStats).Methods("GET", "OPTIONS")
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, r, apperr.Validation("name", "required"))
		return
	}
	currency := r.URL.Query().Get("currency")
	limit := parseLimit(r, 50)

	rows, err := s.store.ListPriceHistory(r.Context(), catalog.Normalize(name), currency, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": rows, "count": len(rows)})
}

func (s *Server) handlePriceStats(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, r, apperr.Validation("name", "required"))
		return
	}
	currency := r.URL.Query().Get("currency")
	seller := r.URL.Query().Get("seller")

	stats, err := s.store.GetPriceStats(r.Context(), catalog.Normalize(name), currency, seller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
