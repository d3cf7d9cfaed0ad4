package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

func registerHealthRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/health", s.handleHealth).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/health/full", s.handleHealthFull).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/health/llm", s.handleHealthLLM).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/health/db", s.handleHealthDB).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/health/search", s.handleHealthSearch).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/events/ws", s.handleEventsWebSocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleHealthFull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dbErr := s.store.Ping(ctx)
	llmStatus := s.provider.CheckHealth(ctx)

	status := "ok"
	if dbErr != nil || !llmStatus.Available {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"db":     dbStatus(dbErr),
		"llm":    llmStatus,
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleHealthLLM(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.provider.CheckHealth(r.Context()))
}

func (s *Server) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	err := s.store.Ping(r.Context())
	writeJSON(w, http.StatusOK, dbStatus(err))
}

func (s *Server) handleHealthSearch(w http.ResponseWriter, r *http.Request) {
	size, capacity := s.retriever.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"cache_size":    size,
		"cache_capacity": capacity,
	})
}

func dbStatus(err error) map[string]any {
	if err != nil {
		return map[string]any{"available": false, "error": err.Error()}
	}
	return map[string]any{"available": true}
}
