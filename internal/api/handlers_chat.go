package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"srg/internal/apperr"
	"srg/internal/chat"
	"srg/internal/models"
)

func registerChatRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/chat", s.handleChat).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/chat/stream", s.handleChatStream).Methods("POST", "OPTIONS")

	r.HandleFunc("/api/sessions", s.handleListSessions).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/sessions", s.handleCreateSession).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}", s.handleGetSession).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}", s.handleDeleteSession).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/messages", s.handleListSessionMessages).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/summary", s.handleSessionSummary).Methods("GET", "OPTIONS")
}

type chatRequest struct {
	SessionID       string  `json:"session_id"`
	Message         string  `json:"message"`
	UseRAG          *bool   `json:"use_rag"`
	TopK            int     `json:"top_k"`
	MaxContextChars int     `json:"max_context_chars"`
	ExtractMemory   *bool   `json:"extract_memory"`
	SystemPrompt    string  `json:"system_prompt"`
	Temperature     float64 `json:"temperature"`
}

func (req chatRequest) toSendOptions() chat.SendOptions {
	opts := chat.DefaultSendOptions()
	if req.UseRAG != nil {
		opts.UseRAG = *req.UseRAG
	}
	if req.TopK > 0 {
		opts.TopK = req.TopK
	}
	if req.MaxContextChars > 0 {
		opts.MaxContextChars = req.MaxContextChars
	}
	if req.ExtractMemory != nil {
		opts.ExtractMemory = *req.ExtractMemory
	}
	if req.SystemPrompt != "" {
		opts.SystemPrompt = req.SystemPrompt
	}
	if req.Temperature > 0 {
		opts.Temperature = req.Temperature
	}
	return opts
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Message == "" {
		writeError(w, r, apperr.Validation("message", "required"))
		return
	}
	result, err := s.chat.SendMessage(r.Context(), body.SessionID, body.Message, body.toSendOptions())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Message == "" {
		writeError(w, r, apperr.Validation("message", "required"))
		return
	}

	events, err := s.chat.StreamMessage(r.Context(), body.SessionID, body.Message, body.toSendOptions())
	if err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, apperr.New(apperr.CodeDatabaseError, "streaming unsupported by this response writer", ""))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		fmt.Fprint(w, chat.RenderSSELine(ev))
		flusher.Flush()
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	sessions, err := s.store.ListChatSessions(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title        string  `json:"title"`
		SystemPrompt string  `json:"system_prompt"`
		Temperature  float64 `json:"temperature"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	now := time.Now()
	cs := &models.ChatSession{
		ID:               uuid.NewString(),
		Title:            body.Title,
		Status:           models.SessionActive,
		SystemPrompt:     body.SystemPrompt,
		Temperature:      body.Temperature,
		MaxContextTokens: 8000,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertChatSession(r.Context(), cs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cs)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cs, err := s.store.GetChatSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.UpdateChatSessionStatus(r.Context(), id, models.SessionDeleted); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessionMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit := parseLimit(r, 50)
	msgs, err := s.store.ListChatMessages(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cs, err := s.store.GetChatSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":            cs.ID,
		"conversation_summary":  cs.ConversationSummary,
		"summary_message_count": cs.SummaryMessageCount,
		"total_tokens":          cs.TotalTokens,
	})
}
