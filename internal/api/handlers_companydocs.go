package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"srg/internal/apperr"
	"srg/internal/models"
)

func registerCompanyDocumentRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/company-documents", s.handleCreateCompanyDocument).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/company-documents", s.handleListCompanyDocuments).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/company-documents/expiring", s.handleExpiringCompanyDocuments).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/company-documents/check-expiry", s.handleCheckExpiry).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/company-documents/{id}", s.handleGetCompanyDocument).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/company-documents/{id}", s.handleUpdateCompanyDocument).Methods("PUT", "OPTIONS")
	r.HandleFunc("/api/company-documents/{id}", s.handleDeleteCompanyDocument).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/api/reminders", s.handleListReminders).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/reminders/insights", s.handleReminderInsights).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/reminders/{id}", s.handleUpdateReminderStatus).Methods("PUT", "OPTIONS")
}

type companyDocumentRequest struct {
	CompanyKey string     `json:"company_key"`
	DocType    string     `json:"doc_type"`
	Title      string     `json:"title"`
	IssuedDate *time.Time `json:"issued_date"`
	ExpiryDate *time.Time `json:"expiry_date"`
	FileRef    string     `json:"file_ref"`
}

func (s *Server) handleCreateCompanyDocument(w http.ResponseWriter, r *http.Request) {
	var body companyDocumentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.CompanyKey == "" || body.DocType == "" {
		writeError(w, r, apperr.Validation("doc_type", "company_key and doc_type are required"))
		return
	}
	now := time.Now()
	d := &models.CompanyDocument{
		ID:         uuid.NewString(),
		CompanyKey: body.CompanyKey,
		DocType:    body.DocType,
		Title:      body.Title,
		IssuedDate: body.IssuedDate,
		ExpiryDate: body.ExpiryDate,
		FileRef:    body.FileRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.UpsertCompanyDocument(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListCompanyDocuments(w http.ResponseWriter, r *http.Request) {
	companyKey := r.URL.Query().Get("company_key")
	if companyKey == "" {
		writeError(w, r, apperr.Validation("company_key", "required"))
		return
	}
	docs, err := s.store.ListCompanyDocuments(r.Context(), companyKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (s *Server) handleGetCompanyDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, err := s.store.GetCompanyDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateCompanyDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := s.store.GetCompanyDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body companyDocumentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.DocType != "" {
		existing.DocType = body.DocType
	}
	if body.Title != "" {
		existing.Title = body.Title
	}
	if body.IssuedDate != nil {
		existing.IssuedDate = body.IssuedDate
	}
	if body.ExpiryDate != nil {
		existing.ExpiryDate = body.ExpiryDate
	}
	if body.FileRef != "" {
		existing.FileRef = body.FileRef
	}
	existing.UpdatedAt = time.Now()
	if err := s.store.UpsertCompanyDocument(r.Context(), existing); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteCompanyDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteCompanyDocument(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExpiringCompanyDocuments(w http.ResponseWriter, r *http.Request) {
	withinDays := parseIntQuery(r, "within_days", 30)
	docs, err := s.store.ListExpiringCompanyDocuments(r.Context(), withinDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (s *Server) handleCheckExpiry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ExpiryDays int  `json:"expiry_days"`
		AutoCreate bool `json:"auto_create"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if body.ExpiryDays <= 0 {
		body.ExpiryDays = 30
	}
	result, err := s.insights.Evaluate(r.Context(), body.ExpiryDays, body.AutoCreate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if body.AutoCreate && len(result.Insights) > 0 {
		broadcastEvent("reminders_raised", map[string]any{"count": len(result.Insights)})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	status := models.ReminderStatus(r.URL.Query().Get("status"))
	reminders, err := s.store.ListReminders(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders, "count": len(reminders)})
}

func (s *Server) handleUpdateReminderStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Status models.ReminderStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Status == "" {
		writeError(w, r, apperr.Validation("status", "required"))
		return
	}
	if err := s.store.UpdateReminderStatus(r.Context(), id, body.Status); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": body.Status})
}

func (s *Server) handleReminderInsights(w http.ResponseWriter, r *http.Request) {
	expiryDays := parseIntQuery(r, "expiry_days", 30)
	result, err := s.insights.Evaluate(r.Context(), expiryDays, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": result.Insights, "count": len(result.Insights)})
}
