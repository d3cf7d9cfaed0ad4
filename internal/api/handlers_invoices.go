package api

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"srg/internal/apperr"
	"srg/internal/audit"
	"srg/internal/catalog"
	"srg/internal/models"
)

func registerInvoiceRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/invoices/upload", s.handleInvoiceUpload).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/invoices", s.handleListInvoices).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/invoices/{id}", s.handleGetInvoice).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/invoices/{id}", s.handleDeleteInvoice).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/invoices/{id}/audit", s.handleAuditInvoice).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/invoices/{id}/audits", s.handleListInvoiceAudits).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/invoices/{id}/match-catalog", s.handleMatchCatalog).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/invoices/{id}/items/{item_id}/match", s.handleMatchItem).Methods("POST", "OPTIONS")
}

// buildPagesFromUpload splits raw uploaded bytes into Page rows. Uploaded
// documents carry no scanner-assigned page boundaries in this module (no
// OCR/PDF-extraction strategy is wired — see DESIGN.md), so a form-feed
// (\f) is treated as an explicit page break and the whole body is one page
// otherwise.
func buildPagesFromUpload(documentID string, data []byte) []models.Page {
	text := string(data)
	parts := strings.Split(text, "\f")
	pages := make([]models.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, models.Page{
			ID:             uuid.NewString(),
			DocumentID:     documentID,
			PageNumber:     i + 1,
			Type:           models.PageInvoice,
			TypeConfidence: 1.0,
			Text:           part,
		})
	}
	return pages
}

func (s *Server) handleInvoiceUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, apperr.Validation("multipart_form", err.Error()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Validation("file", "missing upload part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apperr.Validation("file", "could not read upload"))
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if existing, found, err := s.store.FindDocumentByHash(ctx, hash); err != nil {
		writeError(w, r, err)
		return
	} else if found {
		writeError(w, r, apperr.New(apperr.CodeDuplicateDocument,
			"an identical document is already on file", "inspect document "+existing.ID+" instead"))
		return
	}

	companyKey := r.FormValue("vendor_hint")
	autoAudit := parseBoolQuery(r, "auto_audit", true)
	autoIndex := parseBoolQuery(r, "auto_index", true)
	autoCatalog := parseBoolQuery(r, "auto_catalog", true)
	strictMode := parseBoolQuery(r, "strict_mode", false)

	docID := uuid.NewString()
	storedPath := filepath.Join(s.documentsDir, docID+"-"+filepath.Base(header.Filename))
	if err := os.MkdirAll(s.documentsDir, 0o755); err != nil {
		writeError(w, r, apperr.Database("upload.mkdir", err))
		return
	}
	if err := os.WriteFile(storedPath, data, 0o644); err != nil {
		writeError(w, r, apperr.Database("upload.write_file", err))
		return
	}

	now := time.Now()
	doc := &models.Document{
		ID:          docID,
		Filename:    header.Filename,
		FilePath:    storedPath,
		ContentHash: hash,
		Size:        header.Size,
		MIME:        header.Header.Get("Content-Type"),
		Status:      models.DocumentProcessing,
		Version:     1,
		IsLatest:    true,
		CompanyKey:  companyKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	pages := buildPagesFromUpload(docID, data)
	doc.PageCount = len(pages)
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.InsertPages(ctx, pages); err != nil {
		writeError(w, r, err)
		return
	}

	parsed, attempts, parseErr := s.registry.Parse(pages)
	if parseErr != nil {
		_ = s.store.UpdateDocumentStatus(ctx, docID, models.DocumentFailed, nil)
		writeError(w, r, parseErr)
		return
	}
	_ = s.store.UpdateDocumentStatus(ctx, docID, models.DocumentIndexed, &now)

	for i := range parsed.Items {
		parsed.Items[i].ID = uuid.NewString()
		if parsed.Items[i].LineNumber == 0 {
			parsed.Items[i].LineNumber = i + 1
		}
	}
	inv := &models.Invoice{
		ID:            uuid.NewString(),
		DocumentID:    docID,
		InvoiceNo:     parsed.InvoiceNo,
		InvoiceDate:   parsed.InvoiceDate,
		DueDate:       parsed.DueDate,
		SellerName:    parsed.SellerName,
		BuyerName:     parsed.BuyerName,
		CompanyKey:    companyKey,
		Currency:      parsed.Currency,
		Subtotal:      parsed.Subtotal,
		Tax:           parsed.Tax,
		Discount:      parsed.Discount,
		TotalAmount:   parsed.TotalAmount,
		Confidence:    parsed.Confidence,
		ParserUsed:    parsed.ParserName,
		ParsingStatus: models.ParsingOK,
		IsLatest:      true,
		BankDetails:   parsed.BankDetails,
		Items:         parsed.Items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertInvoice(ctx, inv, catalog.Normalize); err != nil {
		writeError(w, r, err)
		return
	}

	result := map[string]any{
		"document":       doc,
		"invoice":        inv,
		"parser_attempts": attempts,
	}
	broadcastEvent("invoice_ingested", map[string]any{"document_id": docID, "invoice_id": inv.ID, "seller_name": inv.SellerName})

	if autoCatalog {
		outcomes, err := s.catalog.AutoMatchItems(ctx, inv.ID, inv.Items)
		if err == nil {
			result["catalog_matches"] = outcomes
		}
	}
	if autoIndex {
		if _, err := s.indexer.IndexDocument(ctx, doc, pages); err == nil {
			if _, err := s.indexer.IndexLineItems(ctx, docID, inv.Items); err != nil {
				result["index_error"] = err.Error()
			}
		} else {
			result["index_error"] = err.Error()
		}
	}
	if autoAudit {
		opts := audit.DefaultOptions()
		opts.StrictMode = strictMode
		ar, err := s.audit.AuditInvoice(ctx, inv, opts)
		if err == nil {
			result["audit"] = ar
			broadcastEvent("audit_completed", map[string]any{"invoice_id": inv.ID, "status": ar.Status})
		} else {
			result["audit_error"] = err.Error()
		}
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	invoices, err := s.store.ListInvoices(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices, "count": len(invoices)})
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	inv, err := s.store.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteInvoice(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuditInvoice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body struct {
		UseLLM                *bool    `json:"use_llm"`
		StrictMode            *bool    `json:"strict_mode"`
		Rules                 []string `json:"rules"`
		PriceAnomalyThreshold *float64 `json:"price_anomaly_threshold"`
		DuplicateWindowDays   *int     `json:"duplicate_window_days"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}

	opts := audit.DefaultOptions()
	if body.UseLLM != nil {
		opts.UseLLM = *body.UseLLM
	}
	if body.StrictMode != nil {
		opts.StrictMode = *body.StrictMode
	}
	if body.Rules != nil {
		opts.Rules = body.Rules
	}
	if body.PriceAnomalyThreshold != nil {
		opts.PriceAnomalyThreshold = *body.PriceAnomalyThreshold
	}
	if body.DuplicateWindowDays != nil {
		opts.DuplicateWindowDays = *body.DuplicateWindowDays
	}

	result, err := s.audit.AuditInvoice(ctx, inv, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListInvoiceAudits(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := s.store.GetLatestAuditResult(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": []*models.AuditResult{result}})
}

func (s *Server) handleMatchCatalog(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	outcomes, err := s.catalog.AutoMatchItems(ctx, id, inv.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func (s *Server) handleMatchItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body struct {
		MaterialID string `json:"material_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.MaterialID == "" {
		writeError(w, r, apperr.Validation("material_id", "required"))
		return
	}
	if err := s.store.SetLineItemMaterial(r.Context(), vars["item_id"], body.MaterialID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"line_item_id": vars["item_id"], "material_id": body.MaterialID})
}
