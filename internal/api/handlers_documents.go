package api

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"srg/internal/apperr"
	"srg/internal/models"
)

func registerDocumentRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/documents/upload", s.handleDocumentUpload).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/documents", s.handleListDocuments).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/documents/stats", s.handleDocumentStats).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/documents/{id}/reindex", s.handleReindexDocument).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/documents/{id}", s.handleDeleteDocument).Methods("DELETE", "OPTIONS")
}

func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
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
		CompanyKey:  r.FormValue("company_key"),
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

	if _, err := s.indexer.IndexDocument(ctx, doc, pages); err != nil {
		_ = s.store.UpdateDocumentStatus(ctx, docID, models.DocumentFailed, nil)
		writeError(w, r, err)
		return
	}
	_ = s.store.UpdateDocumentStatus(ctx, docID, models.DocumentIndexed, &now)

	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	docs, err := s.store.ListDocuments(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := s.store.CountDocuments(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	idxStats, err := s.indexer.GetStats(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_documents":          total,
		"chunks_missing_embedding": idxStats.ChunksMissingEmbedding,
		"last_cursor":              idxStats.LastCursor,
	})
}

func (s *Server) handleReindexDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pages, err := s.store.GetPages(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.indexer.IndexDocument(ctx, doc, pages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "chunks_written": n})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
