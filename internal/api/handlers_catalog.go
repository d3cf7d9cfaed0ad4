package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"srg/internal/apperr"
	"srg/internal/catalog"
	"srg/internal/models"
)

func registerCatalogRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/catalog", s.handleAddMaterial).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/catalog", s.handleListMaterials).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/catalog/{id}", s.handleGetMaterial).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/catalog/ingest", s.handleIngestCatalog).Methods("POST", "OPTIONS")
}

func (s *Server) handleAddMaterial(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DisplayName   string `json:"display_name"`
		HSCode        string `json:"hs_code"`
		Category      string `json:"category"`
		Unit          string `json:"unit"`
		Description   string `json:"description"`
		Brand         string `json:"brand"`
		OriginCountry string `json:"origin_country"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.DisplayName == "" {
		writeError(w, r, apperr.Validation("display_name", "required"))
		return
	}

	ctx := r.Context()
	normalized := catalog.Normalize(body.DisplayName)
	if existing, found, err := s.store.GetMaterialByNormalizedName(ctx, normalized); err != nil {
		writeError(w, r, err)
		return
	} else if found {
		writeJSON(w, http.StatusOK, existing)
		return
	}

	now := time.Now()
	m := &models.Material{
		ID:               uuid.NewString(),
		DisplayName:      body.DisplayName,
		NormalizedName:   normalized,
		HSCode:           body.HSCode,
		Category:         body.Category,
		Unit:             body.Unit,
		Description:      body.Description,
		Brand:            body.Brand,
		OriginCountry:    body.OriginCountry,
		OriginConfidence: models.OriginUnknown,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertMaterial(ctx, m); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	materials, err := s.store.ListMaterials(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"materials": materials, "count": len(materials)})
}

func (s *Server) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, err := s.store.GetMaterial(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	syns, err := s.store.ListSynonyms(r.Context(), id)
	if err == nil {
		m.Synonyms = syns
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleIngestCatalog(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []models.LineItem `json:"items"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	for i := range body.Items {
		if body.Items[i].ID == "" {
			body.Items[i].ID = uuid.NewString()
		}
		if body.Items[i].RowType == "" {
			body.Items[i].RowType = models.RowLineItem
		}
	}
	outcomes, err := s.catalog.AddToCatalog(r.Context(), body.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}
