package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"srg/internal/apperr"
)

func registerInventoryRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/inventory/receive", s.handleInventoryReceive).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/inventory/issue", s.handleInventoryIssue).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/inventory/status", s.handleInventoryStatus).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/inventory/low-stock", s.handleInventoryLowStock).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/inventory/{id}/movements", s.handleInventoryMovements).Methods("GET", "OPTIONS")
}

type inventoryMoveRequest struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
	UnitCost   float64 `json:"unit_cost"`
	Reference  string  `json:"reference"`
	Notes      string  `json:"notes"`
}

func (s *Server) handleInventoryReceive(w http.ResponseWriter, r *http.Request) {
	var body inventoryMoveRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.MaterialID == "" || body.Quantity <= 0 {
		writeError(w, r, apperr.Validation("quantity", "material_id and a positive quantity are required"))
		return
	}
	item, err := s.inventory.Receive(r.Context(), body.MaterialID, body.Quantity, body.UnitCost, body.Reference, body.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleInventoryIssue(w http.ResponseWriter, r *http.Request) {
	var body inventoryMoveRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.MaterialID == "" || body.Quantity <= 0 {
		writeError(w, r, apperr.Validation("quantity", "material_id and a positive quantity are required"))
		return
	}
	item, err := s.inventory.Issue(r.Context(), body.MaterialID, body.Quantity, body.Reference, body.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleInventoryStatus(w http.ResponseWriter, r *http.Request) {
	materialID := r.URL.Query().Get("material_id")
	if materialID == "" {
		writeError(w, r, apperr.Validation("material_id", "required"))
		return
	}
	item, err := s.inventory.Status(r.Context(), materialID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleInventoryLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := parseFloatQuery(r, "threshold", 10)
	items, err := s.store.ListLowStockMaterials(r.Context(), threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleInventoryMovements(w http.ResponseWriter, r *http.Request) {
	materialID := mux.Vars(r)["id"]
	limit := parseLimit(r, 50)
	moves, err := s.store.ListStockMovements(r.Context(), materialID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": moves, "count": len(moves)})
}
