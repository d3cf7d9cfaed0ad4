package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"srg/internal/apperr"
	"srg/internal/inventory"
)

func registerSalesRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/api/sales/invoices", s.handleCreateSalesInvoice).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sales/invoices", s.handleListSalesInvoices).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/sales/invoices/{id}", s.handleGetSalesInvoice).Methods("GET", "OPTIONS")
}

func (s *Server) handleCreateSalesInvoice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InvoiceNo    string  `json:"invoice_no"`
		CustomerName string  `json:"customer_name"`
		Tax          float64 `json:"tax"`
		Items        []struct {
			MaterialID string  `json:"material_id"`
			Quantity   float64 `json:"quantity"`
			UnitPrice  float64 `json:"unit_price"`
		} `json:"items"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if len(body.Items) == 0 {
		writeError(w, r, apperr.Validation("items", "at least one sale item is required"))
		return
	}

	items := make([]inventory.SaleItemInput, 0, len(body.Items))
	for _, it := range body.Items {
		items = append(items, inventory.SaleItemInput{MaterialID: it.MaterialID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	inv, err := s.inventory.CreateSalesInvoice(r.Context(), body.InvoiceNo, body.CustomerName, body.Tax, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleListSalesInvoices(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	invoices, err := s.store.ListSalesInvoices(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices, "count": len(invoices)})
}

func (s *Server) handleGetSalesInvoice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	inv, err := s.store.GetLocalSalesInvoice(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
