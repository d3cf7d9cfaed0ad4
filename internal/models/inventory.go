package models

import "time"

// InventoryItem holds the weighted-average-cost position for one Material.
type InventoryItem struct {
	MaterialID      string    `json:"material_id"`
	QuantityOnHand  float64   `json:"quantity_on_hand"`
	AvgCost         float64   `json:"avg_cost"`
	LastMovementAt  time.Time `json:"last_movement_date"`
}

// TotalValue is the derived quantity*avg_cost valuation.
func (i InventoryItem) TotalValue() float64 { return i.QuantityOnHand * i.AvgCost }

// MovementType distinguishes inventory ledger entries.
type MovementType string

const (
	MovementIn     MovementType = "in"
	MovementOut    MovementType = "out"
	MovementAdjust MovementType = "adjust"
)

// StockMovement is an append-only ledger row.
type StockMovement struct {
	ID         string       `json:"id"`
	MaterialID string       `json:"material_id"`
	Type       MovementType `json:"type"`
	Quantity   float64      `json:"quantity"`
	UnitCost   float64      `json:"unit_cost"`
	Reference  string       `json:"reference,omitempty"`
	Notes      string       `json:"notes,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// LocalSalesInvoice is a header row for a local (non-export) sale that
// consumes inventory stock.
type LocalSalesInvoice struct {
	ID          string              `json:"id"`
	InvoiceNo   string              `json:"invoice_no"`
	CustomerName string             `json:"customer_name,omitempty"`
	Subtotal    float64             `json:"subtotal"`
	Tax         float64             `json:"tax"`
	TotalAmount float64             `json:"total_amount"`
	TotalCost   float64             `json:"total_cost"`
	TotalProfit float64             `json:"total_profit"`
	Items       []LocalSalesItem    `json:"items,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// LocalSalesItem is a child row of LocalSalesInvoice.
type LocalSalesItem struct {
	ID           string  `json:"id"`
	SalesInvoiceID string `json:"sales_invoice_id"`
	MaterialID   string  `json:"material_id"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	CostBasis    float64 `json:"cost_basis"`
	LineTotal    float64 `json:"line_total"`
	Profit       float64 `json:"profit"`
}
