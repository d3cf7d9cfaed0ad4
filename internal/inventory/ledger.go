// Package inventory implements the Inventory Ledger of spec.md §4.H: a
// thin atomic-transaction wrapper over the store's row-locked WAC
// primitives, adding the sales-invoice composition that issues stock for
// several materials in one all-or-nothing transaction. Grounded on
// reposearch's transactional write pattern and on flowindex's
// rollback-on-any-failure service calls.
package inventory

import (
	"context"

	"github.com/google/uuid"

	"srg/internal/models"
	"srg/internal/repository"
)

// Ledger is the component's entry point.
type Ledger struct {
	store *repository.Store
}

func New(store *repository.Store) *Ledger {
	return &Ledger{store: store}
}

// Receive runs receive(material_id, qty, unit_cost) in its own transaction
// (spec.md §4.H).
func (l *Ledger) Receive(ctx context.Context, materialID string, quantity, unitCost float64, reference, notes string) (models.InventoryItem, error) {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return models.InventoryItem{}, err
	}
	defer tx.Rollback(ctx)

	item, err := l.store.ReceiveStock(ctx, tx, materialID, quantity, unitCost, reference, notes, uuid.NewString())
	if err != nil {
		return models.InventoryItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.InventoryItem{}, err
	}
	return item, nil
}

// Issue runs issue(material_id, qty, reference) in its own transaction,
// surfacing apperr.InsufficientStock on overdraw.
func (l *Ledger) Issue(ctx context.Context, materialID string, quantity float64, reference, notes string) (models.InventoryItem, error) {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return models.InventoryItem{}, err
	}
	defer tx.Rollback(ctx)

	item, err := l.store.IssueStock(ctx, tx, materialID, quantity, reference, notes, uuid.NewString())
	if err != nil {
		return models.InventoryItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.InventoryItem{}, err
	}
	return item, nil
}

// Status returns a material's current ledger position.
func (l *Ledger) Status(ctx context.Context, materialID string) (models.InventoryItem, error) {
	return l.store.GetInventoryItem(ctx, materialID)
}

// SaleItemInput is one requested line of create_sales_invoice before stock
// has been issued against it.
type SaleItemInput struct {
	MaterialID string
	Quantity   float64
	UnitPrice  float64
}

// CreateSalesInvoice issues stock for every item inside one transaction,
// computing cost basis and profit per spec.md §4.H. Any item's
// insufficient-stock failure rolls back every stock deduction already
// applied in this call, including earlier items in the same invoice.
func (l *Ledger) CreateSalesInvoice(ctx context.Context, invoiceNo, customerName string, tax float64, items []SaleItemInput) (*models.LocalSalesInvoice, error) {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	inv := &models.LocalSalesInvoice{ID: uuid.NewString(), InvoiceNo: invoiceNo, CustomerName: customerName, Tax: tax}

	for _, in := range items {
		issued, err := l.store.IssueStock(ctx, tx, in.MaterialID, in.Quantity, inv.ID, "local sale", uuid.NewString())
		if err != nil {
			return nil, err
		}
		costBasis, lineTotal, profit := computeSaleLine(in.Quantity, in.UnitPrice, issued.AvgCost)
		item := models.LocalSalesItem{
			ID:             uuid.NewString(),
			SalesInvoiceID: inv.ID,
			MaterialID:     in.MaterialID,
			Quantity:       in.Quantity,
			UnitPrice:      in.UnitPrice,
			CostBasis:      costBasis,
			LineTotal:      lineTotal,
			Profit:         profit,
		}
		inv.Items = append(inv.Items, item)
		inv.Subtotal += lineTotal
		inv.TotalCost += costBasis
	}

	inv.TotalAmount = inv.Subtotal + inv.Tax
	inv.TotalProfit = inv.TotalAmount - inv.TotalCost

	if err := l.store.InsertLocalSalesInvoice(ctx, tx, inv); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inv, nil
}

// computeSaleLine derives a sale line's cost basis, line total, and profit
// from the quantity/unit price being sold and the avg_cost at the moment
// stock was issued (spec.md §4.H).
func computeSaleLine(quantity, unitPrice, avgCostAtIssue float64) (costBasis, lineTotal, profit float64) {
	costBasis = avgCostAtIssue * quantity
	lineTotal = quantity * unitPrice
	profit = lineTotal - costBasis
	return costBasis, lineTotal, profit
}
