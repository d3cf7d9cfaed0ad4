package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"srg/internal/apperr"
	"srg/internal/models"
)

// GetInventoryItem fetches a material's ledger position, returning a
// zero-valued item (not an error) when the material has never been
// received — the ledger starts implicitly at zero.
func (s *Store) GetInventoryItem(ctx context.Context, materialID string) (models.InventoryItem, error) {
	row := s.pool.QueryRow(ctx, `SELECT material_id, quantity_on_hand, avg_cost, last_movement_date FROM inventory_items WHERE material_id = $1`, materialID)
	item := models.InventoryItem{MaterialID: materialID}
	err := row.Scan(&item.MaterialID, &item.QuantityOnHand, &item.AvgCost, &item.LastMovementAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return item, nil
		}
		return item, apperr.Database("get_inventory_item", err)
	}
	return item, nil
}

// ReceiveStock locks the inventory row for update within tx, recomputes the
// weighted-average-cost, writes the new position, and appends a MovementIn
// row — all inside the caller-supplied transaction so the inventory ledger
// operation composes with callers needing a wider transaction (e.g. sales
// invoice creation).
func (s *Store) ReceiveStock(ctx context.Context, tx pgx.Tx, materialID string, quantity, unitCost float64, reference, notes string, movementID string) (models.InventoryItem, error) {
	var cur models.InventoryItem
	cur.MaterialID = materialID
	row := tx.QueryRow(ctx, `SELECT quantity_on_hand, avg_cost FROM inventory_items WHERE material_id = $1 FOR UPDATE`, materialID)
	err := row.Scan(&cur.QuantityOnHand, &cur.AvgCost)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return cur, apperr.Database("receive_stock.lock", err)
	}

	newQty := cur.QuantityOnHand + quantity
	var newAvgCost float64
	if newQty > 0 {
		newAvgCost = (cur.QuantityOnHand*cur.AvgCost + quantity*unitCost) / newQty
	}

	_, err = tx.Exec(ctx, `
INSERT INTO inventory_items (material_id, quantity_on_hand, avg_cost, last_movement_date)
VALUES ($1,$2,$3,now())
ON CONFLICT (material_id) DO UPDATE SET quantity_on_hand = $2, avg_cost = $3, last_movement_date = now()`,
		materialID, newQty, newAvgCost)
	if err != nil {
		return cur, apperr.Database("receive_stock.upsert", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO stock_movements (id, material_id, type, quantity, unit_cost, reference, notes, created_at)
VALUES ($1,$2,'in',$3,$4,$5,$6,now())`, movementID, materialID, quantity, unitCost, reference, notes)
	if err != nil {
		return cur, apperr.Database("receive_stock.movement", err)
	}

	return models.InventoryItem{MaterialID: materialID, QuantityOnHand: newQty, AvgCost: newAvgCost}, nil
}

// IssueStock locks the inventory row for update within tx, checks for
// overdraw (returning an apperr.InsufficientStock error the caller must
// roll back on), and appends a MovementOut row at the current avg_cost.
func (s *Store) IssueStock(ctx context.Context, tx pgx.Tx, materialID string, quantity float64, reference, notes string, movementID string) (models.InventoryItem, error) {
	var cur models.InventoryItem
	cur.MaterialID = materialID
	row := tx.QueryRow(ctx, `SELECT quantity_on_hand, avg_cost FROM inventory_items WHERE material_id = $1 FOR UPDATE`, materialID)
	if err := row.Scan(&cur.QuantityOnHand, &cur.AvgCost); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cur, apperr.InsufficientStock(materialID, 0, quantity)
		}
		return cur, apperr.Database("issue_stock.lock", err)
	}
	if cur.QuantityOnHand < quantity {
		return cur, apperr.InsufficientStock(materialID, cur.QuantityOnHand, quantity)
	}

	newQty := cur.QuantityOnHand - quantity
	if _, err := tx.Exec(ctx, `UPDATE inventory_items SET quantity_on_hand = $2, last_movement_date = now() WHERE material_id = $1`, materialID, newQty); err != nil {
		return cur, apperr.Database("issue_stock.update", err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO stock_movements (id, material_id, type, quantity, unit_cost, reference, notes, created_at)
VALUES ($1,$2,'out',$3,$4,$5,$6,now())`, movementID, materialID, quantity, cur.AvgCost, reference, notes); err != nil {
		return cur, apperr.Database("issue_stock.movement", err)
	}

	return models.InventoryItem{MaterialID: materialID, QuantityOnHand: newQty, AvgCost: cur.AvgCost}, nil
}

// BeginTx exposes a raw transaction to components (inventory, chat) whose
// operation must compose several Store calls atomically.
func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Database("begin_tx", err)
	}
	return tx, nil
}

// InsertLocalSalesInvoice writes a sales invoice header and its items
// within tx; callers issue stock and commit separately so the whole
// create_sales_invoice flow rolls back together on any failure.
func (s *Store) InsertLocalSalesInvoice(ctx context.Context, tx pgx.Tx, inv *models.LocalSalesInvoice) error {
	_, err := tx.Exec(ctx, `
INSERT INTO local_sales_invoices (id, invoice_no, customer_name, subtotal, tax, total_amount, total_cost, total_profit, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		inv.ID, inv.InvoiceNo, inv.CustomerName, inv.Subtotal, inv.Tax, inv.TotalAmount, inv.TotalCost, inv.TotalProfit, inv.CreatedAt)
	if err != nil {
		return apperr.Database("insert_local_sales_invoice", err)
	}
	for _, it := range inv.Items {
		_, err := tx.Exec(ctx, `
INSERT INTO local_sales_items (id, sales_invoice_id, material_id, quantity, unit_price, cost_basis, line_total, profit)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			it.ID, inv.ID, it.MaterialID, it.Quantity, it.UnitPrice, it.CostBasis, it.LineTotal, it.Profit)
		if err != nil {
			return apperr.Database("insert_local_sales_item", err)
		}
	}
	return nil
}

// GetLocalSalesInvoice fetches a sales invoice and its items.
func (s *Store) GetLocalSalesInvoice(ctx context.Context, id string) (*models.LocalSalesInvoice, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, invoice_no, customer_name, subtotal, tax, total_amount, total_cost, total_profit, created_at
FROM local_sales_invoices WHERE id = $1`, id)
	inv := &models.LocalSalesInvoice{}
	if err := row.Scan(&inv.ID, &inv.InvoiceNo, &inv.CustomerName, &inv.Subtotal, &inv.Tax, &inv.TotalAmount, &inv.TotalCost, &inv.TotalProfit, &inv.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("local_sales_invoice", id)
		}
		return nil, apperr.Database("get_local_sales_invoice", err)
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, sales_invoice_id, material_id, quantity, unit_price, cost_basis, line_total, profit
FROM local_sales_items WHERE sales_invoice_id = $1`, id)
	if err != nil {
		return nil, apperr.Database("get_local_sales_invoice.items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it models.LocalSalesItem
		if err := rows.Scan(&it.ID, &it.SalesInvoiceID, &it.MaterialID, &it.Quantity, &it.UnitPrice, &it.CostBasis, &it.LineTotal, &it.Profit); err != nil {
			return nil, apperr.Database("scan_local_sales_item", err)
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, rows.Err()
}
