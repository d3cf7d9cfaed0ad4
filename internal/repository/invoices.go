package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"srg/internal/apperr"
	"srg/internal/models"
)

// InsertInvoice writes an Invoice and its LineItems in one transaction,
// demoting any prior is_latest invoice for the same document, and appends
// one price_history row per priced line_item row — the Go equivalent of the
// trigger reposearch leaves to Postgres, kept explicit here since the
// normalization step (catalog.Normalize) lives in application code.
func (s *Store) InsertInvoice(ctx context.Context, inv *models.Invoice, normalize func(string) string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Database("insert_invoice.begin", err)
	}
	defer tx.Rollback(ctx)

	if inv.IsLatest {
		if _, err := tx.Exec(ctx, `UPDATE invoices SET is_latest = FALSE WHERE document_id = $1 AND is_latest`, inv.DocumentID); err != nil {
			return apperr.Database("insert_invoice.demote", err)
		}
	}

	bank, err := json.Marshal(inv.BankDetails)
	if err != nil {
		return apperr.Database("insert_invoice.marshal_bank_details", err)
	}
	_, err = tx.Exec(ctx, `
INSERT INTO invoices (id, document_id, invoice_no, invoice_date, due_date, seller_name, buyer_name, company_key, currency,
  subtotal, tax, discount, total_amount, quality_score, confidence, parser_used, parsing_status, is_latest, bank_details, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		inv.ID, inv.DocumentID, inv.InvoiceNo, inv.InvoiceDate, inv.DueDate, inv.SellerName, inv.BuyerName, inv.CompanyKey, inv.Currency,
		inv.Subtotal, inv.Tax, inv.Discount, inv.TotalAmount, inv.QualityScore, inv.Confidence, inv.ParserUsed, inv.ParsingStatus, inv.IsLatest, bank, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return apperr.Database("insert_invoice", err)
	}

	batch := &pgx.Batch{}
	for _, it := range inv.Items {
		batch.Queue(`
INSERT INTO line_items (id, invoice_id, line_number, item_name, description, hs_code, unit, brand, model, quantity, unit_price, total_price, row_type, matched_material_id, trust_stated_total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			it.ID, inv.ID, it.LineNumber, it.ItemName, it.Description, it.HSCode, it.Unit, it.Brand, it.Model, it.Quantity, it.UnitPrice, it.TotalPrice, it.RowType, it.MatchedMaterialID, it.TrustStatedTotal)

		if it.RowType == models.RowLineItem && it.UnitPrice > 0 {
			batch.Queue(`
INSERT INTO price_history (id, normalized_name, hs_code, seller, invoice_id, invoice_date, quantity, unit_price, currency, material_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				uuid.NewString(), normalize(it.ItemName), it.HSCode, inv.SellerName, inv.ID, inv.InvoiceDate, it.Quantity, it.UnitPrice, inv.Currency, nullIfEmpty(it.MatchedMaterialID))
		}
	}
	br := tx.SendBatch(ctx, batch)
	queued := batch.Len()
	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return apperr.Database("insert_invoice.line_items", err)
		}
	}
	if err := br.Close(); err != nil {
		return apperr.Database("insert_invoice.close_batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Database("insert_invoice.commit", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetInvoice fetches an Invoice and its LineItems by id.
func (s *Store) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, document_id, invoice_no, invoice_date, due_date, seller_name, buyer_name, company_key, currency,
  subtotal, tax, discount, total_amount, quality_score, confidence, parser_used, parsing_status, is_latest, bank_details, created_at, updated_at
FROM invoices WHERE id = $1`, id)

	inv := &models.Invoice{}
	var bank []byte
	err := row.Scan(&inv.ID, &inv.DocumentID, &inv.InvoiceNo, &inv.InvoiceDate, &inv.DueDate, &inv.SellerName, &inv.BuyerName, &inv.CompanyKey, &inv.Currency,
		&inv.Subtotal, &inv.Tax, &inv.Discount, &inv.TotalAmount, &inv.QualityScore, &inv.Confidence, &inv.ParserUsed, &inv.ParsingStatus, &inv.IsLatest, &bank, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("invoice", id)
		}
		return nil, apperr.Database("get_invoice", err)
	}
	if len(bank) > 0 {
		_ = json.Unmarshal(bank, &inv.BankDetails)
	}

	items, err := s.getLineItems(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (s *Store) getLineItems(ctx context.Context, invoiceID string) ([]models.LineItem, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, invoice_id, line_number, item_name, description, hs_code, unit, brand, model, quantity, unit_price, total_price, row_type, COALESCE(matched_material_id, ''), trust_stated_total
FROM line_items WHERE invoice_id = $1 ORDER BY line_number`, invoiceID)
	if err != nil {
		return nil, apperr.Database("get_line_items", err)
	}
	defer rows.Close()
	var out []models.LineItem
	for rows.Next() {
		var it models.LineItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.LineNumber, &it.ItemName, &it.Description, &it.HSCode, &it.Unit, &it.Brand, &it.Model, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.RowType, &it.MatchedMaterialID, &it.TrustStatedTotal); err != nil {
			return nil, apperr.Database("scan_line_item", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListInvoicesByCompany returns is_latest invoices for a company key,
// newest first.
func (s *Store) ListInvoicesByCompany(ctx context.Context, companyKey string, limit int) ([]models.Invoice, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id FROM invoices WHERE company_key = $1 AND is_latest ORDER BY invoice_date DESC NULLS LAST LIMIT $2`, companyKey, limit)
	if err != nil {
		return nil, apperr.Database("list_invoices_by_company", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apperr.Database("scan_invoice_id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]models.Invoice, 0, len(ids))
	for _, id := range ids {
		inv, err := s.GetInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, nil
}

// SetLineItemMaterial records a catalog match against a line item and its
// price_history row, used by the Catalog Reconciler.
func (s *Store) SetLineItemMaterial(ctx context.Context, lineItemID, materialID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Database("set_line_item_material.begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE line_items SET matched_material_id = $2 WHERE id = $1`, lineItemID, materialID); err != nil {
		return apperr.Database("set_line_item_material", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE price_history SET material_id = $2 WHERE id IN (
SELECT ph.id FROM price_history ph JOIN line_items li ON li.invoice_id = ph.invoice_id
WHERE li.id = $1 AND ph.normalized_name = lower(trim(li.item_name))
)`, lineItemID, materialID); err != nil {
		return apperr.Database("set_line_item_material.price_history", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Database("set_line_item_material.commit", err)
	}
	return nil
}

// ListUnmatchedLineItems returns line items with no matched_material_id,
// for the catalog reconciler's auto-match pass and the insight evaluator's
// unmatched-item scan.
func (s *Store) ListUnmatchedLineItems(ctx context.Context, limit int) ([]models.LineItem, error) {
	rows, err := s.pool.Query(ctx, `
SELECT li.id, li.invoice_id, li.line_number, li.item_name, li.description, li.hs_code, li.unit, li.brand, li.model,
  li.quantity, li.unit_price, li.total_price, li.row_type, '', li.trust_stated_total
FROM line_items li
JOIN invoices inv ON inv.id = li.invoice_id AND inv.is_latest
WHERE li.row_type = 'line_item' AND li.matched_material_id IS NULL
ORDER BY li.invoice_id, li.line_number
LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Database("list_unmatched_line_items", err)
	}
	defer rows.Close()
	var out []models.LineItem
	for rows.Next() {
		var it models.LineItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.LineNumber, &it.ItemName, &it.Description, &it.HSCode, &it.Unit, &it.Brand, &it.Model, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.RowType, &it.MatchedMaterialID, &it.TrustStatedTotal); err != nil {
			return nil, apperr.Database("scan_unmatched_line_item", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListRecentLineItems returns the most recently invoiced line items
// regardless of catalog-match status, for the insight evaluator's
// price-anomaly scan (spec.md §4.J: "same rule as §4.E", which runs against
// every line item, not only unmatched ones).
func (s *Store) ListRecentLineItems(ctx context.Context, limit int) ([]models.LineItem, error) {
	rows, err := s.pool.Query(ctx, `
SELECT li.id, li.invoice_id, li.line_number, li.item_name, li.description, li.hs_code, li.unit, li.brand, li.model,
  li.quantity, li.unit_price, li.total_price, li.row_type, COALESCE(li.matched_material_id, ''), li.trust_stated_total
FROM line_items li
JOIN invoices inv ON inv.id = li.invoice_id AND inv.is_latest
WHERE li.row_type = 'line_item'
ORDER BY inv.created_at DESC, li.line_number
LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Database("list_recent_line_items", err)
	}
	defer rows.Close()
	var out []models.LineItem
	for rows.Next() {
		var it models.LineItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.LineNumber, &it.ItemName, &it.Description, &it.HSCode, &it.Unit, &it.Brand, &it.Model, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.RowType, &it.MatchedMaterialID, &it.TrustStatedTotal); err != nil {
			return nil, apperr.Database("scan_recent_line_item", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// InsertAuditResult persists an AuditResult.
func (s *Store) InsertAuditResult(ctx context.Context, a *models.AuditResult) error {
	sections, err := json.Marshal(a.Sections)
	if err != nil {
		return apperr.Database("insert_audit_result.marshal_sections", err)
	}
	issues, err := json.Marshal(a.Issues)
	if err != nil {
		return apperr.Database("insert_audit_result.marshal_issues", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO audit_results (id, trace_id, invoice_id, status, success, audit_type, sections, issues, processing_time_ns, model_identifier, confidence, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.TraceID, a.InvoiceID, a.Status, a.Success, a.AuditType, sections, issues, a.ProcessingTime.Nanoseconds(), a.ModelIdentifier, a.Confidence, a.CreatedAt)
	if err != nil {
		return apperr.Database("insert_audit_result", err)
	}
	return nil
}

// GetLatestAuditResult returns the most recent AuditResult for an invoice.
func (s *Store) GetLatestAuditResult(ctx context.Context, invoiceID string) (*models.AuditResult, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, trace_id, invoice_id, status, success, audit_type, sections, issues, processing_time_ns, model_identifier, confidence, created_at
FROM audit_results WHERE invoice_id = $1 ORDER BY created_at DESC LIMIT 1`, invoiceID)
	a := &models.AuditResult{}
	var sections, issues []byte
	var ns int64
	err := row.Scan(&a.ID, &a.TraceID, &a.InvoiceID, &a.Status, &a.Success, &a.AuditType, &sections, &issues, &ns, &a.ModelIdentifier, &a.Confidence, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("audit_result", invoiceID)
		}
		return nil, apperr.Database("get_latest_audit_result", err)
	}
	a.ProcessingTime = nsToDuration(ns)
	_ = json.Unmarshal(sections, &a.Sections)
	_ = json.Unmarshal(issues, &a.Issues)
	return a, nil
}
