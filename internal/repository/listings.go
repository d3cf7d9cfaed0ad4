package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"srg/internal/apperr"
	"srg/internal/models"
)

// ListDocuments returns is_latest documents, newest first, for the
// document-library surface.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, filename, file_path, content_hash, size, mime, status, version, is_latest, page_count, company_key, metadata, created_at, updated_at, indexed_at
FROM documents WHERE is_latest ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Database("list_documents", err)
	}
	defer rows.Close()
	var out []models.Document
	for rows.Next() {
		var d models.Document
		var meta []byte
		if err := rows.Scan(&d.ID, &d.Filename, &d.FilePath, &d.ContentHash, &d.Size, &d.MIME, &d.Status, &d.Version, &d.IsLatest, &d.PageCount, &d.CompanyKey, &meta, &d.CreatedAt, &d.UpdatedAt, &d.IndexedAt); err != nil {
			return nil, apperr.Database("scan_document", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &d.Metadata)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a Document. Its pages, chunks and derived invoices
// (with their line items and other invoice-owned rows) go with it through
// the schema's ON DELETE CASCADE foreign keys.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return apperr.Database("delete_document", err)
	}
	return nil
}

// CountDocuments returns the total number of is_latest documents, used by
// the document-library stats endpoint.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE is_latest`).Scan(&n); err != nil {
		return 0, apperr.Database("count_documents", err)
	}
	return n, nil
}

// ListInvoices returns is_latest invoices across every company, newest
// first.
func (s *Store) ListInvoices(ctx context.Context, limit int) ([]models.Invoice, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM invoices WHERE is_latest ORDER BY invoice_date DESC NULLS LAST LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Database("list_invoices", err)
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

// DeleteInvoice removes an Invoice and its line items.
func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id); err != nil {
		return apperr.Database("delete_invoice", err)
	}
	return nil
}

// ListMaterials returns every catalog entry, newest first.
func (s *Store) ListMaterials(ctx context.Context, limit int) ([]models.Material, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, display_name, normalized_name, hs_code, category, unit, description, brand, origin_country, origin_confidence, source_url, evidence_text, synonyms, created_at, updated_at
FROM materials ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Database("list_materials", err)
	}
	defer rows.Close()
	var out []models.Material
	for rows.Next() {
		var m models.Material
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.NormalizedName, &m.HSCode, &m.Category, &m.Unit, &m.Description, &m.Brand, &m.OriginCountry, &m.OriginConfidence, &m.SourceURL, &m.EvidenceText, &m.Synonyms, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, apperr.Database("scan_material", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListCompanyDocuments returns every company document for a company key.
func (s *Store) ListCompanyDocuments(ctx context.Context, companyKey string) ([]models.CompanyDocument, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, company_key, doc_type, title, issued_date, expiry_date, file_ref, metadata, created_at, updated_at
FROM company_documents WHERE company_key = $1 ORDER BY created_at DESC`, companyKey)
	if err != nil {
		return nil, apperr.Database("list_company_documents", err)
	}
	defer rows.Close()
	var out []models.CompanyDocument
	for rows.Next() {
		var d models.CompanyDocument
		var meta []byte
		if err := rows.Scan(&d.ID, &d.CompanyKey, &d.DocType, &d.Title, &d.IssuedDate, &d.ExpiryDate, &d.FileRef, &meta, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, apperr.Database("scan_company_document", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &d.Metadata)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetCompanyDocument fetches a single company document by id.
func (s *Store) GetCompanyDocument(ctx context.Context, id string) (*models.CompanyDocument, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, company_key, doc_type, title, issued_date, expiry_date, file_ref, metadata, created_at, updated_at
FROM company_documents WHERE id = $1`, id)
	d := &models.CompanyDocument{}
	var meta []byte
	err := row.Scan(&d.ID, &d.CompanyKey, &d.DocType, &d.Title, &d.IssuedDate, &d.ExpiryDate, &d.FileRef, &meta, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("company_document", id)
		}
		return nil, apperr.Database("get_company_document", err)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &d.Metadata)
	}
	return d, nil
}

// DeleteCompanyDocument removes a company document by id.
func (s *Store) DeleteCompanyDocument(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM company_documents WHERE id = $1`, id); err != nil {
		return apperr.Database("delete_company_document", err)
	}
	return nil
}

// ListLowStockMaterials returns inventory items at or below threshold units
// on hand, lowest first; material details are not joined in.
func (s *Store) ListLowStockMaterials(ctx context.Context, threshold float64) ([]models.InventoryItem, error) {
	rows, err := s.pool.Query(ctx, `
SELECT material_id, quantity_on_hand, avg_cost, last_movement_date
FROM inventory_items WHERE quantity_on_hand <= $1 ORDER BY quantity_on_hand ASC`, threshold)
	if err != nil {
		return nil, apperr.Database("list_low_stock_materials", err)
	}
	defer rows.Close()
	var out []models.InventoryItem
	for rows.Next() {
		var it models.InventoryItem
		if err := rows.Scan(&it.MaterialID, &it.QuantityOnHand, &it.AvgCost, &it.LastMovementAt); err != nil {
			return nil, apperr.Database("scan_low_stock_material", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListStockMovements returns a material's movement history, newest first.
func (s *Store) ListStockMovements(ctx context.Context, materialID string, limit int) ([]models.StockMovement, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, material_id, type, quantity, unit_cost, reference, notes, created_at
FROM stock_movements WHERE material_id = $1 ORDER BY created_at DESC LIMIT $2`, materialID, limit)
	if err != nil {
		return nil, apperr.Database("list_stock_movements", err)
	}
	defer rows.Close()
	var out []models.StockMovement
	for rows.Next() {
		var m models.StockMovement
		if err := rows.Scan(&m.ID, &m.MaterialID, &m.Type, &m.Quantity, &m.UnitCost, &m.Reference, &m.Notes, &m.CreatedAt); err != nil {
			return nil, apperr.Database("scan_stock_movement", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListSalesInvoices returns local sales invoices, newest first.
func (s *Store) ListSalesInvoices(ctx context.Context, limit int) ([]models.LocalSalesInvoice, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM local_sales_invoices ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Database("list_sales_invoices", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apperr.Database("scan_sales_invoice_id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]models.LocalSalesInvoice, 0, len(ids))
	for _, id := range ids {
		inv, err := s.GetLocalSalesInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, nil
}
