package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"srg/internal/apperr"
	"srg/internal/models"
)

// InsertDocument creates a new Document row, demoting any existing
// is_latest row sharing its ContentHash within the same transaction so the
// "at most one is_latest per ContentHash" invariant always holds.
func (s *Store) InsertDocument(ctx context.Context, d *models.Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Database("insert_document.begin", err)
	}
	defer tx.Rollback(ctx)

	if d.IsLatest {
		if _, err := tx.Exec(ctx, `UPDATE documents SET is_latest = FALSE WHERE content_hash = $1 AND is_latest`, d.ContentHash); err != nil {
			return apperr.Database("insert_document.demote", err)
		}
	}

	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return apperr.Database("insert_document.marshal_metadata", err)
	}
	_, err = tx.Exec(ctx, `
INSERT INTO documents (id, filename, file_path, content_hash, size, mime, status, version, is_latest, page_count, company_key, metadata, created_at, updated_at, indexed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		d.ID, d.Filename, d.FilePath, d.ContentHash, d.Size, d.MIME, d.Status, d.Version, d.IsLatest, d.PageCount, d.CompanyKey, meta, d.CreatedAt, d.UpdatedAt, d.IndexedAt)
	if err != nil {
		return apperr.Database("insert_document", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Database("insert_document.commit", err)
	}
	return nil
}

// GetDocument fetches a Document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, filename, file_path, content_hash, size, mime, status, version, is_latest, page_count, company_key, metadata, created_at, updated_at, indexed_at
FROM documents WHERE id = $1`, id)
	d := &models.Document{}
	var meta []byte
	err := row.Scan(&d.ID, &d.Filename, &d.FilePath, &d.ContentHash, &d.Size, &d.MIME, &d.Status, &d.Version, &d.IsLatest, &d.PageCount, &d.CompanyKey, &meta, &d.CreatedAt, &d.UpdatedAt, &d.IndexedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("document", id)
		}
		return nil, apperr.Database("get_document", err)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &d.Metadata)
	}
	return d, nil
}

// FindDocumentByHash returns the is_latest document matching hash, if any.
func (s *Store) FindDocumentByHash(ctx context.Context, hash string) (*models.Document, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT id FROM documents WHERE content_hash = $1 AND is_latest LIMIT 1`, hash)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperr.Database("find_document_by_hash", err)
	}
	d, err := s.GetDocument(ctx, id)
	return d, err == nil, err
}

// UpdateDocumentStatus transitions status. Pass a non-nil indexedAt to also
// stamp the document as indexed; pass nil to leave indexed_at untouched.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, indexedAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET status = $2, updated_at = now(), indexed_at = COALESCE($3, indexed_at) WHERE id = $1`, id, status, indexedAt)
	if err != nil {
		return apperr.Database("update_document_status", err)
	}
	return nil
}

// InsertPages bulk-inserts a Document's pages.
func (s *Store) InsertPages(ctx context.Context, pages []models.Page) error {
	batch := &pgx.Batch{}
	for _, p := range pages {
		batch.Queue(`
INSERT INTO pages (id, document_id, page_number, type, type_confidence, text, image_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (document_id, page_number) DO UPDATE SET type = EXCLUDED.type, type_confidence = EXCLUDED.type_confidence, text = EXCLUDED.text, image_hash = EXCLUDED.image_hash`,
			p.ID, p.DocumentID, p.PageNumber, p.Type, p.TypeConfidence, p.Text, p.ImageHash)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pages {
		if _, err := br.Exec(); err != nil {
			return apperr.Database("insert_pages", err)
		}
	}
	return nil
}

// GetPages returns a Document's pages ordered by page number.
func (s *Store) GetPages(ctx context.Context, documentID string) ([]models.Page, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, document_id, page_number, type, type_confidence, text, image_hash
FROM pages WHERE document_id = $1 ORDER BY page_number`, documentID)
	if err != nil {
		return nil, apperr.Database("get_pages", err)
	}
	defer rows.Close()
	var out []models.Page
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.PageNumber, &p.Type, &p.TypeConfidence, &p.Text, &p.ImageHash); err != nil {
			return nil, apperr.Database("scan_page", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertCompanyDocument inserts or updates a CompanyDocument.
func (s *Store) UpsertCompanyDocument(ctx context.Context, d *models.CompanyDocument) error {
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return apperr.Database("upsert_company_document.marshal", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO company_documents (id, company_key, doc_type, title, issued_date, expiry_date, file_ref, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET doc_type=EXCLUDED.doc_type, title=EXCLUDED.title, issued_date=EXCLUDED.issued_date,
  expiry_date=EXCLUDED.expiry_date, file_ref=EXCLUDED.file_ref, metadata=EXCLUDED.metadata, updated_at=EXCLUDED.updated_at`,
		d.ID, d.CompanyKey, d.DocType, d.Title, d.IssuedDate, d.ExpiryDate, d.FileRef, meta, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return apperr.Database("upsert_company_document", err)
	}
	return nil
}

// ListExpiringCompanyDocuments returns documents whose expiry_date is at
// most withinDays days from now, already-expired ones included, used by
// the insight evaluator.
func (s *Store) ListExpiringCompanyDocuments(ctx context.Context, withinDays int) ([]models.CompanyDocument, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, company_key, doc_type, title, issued_date, expiry_date, file_ref, metadata, created_at, updated_at
FROM company_documents
WHERE expiry_date IS NOT NULL AND expiry_date <= now() + make_interval(days => $1)
ORDER BY expiry_date ASC`, withinDays)
	if err != nil {
		return nil, apperr.Database("list_expiring_company_documents", err)
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
