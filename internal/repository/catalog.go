package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"srg/internal/apperr"
	"srg/internal/models"
)

// InsertMaterial adds a new catalog entry.
func (s *Store) InsertMaterial(ctx context.Context, m *models.Material) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO materials (id, display_name, normalized_name, hs_code, category, unit, description, brand, origin_country, origin_confidence, source_url, evidence_text, synonyms, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		m.ID, m.DisplayName, m.NormalizedName, m.HSCode, m.Category, m.Unit, m.Description, m.Brand, m.OriginCountry, m.OriginConfidence, m.SourceURL, m.EvidenceText, m.Synonyms, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return apperr.Database("insert_material", err)
	}
	return nil
}

// GetMaterialByNormalizedName looks up a material by its normalized name.
func (s *Store) GetMaterialByNormalizedName(ctx context.Context, normalized string) (*models.Material, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, display_name, normalized_name, hs_code, category, unit, description, brand, origin_country, origin_confidence, source_url, evidence_text, synonyms, created_at, updated_at
FROM materials WHERE normalized_name = $1`, normalized)
	m := &models.Material{}
	err := row.Scan(&m.ID, &m.DisplayName, &m.NormalizedName, &m.HSCode, &m.Category, &m.Unit, &m.Description, &m.Brand, &m.OriginCountry, &m.OriginConfidence, &m.SourceURL, &m.EvidenceText, &m.Synonyms, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperr.Database("get_material_by_normalized_name", err)
	}
	return m, true, nil
}

// GetMaterial fetches a material by id.
func (s *Store) GetMaterial(ctx context.Context, id string) (*models.Material, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, display_name, normalized_name, hs_code, category, unit, description, brand, origin_country, origin_confidence, source_url, evidence_text, synonyms, created_at, updated_at
FROM materials WHERE id = $1`, id)
	m := &models.Material{}
	err := row.Scan(&m.ID, &m.DisplayName, &m.NormalizedName, &m.HSCode, &m.Category, &m.Unit, &m.Description, &m.Brand, &m.OriginCountry, &m.OriginConfidence, &m.SourceURL, &m.EvidenceText, &m.Synonyms, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("material", id)
		}
		return nil, apperr.Database("get_material", err)
	}
	return m, nil
}

// AddSynonym appends syn to a material's synonym list if not already
// present.
func (s *Store) AddSynonym(ctx context.Context, materialID, syn string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE materials SET synonyms = array_append(synonyms, $2), updated_at = now()
WHERE id = $1 AND NOT ($2 = ANY(synonyms))`, materialID, syn)
	if err != nil {
		return apperr.Database("add_synonym", err)
	}
	return nil
}

// ListSynonyms returns a material's synonym list.
func (s *Store) ListSynonyms(ctx context.Context, materialID string) ([]string, error) {
	row := s.pool.QueryRow(ctx, `SELECT synonyms FROM materials WHERE id = $1`, materialID)
	var syns []string
	if err := row.Scan(&syns); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("material", materialID)
		}
		return nil, apperr.Database("list_synonyms", err)
	}
	return syns, nil
}

// RenameMaterial changes a material's display name, keeping the old display
// name as a synonym so existing references keep resolving.
func (s *Store) RenameMaterial(ctx context.Context, materialID, newDisplayName string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE materials SET
  synonyms = array_append(synonyms, display_name),
  display_name = $2,
  updated_at = now()
WHERE id = $1`, materialID, newDisplayName)
	if err != nil {
		return apperr.Database("rename_material", err)
	}
	return nil
}

// BackfillMaterialFields fills hs_code/unit on a material that was created
// without them, used by the catalog reconciler when a newly matched item
// supplies values the material is missing. Empty arguments leave the
// existing column untouched.
func (s *Store) BackfillMaterialFields(ctx context.Context, materialID, hsCode, unit string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE materials SET
  hs_code = CASE WHEN hs_code = '' OR hs_code IS NULL THEN NULLIF($2, '') ELSE hs_code END,
  unit = CASE WHEN unit = '' OR unit IS NULL THEN NULLIF($3, '') ELSE unit END,
  updated_at = now()
WHERE id = $1`, materialID, hsCode, unit)
	if err != nil {
		return apperr.Database("backfill_material_fields", err)
	}
	return nil
}

// GetMaterialBySynonym looks up a material whose synonym list contains an
// entry that normalizes (lower+trim) to the given normalized name,
// unbounded by any lexical-similarity candidate window — the catalog's
// material-uniqueness invariant depends on this being exhaustive, not a
// fuzzy top-N scan. Synonyms are stored in their original casing (for
// display), so the comparison normalizes at query time rather than
// requiring the array itself to hold normalized text.
func (s *Store) GetMaterialBySynonym(ctx context.Context, normalized string) (*models.Material, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, display_name, normalized_name, hs_code, category, unit, description, brand, origin_country, origin_confidence, source_url, evidence_text, synonyms, created_at, updated_at
FROM materials m
WHERE EXISTS (SELECT 1 FROM unnest(m.synonyms) AS syn WHERE lower(trim(syn)) = $1)
ORDER BY id ASC LIMIT 1`, normalized)
	m := &models.Material{}
	err := row.Scan(&m.ID, &m.DisplayName, &m.NormalizedName, &m.HSCode, &m.Category, &m.Unit, &m.Description, &m.Brand, &m.OriginCountry, &m.OriginConfidence, &m.SourceURL, &m.EvidenceText, &m.Synonyms, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperr.Database("get_material_by_synonym", err)
	}
	return m, true, nil
}

// SuggestMaterialsForName returns up to limit materials whose normalized
// name or synonyms best match a trigram similarity search against name —
// the catalog reconciler's auto-match candidate query.
func (s *Store) SuggestMaterialsForName(ctx context.Context, normalizedName string, limit int) ([]models.Material, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, display_name, normalized_name, hs_code, category, unit, description, brand, origin_country, origin_confidence, source_url, evidence_text, synonyms, created_at, updated_at
FROM materials
WHERE similarity(normalized_name, $1) > 0.2 OR $1 = ANY(synonyms)
ORDER BY similarity(normalized_name, $1) DESC
LIMIT $2`, normalizedName, limit)
	if err != nil {
		return nil, apperr.Database("suggest_materials_for_name", err)
	}
	defer rows.Close()
	var out []models.Material
	for rows.Next() {
		var m models.Material
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.NormalizedName, &m.HSCode, &m.Category, &m.Unit, &m.Description, &m.Brand, &m.OriginCountry, &m.OriginConfidence, &m.SourceURL, &m.EvidenceText, &m.Synonyms, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, apperr.Database("scan_suggested_material", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetPriceStats computes mean unit price and occurrence count for a
// (normalized name, currency) group, optionally narrowed to a seller, for
// the audit engine's price-anomaly rule and the insight evaluator.
func (s *Store) GetPriceStats(ctx context.Context, normalizedName, currency, seller string) (models.PriceStats, error) {
	var stats models.PriceStats
	stats.NormalizedName = normalizedName
	stats.Currency = currency
	stats.Seller = seller

	row := s.pool.QueryRow(ctx, `
SELECT COALESCE(AVG(unit_price), 0), COUNT(*)
FROM price_history
WHERE normalized_name = $1 AND currency = $2 AND seller = $3`, normalizedName, currency, seller)
	if err := row.Scan(&stats.AvgPrice, &stats.OccurrenceCount); err != nil {
		return stats, apperr.Database("get_price_stats.seller_scoped", err)
	}
	if stats.OccurrenceCount > 0 {
		return stats, nil
	}

	// No seller-scoped history: fall back to the name+currency population
	// across all sellers (spec.md's price-anomaly "seller fallback").
	stats.Seller = ""
	row = s.pool.QueryRow(ctx, `
SELECT COALESCE(AVG(unit_price), 0), COUNT(*)
FROM price_history
WHERE normalized_name = $1 AND currency = $2`, normalizedName, currency)
	if err := row.Scan(&stats.AvgPrice, &stats.OccurrenceCount); err != nil {
		return stats, apperr.Database("get_price_stats.fallback", err)
	}
	return stats, nil
}

// CrossInvoiceDuplicate is one candidate duplicate line item pairing,
// produced by the audit engine's cross-invoice duplicate window query.
type CrossInvoiceDuplicate struct {
	OtherLineItemID string
	OtherInvoiceID  string
}

// FindCrossInvoiceDuplicates looks for other invoices' line items with the
// same normalized item name whose invoice_date falls strictly before this
// invoice, within windowDays — excluding the invoice itself. spec.md §4.E
// defines the window as one-sided ([invoice_date−window_days,
// invoice_date−1]): a duplicate is an item that was already invoiced
// earlier, not merely invoiced nearby in either direction, and matching is
// on the normalized name alone — price or quantity drift between the two
// invoices is exactly the kind of duplicate this rule exists to catch, not
// a reason to exclude the match.
func (s *Store) FindCrossInvoiceDuplicates(ctx context.Context, invoiceID, normalizedName string, windowDays int) ([]CrossInvoiceDuplicate, error) {
	rows, err := s.pool.Query(ctx, `
SELECT li.id, li.invoice_id
FROM line_items li
JOIN invoices inv ON inv.id = li.invoice_id
WHERE inv.id <> $1
  AND inv.is_latest
  AND lower(regexp_replace(li.item_name, '\s+', ' ', 'g')) = $2
  AND inv.invoice_date >= (SELECT invoice_date FROM invoices WHERE id = $1) - make_interval(days => $3)
  AND inv.invoice_date <= (SELECT invoice_date FROM invoices WHERE id = $1) - make_interval(days => 1)`,
		invoiceID, normalizedName, windowDays)
	if err != nil {
		return nil, apperr.Database("find_cross_invoice_duplicates", err)
	}
	defer rows.Close()
	var out []CrossInvoiceDuplicate
	for rows.Next() {
		var d CrossInvoiceDuplicate
		if err := rows.Scan(&d.OtherLineItemID, &d.OtherInvoiceID); err != nil {
			return nil, apperr.Database("scan_cross_invoice_duplicate", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListPriceHistory returns price_history rows for a normalized material
// name, newest invoice first, optionally narrowed to a currency, for the
// /api/prices/history surface.
func (s *Store) ListPriceHistory(ctx context.Context, normalizedName, currency string, limit int) ([]models.PriceHistoryRow, error) {
	query := `
SELECT id, normalized_name, hs_code, seller, invoice_id, invoice_date, quantity, unit_price, currency, material_id
FROM price_history WHERE normalized_name = $1`
	args := []any{normalizedName}
	if currency != "" {
		query += " AND currency = $2 ORDER BY invoice_date DESC NULLS LAST LIMIT $3"
		args = append(args, currency, limit)
	} else {
		query += " ORDER BY invoice_date DESC NULLS LAST LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Database("list_price_history", err)
	}
	defer rows.Close()
	var out []models.PriceHistoryRow
	for rows.Next() {
		var p models.PriceHistoryRow
		if err := rows.Scan(&p.ID, &p.NormalizedName, &p.HSCode, &p.Seller, &p.InvoiceID, &p.InvoiceDate, &p.Quantity, &p.UnitPrice, &p.Currency, &p.MaterialID); err != nil {
			return nil, apperr.Database("scan_price_history", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
