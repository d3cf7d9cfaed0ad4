package models

import "time"

// OriginConfidence records how sure the system is about a Material's
// origin_country attribution.
type OriginConfidence string

const (
	OriginConfirmed OriginConfidence = "confirmed"
	OriginLikely    OriginConfidence = "likely"
	OriginUnknown   OriginConfidence = "unknown"
)

// Material is a catalog entry. At most one Material exists per
// NormalizedName (enforced by the repository's unique index).
type Material struct {
	ID               string           `json:"id"`
	DisplayName      string           `json:"display_name"`
	NormalizedName   string           `json:"normalized_name"`
	HSCode           string           `json:"hs_code,omitempty"`
	Category         string           `json:"category,omitempty"`
	Unit             string           `json:"unit,omitempty"`
	Description      string           `json:"description,omitempty"`
	Brand            string           `json:"brand,omitempty"`
	OriginCountry    string           `json:"origin_country,omitempty"`
	OriginConfidence OriginConfidence `json:"origin_confidence"`
	SourceURL        string           `json:"source_url,omitempty"`
	EvidenceText     string           `json:"evidence_text,omitempty"`
	Synonyms         []string         `json:"synonyms,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// PriceHistoryRow is an append-only row written by Store.InsertInvoice for
// each inserted LineItem (row_type=line_item, unit_price>0), later mutated only to set
// MaterialID by the catalog reconciler.
type PriceHistoryRow struct {
	ID             string     `json:"id"`
	NormalizedName string     `json:"normalized_name"`
	HSCode         string     `json:"hs_code,omitempty"`
	Seller         string     `json:"seller,omitempty"`
	InvoiceID      string     `json:"invoice_id"`
	InvoiceDate    *time.Time `json:"invoice_date,omitempty"`
	Quantity       float64    `json:"quantity"`
	UnitPrice      float64    `json:"unit_price"`
	Currency       string     `json:"currency,omitempty"`
	MaterialID     string     `json:"material_id,omitempty"`
}

// PriceStats is the aggregate used by price-anomaly auditing and insight
// evaluation: mean unit price and occurrence count for a (name[,seller],
// currency) group.
type PriceStats struct {
	NormalizedName  string  `json:"normalized_name"`
	Currency        string  `json:"currency"`
	Seller          string  `json:"seller,omitempty"`
	AvgPrice        float64 `json:"avg_price"`
	OccurrenceCount int     `json:"occurrence_count"`
}
