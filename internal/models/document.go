// Package models holds the value objects passed between srg's components.
// Stores own their rows exclusively; these structs are plain data carried by
// value, never aliased behind a shared mutable pointer across components.
package models

import "time"

// DocumentStatus is the lifecycle state of an ingested Document.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentIndexed    DocumentStatus = "indexed"
	DocumentFailed     DocumentStatus = "failed"
)

// PageType classifies a Page's content.
type PageType string

const (
	PageInvoice     PageType = "invoice"
	PagePackingList PageType = "packing_list"
	PageContract    PageType = "contract"
	PageBankForm    PageType = "bank_form"
	PageCertificate PageType = "certificate"
	PageCoverLetter PageType = "cover_letter"
	PageOther       PageType = "other"
)

// Document is the root entity for an ingested file. At most one
// is_latest=true Document exists per ContentHash (enforced by repository).
type Document struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	FilePath     string         `json:"file_path"`
	ContentHash  string         `json:"content_hash"`
	Size         int64          `json:"size"`
	MIME         string         `json:"mime"`
	Status       DocumentStatus `json:"status"`
	Version      int            `json:"version"`
	IsLatest     bool           `json:"is_latest"`
	PageCount    int            `json:"page_count"`
	CompanyKey   string         `json:"company_key,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	IndexedAt    *time.Time     `json:"indexed_at,omitempty"`
}

// Page is a child of Document, one row per physical page.
type Page struct {
	ID             string   `json:"id"`
	DocumentID     string   `json:"document_id"`
	PageNumber     int      `json:"page_number"`
	Type           PageType `json:"type"`
	TypeConfidence float64  `json:"type_confidence"`
	Text           string   `json:"text"`
	ImageHash      string   `json:"image_hash,omitempty"`
}

// Chunk is a child of Document/Page produced by the indexer's chunker.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	PageID     string `json:"page_id,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"chunk_text"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
}

// CompanyDocument tracks a company's own compliance/licensing paperwork
// (licenses, permits, certificates, contracts, insurance), distinct from
// ingested vendor invoices. Supplements spec.md's entity list — required by
// the expiry scan in §4.J and the /api/company-documents surface in §6.
type CompanyDocument struct {
	ID         string         `json:"id"`
	CompanyKey string         `json:"company_key"`
	DocType    string         `json:"doc_type"`
	Title      string         `json:"title"`
	IssuedDate *time.Time     `json:"issued_date,omitempty"`
	ExpiryDate *time.Time     `json:"expiry_date,omitempty"`
	FileRef    string         `json:"file_ref,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ReminderSeverity ranks a derived or user-created Reminder.
type ReminderSeverity string

const (
	SeverityInfo     ReminderSeverity = "INFO"
	SeverityWarning  ReminderSeverity = "WARNING"
	SeverityCritical ReminderSeverity = "CRITICAL"
)

// ReminderStatus tracks whether a Reminder still needs attention.
type ReminderStatus string

const (
	ReminderOpen      ReminderStatus = "open"
	ReminderDone      ReminderStatus = "done"
	ReminderDismissed ReminderStatus = "dismissed"
)

// Namespaced linked-entity-type prefixes used by derived reminders, so they
// can be told apart from user-created ones with the same entity kind.
const (
	LinkExpiringDoc   = "insight:expiring_doc"
	LinkUnmatchedItem = "insight:unmatched_item"
	LinkPriceAnomaly  = "insight:price_anomaly"
)

// Reminder is a user-created or derived (from insights) action item.
type Reminder struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Severity        ReminderSeverity `json:"severity"`
	LinkedEntityType string          `json:"linked_entity_type,omitempty"`
	LinkedEntityID  string           `json:"linked_entity_id,omitempty"`
	Status          ReminderStatus   `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	DueAt           *time.Time       `json:"due_at,omitempty"`
}

// Insight is a derived observation surfaced by the expiry/insight evaluator,
// before (optionally) being materialized into a Reminder.
type Insight struct {
	Kind             string           `json:"kind"` // "expiring_doc" | "unmatched_item" | "price_anomaly"
	Severity         ReminderSeverity `json:"severity"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	LinkedEntityType string           `json:"linked_entity_type"`
	LinkedEntityID   string           `json:"linked_entity_id"`
}
