package models

import "time"

// ParsingStatus is the outcome of the parser registry's attempt on an Invoice.
type ParsingStatus string

const (
	ParsingOK          ParsingStatus = "ok"
	ParsingPartial     ParsingStatus = "partial"
	ParsingFailed      ParsingStatus = "failed"
	ParsingNeedsReview ParsingStatus = "needs_review"
)

// RowType classifies a LineItem row.
type RowType string

const (
	RowLineItem RowType = "line_item"
	RowHeader   RowType = "header"
	RowSummary  RowType = "summary"
	RowSubtotal RowType = "subtotal"
)

// Invoice is the structured record produced by the parser registry and
// reconciled/audited by downstream components.
type Invoice struct {
	ID             string         `json:"id"`
	DocumentID     string         `json:"document_id"`
	InvoiceNo      string         `json:"invoice_no,omitempty"`
	InvoiceDate    *time.Time     `json:"invoice_date,omitempty"`
	DueDate        *time.Time     `json:"due_date,omitempty"`
	SellerName     string         `json:"seller_name,omitempty"`
	BuyerName      string         `json:"buyer_name,omitempty"`
	CompanyKey     string         `json:"company_key,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	Subtotal       float64        `json:"subtotal"`
	Tax            float64        `json:"tax"`
	Discount       float64        `json:"discount"`
	TotalAmount    float64        `json:"total_amount"`
	QualityScore   float64        `json:"quality_score"`
	Confidence     float64        `json:"confidence"`
	ParserUsed     string         `json:"parser_used,omitempty"`
	ParsingStatus  ParsingStatus  `json:"parsing_status"`
	IsLatest       bool           `json:"is_latest"`
	BankDetails    map[string]any `json:"bank_details,omitempty"`
	Items          []LineItem     `json:"items,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// LineItem is a child row of Invoice.
type LineItem struct {
	ID                string  `json:"id"`
	InvoiceID         string  `json:"invoice_id"`
	LineNumber        int     `json:"line_number"`
	ItemName          string  `json:"item_name"`
	Description       string  `json:"description,omitempty"`
	HSCode            string  `json:"hs_code,omitempty"`
	Unit              string  `json:"unit,omitempty"`
	Brand             string  `json:"brand,omitempty"`
	Model             string  `json:"model,omitempty"`
	Quantity          float64 `json:"quantity"`
	UnitPrice         float64 `json:"unit_price"`
	TotalPrice        float64 `json:"total_price"`
	RowType           RowType `json:"row_type"`
	MatchedMaterialID string  `json:"matched_material_id,omitempty"`
	TrustStatedTotal  bool    `json:"-"` // parser-specific override of the tolerance check
}

// AuditStatus is the overall verdict of an AuditResult.
type AuditStatus string

const (
	AuditPass  AuditStatus = "PASS"
	AuditHold  AuditStatus = "HOLD"
	AuditFail  AuditStatus = "FAIL"
	AuditError AuditStatus = "ERROR"
)

// AuditType records which pass combination produced the AuditResult.
type AuditType string

const (
	AuditTypeRulesAndModel AuditType = "rules+model"
	AuditTypeRulesOnly     AuditType = "rules_only"
	AuditTypeFallback      AuditType = "fallback"
)

// IssueSeverity ranks an audit Issue.
type IssueSeverity string

const (
	IssueError   IssueSeverity = "error"
	IssueWarning IssueSeverity = "warning"
	IssueInfo    IssueSeverity = "info"
)

// Issue is one finding emitted by a deterministic rule or the semantic pass.
type Issue struct {
	Code     string        `json:"code"`
	Category string        `json:"category"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// AuditSections are the nine named analytical sections every AuditResult
// carries, some possibly empty.
type AuditSections struct {
	DocumentIntake             map[string]any `json:"document_intake"`
	ProformaSummary            map[string]any `json:"proforma_summary"`
	ItemsTable                 map[string]any `json:"items_table"`
	ArithmeticCheck            map[string]any `json:"arithmetic_check"`
	AmountWordsCheck           map[string]any `json:"amount_words_check"`
	BankDetailsCheck           map[string]any `json:"bank_details_check"`
	CommercialTermsSuggestions map[string]any `json:"commercial_terms_suggestions"`
	ContractSummary            map[string]any `json:"contract_summary"`
	FinalVerdict               map[string]any `json:"final_verdict"`
}

// NewEmptyAuditSections returns all nine sections initialized to empty maps,
// satisfying the "every audit carries all nine sections" invariant even when
// a given pass contributes nothing to some of them.
func NewEmptyAuditSections() AuditSections {
	return AuditSections{
		DocumentIntake:             map[string]any{},
		ProformaSummary:            map[string]any{},
		ItemsTable:                 map[string]any{},
		ArithmeticCheck:            map[string]any{},
		AmountWordsCheck:           map[string]any{},
		BankDetailsCheck:           map[string]any{},
		CommercialTermsSuggestions: map[string]any{},
		ContractSummary:            map[string]any{},
		FinalVerdict:               map[string]any{},
	}
}

// AuditResult is one audit invocation's outcome, keyed by an opaque trace id.
type AuditResult struct {
	ID              string        `json:"id"`
	TraceID         string        `json:"trace_id"`
	InvoiceID       string        `json:"invoice_id"`
	Status          AuditStatus   `json:"status"`
	Success         bool          `json:"success"`
	AuditType       AuditType     `json:"audit_type"`
	Sections        AuditSections `json:"sections"`
	Issues          []Issue       `json:"issues"`
	ProcessingTime  time.Duration `json:"processing_time_ns"`
	ModelIdentifier string        `json:"model_identifier,omitempty"`
	Confidence      float64       `json:"confidence"`
	CreatedAt       time.Time     `json:"created_at"`
}

// HasErrors reports whether any issue is error-severity.
func (a *AuditResult) HasErrors() bool {
	for _, iss := range a.Issues {
		if iss.Severity == IssueError {
			return true
		}
	}
	return false
}
