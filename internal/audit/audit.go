package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"srg/internal/llm"
	"srg/internal/models"
	"srg/internal/repository"
)

// Options configures one audit_invoice call (spec.md §4.E).
type Options struct {
	UseLLM                bool
	StrictMode            bool
	Rules                 []string
	PriceAnomalyThreshold float64
	DuplicateWindowDays   int
	SaveResult            bool
	RetrievedContext      string // relevant chunks from the hybrid retriever, if any
}

// DefaultOptions mirrors spec.md §4.E's stated defaults.
func DefaultOptions() Options {
	return Options{
		UseLLM:                true,
		StrictMode:            false,
		PriceAnomalyThreshold: 0.20,
		DuplicateWindowDays:   30,
		SaveResult:            true,
	}
}

// Engine is the audit component's entry point.
type Engine struct {
	store    *repository.Store
	provider llm.Provider
}

func New(store *repository.Store, provider llm.Provider) *Engine {
	return &Engine{store: store, provider: provider}
}

// AuditInvoice runs the deterministic rules and, if requested and the
// provider is healthy, the semantic pass — applying the sanity gate and
// rule-only fallback rerun described in spec.md §4.E.
func (e *Engine) AuditInvoice(ctx context.Context, inv *models.Invoice, opts Options) (*models.AuditResult, error) {
	start := time.Now()

	issues := runDeterministicRules(ctx, e.store, inv, opts)
	if opts.StrictMode {
		issues = promoteWarningsToErrors(issues)
	}

	sections := models.NewEmptyAuditSections()
	auditType := models.AuditTypeRulesOnly
	success := true
	usedModel := false

	if opts.UseLLM && e.provider != nil {
		health := e.provider.CheckHealth(ctx)
		if health.Available {
			if sem, ok := semanticSections(ctx, e.provider, inv, opts.RetrievedContext); ok {
				sections = sem
				auditType = models.AuditTypeRulesAndModel
				usedModel = true
			} else {
				success = false
			}
		}
	}

	sane := sanityOK(inv, issues)
	if !sane && usedModel {
		// Deterministic-only fallback is always available; re-run rule-only
		// and mark the result as a fallback (spec.md §4.E's sanity gate).
		issues = runDeterministicRules(ctx, e.store, inv, opts)
		if opts.StrictMode {
			issues = promoteWarningsToErrors(issues)
		}
		sections = models.NewEmptyAuditSections()
		auditType = models.AuditTypeFallback
		usedModel = false
		success = true
		sane = sanityOK(inv, issues)
	}

	result := &models.AuditResult{
		ID:             uuid.NewString(),
		TraceID:        uuid.NewString(),
		InvoiceID:      inv.ID,
		Success:        success,
		AuditType:      auditType,
		Sections:       sections,
		Issues:         issues,
		ProcessingTime: time.Since(start),
		Confidence:     inv.Confidence,
		CreatedAt:      time.Now(),
	}
	if usedModel {
		result.ModelIdentifier = e.provider.Identifier()
	}
	// The deterministic pass always yields its issues, so a failed model pass
	// alone (success=false) does not make both passes failed: the status
	// comes from the rule output.
	result.Status = finalStatus(issues, sane, true)

	if opts.SaveResult {
		if err := e.store.InsertAuditResult(ctx, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// sanityOK is spec.md §4.E's gate: NOT (items_empty AND no_invoice_number).
func sanityOK(inv *models.Invoice, issues []models.Issue) bool {
	itemsEmpty := true
	for _, item := range inv.Items {
		if item.RowType == models.RowLineItem {
			itemsEmpty = false
			break
		}
	}
	return !(itemsEmpty && inv.InvoiceNo == "")
}

// finalStatus derives PASS/HOLD/FAIL/ERROR from the issue set, the sanity
// gate, and whether both passes failed (spec.md §4.E).
func finalStatus(issues []models.Issue, sane, success bool) models.AuditStatus {
	if !success {
		return models.AuditError
	}
	hasError := false
	hasWarning := false
	for _, iss := range issues {
		switch iss.Severity {
		case models.IssueError:
			hasError = true
		case models.IssueWarning:
			hasWarning = true
		}
	}
	switch {
	case hasError:
		return models.AuditFail
	case !sane:
		return models.AuditFail
	case hasWarning:
		return models.AuditHold
	default:
		return models.AuditPass
	}
}

func promoteWarningsToErrors(issues []models.Issue) []models.Issue {
	out := make([]models.Issue, len(issues))
	for i, iss := range issues {
		if iss.Severity == models.IssueWarning {
			iss.Severity = models.IssueError
		}
		out[i] = iss
	}
	return out
}
