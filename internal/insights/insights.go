// Package insights implements the background expiry/insight evaluator of
// spec.md §4.J: a periodic scan over expiring company documents, unmatched
// line items, and price anomalies, optionally materializing each finding
// into a namespaced Reminder so the same insight is never surfaced twice.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"srg/internal/models"
	"srg/internal/repository"
)

const (
	expiringCriticalDays = 7
	priceAnomalyThreshold = 0.30
	unmatchedScanLimit    = 200
	priceAnomalyScanLimit = 200
)

// Evaluator is the component's entry point.
type Evaluator struct {
	store *repository.Store
}

func New(store *repository.Store) *Evaluator {
	return &Evaluator{store: store}
}

// Result is the outcome of one evaluate_insights run.
type Result struct {
	Insights        []models.Insight
	RemindersCreated []models.Reminder
}

// Evaluate runs evaluate_insights(expiry_days, auto_create) (spec.md §4.J):
// it scans for expiring documents, unmatched line items, and price
// anomalies, and when autoCreate is set, materializes each finding into a
// Reminder unless an active one already exists for that linked entity.
func (e *Evaluator) Evaluate(ctx context.Context, expiryDays int, autoCreate bool) (Result, error) {
	var result Result

	expiring, err := e.scanExpiringDocuments(ctx, expiryDays)
	if err != nil {
		return result, err
	}
	result.Insights = append(result.Insights, expiring...)

	unmatched, err := e.scanUnmatchedItems(ctx)
	if err != nil {
		return result, err
	}
	result.Insights = append(result.Insights, unmatched...)

	anomalies, err := e.scanPriceAnomalies(ctx)
	if err != nil {
		return result, err
	}
	result.Insights = append(result.Insights, anomalies...)

	if !autoCreate {
		return result, nil
	}

	for _, ins := range result.Insights {
		created, err := e.materialize(ctx, ins)
		if err != nil {
			continue
		}
		if created != nil {
			result.RemindersCreated = append(result.RemindersCreated, *created)
		}
	}
	return result, nil
}

func (e *Evaluator) scanExpiringDocuments(ctx context.Context, expiryDays int) ([]models.Insight, error) {
	docs, err := e.store.ListExpiringCompanyDocuments(ctx, expiryDays)
	if err != nil {
		return nil, err
	}
	out := make([]models.Insight, 0, len(docs))
	for _, d := range docs {
		severity := expirySeverity(d)
		out = append(out, models.Insight{
			Kind:             "expiring_doc",
			Severity:         severity,
			Title:            fmt.Sprintf("%s expiring soon", d.DocType),
			Message:          fmt.Sprintf("%s (%s) for %s expires %s", d.Title, d.DocType, d.CompanyKey, formatDate(d.ExpiryDate)),
			LinkedEntityType: models.LinkExpiringDoc,
			LinkedEntityID:   d.ID,
		})
	}
	return out, nil
}

// expirySeverity promotes a document to CRITICAL once its expiry is within
// expiringCriticalDays of now, else WARNING (spec.md §4.J).
func expirySeverity(d models.CompanyDocument) models.ReminderSeverity {
	if d.ExpiryDate == nil {
		return models.SeverityWarning
	}
	daysLeft := daysUntil(d.ExpiryDate)
	if daysLeft <= expiringCriticalDays {
		return models.SeverityCritical
	}
	return models.SeverityWarning
}

func (e *Evaluator) scanUnmatchedItems(ctx context.Context) ([]models.Insight, error) {
	items, err := e.store.ListUnmatchedLineItems(ctx, unmatchedScanLimit)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]models.Insight, 0, len(items))
	for _, it := range items {
		key := normalizeName(it.ItemName)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Insight{
			Kind:             "unmatched_item",
			Severity:         models.SeverityInfo,
			Title:            "Unmatched catalog item",
			Message:          fmt.Sprintf("%q has no catalog match", it.ItemName),
			LinkedEntityType: models.LinkUnmatchedItem,
			LinkedEntityID:   key,
		})
	}
	return out, nil
}

func (e *Evaluator) scanPriceAnomalies(ctx context.Context) ([]models.Insight, error) {
	items, err := e.store.ListRecentLineItems(ctx, priceAnomalyScanLimit)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]models.Insight, 0)
	for _, it := range items {
		if it.RowType != models.RowLineItem || it.UnitPrice <= 0 {
			continue
		}
		key := normalizeName(it.ItemName)
		if key == "" || seen[key] {
			continue
		}
		stats, err := e.store.GetPriceStats(ctx, key, "", "")
		if err != nil || stats.OccurrenceCount < 2 || stats.AvgPrice <= 0 {
			continue
		}
		seen[key] = true
		deviation := (it.UnitPrice - stats.AvgPrice) / stats.AvgPrice
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation <= priceAnomalyThreshold {
			continue
		}
		out = append(out, models.Insight{
			Kind:             "price_anomaly",
			Severity:         models.SeverityWarning,
			Title:            "Price deviates from history",
			Message:          fmt.Sprintf("%q priced at %.2f, %.0f%% from historical average %.2f", it.ItemName, it.UnitPrice, deviation*100, stats.AvgPrice),
			LinkedEntityType: models.LinkPriceAnomaly,
			LinkedEntityID:   key,
		})
	}
	return out, nil
}

// materialize creates a Reminder for ins unless an active one already
// exists for the same linked entity, enforcing the spec's no-duplicate
// reminder invariant.
func (e *Evaluator) materialize(ctx context.Context, ins models.Insight) (*models.Reminder, error) {
	_, found, err := e.store.FindActiveReminder(ctx, ins.LinkedEntityType, ins.LinkedEntityID)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, nil
	}
	reminder := &models.Reminder{
		ID:               uuid.NewString(),
		Title:            ins.Title,
		Message:          ins.Message,
		Severity:         ins.Severity,
		LinkedEntityType: ins.LinkedEntityType,
		LinkedEntityID:   ins.LinkedEntityID,
		Status:           models.ReminderOpen,
		CreatedAt:        time.Now(),
	}
	if err := e.store.InsertReminder(ctx, reminder); err != nil {
		return nil, err
	}
	return reminder, nil
}

// normalizeName mirrors the catalog reconciler's normalization (lowercase,
// trimmed) without importing internal/catalog, matching audit's rules.go
// precedent for keeping these packages decoupled.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func daysUntil(t *time.Time) int {
	return int(time.Until(*t).Hours() / 24)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format("2006-01-02")
}
