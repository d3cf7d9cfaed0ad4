// Package catalog implements the Catalog Reconciler of spec.md §4.F:
// normalized-name+synonym matching that links invoice line items to catalog
// materials and appends to the price history that feeds the audit engine's
// anomaly rule. Grounded on reposearch's Store-backed lookup/insert
// patterns, adapted from chunk retrieval to material reconciliation.
package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"srg/internal/models"
	"srg/internal/repository"
)

// Reconciler ties the repository's catalog CRUD to the matching rules.
type Reconciler struct {
	store *repository.Store
}

func New(store *repository.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Normalize is the catalog's one normalization primitive: lowercase and
// trim. Every matching rule in this package goes through it so a material
// and its line items always compare on the same key.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MatchOutcome reports what auto_match_items did with one line item.
type MatchOutcome struct {
	LineItemID string
	MaterialID string
	Matched    bool
	Via        string // "name" or "synonym"
}

// AutoMatchItems links each line_item row to an existing material by exact
// normalized-name match, then by synonym match. It never creates
// materials — that's add_to_catalog's job (spec.md §4.F).
func (r *Reconciler) AutoMatchItems(ctx context.Context, invoiceID string, items []models.LineItem) ([]MatchOutcome, error) {
	out := make([]MatchOutcome, 0, len(items))
	for _, item := range items {
		if item.RowType != models.RowLineItem {
			continue
		}
		normalized := Normalize(item.ItemName)

		material, found, err := r.store.GetMaterialByNormalizedName(ctx, normalized)
		if err != nil {
			return nil, err
		}
		via := "name"
		if !found {
			material, found, err = r.findBySynonym(ctx, normalized)
			if err != nil {
				return nil, err
			}
			via = "synonym"
		}
		if !found {
			out = append(out, MatchOutcome{LineItemID: item.ID, Matched: false})
			continue
		}

		if err := r.store.SetLineItemMaterial(ctx, item.ID, material.ID); err != nil {
			return nil, err
		}
		out = append(out, MatchOutcome{LineItemID: item.ID, MaterialID: material.ID, Matched: true, Via: via})
	}
	return out, nil
}

// findBySynonym looks for an exact synonym match, unbounded by any
// lexical-similarity candidate window (spec.md §4.F step 2 states no bound
// on the synonym search, and the material-uniqueness invariant requires it
// to be exhaustive rather than limited to the closest few lexical matches).
func (r *Reconciler) findBySynonym(ctx context.Context, normalized string) (*models.Material, bool, error) {
	return r.store.GetMaterialBySynonym(ctx, normalized)
}

// AddToCatalog promotes (or reconciles) one or more of an invoice's line
// items into permanent catalog materials: reuse an existing material by
// name/synonym, backfilling hs_code/unit and recording a new synonym if the
// raw description differs; otherwise mint a fresh material. Every matching
// price_history row and line_item gets material_id/matched_material_id set.
func (r *Reconciler) AddToCatalog(ctx context.Context, items []models.LineItem) ([]MatchOutcome, error) {
	out := make([]MatchOutcome, 0, len(items))
	for _, item := range items {
		if item.RowType != models.RowLineItem {
			continue
		}
		normalized := Normalize(item.ItemName)

		material, found, err := r.store.GetMaterialByNormalizedName(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if !found {
			material, found, err = r.findBySynonym(ctx, normalized)
			if err != nil {
				return nil, err
			}
		}

		if found {
			if Normalize(material.DisplayName) != normalized {
				if err := r.store.AddSynonym(ctx, material.ID, item.ItemName); err != nil {
					return nil, err
				}
			}
			if (material.HSCode == "" && item.HSCode != "") || (material.Unit == "" && item.Unit != "") {
				hsCode, unit := material.HSCode, material.Unit
				if hsCode == "" {
					hsCode = item.HSCode
				}
				if unit == "" {
					unit = item.Unit
				}
				if err := r.store.BackfillMaterialFields(ctx, material.ID, hsCode, unit); err != nil {
					return nil, err
				}
			}
		} else {
			material = &models.Material{
				ID:             uuid.NewString(),
				DisplayName:    item.ItemName,
				NormalizedName: normalized,
				HSCode:         item.HSCode,
				Unit:           item.Unit,
				Brand:          item.Brand,
			}
			if err := r.store.InsertMaterial(ctx, material); err != nil {
				return nil, err
			}
		}

		if err := r.store.SetLineItemMaterial(ctx, item.ID, material.ID); err != nil {
			return nil, err
		}
		out = append(out, MatchOutcome{LineItemID: item.ID, MaterialID: material.ID, Matched: true})
	}
	return out, nil
}

// ListSynonyms is a thin pass-through for API handlers.
func (r *Reconciler) ListSynonyms(ctx context.Context, materialID string) ([]string, error) {
	return r.store.ListSynonyms(ctx, materialID)
}

// RenameMaterial is a thin pass-through for API handlers.
func (r *Reconciler) RenameMaterial(ctx context.Context, materialID, newDisplayName string) error {
	return r.store.RenameMaterial(ctx, materialID, newDisplayName)
}

// Suggestion is one unmatched-item candidate material.
type Suggestion struct {
	LineItemID string
	Materials  []models.Material
}

// SuggestForUnmatched returns up to 5 best-matching materials per unmatched
// line item (spec.md §4.F's invoice-detail suggestion query), returning an
// empty slice per item on a lookup error rather than aborting the whole
// invoice's suggestions.
func (r *Reconciler) SuggestForUnmatched(ctx context.Context, items []models.LineItem) []Suggestion {
	out := make([]Suggestion, 0, len(items))
	for _, item := range items {
		if item.RowType != models.RowLineItem || item.MatchedMaterialID != "" {
			continue
		}
		candidates, err := r.store.SuggestMaterialsForName(ctx, Normalize(item.ItemName), 5)
		if err != nil {
			candidates = nil
		}
		out = append(out, Suggestion{LineItemID: item.ID, Materials: candidates})
	}
	return out
}
