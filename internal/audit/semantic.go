package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"srg/internal/llm"
	"srg/internal/models"
)

const semanticPromptTemplate = `You are auditing a commercial invoice. Analyze the invoice below and respond with a single JSON object containing exactly these keys, each an object (possibly empty): document_intake, proforma_summary, items_table, arithmetic_check, amount_words_check, bank_details_check, commercial_terms_suggestions, contract_summary, final_verdict.

Invoice:
%s

Relevant context:
%s

Respond with JSON only.`

// semanticSections runs the optional model-assisted pass: a single
// structured-JSON request, repaired through a three-stage policy before
// giving up. Returns ok=false (never an error) on persistent failure so the
// caller can fall back to rule output only, per spec.md §4.E.
func semanticSections(ctx context.Context, provider llm.Provider, inv *models.Invoice, context_ string) (models.AuditSections, bool) {
	prompt := fmt.Sprintf(semanticPromptTemplate, renderInvoice(inv), context_)
	resp, err := provider.Generate(ctx, prompt, llm.GenerateOptions{MaxTokens: 2048, Temperature: 0.1})
	if err != nil {
		return models.AuditSections{}, false
	}

	sections, ok := repairAndParse(resp)
	return sections, ok
}

// repairAndParse tries, in order: the raw response as JSON; the largest
// balanced {...} region within it; then the same region with markdown code
// fences stripped. The first stage to parse into all nine keys wins.
func repairAndParse(resp string) (models.AuditSections, bool) {
	if sections, ok := tryParseSections(resp); ok {
		return sections, true
	}

	extracted := extractBalancedObject(resp)
	if extracted != "" {
		if sections, ok := tryParseSections(extracted); ok {
			return sections, true
		}
		stripped := stripCodeFences(extracted)
		if sections, ok := tryParseSections(stripped); ok {
			return sections, true
		}
	}

	stripped := stripCodeFences(resp)
	if sections, ok := tryParseSections(stripped); ok {
		return sections, true
	}
	return models.AuditSections{}, false
}

func tryParseSections(raw string) (models.AuditSections, bool) {
	var m map[string]map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return models.AuditSections{}, false
	}
	required := []string{
		"document_intake", "proforma_summary", "items_table", "arithmetic_check",
		"amount_words_check", "bank_details_check", "commercial_terms_suggestions",
		"contract_summary", "final_verdict",
	}
	for _, key := range required {
		if _, ok := m[key]; !ok {
			return models.AuditSections{}, false
		}
	}
	return models.AuditSections{
		DocumentIntake:             m["document_intake"],
		ProformaSummary:            m["proforma_summary"],
		ItemsTable:                 m["items_table"],
		ArithmeticCheck:            m["arithmetic_check"],
		AmountWordsCheck:           m["amount_words_check"],
		BankDetailsCheck:           m["bank_details_check"],
		CommercialTermsSuggestions: m["commercial_terms_suggestions"],
		ContractSummary:            m["contract_summary"],
		FinalVerdict:               m["final_verdict"],
	}, true
}

// extractBalancedObject scans s for the largest top-level balanced {...}
// region, tolerating braces inside quoted strings.
func extractBalancedObject(s string) string {
	best := ""
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = depth > 0
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && i+1-start > len(best) {
				best = s[start : i+1]
			}
		}
	}
	return best
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func renderInvoice(inv *models.Invoice) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "invoice_no=%s seller=%s buyer=%s total=%.2f %s\n", inv.InvoiceNo, inv.SellerName, inv.BuyerName, inv.TotalAmount, inv.Currency)
	for _, item := range inv.Items {
		fmt.Fprintf(&sb, "- %s qty=%.2f unit_price=%.2f total=%.2f\n", item.ItemName, item.Quantity, item.UnitPrice, item.TotalPrice)
	}
	return sb.String()
}
