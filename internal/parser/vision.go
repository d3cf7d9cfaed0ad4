package parser

import (
	"context"
	"encoding/json"
	"fmt"

	"srg/internal/llm"
	"srg/internal/models"
)

// ImageLoader fetches the rendered page image referenced by a Page's
// ImageHash. Pages only carry the hash, not the bytes, so the vision
// strategy is handed a loader rather than owning storage itself.
type ImageLoader func(imageHash string) ([]byte, error)

// VisionStrategy asks the model provider's vision capability to read a page
// image directly when no extractable text layer is usable. It is the
// lowest-priority strategy that still counts as a structured extraction,
// tried after TableAwareStrategy declines.
type VisionStrategy struct {
	provider  llm.Provider
	loadImage ImageLoader
}

func NewVisionStrategy(provider llm.Provider, loadImage ImageLoader) *VisionStrategy {
	return &VisionStrategy{provider: provider, loadImage: loadImage}
}

func (v *VisionStrategy) Name() string              { return "vision" }
func (v *VisionStrategy) Priority() int              { return 60 }
func (v *VisionStrategy) AcceptanceThreshold() float64 { return 0.5 }

const visionExtractionPrompt = `Read this invoice image and respond with a single JSON object only, no prose, using these keys: invoice_no, invoice_date, due_date, seller_name, buyer_name, currency, subtotal, tax, discount, total_amount, items (array of {item_name, quantity, unit_price, total_price}).`

type visionFields struct {
	InvoiceNo   string  `json:"invoice_no"`
	InvoiceDate string  `json:"invoice_date"`
	DueDate     string  `json:"due_date"`
	SellerName  string  `json:"seller_name"`
	BuyerName   string  `json:"buyer_name"`
	Currency    string  `json:"currency"`
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	Discount    float64 `json:"discount"`
	TotalAmount float64 `json:"total_amount"`
	Items       []struct {
		ItemName   string  `json:"item_name"`
		Quantity   float64 `json:"quantity"`
		UnitPrice  float64 `json:"unit_price"`
		TotalPrice float64 `json:"total_price"`
	} `json:"items"`
}

func (v *VisionStrategy) Parse(pages []models.Page) (*ParsedInvoice, error) {
	page := invoicePage(pages)
	if page == nil {
		return nil, fmt.Errorf("vision: no pages to read")
	}
	if page.ImageHash == "" || v.loadImage == nil {
		return nil, fmt.Errorf("vision: no page image available")
	}

	img, err := v.loadImage(page.ImageHash)
	if err != nil {
		return nil, fmt.Errorf("vision: load page image: %w", err)
	}

	caption, err := v.provider.Caption(context.Background(), img, visionExtractionPrompt)
	if err != nil {
		return nil, fmt.Errorf("vision: caption: %w", err)
	}

	obj := extractJSONObject(caption)
	if obj == "" {
		return nil, fmt.Errorf("vision: model response did not contain a JSON object")
	}
	var raw visionFields
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("vision: malformed JSON from model: %w", err)
	}
	if raw.InvoiceNo == "" && raw.TotalAmount == 0 {
		return nil, fmt.Errorf("vision: model extracted nothing usable")
	}

	out := &ParsedInvoice{ParserName: v.Name()}
	out.InvoiceNo = raw.InvoiceNo
	out.InvoiceDate, _ = parseFlexibleDate(raw.InvoiceDate)
	out.DueDate, _ = parseFlexibleDate(raw.DueDate)
	out.SellerName = raw.SellerName
	out.BuyerName = raw.BuyerName
	out.Currency = raw.Currency
	out.Subtotal = raw.Subtotal
	out.Tax = raw.Tax
	out.Discount = raw.Discount
	out.TotalAmount = raw.TotalAmount
	for i, it := range raw.Items {
		out.Items = append(out.Items, models.LineItem{
			LineNumber: i + 1,
			ItemName:   it.ItemName,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
			RowType:    models.RowLineItem,
		})
	}

	// Vision extraction has no structural cross-check of its own, so
	// confidence is fixed rather than derived; it is capped well below
	// the label-driven strategies it falls back from.
	conf := 0.6
	if out.InvoiceNo == "" || len(out.Items) == 0 {
		conf = 0.5
	}
	out.Confidence = conf
	if conf < v.AcceptanceThreshold() {
		return nil, fmt.Errorf("vision: confidence %.2f below threshold %.2f", conf, v.AcceptanceThreshold())
	}
	return out, nil
}
