// Package receipt turns receipt images into structured orders.
//
// Two stages run behind interfaces chosen at construction time: a
// TextExtractor reads raw text off the image, and a Parser turns that text
// into a ParsedReceipt.
package receipt

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/MJ-02/BillSplitter/internal/models"
)

var (
	// ErrUnknownEngine is returned for an unsupported OCR engine name.
	ErrUnknownEngine = errors.New("unknown OCR engine")

	// ErrNoText means the extractor found nothing to parse.
	ErrNoText = errors.New("no text detected")
)

// Image is an uploaded receipt.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// OCRResult is the raw text read off a receipt.
type OCRResult struct {
	RawText    string  `json:"raw_text"`
	Confidence float64 `json:"confidence"`
	Engine     string  `json:"engine"`
}

// TextExtractor reads text from a receipt image.
type TextExtractor interface {
	Extract(ctx context.Context, image Image) (OCRResult, error)
}

// Parser extracts structured data from receipt text.
type Parser interface {
	Parse(ctx context.Context, rawText string) (*ParsedReceipt, error)
}

// ImageStore keeps uploaded receipt images and returns the URL each one
// can be fetched from.
type ImageStore interface {
	Put(ctx context.Context, image Image) (string, error)
}

// ParsedItem is one line of a parsed receipt. Price is per unit.
type ParsedItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ParsedReceipt is the structured content of a receipt. Amounts missing
// from the receipt are zero.
type ParsedReceipt struct {
	Restaurant  string          `json:"restaurant"`
	Items       []ParsedItem    `json:"items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Tip         decimal.Decimal `json:"tip"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// Order converts the receipt into an unsaved order paid by payerID.
// A missing subtotal is summed from the items and a missing total is
// derived from the fee fields.
func (r *ParsedReceipt) Order(payerID string) *models.Order {
	order := &models.Order{
		Restaurant:   r.Restaurant,
		Subtotal:     r.Subtotal,
		Tax:          r.Tax,
		DeliveryFee:  r.DeliveryFee,
		Tip:          r.Tip,
		Discount:     r.Discount.Abs(),
		Total:        r.Total,
		PaidByUserID: payerID,
	}
	if order.Restaurant == "" {
		order.Restaurant = "Unknown"
	}

	lines := decimal.Zero
	for _, it := range r.Items {
		item := models.Item{Name: it.Name, Price: it.Price, Quantity: it.Quantity}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		lines = lines.Add(item.LineTotal())
		order.Items = append(order.Items, item)
	}

	if order.Subtotal.IsZero() {
		order.Subtotal = lines
	}
	if order.Total.IsZero() {
		order.Total = order.Subtotal.Add(order.Tax).Add(order.DeliveryFee).Add(order.Tip).Sub(order.Discount)
	}
	return order
}
