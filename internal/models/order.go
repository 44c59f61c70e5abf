package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents one restaurant bill paid by a single user on behalf of a
// group. Fee fields that were absent on the receipt are zero.
//
// Callers assume Total ≈ Subtotal + Tax + DeliveryFee + Tip - Discount;
// nothing here enforces it.
type Order struct {
	// ID is the unique identifier for the order (UUID format).
	ID string `json:"id"`

	// Restaurant is the merchant name printed on the receipt.
	Restaurant string `json:"restaurant"`

	Total       decimal.Decimal `json:"total"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Tip         decimal.Decimal `json:"tip"`
	Discount    decimal.Decimal `json:"discount"`

	// PaidByUserID is the user who paid the whole bill.
	PaidByUserID string `json:"paid_by_user_id"`

	// Date is when the order was placed (defaults to creation time).
	Date time.Time `json:"date"`

	// ImageURL points at the stored receipt image, if any.
	ImageURL string `json:"image_url,omitempty"`

	// OCRRawText is the raw receipt text the order was parsed from.
	OCRRawText string `json:"ocr_raw_text,omitempty"`

	// ParsedData is the structured receipt as JSON, kept for auditing.
	ParsedData string `json:"parsed_data,omitempty"`

	// Items are the line items on the order.
	Items []Item `json:"items"`
}

// Item represents a single line on an order.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string `json:"id"`

	// OrderID is the order this item belongs to.
	OrderID string `json:"order_id"`

	// Name is the item name as printed (e.g. "Pad Thai").
	Name string `json:"name"`

	// Price is the unit price.
	Price decimal.Decimal `json:"price"`

	// Quantity is the number of units, at least 1.
	Quantity int `json:"quantity"`
}

// LineTotal returns Price × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
