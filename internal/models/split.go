package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Split is the persisted obligation of one user toward one order.
// Splits are derived data: reconciliation replaces the whole set for an order.
type Split struct {
	// ID is the unique identifier for the split (UUID format).
	ID string `json:"id"`

	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`

	// ItemIDs are the items that contributed to this user's amount.
	ItemIDs []string `json:"item_ids"`

	// AmountOwed is rounded to 2 decimal places.
	AmountOwed decimal.Decimal `json:"amount_owed"`

	Paid bool `json:"paid"`

	ReminderSent   bool       `json:"reminder_sent"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`

	// DeliveryReceiptID is the message id reported by the SMS provider.
	DeliveryReceiptID string `json:"delivery_receipt_id,omitempty"`

	// CreatedAt is the Unix timestamp when the split was created.
	CreatedAt int64 `json:"created_at"`
}

// SplitUpdate lists the fields of a split that may change in place.
// Nil fields are left untouched.
type SplitUpdate struct {
	Paid              *bool
	ReminderSent      *bool
	ReminderSentAt    *time.Time
	DeliveryReceiptID *string
}

// Apply copies the set fields onto s.
func (u SplitUpdate) Apply(s *Split) {
	if u.Paid != nil {
		s.Paid = *u.Paid
	}
	if u.ReminderSent != nil {
		s.ReminderSent = *u.ReminderSent
	}
	if u.ReminderSentAt != nil {
		t := *u.ReminderSentAt
		s.ReminderSentAt = &t
	}
	if u.DeliveryReceiptID != nil {
		s.DeliveryReceiptID = *u.DeliveryReceiptID
	}
}
