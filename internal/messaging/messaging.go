// Package messaging delivers payment reminders to people who owe money.
//
// Delivery problems are reported per recipient as a Result, never as an
// error, so one bad number does not stop a batch.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPaymentMethod is suggested when the payer has no payment handle.
const DefaultPaymentMethod = "Venmo/Zelle/Cash"

// Outcome is the delivery status of one reminder.
type Outcome string

const (
	OutcomeSent         Outcome = "sent"
	OutcomeFailed       Outcome = "failed"
	OutcomeUnconfigured Outcome = "unconfigured"
)

// Reminder is everything needed to tell one person what they owe.
type Reminder struct {
	// Recipient is the phone number the message goes to.
	Recipient     string
	RecipientName string
	PayerName     string
	Restaurant    string
	Amount        decimal.Decimal
	Items         []string

	// PaymentMethod falls back to DefaultPaymentMethod when empty.
	PaymentMethod string
}

// Result reports what happened to one reminder.
type Result struct {
	Recipient string  `json:"recipient"`
	Outcome   Outcome `json:"outcome"`

	// DeliveryReceiptID is the provider's message id, set only when sent.
	DeliveryReceiptID string    `json:"delivery_receipt_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	SentAt            time.Time `json:"sent_at,omitzero"`
}

// Sender delivers reminders. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, reminder Reminder) Result

	// SendBatch returns one Result per reminder, in input order.
	SendBatch(ctx context.Context, reminders []Reminder) []Result
}

// FormatReminder renders the message body for r.
func FormatReminder(r Reminder) string {
	items := "your order"
	if len(r.Items) > 0 {
		items = strings.Join(r.Items, ", ")
	}
	method := r.PaymentMethod
	if method == "" {
		method = DefaultPaymentMethod
	}

	return fmt.Sprintf(
		"Hey %s! 👋\n\nYou owe %s $%s for %s.\n\nItems: %s\n\nPlease pay via %s.",
		r.RecipientName, r.PayerName, r.Amount.StringFixed(2), r.Restaurant, items, method,
	)
}
