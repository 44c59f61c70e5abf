package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SplitForSummary represents a split with the minimal information needed for order summaries.
type SplitForSummary struct {
	UserID     string
	AmountOwed decimal.Decimal
	Paid       bool
}

// UserBalance is where one user stands on an order.
type UserBalance struct {
	UserID     string          `json:"user_id"`
	AmountOwed decimal.Decimal `json:"amount_owed"`
	Paid       bool            `json:"paid"`
	IsPayer    bool            `json:"is_payer"`
}

// OrderSummary aggregates the splits of one order.
type OrderSummary struct {
	Total       decimal.Decimal `json:"total"`       // Order total as printed on the receipt
	Allocated   decimal.Decimal `json:"allocated"`   // Sum of all split amounts
	Paid        decimal.Decimal `json:"paid"`        // Paid back to the payer so far
	Outstanding decimal.Decimal `json:"outstanding"` // Still owed to the payer
	Unallocated decimal.Decimal `json:"unallocated"` // Total - Allocated; rounding noise or unassigned items
	PerUser     []UserBalance   `json:"per_user"`
}

// SummarizeOrder computes paid and outstanding amounts for an order.
//
// The payer's own split counts toward Allocated but never toward Paid or
// Outstanding: nobody owes the payer for what the payer ate.
func SummarizeOrder(total decimal.Decimal, payerID string, splits []SplitForSummary) OrderSummary {
	summary := OrderSummary{
		Total:       total,
		Allocated:   decimal.Zero,
		Paid:        decimal.Zero,
		Outstanding: decimal.Zero,
	}

	for _, s := range splits {
		isPayer := s.UserID == payerID
		summary.Allocated = summary.Allocated.Add(s.AmountOwed)
		switch {
		case isPayer:
		case s.Paid:
			summary.Paid = summary.Paid.Add(s.AmountOwed)
		default:
			summary.Outstanding = summary.Outstanding.Add(s.AmountOwed)
		}
		summary.PerUser = append(summary.PerUser, UserBalance{
			UserID:     s.UserID,
			AmountOwed: s.AmountOwed,
			Paid:       s.Paid || isPayer,
			IsPayer:    isPayer,
		})
	}

	summary.Unallocated = total.Sub(summary.Allocated)

	// Largest debts first
	sort.SliceStable(summary.PerUser, func(i, j int) bool {
		return summary.PerUser[i].AmountOwed.GreaterThan(summary.PerUser[j].AmountOwed)
	})

	return summary
}
