// Package calculator turns item assignments into per-user amounts owed.
// Everything here is pure: no I/O, no shared state.
package calculator

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrNoValidAssignments is returned when no assignment names an existing item
// together with at least one user.
var ErrNoValidAssignments = errors.New("no valid assignments provided")

// Fees holds the order-level charges shared proportionally among users.
// A zero value means the charge was absent.
type Fees struct {
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Tip         decimal.Decimal
	Discount    decimal.Decimal
}

// Net returns tax + delivery fee + tip - discount. It may be negative.
func (f Fees) Net() decimal.Decimal {
	return f.Tax.Add(f.DeliveryFee).Add(f.Tip).Sub(f.Discount)
}

// LineItem is the priced part of an order item.
type LineItem struct {
	Price    decimal.Decimal
	Quantity int
}

// Total returns Price × Quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Assignment maps one item to the users sharing it.
type Assignment struct {
	ItemID  string   `json:"item_id" validate:"required"`
	UserIDs []string `json:"user_ids"`
}

// UserShare is one user's part of an order.
type UserShare struct {
	// Subtotal is the sum of this user's item shares, unrounded.
	Subtotal decimal.Decimal

	// Fee is this user's proportional part of the net fees, unrounded.
	Fee decimal.Decimal

	// AmountOwed is Subtotal + Fee rounded to cents.
	AmountOwed decimal.Decimal

	// ItemIDs lists the contributing items in first-seen order, without duplicates.
	ItemIDs []string
}

// Allocation maps user ID to that user's share.
type Allocation map[string]*UserShare

// UserIDs returns the users in the allocation, sorted.
func (a Allocation) UserIDs() []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Total returns the sum of the rounded amounts owed.
func (a Allocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, share := range a {
		total = total.Add(share.AmountOwed)
	}
	return total
}

// Allocate computes how much each assigned user owes.
//
// Each item's line total is divided evenly among its users. Net fees are then
// spread in proportion to each user's subtotal:
//
//	amount_owed = round(subtotal + fees × subtotal / total_subtotal, 2)
//
// Assignments naming a missing item or no users are ignored. Each user is
// rounded half away from zero independently, so the rounded amounts may
// differ from the exact total by up to half a cent per user.
func Allocate(fees Fees, items map[string]LineItem, assignments []Assignment) (Allocation, error) {
	alloc := make(Allocation)

	for _, assignment := range assignments {
		item, ok := items[assignment.ItemID]
		if !ok {
			continue
		}
		users := distinct(assignment.UserIDs)
		if len(users) == 0 {
			continue
		}

		share := item.Total().Div(decimal.NewFromInt(int64(len(users))))
		for _, userID := range users {
			us, exists := alloc[userID]
			if !exists {
				us = &UserShare{}
				alloc[userID] = us
			}
			us.Subtotal = us.Subtotal.Add(share)
			if !containsID(us.ItemIDs, assignment.ItemID) {
				us.ItemIDs = append(us.ItemIDs, assignment.ItemID)
			}
		}
	}

	if len(alloc) == 0 {
		return nil, ErrNoValidAssignments
	}

	net := fees.Net()
	totalSubtotal := decimal.Zero
	for _, us := range alloc {
		totalSubtotal = totalSubtotal.Add(us.Subtotal)
	}

	for _, us := range alloc {
		// All assigned items may be free; nothing to weigh the fees by then.
		if totalSubtotal.IsPositive() {
			us.Fee = net.Mul(us.Subtotal).Div(totalSubtotal)
		} else {
			us.Fee = decimal.Zero
		}
		us.AmountOwed = us.Subtotal.Add(us.Fee).Round(2)
	}

	return alloc, nil
}

// distinct drops empty and repeated IDs, keeping first-seen order.
func distinct(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
