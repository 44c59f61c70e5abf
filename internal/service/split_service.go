package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/MJ-02/BillSplitter/internal/calculator"
	"github.com/MJ-02/BillSplitter/internal/metrics"
	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

// SplitService reconciles and maintains the splits of an order.
type SplitService struct {
	store      storage.Store
	orderLocks *keyedMutex
}

// NewSplitService creates a new SplitService with the given storage backend.
func NewSplitService(store storage.Store) *SplitService {
	return &SplitService{store: store, orderLocks: newKeyedMutex()}
}

// Reconcile recomputes the splits of an order from item assignments and
// replaces the stored set. When no assignment is usable nothing is written
// and ErrNoValidAssignments is returned.
func (s *SplitService) Reconcile(ctx context.Context, orderID string, assignments []calculator.Assignment) ([]*models.Split, error) {
	if orderID == "" {
		return nil, invalidf("order_id is required")
	}

	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	var splits []*models.Split
	err := s.store.RunInTx(ctx, func(q storage.Queries) error {
		if err := q.LockOrder(ctx, orderID); err != nil {
			return notFound(err, ErrOrderNotFound, orderID)
		}
		order, err := q.GetOrder(ctx, orderID)
		if err != nil {
			return notFound(err, ErrOrderNotFound, orderID)
		}

		alloc, err := calculator.Allocate(orderFees(order), lineItems(order.Items), assignments)
		if err != nil {
			return err
		}

		splits, err = replaceSplits(ctx, q, orderID, alloc)
		return err
	})
	recordReconciliation(err)
	if err != nil {
		slog.Warn("Reconcile failed", "order_id", orderID, "assignments", len(assignments), "error", err)
		return nil, err
	}

	slog.Info("Splits reconciled", "order_id", orderID, "splits", len(splits), "allocated", splitTotal(splits))
	return splits, nil
}

// ReplaceSplits atomically swaps the splits of an order for those in alloc.
// Users that no longer exist are skipped.
func (s *SplitService) ReplaceSplits(ctx context.Context, orderID string, alloc calculator.Allocation) ([]*models.Split, error) {
	if orderID == "" {
		return nil, invalidf("order_id is required")
	}

	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	var splits []*models.Split
	err := s.store.RunInTx(ctx, func(q storage.Queries) error {
		if err := q.LockOrder(ctx, orderID); err != nil {
			return notFound(err, ErrOrderNotFound, orderID)
		}
		var err error
		splits, err = replaceSplits(ctx, q, orderID, alloc)
		return err
	})
	recordReconciliation(err)
	if err != nil {
		return nil, err
	}
	return splits, nil
}

// replaceSplits deletes every split of the order and inserts one per user in
// alloc. It must run inside a transaction holding the order lock.
func replaceSplits(ctx context.Context, q storage.Queries, orderID string, alloc calculator.Allocation) ([]*models.Split, error) {
	removed, err := q.DeleteSplits(ctx, orderID)
	if err != nil {
		return nil, err
	}
	slog.Debug("Removed previous splits", "order_id", orderID, "count", removed)

	splits := make([]*models.Split, 0, len(alloc))
	for _, userID := range alloc.UserIDs() {
		if _, err := q.GetUser(ctx, userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				slog.Debug("Skipping split for unknown user", "order_id", orderID, "user_id", userID)
				continue
			}
			return nil, err
		}

		share := alloc[userID]
		split := &models.Split{
			OrderID:    orderID,
			UserID:     userID,
			ItemIDs:    share.ItemIDs,
			AmountOwed: share.AmountOwed,
		}
		if err := q.CreateSplit(ctx, split); err != nil {
			return nil, err
		}
		splits = append(splits, split)
	}
	return splits, nil
}

func recordReconciliation(err error) {
	result := metrics.ResultOK
	switch {
	case err == nil:
	case errors.Is(err, ErrNoValidAssignments):
		result = metrics.ResultNoAssignment
	case errors.Is(err, ErrOrderNotFound):
		result = metrics.ResultNotFound
	default:
		result = metrics.ResultError
	}
	metrics.Reconciliations.WithLabelValues(result).Inc()
}

// orderFees picks the shared charges off an order.
func orderFees(order *models.Order) calculator.Fees {
	return calculator.Fees{
		Tax:         order.Tax,
		DeliveryFee: order.DeliveryFee,
		Tip:         order.Tip,
		Discount:    order.Discount,
	}
}

func lineItems(items []models.Item) map[string]calculator.LineItem {
	out := make(map[string]calculator.LineItem, len(items))
	for _, item := range items {
		out[item.ID] = calculator.LineItem{Price: item.Price, Quantity: item.Quantity}
	}
	return out
}

// ListSplits returns the splits of an existing order. It is a plain read
// and never takes the order's row lock.
func (s *SplitService) ListSplits(ctx context.Context, orderID string) ([]*models.Split, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, notFound(err, ErrOrderNotFound, orderID)
	}
	return s.store.ListSplits(ctx, orderID)
}

// GetSplit retrieves one split.
func (s *SplitService) GetSplit(ctx context.Context, splitID string) (*models.Split, error) {
	split, err := s.store.GetSplit(ctx, splitID)
	if err != nil {
		return nil, notFound(err, ErrSplitNotFound, splitID)
	}
	return split, nil
}

// CreateSplit records a manually entered split. The order and user must
// exist and the user must not already have a split on the order.
func (s *SplitService) CreateSplit(ctx context.Context, split *models.Split) error {
	if split.OrderID == "" || split.UserID == "" {
		return invalidf("order_id and user_id are required")
	}
	if split.AmountOwed.IsNegative() {
		return invalidf("amount_owed must not be negative")
	}
	split.AmountOwed = split.AmountOwed.Round(2)
	split.Paid = false
	split.ReminderSent = false
	split.ReminderSentAt = nil
	split.DeliveryReceiptID = ""

	unlock := s.orderLocks.Lock(split.OrderID)
	defer unlock()

	err := s.store.RunInTx(ctx, func(q storage.Queries) error {
		if err := q.LockOrder(ctx, split.OrderID); err != nil {
			return notFound(err, ErrOrderNotFound, split.OrderID)
		}
		if _, err := q.GetUser(ctx, split.UserID); err != nil {
			return notFound(err, ErrUserNotFound, split.UserID)
		}
		return q.CreateSplit(ctx, split)
	})
	if err != nil {
		return err
	}

	slog.Info("Split created", "split_id", split.ID, "order_id", split.OrderID, "user_id", split.UserID)
	return nil
}

// MarkPaid sets or clears the paid flag of a split.
func (s *SplitService) MarkPaid(ctx context.Context, splitID string, paid bool) (*models.Split, error) {
	split, err := s.store.UpdateSplit(ctx, splitID, models.SplitUpdate{Paid: &paid})
	if err != nil {
		return nil, notFound(err, ErrSplitNotFound, splitID)
	}
	slog.Info("Split payment status changed", "split_id", splitID, "paid", paid)
	return split, nil
}

// DeleteSplit removes one split.
func (s *SplitService) DeleteSplit(ctx context.Context, splitID string) error {
	if err := s.store.DeleteSplit(ctx, splitID); err != nil {
		return notFound(err, ErrSplitNotFound, splitID)
	}
	slog.Info("Split deleted", "split_id", splitID)
	return nil
}

// Summary reports what has been paid back on an order and what is still
// outstanding.
func (s *SplitService) Summary(ctx context.Context, orderID string) (*calculator.OrderSummary, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound, orderID)
	}
	splits, err := s.store.ListSplits(ctx, orderID)
	if err != nil {
		return nil, err
	}

	in := make([]calculator.SplitForSummary, len(splits))
	for i, split := range splits {
		in[i] = calculator.SplitForSummary{UserID: split.UserID, AmountOwed: split.AmountOwed, Paid: split.Paid}
	}
	summary := calculator.SummarizeOrder(order.Total, order.PaidByUserID, in)
	return &summary, nil
}

// splitTotal sums the amounts of splits.
func splitTotal(splits []*models.Split) decimal.Decimal {
	total := decimal.Zero
	for _, split := range splits {
		total = total.Add(split.AmountOwed)
	}
	return total
}
