package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MJ-02/BillSplitter/internal/messaging"
	"github.com/MJ-02/BillSplitter/internal/metrics"
	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

// ReminderOutcome is the delivery result for one split.
type ReminderOutcome struct {
	SplitID string `json:"split_id"`
	UserID  string `json:"user_id"`
	messaging.Result
}

// BulkReminderResult summarizes one RemindAll run.
type BulkReminderResult struct {
	Attempted int               `json:"attempted"`
	Sent      int               `json:"sent"`
	Failed    int               `json:"failed"`
	Results   []ReminderOutcome `json:"results"`
}

// ReminderService tells people what they owe. No lock is held while
// messages are in flight.
type ReminderService struct {
	store  storage.Store
	sender messaging.Sender
	now    func() time.Time
}

func NewReminderService(store storage.Store, sender messaging.Sender) *ReminderService {
	return &ReminderService{store: store, sender: sender, now: time.Now}
}

// Remind sends a reminder for one split. A sent reminder is recorded on the
// split; any other outcome leaves it untouched.
func (s *ReminderService) Remind(ctx context.Context, splitID string) (*ReminderOutcome, error) {
	split, err := s.store.GetSplit(ctx, splitID)
	if err != nil {
		return nil, notFound(err, ErrSplitNotFound, splitID)
	}
	user, err := s.store.GetUser(ctx, split.UserID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound, split.UserID)
	}
	order, err := s.store.GetOrder(ctx, split.OrderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound, split.OrderID)
	}
	payer, err := s.payer(ctx, order)
	if err != nil {
		return nil, err
	}
	itemNames, err := s.itemNames(ctx, split)
	if err != nil {
		return nil, err
	}

	result := s.sender.Send(ctx, buildReminder(user, payer, order, split, itemNames))
	metrics.Reminders.WithLabelValues(string(result.Outcome)).Inc()

	outcome := &ReminderOutcome{SplitID: split.ID, UserID: split.UserID, Result: result}
	if result.Outcome != messaging.OutcomeSent {
		slog.Warn("Reminder not delivered", "split_id", split.ID, "outcome", result.Outcome, "error", result.Error)
		return outcome, nil
	}

	if err := s.recordDelivery(ctx, split.ID, result); err != nil {
		return outcome, err
	}
	slog.Info("Reminder sent", "split_id", split.ID, "recipient", result.Recipient)
	return outcome, nil
}

// RemindAll sends one batch of reminders covering every unpaid split of an
// order. Each contact number gets at most one message.
func (s *ReminderService) RemindAll(ctx context.Context, orderID string) (*BulkReminderResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound, orderID)
	}
	payer, err := s.payer(ctx, order)
	if err != nil {
		return nil, err
	}
	splits, err := s.store.ListSplits(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var reminders []messaging.Reminder
	byRecipient := make(map[string]*models.Split)
	for _, split := range splits {
		if split.Paid {
			continue
		}
		user, err := s.store.GetUser(ctx, split.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				slog.Debug("Skipping reminder for unknown user", "split_id", split.ID, "user_id", split.UserID)
				continue
			}
			return nil, err
		}

		contact := user.ContactNumber()
		if prev, dup := byRecipient[contact]; dup {
			slog.Warn("Skipping duplicate reminder recipient",
				"split_id", split.ID, "kept_split_id", prev.ID, "recipient", contact)
			continue
		}

		itemNames, err := s.itemNames(ctx, split)
		if err != nil {
			return nil, err
		}
		byRecipient[contact] = split
		reminders = append(reminders, buildReminder(user, payer, order, split, itemNames))
	}

	bulk := &BulkReminderResult{Results: []ReminderOutcome{}}
	if len(reminders) == 0 {
		slog.Info("No unpaid splits to remind", "order_id", orderID)
		return bulk, nil
	}

	results := s.sender.SendBatch(ctx, reminders)
	for _, result := range results {
		metrics.Reminders.WithLabelValues(string(result.Outcome)).Inc()
		bulk.Attempted++

		split := byRecipient[result.Recipient]
		outcome := ReminderOutcome{Result: result}
		if split != nil {
			outcome.SplitID = split.ID
			outcome.UserID = split.UserID
		}

		if result.Outcome != messaging.OutcomeSent {
			bulk.Failed++
			bulk.Results = append(bulk.Results, outcome)
			continue
		}
		bulk.Sent++
		if split == nil {
			slog.Warn("Delivery result matches no split", "order_id", orderID, "recipient", result.Recipient)
		} else if err := s.recordDelivery(ctx, split.ID, result); err != nil {
			slog.Error("Failed to record reminder delivery", "split_id", split.ID, "error", err)
		}
		bulk.Results = append(bulk.Results, outcome)
	}

	slog.Info("Reminders dispatched", "order_id", orderID,
		"attempted", bulk.Attempted, "sent", bulk.Sent, "failed", bulk.Failed)
	return bulk, nil
}

func (s *ReminderService) payer(ctx context.Context, order *models.Order) (*models.User, error) {
	if order.PaidByUserID == "" {
		return nil, fmt.Errorf("%w: order %s has no payer", ErrPayerNotFound, order.ID)
	}
	payer, err := s.store.GetUser(ctx, order.PaidByUserID)
	if err != nil {
		return nil, notFound(err, ErrPayerNotFound, order.PaidByUserID)
	}
	return payer, nil
}

// itemNames resolves the item names of a split; items deleted since the
// split was made are left out.
func (s *ReminderService) itemNames(ctx context.Context, split *models.Split) ([]string, error) {
	items, err := s.store.GetItemsByIDs(ctx, split.ItemIDs)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return names, nil
}

func (s *ReminderService) recordDelivery(ctx context.Context, splitID string, result messaging.Result) error {
	sent := true
	sentAt := result.SentAt
	if sentAt.IsZero() {
		sentAt = s.now().UTC()
	}
	receipt := result.DeliveryReceiptID

	_, err := s.store.UpdateSplit(ctx, splitID, models.SplitUpdate{
		ReminderSent:      &sent,
		ReminderSentAt:    &sentAt,
		DeliveryReceiptID: &receipt,
	})
	if err != nil {
		return fmt.Errorf("failed to record reminder delivery: %w", err)
	}
	return nil
}

func buildReminder(user, payer *models.User, order *models.Order, split *models.Split, items []string) messaging.Reminder {
	return messaging.Reminder{
		Recipient:     user.ContactNumber(),
		RecipientName: user.Name,
		PayerName:     payer.Name,
		Restaurant:    order.Restaurant,
		Amount:        split.AmountOwed,
		Items:         items,
		PaymentMethod: payer.PaymentHandle,
	}
}
