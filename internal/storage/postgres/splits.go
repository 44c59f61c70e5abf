package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MJ-02/BillSplitter/internal/models"
)

const splitColumns = `id, order_id, user_id, item_ids, amount_owed::text, paid,
	reminder_sent, reminder_sent_at, delivery_receipt_id, created_at`

// CreateSplit persists a new split to the database.
func (q *queries) CreateSplit(ctx context.Context, split *models.Split) error {
	if split.ID == "" {
		split.ID = uuid.New().String()
	}
	if split.CreatedAt == 0 {
		split.CreatedAt = time.Now().Unix()
	}
	if split.ItemIDs == nil {
		split.ItemIDs = []string{}
	}

	_, err := q.db.Exec(ctx,
		`INSERT INTO splits (id, order_id, user_id, item_ids, amount_owed, paid,
			reminder_sent, reminder_sent_at, delivery_receipt_id, created_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10)`,
		split.ID, split.OrderID, split.UserID, split.ItemIDs, split.AmountOwed.String(),
		split.Paid, split.ReminderSent, split.ReminderSentAt, split.DeliveryReceiptID, split.CreatedAt,
	)
	if err != nil {
		return classify(err, "insert split",
			fmt.Sprintf("split for user %s on order %s", split.UserID, split.OrderID))
	}
	return nil
}

// GetSplit retrieves a split by ID.
func (q *queries) GetSplit(ctx context.Context, splitID string) (*models.Split, error) {
	split, err := scanSplit(q.db.QueryRow(ctx,
		`SELECT `+splitColumns+` FROM splits WHERE id = $1`, splitID,
	))
	if err != nil {
		return nil, notFound(err, "get split", "split", splitID)
	}
	return split, nil
}

// ListSplits retrieves all splits for an order.
func (q *queries) ListSplits(ctx context.Context, orderID string) ([]*models.Split, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+splitColumns+` FROM splits WHERE order_id = $1 ORDER BY created_at, user_id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits by order: %w", err)
	}
	defer rows.Close()

	splits := []*models.Split{}
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

// UpdateSplit applies the set fields of update to one split.
func (q *queries) UpdateSplit(ctx context.Context, splitID string, update models.SplitUpdate) (*models.Split, error) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Paid != nil {
		add("paid", *update.Paid)
	}
	if update.ReminderSent != nil {
		add("reminder_sent", *update.ReminderSent)
	}
	if update.ReminderSentAt != nil {
		add("reminder_sent_at", *update.ReminderSentAt)
	}
	if update.DeliveryReceiptID != nil {
		add("delivery_receipt_id", *update.DeliveryReceiptID)
	}

	if len(sets) > 0 {
		args = append(args, splitID)
		tag, err := q.db.Exec(ctx,
			fmt.Sprintf("UPDATE splits SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)),
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update split: %w", err)
		}
		if err := expectAffected(tag, "split", splitID); err != nil {
			return nil, err
		}
	}

	return q.GetSplit(ctx, splitID)
}

// DeleteSplit removes a split by ID.
func (q *queries) DeleteSplit(ctx context.Context, splitID string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM splits WHERE id = $1`, splitID)
	if err != nil {
		return fmt.Errorf("failed to delete split: %w", err)
	}
	return expectAffected(tag, "split", splitID)
}

// DeleteSplits removes every split of an order.
func (q *queries) DeleteSplits(ctx context.Context, orderID string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM splits WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete splits: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSplit(row rowScanner) (*models.Split, error) {
	split := &models.Split{}
	amount := money{dst: &split.AmountOwed}
	var sentAt *time.Time

	err := row.Scan(
		&split.ID, &split.OrderID, &split.UserID, &split.ItemIDs, &amount.raw, &split.Paid,
		&split.ReminderSent, &sentAt, &split.DeliveryReceiptID, &split.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := amount.parse(); err != nil {
		return nil, err
	}
	if split.ItemIDs == nil {
		split.ItemIDs = []string{}
	}
	if sentAt != nil {
		t := sentAt.UTC()
		split.ReminderSentAt = &t
	}
	return split, nil
}
