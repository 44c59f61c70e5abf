package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

const splitColumns = `id, order_id, user_id, item_ids, amount_owed, paid,
	reminder_sent, reminder_sent_at, delivery_receipt_id, created_at`

// CreateSplit persists a new split to the database.
func (q *queries) CreateSplit(ctx context.Context, split *models.Split) error {
	// Generate ID if not set
	if split.ID == "" {
		split.ID = uuid.New().String()
	}
	if split.CreatedAt == 0 {
		split.CreatedAt = time.Now().Unix()
	}
	if split.ItemIDs == nil {
		split.ItemIDs = []string{}
	}

	itemIDs, err := json.Marshal(split.ItemIDs)
	if err != nil {
		return fmt.Errorf("failed to encode item ids: %w", err)
	}

	var sentAt any
	if split.ReminderSentAt != nil {
		sentAt = split.ReminderSentAt.Unix()
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO splits (`+splitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		split.ID, split.OrderID, split.UserID, string(itemIDs), split.AmountOwed,
		boolToInt(split.Paid), boolToInt(split.ReminderSent), sentAt,
		split.DeliveryReceiptID, split.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("split for user %s on order %s: %w", split.UserID, split.OrderID, storage.ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("order %s or user %s: %w", split.OrderID, split.UserID, storage.ErrNotFound)
		}
		return fmt.Errorf("failed to insert split: %w", err)
	}

	return nil
}

// GetSplit retrieves a split by ID.
func (q *queries) GetSplit(ctx context.Context, splitID string) (*models.Split, error) {
	split, err := scanSplit(q.db.QueryRowContext(ctx,
		`SELECT `+splitColumns+` FROM splits WHERE id = ?`,
		splitID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("split %s: %w", splitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	return split, nil
}

// ListSplits retrieves all splits for an order.
func (q *queries) ListSplits(ctx context.Context, orderID string) ([]*models.Split, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+splitColumns+` FROM splits WHERE order_id = ? ORDER BY created_at, user_id`,
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
	if update.Paid != nil {
		sets = append(sets, "paid = ?")
		args = append(args, boolToInt(*update.Paid))
	}
	if update.ReminderSent != nil {
		sets = append(sets, "reminder_sent = ?")
		args = append(args, boolToInt(*update.ReminderSent))
	}
	if update.ReminderSentAt != nil {
		sets = append(sets, "reminder_sent_at = ?")
		args = append(args, update.ReminderSentAt.Unix())
	}
	if update.DeliveryReceiptID != nil {
		sets = append(sets, "delivery_receipt_id = ?")
		args = append(args, *update.DeliveryReceiptID)
	}

	if len(sets) > 0 {
		args = append(args, splitID)
		res, err := q.db.ExecContext(ctx,
			"UPDATE splits SET "+strings.Join(sets, ", ")+" WHERE id = ?",
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update split: %w", err)
		}
		if err := expectAffected(res, "split", splitID); err != nil {
			return nil, err
		}
	}

	return q.GetSplit(ctx, splitID)
}

// DeleteSplit removes a split by ID.
func (q *queries) DeleteSplit(ctx context.Context, splitID string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM splits WHERE id = ?", splitID)
	if err != nil {
		return fmt.Errorf("failed to delete split: %w", err)
	}
	return expectAffected(res, "split", splitID)
}

// DeleteSplits removes every split of an order.
func (q *queries) DeleteSplits(ctx context.Context, orderID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, "DELETE FROM splits WHERE order_id = ?", orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete splits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func scanSplit(row rowScanner) (*models.Split, error) {
	split := &models.Split{}
	var itemIDs string
	var paid, reminderSent int
	var sentAt sql.NullInt64

	err := row.Scan(
		&split.ID, &split.OrderID, &split.UserID, &itemIDs, &split.AmountOwed,
		&paid, &reminderSent, &sentAt, &split.DeliveryReceiptID, &split.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(itemIDs), &split.ItemIDs); err != nil {
		return nil, fmt.Errorf("failed to decode item ids: %w", err)
	}
	split.Paid = paid != 0
	split.ReminderSent = reminderSent != 0
	if sentAt.Valid {
		t := time.Unix(sentAt.Int64, 0).UTC()
		split.ReminderSentAt = &t
	}

	return split, nil
}
