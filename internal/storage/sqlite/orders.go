package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

const orderColumns = `id, restaurant, total, subtotal, tax, delivery_fee, tip, discount,
	date, paid_by_user_id, image_url, ocr_raw_text, parsed_data`

// CreateOrder persists a new order and its items in one transaction.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.RunInTx(ctx, func(q storage.Queries) error {
		return q.CreateOrder(ctx, order)
	})
}

// CreateOrder inserts the order row followed by its items.
func (q *queries) CreateOrder(ctx context.Context, order *models.Order) error {
	// Generate IDs if not set
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Date.IsZero() {
		order.Date = time.Now().UTC().Truncate(time.Second)
	}

	var payer any
	if order.PaidByUserID != "" {
		payer = order.PaidByUserID
	}

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Restaurant, order.Total, order.Subtotal, order.Tax,
		order.DeliveryFee, order.Tip, order.Discount, order.Date.Unix(), payer,
		order.ImageURL, order.OCRRawText, order.ParsedData,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order %s already exists: %w", order.ID, storage.ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("payer %s: %w", order.PaidByUserID, storage.ErrNotFound)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		item.OrderID = order.ID

		_, err = q.db.ExecContext(ctx,
			"INSERT INTO items (id, order_id, name, price, quantity, position) VALUES (?, ?, ?, ?, ?, ?)",
			item.ID, order.ID, item.Name, item.Price, item.Quantity, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	return nil
}

// GetOrder retrieves an order by ID, including all items.
func (q *queries) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := scanOrder(q.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`,
		orderID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	order.Items, err = q.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns orders newest first, with their items.
func (q *queries) ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY date DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	// Items are loaded after the order cursor is closed: the store runs on a
	// single connection.
	for _, order := range orders {
		order.Items, err = q.ListItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// DeleteOrder removes an order along with its items and splits.
func (q *queries) DeleteOrder(ctx context.Context, orderID string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return expectAffected(res, "order", orderID)
}

// LockOrder checks that the order exists. SQLite has no row locks; the
// surrounding transaction already holds the database's only writer slot
// once it writes.
func (q *queries) LockOrder(ctx context.Context, orderID string) error {
	var exists int
	err := q.db.QueryRowContext(ctx, "SELECT 1 FROM orders WHERE id = ?", orderID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %s: %w", orderID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check order existence: %w", err)
	}
	return nil
}

// ListItems returns an order's items in receipt order.
func (q *queries) ListItems(ctx context.Context, orderID string) ([]models.Item, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, order_id, name, price, quantity FROM items WHERE order_id = ? ORDER BY position, id",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// GetItemsByIDs returns the items that still exist among ids.
func (q *queries) GetItemsByIDs(ctx context.Context, ids []string) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, order_id, name, price, quantity FROM items
		WHERE id IN (?` + repeatPlaceholder(len(ids)-1) + `) ORDER BY position, id`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by IDs: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]models.Item, error) {
	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var date int64
	var payer sql.NullString
	err := row.Scan(
		&order.ID, &order.Restaurant, &order.Total, &order.Subtotal, &order.Tax,
		&order.DeliveryFee, &order.Tip, &order.Discount, &date, &payer,
		&order.ImageURL, &order.OCRRawText, &order.ParsedData,
	)
	if err != nil {
		return nil, err
	}
	order.Date = time.Unix(date, 0).UTC()
	if payer.Valid {
		order.PaidByUserID = payer.String
	}
	return order, nil
}
