package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

const orderColumns = `id, restaurant, total::text, subtotal::text, tax::text, delivery_fee::text,
	tip::text, discount::text, date, paid_by_user_id, image_url, ocr_raw_text, parsed_data`

const itemColumns = `id, order_id, name, price::text, quantity`

// CreateOrder persists a new order and its items in one transaction.
func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.RunInTx(ctx, func(q storage.Queries) error {
		return q.CreateOrder(ctx, order)
	})
}

// CreateOrder inserts the order row followed by its items.
func (q *queries) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Date.IsZero() {
		order.Date = time.Now().UTC().Truncate(time.Second)
	}

	var payer *string
	if order.PaidByUserID != "" {
		payer = &order.PaidByUserID
	}

	_, err := q.db.Exec(ctx,
		`INSERT INTO orders (id, restaurant, total, subtotal, tax, delivery_fee, tip, discount,
			date, paid_by_user_id, image_url, ocr_raw_text, parsed_data)
		VALUES ($1, $2, $3::text::numeric, $4::text::numeric, $5::text::numeric, $6::text::numeric,
			$7::text::numeric, $8::text::numeric, $9, $10, $11, $12, $13)`,
		order.ID, order.Restaurant, order.Total.String(), order.Subtotal.String(), order.Tax.String(),
		order.DeliveryFee.String(), order.Tip.String(), order.Discount.String(),
		order.Date, payer, order.ImageURL, order.OCRRawText, order.ParsedData,
	)
	if err != nil {
		return classify(err, "insert order", "order "+order.ID)
	}

	// Items go out in one round trip
	batch := &pgx.Batch{}
	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		item.OrderID = order.ID
		batch.Queue(
			`INSERT INTO items (id, order_id, name, price, quantity, position)
			VALUES ($1, $2, $3, $4::text::numeric, $5, $6)`,
			item.ID, order.ID, item.Name, item.Price.String(), item.Quantity, i,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := q.db.SendBatch(ctx, batch).Close(); err != nil {
		return classify(err, "insert item", "item")
	}
	return nil
}

// GetOrder retrieves an order by ID, including all items.
func (q *queries) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := scanOrder(q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID,
	))
	if err != nil {
		return nil, notFound(err, "get order", "order", orderID)
	}

	order.Items, err = q.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns orders newest first, with their items.
func (q *queries) ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY date DESC, id LIMIT $1 OFFSET $2`,
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
	tag, err := q.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return expectAffected(tag, "order", orderID)
}

// LockOrder takes a row lock on the order until the transaction ends, so
// concurrent reconciliations of one order run one after another.
func (q *queries) LockOrder(ctx context.Context, orderID string) error {
	var id string
	err := q.db.QueryRow(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&id)
	if err != nil {
		return notFound(err, "lock order", "order", orderID)
	}
	return nil
}

// ListItems returns an order's items in receipt order.
func (q *queries) ListItems(ctx context.Context, orderID string) ([]models.Item, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE order_id = $1 ORDER BY position, id`, orderID,
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
	rows, err := q.db.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ANY($1) ORDER BY position, id`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by IDs: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanItems(rows pgx.Rows) ([]models.Item, error) {
	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		price := money{dst: &item.Price}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Name, &price.raw, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if err := price.parse(); err != nil {
			return nil, err
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
	var payer *string
	total := money{dst: &order.Total}
	subtotal := money{dst: &order.Subtotal}
	tax := money{dst: &order.Tax}
	delivery := money{dst: &order.DeliveryFee}
	tip := money{dst: &order.Tip}
	discount := money{dst: &order.Discount}

	err := row.Scan(
		&order.ID, &order.Restaurant, &total.raw, &subtotal.raw, &tax.raw, &delivery.raw,
		&tip.raw, &discount.raw, &order.Date, &payer, &order.ImageURL, &order.OCRRawText,
		&order.ParsedData,
	)
	if err != nil {
		return nil, err
	}
	if err := parseMoney(&total, &subtotal, &tax, &delivery, &tip, &discount); err != nil {
		return nil, err
	}
	order.Date = order.Date.UTC()
	if payer != nil {
		order.PaidByUserID = *payer
	}
	return order, nil
}
