package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema mirrors the SQLite schema with native Postgres types.
// Money is NUMERIC so no precision is lost on the way in or out.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT NOT NULL,
    whatsapp_number TEXT NOT NULL DEFAULT '',
    payment_handle TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    restaurant TEXT NOT NULL,
    total NUMERIC NOT NULL,
    subtotal NUMERIC NOT NULL DEFAULT 0,
    tax NUMERIC NOT NULL DEFAULT 0,
    delivery_fee NUMERIC NOT NULL DEFAULT 0,
    tip NUMERIC NOT NULL DEFAULT 0,
    discount NUMERIC NOT NULL DEFAULT 0,
    date TIMESTAMPTZ NOT NULL,
    paid_by_user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
    image_url TEXT NOT NULL DEFAULT '',
    ocr_raw_text TEXT NOT NULL DEFAULT '',
    parsed_data TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    price NUMERIC NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 1,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS splits (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    item_ids TEXT[] NOT NULL DEFAULT '{}',
    amount_owed NUMERIC(12, 2) NOT NULL,
    paid BOOLEAN NOT NULL DEFAULT FALSE,
    reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
    reminder_sent_at TIMESTAMPTZ,
    delivery_receipt_id TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_order_id ON items(order_id);
CREATE INDEX IF NOT EXISTS idx_orders_paid_by ON orders(paid_by_user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_splits_order_user ON splits(order_id, user_id);
`

// runMigrations executes the schema setup. Without arguments pgx uses the
// simple protocol, which accepts several statements at once.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
