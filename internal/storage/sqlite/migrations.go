package sqlite

import "database/sql"

// schema sets up the database. It runs on startup so tables always exist.
// Money columns are TEXT holding exact decimal strings.
// Split item IDs are a JSON array: items may be deleted after a split is
// computed, so they carry no foreign key.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT NOT NULL,
    whatsapp_number TEXT NOT NULL DEFAULT '',
    payment_handle TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    restaurant TEXT NOT NULL,
    total TEXT NOT NULL,
    subtotal TEXT NOT NULL DEFAULT '0',
    tax TEXT NOT NULL DEFAULT '0',
    delivery_fee TEXT NOT NULL DEFAULT '0',
    tip TEXT NOT NULL DEFAULT '0',
    discount TEXT NOT NULL DEFAULT '0',
    date INTEGER NOT NULL,
    paid_by_user_id TEXT,
    image_url TEXT NOT NULL DEFAULT '',
    ocr_raw_text TEXT NOT NULL DEFAULT '',
    parsed_data TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (paid_by_user_id) REFERENCES users(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL,
    name TEXT NOT NULL,
    price TEXT NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 1,
    position INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS splits (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    item_ids TEXT NOT NULL DEFAULT '[]',
    amount_owed TEXT NOT NULL,
    paid INTEGER NOT NULL DEFAULT 0,
    reminder_sent INTEGER NOT NULL DEFAULT 0,
    reminder_sent_at INTEGER,
    delivery_receipt_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_items_order_id ON items(order_id);
CREATE INDEX IF NOT EXISTS idx_orders_paid_by ON orders(paid_by_user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_splits_order_user ON splits(order_id, user_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
