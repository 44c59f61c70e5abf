// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/MJ-02/BillSplitter/internal/models"
)

var (
	// ErrNotFound is wrapped by every lookup that matches no row.
	ErrNotFound = errors.New("not found")

	// ErrConflict is wrapped when a write violates a uniqueness constraint,
	// e.g. a second split for the same user on one order.
	ErrConflict = errors.New("conflict")
)

// Queries is the set of operations available both on the store itself and
// inside a transaction started by Store.RunInTx.
type Queries interface {
	// CreateUser persists a new user. ID and CreatedAt are filled in when empty.
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID string) error

	// CreateOrder persists an order together with its items.
	// IDs, Date and item quantities are defaulted when unset.
	CreateOrder(ctx context.Context, order *models.Order) error

	// GetOrder retrieves an order including its items.
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error

	// LockOrder verifies the order exists and, where the backend supports
	// it, holds a row lock on it until the surrounding transaction ends.
	LockOrder(ctx context.Context, orderID string) error

	ListItems(ctx context.Context, orderID string) ([]models.Item, error)

	// GetItemsByIDs returns the items that exist among ids, in no
	// particular order. Unknown IDs are omitted.
	GetItemsByIDs(ctx context.Context, ids []string) ([]models.Item, error)

	// CreateSplit persists a new split. ID and CreatedAt are filled in when empty.
	CreateSplit(ctx context.Context, split *models.Split) error
	GetSplit(ctx context.Context, splitID string) (*models.Split, error)
	ListSplits(ctx context.Context, orderID string) ([]*models.Split, error)

	// UpdateSplit applies the non-nil fields of update and returns the new row.
	UpdateSplit(ctx context.Context, splitID string, update models.SplitUpdate) (*models.Split, error)
	DeleteSplit(ctx context.Context, splitID string) error

	// DeleteSplits removes every split of an order and reports how many rows went.
	DeleteSplits(ctx context.Context, orderID string) (int64, error)
}

// Store defines the interface for bill-splitting storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	Queries

	// RunInTx runs fn inside a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise, so none of fn's writes
	// are visible unless all of them are.
	RunInTx(ctx context.Context, fn func(q Queries) error) error

	// Close releases any resources held by the store.
	Close() error
}
