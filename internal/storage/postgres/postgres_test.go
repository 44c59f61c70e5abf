package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

// newTestStore connects to TEST_DATABASE_URL and empties every table.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.pool.Exec(ctx, `TRUNCATE splits, items, orders, users`)
	require.NoError(t, err)
	return store
}

func TestPostgresStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := &models.User{Name: "Alice", Phone: "+15550001"}
	bob := &models.User{Name: "Bob", Phone: "+15550002", WhatsAppNumber: "+4477"}
	require.NoError(t, store.CreateUser(ctx, alice))
	require.NoError(t, store.CreateUser(ctx, bob))

	_, err := store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	order := &models.Order{
		Restaurant:   "Thai Palace",
		Total:        decimal.RequireFromString("33.50"),
		Subtotal:     decimal.RequireFromString("30.00"),
		Tax:          decimal.RequireFromString("2.50"),
		Tip:          decimal.RequireFromString("1.00"),
		PaidByUserID: alice.ID,
		Date:         time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC),
		Items: []models.Item{
			{Name: "Pad Thai", Price: decimal.RequireFromString("12.00")},
			{Name: "Spring Rolls", Price: decimal.RequireFromString("6.00"), Quantity: 3},
		},
	}
	require.NoError(t, store.CreateOrder(ctx, order))

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thai Palace", got.Restaurant)
	assert.True(t, got.Total.Equal(order.Total), "total %s", got.Total)
	assert.True(t, got.Date.Equal(order.Date))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Pad Thai", got.Items[0].Name)
	assert.Equal(t, 3, got.Items[1].Quantity)

	items, err := store.GetItemsByIDs(ctx, []string{order.Items[1].ID, "gone"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Spring Rolls", items[0].Name)

	split := &models.Split{
		OrderID:    order.ID,
		UserID:     bob.ID,
		ItemIDs:    []string{order.Items[0].ID},
		AmountOwed: decimal.RequireFromString("13.40"),
	}
	require.NoError(t, store.CreateSplit(ctx, split))

	err = store.CreateSplit(ctx, &models.Split{OrderID: order.ID, UserID: bob.ID, AmountOwed: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, storage.ErrConflict)

	err = store.CreateSplit(ctx, &models.Split{OrderID: order.ID, UserID: "ghost", AmountOwed: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	sentAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sent := true
	receipt := "SM123"
	updated, err := store.UpdateSplit(ctx, split.ID, models.SplitUpdate{
		ReminderSent:      &sent,
		ReminderSentAt:    &sentAt,
		DeliveryReceiptID: &receipt,
	})
	require.NoError(t, err)
	assert.True(t, updated.ReminderSent)
	assert.Equal(t, "SM123", updated.DeliveryReceiptID)
	require.NotNil(t, updated.ReminderSentAt)
	assert.True(t, updated.ReminderSentAt.Equal(sentAt))
	assert.Equal(t, []string{order.Items[0].ID}, updated.ItemIDs)
	assert.True(t, updated.AmountOwed.Equal(split.AmountOwed))

	err = store.RunInTx(ctx, func(q storage.Queries) error {
		require.NoError(t, q.LockOrder(ctx, order.ID))
		n, err := q.DeleteSplits(ctx, order.ID)
		assert.EqualValues(t, 1, n)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteOrder(ctx, order.ID))
	assert.ErrorIs(t, store.LockOrder(ctx, order.ID), storage.ErrNotFound)
}
