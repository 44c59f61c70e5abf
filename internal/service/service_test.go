package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/storage/sqlite"
)

// fixture is a small dinner: Alice paid for a pizza and a salad.
type fixture struct {
	store *sqlite.SQLiteStore
	alice *models.User // payer
	bob   *models.User
	cara  *models.User
	order *models.Order
	pizza string // 20.00
	salad string // 10.00
}

// setupTestStore creates a SQLite store in a temp dir.
func setupTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := setupTestStore(t)

	f := &fixture{store: store}
	f.alice = &models.User{Name: "Alice", Phone: "+15550001", PaymentHandle: "@alice"}
	f.bob = &models.User{Name: "Bob", Phone: "+15550002", WhatsAppNumber: "+447700900002"}
	f.cara = &models.User{Name: "Cara", Phone: "+15550003"}
	for _, u := range []*models.User{f.alice, f.bob, f.cara} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	f.order = &models.Order{
		Restaurant:   "Pizza Place",
		Subtotal:     decimal.RequireFromString("30.00"),
		Tax:          decimal.RequireFromString("3.00"),
		Total:        decimal.RequireFromString("33.00"),
		PaidByUserID: f.alice.ID,
		Items: []models.Item{
			{Name: "Pizza", Price: decimal.RequireFromString("20.00")},
			{Name: "Salad", Price: decimal.RequireFromString("10.00")},
		},
	}
	if err := store.CreateOrder(ctx, f.order); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	f.pizza = f.order.Items[0].ID
	f.salad = f.order.Items[1].ID
	return f
}

func byUser(splits []*models.Split) map[string]*models.Split {
	out := make(map[string]*models.Split, len(splits))
	for _, s := range splits {
		out[s.UserID] = s
	}
	return out
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected %s, got %s", want, got)
	}
}
