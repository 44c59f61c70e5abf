package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJ-02/BillSplitter/internal/calculator"
	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

func TestReconcile(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)
	ctx := context.Background()

	// Bob has the pizza, Bob and Cara share the salad:
	// Bob 20 + 5 = 25 plus 3 × 25/30 = 2.50, Cara 5 plus 0.50
	assignments := []calculator.Assignment{
		{ItemID: f.pizza, UserIDs: []string{f.bob.ID}},
		{ItemID: f.salad, UserIDs: []string{f.bob.ID, f.cara.ID}},
	}

	splits, err := svc.Reconcile(ctx, f.order.ID, assignments)
	require.NoError(t, err)
	require.Len(t, splits, 2)

	got := byUser(splits)
	assertMoney(t, "27.5", got[f.bob.ID].AmountOwed)
	assertMoney(t, "5.5", got[f.cara.ID].AmountOwed)
	assert.Equal(t, []string{f.pizza, f.salad}, got[f.bob.ID].ItemIDs)
	assert.Equal(t, []string{f.salad}, got[f.cara.ID].ItemIDs)

	stored, err := svc.ListSplits(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestReconcile_Idempotent(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)
	ctx := context.Background()

	assignments := []calculator.Assignment{
		{ItemID: f.pizza, UserIDs: []string{f.bob.ID, f.cara.ID}},
		{ItemID: f.salad, UserIDs: []string{f.cara.ID}},
	}

	first, err := svc.Reconcile(ctx, f.order.ID, assignments)
	require.NoError(t, err)
	second, err := svc.Reconcile(ctx, f.order.ID, assignments)
	require.NoError(t, err)

	a, b := byUser(first), byUser(second)
	require.Len(t, b, len(a))
	for userID, split := range a {
		require.Contains(t, b, userID)
		assert.True(t, split.AmountOwed.Equal(b[userID].AmountOwed), "user %s", userID)
		assert.Equal(t, split.ItemIDs, b[userID].ItemIDs)
	}

	stored, err := f.store.ListSplits(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2, "reconciling twice must not accumulate splits")
}

func TestReconcile_ResetsPaymentState(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)
	ctx := context.Background()

	assignments := []calculator.Assignment{{ItemID: f.pizza, UserIDs: []string{f.bob.ID}}}
	splits, err := svc.Reconcile(ctx, f.order.ID, assignments)
	require.NoError(t, err)
	require.Len(t, splits, 1)

	_, err = svc.MarkPaid(ctx, splits[0].ID, true)
	require.NoError(t, err)

	again, err := svc.Reconcile(ctx, f.order.ID, assignments)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.False(t, again[0].Paid)
	assert.False(t, again[0].ReminderSent)
	assert.Nil(t, again[0].ReminderSentAt)

	_, err = svc.GetSplit(ctx, splits[0].ID)
	assert.ErrorIs(t, err, ErrSplitNotFound, "old split must be replaced")
}

func TestReconcile_NoValidAssignmentsKeepsExistingSplits(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, f.order.ID, []calculator.Assignment{{ItemID: f.pizza, UserIDs: []string{f.bob.ID}}})
	require.NoError(t, err)

	tests := []struct {
		name        string
		assignments []calculator.Assignment
	}{
		{"empty", nil},
		{"no users", []calculator.Assignment{{ItemID: f.pizza}}},
		{"unknown item", []calculator.Assignment{{ItemID: "gone", UserIDs: []string{f.cara.ID}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Reconcile(ctx, f.order.ID, tt.assignments)
			assert.ErrorIs(t, err, ErrNoValidAssignments)

			splits, err := f.store.ListSplits(ctx, f.order.ID)
			require.NoError(t, err)
			require.Len(t, splits, 1)
			assert.Equal(t, f.bob.ID, splits[0].UserID)
		})
	}
}

func TestReconcile_SkipsUnknownUsers(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)
	ctx := context.Background()

	// The ghost still takes half of the salad.
	splits, err := svc.Reconcile(ctx, f.order.ID, []calculator.Assignment{
		{ItemID: f.salad, UserIDs: []string{f.cara.ID, "ghost"}},
	})
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Equal(t, f.cara.ID, splits[0].UserID)
	assertMoney(t, "6.5", splits[0].AmountOwed)
}

func TestReconcile_UnknownOrder(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)

	_, err := svc.Reconcile(context.Background(), "missing", []calculator.Assignment{{ItemID: f.pizza, UserIDs: []string{f.bob.ID}}})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.Reconcile(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReconcile_Concurrent(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)
	ctx := context.Background()

	variants := [][]calculator.Assignment{
		{{ItemID: f.pizza, UserIDs: []string{f.bob.ID}}},
		{{ItemID: f.pizza, UserIDs: []string{f.bob.ID, f.cara.ID}}, {ItemID: f.salad, UserIDs: []string{f.alice.ID}}},
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(assignments []calculator.Assignment) {
			defer wg.Done()
			if _, err := svc.Reconcile(ctx, f.order.ID, assignments); err != nil {
				errs <- err
			}
		}(variants[i%2])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Reconcile failed: %v", err)
	}

	// Whichever run finished last, the stored set is one complete result.
	splits, err := f.store.ListSplits(ctx, f.order.ID)
	require.NoError(t, err)
	switch len(splits) {
	case 1:
		assertMoney(t, "23", splits[0].AmountOwed)
	case 3:
		assert.True(t, splitTotal(splits).Equal(decimal.RequireFromString("33")))
	default:
		t.Fatalf("unexpected split count %d", len(splits))
	}
}

// failingStore makes CreateSplit fail after a number of successful calls,
// inside and outside transactions.
type failingStore struct {
	storage.Store
	okCreates int
}

type failingQueries struct {
	storage.Queries
	parent *failingStore
}

var errInjected = errors.New("injected failure")

func (s *failingStore) RunInTx(ctx context.Context, fn func(q storage.Queries) error) error {
	return s.Store.RunInTx(ctx, func(q storage.Queries) error {
		return fn(&failingQueries{Queries: q, parent: s})
	})
}

func (q *failingQueries) CreateSplit(ctx context.Context, split *models.Split) error {
	if q.parent.okCreates == 0 {
		return errInjected
	}
	q.parent.okCreates--
	return q.Queries.CreateSplit(ctx, split)
}

// lockCountingStore counts LockOrder calls made outside transactions.
type lockCountingStore struct {
	storage.Store
	locks int
}

func (s *lockCountingStore) LockOrder(ctx context.Context, orderID string) error {
	s.locks++
	return s.Store.LockOrder(ctx, orderID)
}

func TestListSplits_DoesNotLockOrder(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	store := &lockCountingStore{Store: f.store}
	svc := NewSplitService(store)

	_, err := svc.Reconcile(ctx, f.order.ID, []calculator.Assignment{
		{ItemID: f.pizza, UserIDs: []string{f.bob.ID}},
	})
	require.NoError(t, err)

	splits, err := svc.ListSplits(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Len(t, splits, 1)

	_, err = svc.ListSplits(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.Zero(t, store.locks, "listing splits must not take the order row lock")
}

func TestReplaceSplits_RollsBackOnError(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := NewSplitService(f.store).Reconcile(ctx, f.order.ID, []calculator.Assignment{
		{ItemID: f.pizza, UserIDs: []string{f.alice.ID}},
	})
	require.NoError(t, err)

	svc := NewSplitService(&failingStore{Store: f.store, okCreates: 1})
	_, err = svc.Reconcile(ctx, f.order.ID, []calculator.Assignment{
		{ItemID: f.pizza, UserIDs: []string{f.bob.ID}},
		{ItemID: f.salad, UserIDs: []string{f.cara.ID}},
	})
	require.ErrorIs(t, err, errInjected)

	splits, err := f.store.ListSplits(ctx, f.order.ID)
	require.NoError(t, err)
	require.Len(t, splits, 1, "the previous split set must survive")
	assert.Equal(t, f.alice.ID, splits[0].UserID)
}

func TestReplaceSplits(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)
	ctx := context.Background()

	alloc := calculator.Allocation{
		f.bob.ID: {AmountOwed: decimal.RequireFromString("12.34"), ItemIDs: []string{f.pizza}},
		"ghost":  {AmountOwed: decimal.RequireFromString("1.00")},
	}
	splits, err := svc.ReplaceSplits(ctx, f.order.ID, alloc)
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assertMoney(t, "12.34", splits[0].AmountOwed)

	_, err = svc.ReplaceSplits(ctx, "missing", alloc)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSplitCRUD(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)
	ctx := context.Background()

	split := &models.Split{OrderID: f.order.ID, UserID: f.bob.ID, AmountOwed: decimal.RequireFromString("10.005"), Paid: true}
	require.NoError(t, svc.CreateSplit(ctx, split))
	assertMoney(t, "10.01", split.AmountOwed)
	assert.False(t, split.Paid)

	err := svc.CreateSplit(ctx, &models.Split{OrderID: f.order.ID, UserID: f.bob.ID, AmountOwed: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, storage.ErrConflict)

	err = svc.CreateSplit(ctx, &models.Split{OrderID: f.order.ID, UserID: "ghost", AmountOwed: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = svc.CreateSplit(ctx, &models.Split{OrderID: "missing", UserID: f.bob.ID, AmountOwed: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	err = svc.CreateSplit(ctx, &models.Split{OrderID: f.order.ID, UserID: f.cara.ID, AmountOwed: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	paid, err := svc.MarkPaid(ctx, split.ID, true)
	require.NoError(t, err)
	assert.True(t, paid.Paid)

	_, err = svc.MarkPaid(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrSplitNotFound)

	_, err = svc.ListSplits(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	require.NoError(t, svc.DeleteSplit(ctx, split.ID))
	assert.ErrorIs(t, svc.DeleteSplit(ctx, split.ID), ErrSplitNotFound)
}

func TestSummary(t *testing.T) {
	f := setupFixture(t)
	svc := NewSplitService(f.store)
	ctx := context.Background()

	splits, err := svc.Reconcile(ctx, f.order.ID, []calculator.Assignment{
		{ItemID: f.pizza, UserIDs: []string{f.alice.ID, f.bob.ID}},
		{ItemID: f.salad, UserIDs: []string{f.cara.ID}},
	})
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, byUser(splits)[f.cara.ID].ID, true)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, f.order.ID)
	require.NoError(t, err)
	assertMoney(t, "33", summary.Allocated)
	assertMoney(t, "11", summary.Paid)
	assertMoney(t, "11", summary.Outstanding)
	assert.True(t, summary.Unallocated.IsZero())

	_, err = svc.Summary(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
