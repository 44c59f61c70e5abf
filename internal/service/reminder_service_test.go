package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MJ-02/BillSplitter/internal/messaging"
	"github.com/MJ-02/BillSplitter/internal/mocks"
	"github.com/MJ-02/BillSplitter/internal/models"
)

var sentAt = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

// sendAll answers every reminder in a batch with the given outcome.
func sendAll(outcome messaging.Outcome) func(context.Context, []messaging.Reminder) []messaging.Result {
	return func(_ context.Context, reminders []messaging.Reminder) []messaging.Result {
		results := make([]messaging.Result, len(reminders))
		for i, r := range reminders {
			results[i] = messaging.Result{Recipient: r.Recipient, Outcome: outcome}
			if outcome == messaging.OutcomeSent {
				results[i].DeliveryReceiptID = "SM-" + r.Recipient
				results[i].SentAt = sentAt
			}
		}
		return results
	}
}

func mustSplit(t *testing.T, f *fixture, user *models.User, amount string, itemIDs ...string) *models.Split {
	t.Helper()
	split := &models.Split{
		OrderID:    f.order.ID,
		UserID:     user.ID,
		ItemIDs:    itemIDs,
		AmountOwed: decimal.RequireFromString(amount),
	}
	if err := f.store.CreateSplit(context.Background(), split); err != nil {
		t.Fatalf("CreateSplit failed: %v", err)
	}
	return split
}

func mustUser(t *testing.T, f *fixture, name, phone string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Phone: phone}
	if err := f.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func TestRemindAll_OnlyUnpaidSplits(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	svc := NewReminderService(f.store, sender)

	dan := mustUser(t, f, "Dan", "+15550004")
	mustSplit(t, f, f.bob, "12.00", f.pizza)
	mustSplit(t, f, f.cara, "8.00", f.salad)
	mustSplit(t, f, dan, "5.00")
	paid := mustSplit(t, f, f.alice, "7.00")
	_, err := NewSplitService(f.store).MarkPaid(ctx, paid.ID, true)
	require.NoError(t, err)

	sender.EXPECT().
		SendBatch(gomock.Any(), gomock.Len(3)).
		DoAndReturn(sendAll(messaging.OutcomeSent)).
		Times(1)

	res, err := svc.RemindAll(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, res.Results, 3)

	splits, err := f.store.ListSplits(ctx, f.order.ID)
	require.NoError(t, err)
	for _, split := range splits {
		if split.Paid {
			assert.False(t, split.ReminderSent, "paid split must not be reminded")
			continue
		}
		assert.True(t, split.ReminderSent, "split %s", split.ID)
		require.NotNil(t, split.ReminderSentAt)
		assert.True(t, split.ReminderSentAt.Equal(sentAt))
		assert.NotEmpty(t, split.DeliveryReceiptID)
	}
}

func TestRemindAll_MixedOutcomes(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	svc := NewReminderService(f.store, sender)

	dan := mustUser(t, f, "Dan", "+15550004")
	bobSplit := mustSplit(t, f, f.bob, "12.00", f.pizza)
	caraSplit := mustSplit(t, f, f.cara, "8.00", f.salad)
	danSplit := mustSplit(t, f, dan, "5.00")

	// Cara's number bounces; everyone else gets the message.
	sender.EXPECT().
		SendBatch(gomock.Any(), gomock.Len(3)).
		DoAndReturn(func(_ context.Context, reminders []messaging.Reminder) []messaging.Result {
			results := make([]messaging.Result, len(reminders))
			for i, r := range reminders {
				if r.Recipient == f.cara.Phone {
					results[i] = messaging.Result{Recipient: r.Recipient, Outcome: messaging.OutcomeFailed, Error: "undeliverable"}
					continue
				}
				results[i] = messaging.Result{
					Recipient:         r.Recipient,
					Outcome:           messaging.OutcomeSent,
					DeliveryReceiptID: "SM-" + r.Recipient,
					SentAt:            sentAt,
				}
			}
			return results
		})

	res, err := svc.RemindAll(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)

	outcomes := make(map[string]messaging.Outcome, len(res.Results))
	for _, r := range res.Results {
		outcomes[r.SplitID] = r.Outcome
	}
	assert.Equal(t, messaging.OutcomeSent, outcomes[bobSplit.ID])
	assert.Equal(t, messaging.OutcomeFailed, outcomes[caraSplit.ID])
	assert.Equal(t, messaging.OutcomeSent, outcomes[danSplit.ID])

	tests := []struct {
		split       *models.Split
		wantSent    bool
		wantReceipt string
	}{
		{bobSplit, true, "SM-" + f.bob.WhatsAppNumber},
		{caraSplit, false, ""},
		{danSplit, true, "SM-" + dan.Phone},
	}
	for _, tt := range tests {
		got, err := f.store.GetSplit(ctx, tt.split.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.wantSent, got.ReminderSent, "split %s", tt.split.ID)
		assert.Equal(t, tt.wantReceipt, got.DeliveryReceiptID, "split %s", tt.split.ID)
		if tt.wantSent {
			require.NotNil(t, got.ReminderSentAt)
			assert.True(t, got.ReminderSentAt.Equal(sentAt))
		} else {
			assert.Nil(t, got.ReminderSentAt)
		}
	}
}

func TestRemindAll_BuildsReminders(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	svc := NewReminderService(f.store, sender)

	bobSplit := mustSplit(t, f, f.bob, "22.00", f.pizza, "deleted-item")

	sender.EXPECT().
		SendBatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, reminders []messaging.Reminder) []messaging.Result {
			require.Len(t, reminders, 1)
			r := reminders[0]
			assert.Equal(t, f.bob.WhatsAppNumber, r.Recipient, "WhatsApp number wins over phone")
			assert.Equal(t, "Bob", r.RecipientName)
			assert.Equal(t, "Alice", r.PayerName)
			assert.Equal(t, "Pizza Place", r.Restaurant)
			assert.Equal(t, "@alice", r.PaymentMethod)
			assert.Equal(t, []string{"Pizza"}, r.Items)
			assertMoney(t, "22", r.Amount)
			return sendAll(messaging.OutcomeFailed)(ctx, reminders)
		})

	res, err := svc.RemindAll(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, bobSplit.ID, res.Results[0].SplitID)

	got, err := f.store.GetSplit(ctx, bobSplit.ID)
	require.NoError(t, err)
	assert.False(t, got.ReminderSent, "failed delivery leaves the split unchanged")
	assert.Empty(t, got.DeliveryReceiptID)
}

func TestRemindAll_OneMessagePerContact(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	svc := NewReminderService(f.store, sender)

	twin := &models.User{Name: "Bob's twin", Phone: "+15559999", WhatsAppNumber: f.bob.WhatsAppNumber}
	require.NoError(t, f.store.CreateUser(ctx, twin))
	mustSplit(t, f, f.bob, "10.00")
	mustSplit(t, f, twin, "10.00")

	sender.EXPECT().
		SendBatch(gomock.Any(), gomock.Len(1)).
		DoAndReturn(sendAll(messaging.OutcomeSent))

	res, err := svc.RemindAll(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, res.Sent)
}

func TestRemindAll_NothingToSend(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl) // no calls expected
	svc := NewReminderService(f.store, sender)

	res, err := svc.RemindAll(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Attempted)
	assert.Empty(t, res.Results)

	split := mustSplit(t, f, f.bob, "10.00")
	_, err = NewSplitService(f.store).MarkPaid(ctx, split.ID, true)
	require.NoError(t, err)

	res, err = svc.RemindAll(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Attempted)
}

func TestRemindAll_Errors(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	svc := NewReminderService(f.store, mocks.NewMockSender(gomock.NewController(t)))

	_, err := svc.RemindAll(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	orphan := &models.Order{Restaurant: "Nobody's", Total: decimal.NewFromInt(5), PaidByUserID: f.cara.ID}
	require.NoError(t, f.store.CreateOrder(ctx, orphan))
	require.NoError(t, f.store.DeleteUser(ctx, f.cara.ID))

	_, err = svc.RemindAll(ctx, orphan.ID)
	assert.ErrorIs(t, err, ErrPayerNotFound)
}

func TestRemind(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	svc := NewReminderService(f.store, sender)

	split := mustSplit(t, f, f.cara, "11.00", f.salad)

	sender.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r messaging.Reminder) messaging.Result {
			assert.Equal(t, f.cara.Phone, r.Recipient)
			assert.Equal(t, []string{"Salad"}, r.Items)
			return messaging.Result{Recipient: r.Recipient, Outcome: messaging.OutcomeSent, DeliveryReceiptID: "SM42", SentAt: sentAt}
		})

	outcome, err := svc.Remind(ctx, split.ID)
	require.NoError(t, err)
	assert.Equal(t, messaging.OutcomeSent, outcome.Outcome)
	assert.Equal(t, split.ID, outcome.SplitID)
	assert.Equal(t, f.cara.ID, outcome.UserID)

	got, err := f.store.GetSplit(ctx, split.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)
	assert.Equal(t, "SM42", got.DeliveryReceiptID)
	require.NotNil(t, got.ReminderSentAt)
	assert.True(t, got.ReminderSentAt.Equal(sentAt))
}

func TestRemind_UndeliveredLeavesSplitUnchanged(t *testing.T) {
	for _, outcome := range []messaging.Outcome{messaging.OutcomeFailed, messaging.OutcomeUnconfigured} {
		t.Run(string(outcome), func(t *testing.T) {
			f := setupFixture(t)
			ctx := context.Background()
			ctrl := gomock.NewController(t)
			sender := mocks.NewMockSender(ctrl)
			svc := NewReminderService(f.store, sender)

			split := mustSplit(t, f, f.bob, "5.00")
			sender.EXPECT().
				Send(gomock.Any(), gomock.Any()).
				Return(messaging.Result{Recipient: f.bob.WhatsAppNumber, Outcome: outcome, Error: "nope"})

			res, err := svc.Remind(ctx, split.ID)
			require.NoError(t, err)
			assert.Equal(t, outcome, res.Outcome)

			got, err := f.store.GetSplit(ctx, split.ID)
			require.NoError(t, err)
			assert.False(t, got.ReminderSent)
			assert.Nil(t, got.ReminderSentAt)
		})
	}
}

func TestRemind_NotFound(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	svc := NewReminderService(f.store, mocks.NewMockSender(gomock.NewController(t)))

	_, err := svc.Remind(ctx, "missing")
	assert.ErrorIs(t, err, ErrSplitNotFound)

	// Order without a payer: Alice is gone.
	split := mustSplit(t, f, f.bob, "5.00")
	require.NoError(t, f.store.DeleteUser(ctx, f.alice.ID))
	_, err = svc.Remind(ctx, split.ID)
	assert.ErrorIs(t, err, ErrPayerNotFound)
}
