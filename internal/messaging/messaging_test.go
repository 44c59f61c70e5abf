package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	mu       sync.Mutex
	params   []*twilioApi.CreateMessageParams
	fail     map[string]error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.params = append(f.params, params)
	f.mu.Unlock()

	if err := f.fail[*params.To]; err != nil {
		return nil, err
	}
	sid := "SM-" + *params.To
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func testReminder(to string) Reminder {
	return Reminder{
		Recipient:     to,
		RecipientName: "Bob",
		PayerName:     "Alice",
		Restaurant:    "Thai Palace",
		Amount:        decimal.RequireFromString("13.4"),
		Items:         []string{"Pad Thai", "Spring Rolls"},
	}
}

func TestFormatReminder(t *testing.T) {
	tests := []struct {
		name     string
		reminder Reminder
		want     string
	}{
		{
			name:     "items and default method",
			reminder: testReminder("+1555"),
			want: "Hey Bob! 👋\n\nYou owe Alice $13.40 for Thai Palace.\n\n" +
				"Items: Pad Thai, Spring Rolls\n\nPlease pay via Venmo/Zelle/Cash.",
		},
		{
			name: "no items and explicit method",
			reminder: Reminder{
				RecipientName: "Cara",
				PayerName:     "Alice",
				Restaurant:    "Diner",
				Amount:        decimal.NewFromInt(5),
				PaymentMethod: "@alice",
			},
			want: "Hey Cara! 👋\n\nYou owe Alice $5.00 for Diner.\n\n" +
				"Items: your order\n\nPlease pay via @alice.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatReminder(tt.reminder))
		})
	}
}

func TestTwilioSenderSend(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	t.Run("sent with from number", func(t *testing.T) {
		api := &fakeAPI{}
		s := newTwilioSender(api, TwilioConfig{FromNumber: "+1000"})
		s.now = func() time.Time { return sentAt }

		res := s.Send(context.Background(), testReminder("+1555"))
		assert.Equal(t, OutcomeSent, res.Outcome)
		assert.Equal(t, "SM-+1555", res.DeliveryReceiptID)
		assert.Equal(t, sentAt, res.SentAt)
		require.Len(t, api.params, 1)
		assert.Equal(t, "+1000", *api.params[0].From)
		assert.Nil(t, api.params[0].MessagingServiceSid)
	})

	t.Run("messaging service preferred over from number", func(t *testing.T) {
		api := &fakeAPI{}
		s := newTwilioSender(api, TwilioConfig{FromNumber: "+1000", MessagingServiceSID: "MG1"})

		res := s.Send(context.Background(), testReminder("+1555"))
		assert.Equal(t, OutcomeSent, res.Outcome)
		require.Len(t, api.params, 1)
		assert.Equal(t, "MG1", *api.params[0].MessagingServiceSid)
		assert.Nil(t, api.params[0].From)
	})

	t.Run("no credentials", func(t *testing.T) {
		s := NewTwilioSender(TwilioConfig{FromNumber: "+1000"})
		res := s.Send(context.Background(), testReminder("+1555"))
		assert.Equal(t, OutcomeUnconfigured, res.Outcome)
		assert.Equal(t, "+1555", res.Recipient)
	})

	t.Run("no sending identity", func(t *testing.T) {
		api := &fakeAPI{}
		s := newTwilioSender(api, TwilioConfig{})
		res := s.Send(context.Background(), testReminder("+1555"))
		assert.Equal(t, OutcomeUnconfigured, res.Outcome)
		assert.Empty(t, api.params)
	})

	t.Run("provider error", func(t *testing.T) {
		api := &fakeAPI{fail: map[string]error{"+1555": errors.New("invalid number")}}
		s := newTwilioSender(api, TwilioConfig{FromNumber: "+1000"})
		res := s.Send(context.Background(), testReminder("+1555"))
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Contains(t, res.Error, "invalid number")
		assert.Empty(t, res.DeliveryReceiptID)
		assert.True(t, res.SentAt.IsZero())
	})

	t.Run("timeout is a failure", func(t *testing.T) {
		api := &fakeAPI{delay: 200 * time.Millisecond}
		s := newTwilioSender(api, TwilioConfig{FromNumber: "+1000", Timeout: 10 * time.Millisecond})
		res := s.Send(context.Background(), testReminder("+1555"))
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Contains(t, res.Error, context.DeadlineExceeded.Error())
	})
}

func TestTwilioSenderSendBatch(t *testing.T) {
	api := &fakeAPI{
		delay: 20 * time.Millisecond,
		fail:  map[string]error{"+3": errors.New("unreachable")},
	}
	s := newTwilioSender(api, TwilioConfig{FromNumber: "+1000", Concurrency: 2})

	reminders := []Reminder{testReminder("+1"), testReminder("+2"), testReminder("+3"), testReminder("+4"), testReminder("+5")}
	results := s.SendBatch(context.Background(), reminders)

	require.Len(t, results, len(reminders))
	for i, res := range results {
		assert.Equal(t, reminders[i].Recipient, res.Recipient)
	}
	assert.Equal(t, OutcomeFailed, results[2].Outcome)
	assert.Equal(t, OutcomeSent, results[4].Outcome)
	assert.LessOrEqual(t, api.maxSeen.Load(), int32(2))
	assert.Len(t, api.params, 5)
}
