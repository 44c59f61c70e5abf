package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 4
)

// Ensure TwilioSender implements Sender
var _ Sender = (*TwilioSender)(nil)

// messageCreator is the slice of the Twilio REST API this package uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioConfig holds the credentials and sending identity for Twilio.
type TwilioConfig struct {
	AccountSID          string
	AuthToken           string
	FromNumber          string
	MessagingServiceSID string

	// Timeout bounds each message. Zero means 10s.
	Timeout time.Duration

	// Concurrency limits parallel sends in SendBatch. Zero means 4.
	Concurrency int
}

// TwilioSender sends reminders as SMS through Twilio.
type TwilioSender struct {
	api         messageCreator
	from        string
	serviceSID  string
	timeout     time.Duration
	concurrency int
	now         func() time.Time
}

// NewTwilioSender creates a sender. Without credentials every send reports
// OutcomeUnconfigured.
func NewTwilioSender(cfg TwilioConfig) *TwilioSender {
	var api messageCreator
	if cfg.AccountSID != "" && cfg.AuthToken != "" {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		api = client.Api
	} else {
		slog.Warn("Twilio credentials not set, reminders will not be delivered")
	}
	return newTwilioSender(api, cfg)
}

func newTwilioSender(api messageCreator, cfg TwilioConfig) *TwilioSender {
	s := &TwilioSender{
		api:         api,
		from:        cfg.FromNumber,
		serviceSID:  cfg.MessagingServiceSID,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	return s
}

// Send delivers one reminder.
func (s *TwilioSender) Send(ctx context.Context, reminder Reminder) Result {
	result := Result{Recipient: reminder.Recipient}

	if s.api == nil {
		result.Outcome = OutcomeUnconfigured
		result.Error = "twilio client not initialized"
		return result
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(reminder.Recipient)
	params.SetBody(FormatReminder(reminder))
	switch {
	case s.serviceSID != "":
		params.SetMessagingServiceSid(s.serviceSID)
	case s.from != "":
		params.SetFrom(s.from)
	default:
		result.Outcome = OutcomeUnconfigured
		result.Error = "neither a from number nor a messaging service SID is configured"
		return result
	}

	sid, err := s.create(ctx, params)
	if err != nil {
		slog.Warn("Reminder delivery failed", "recipient", reminder.Recipient, "error", err)
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result
	}

	result.Outcome = OutcomeSent
	result.DeliveryReceiptID = sid
	result.SentAt = s.now().UTC()
	return result
}

// create calls the API with a deadline. The Twilio client takes no context,
// so a call that outlives the deadline is abandoned, not cancelled.
func (s *TwilioSender) create(ctx context.Context, params *twilioApi.CreateMessageParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type reply struct {
		msg *twilioApi.ApiV2010Message
		err error
	}
	done := make(chan reply, 1)
	go func() {
		msg, err := s.api.CreateMessage(params)
		done <- reply{msg, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if r.msg == nil || r.msg.Sid == nil {
			return "", errors.New("twilio returned no message sid")
		}
		return *r.msg.Sid, nil
	}
}

// SendBatch delivers reminders concurrently, at most Concurrency at a time.
func (s *TwilioSender) SendBatch(ctx context.Context, reminders []Reminder) []Result {
	results := make([]Result, len(reminders))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, reminder := range reminders {
		g.Go(func() error {
			results[i] = s.Send(ctx, reminder)
			return nil
		})
	}
	g.Wait()

	return results
}
