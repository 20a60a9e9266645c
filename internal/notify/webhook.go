package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/qvasun/internal/httpclient"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	ErrWebhookRejected  = errors.New("webhook rejected event")
	ErrWebhookQueueFull = errors.New("webhook queue is full, event dropped")
)

const DefaultWebhookQueueSize = 100

type webhookPayload struct {
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookSink posts events as JSON to an external endpoint. Notify only
// queues the event; Run delivers queued events in order.
type WebhookSink struct {
	log    *zap.Logger
	client *resty.Client
	url    string
	userID string
	queue  chan Event
}

type WebhookOption func(s *WebhookSink)

func WithClient(client *resty.Client) WebhookOption {
	return func(s *WebhookSink) {
		s.client = client
	}
}

func WithUserID(userID string) WebhookOption {
	return func(s *WebhookSink) {
		s.userID = userID
	}
}

func WithWebhookLogger(logger *zap.Logger) WebhookOption {
	return func(s *WebhookSink) {
		s.log = logger
	}
}

func WithQueueSize(size int) WebhookOption {
	return func(s *WebhookSink) {
		if size > 0 {
			s.queue = make(chan Event, size)
		}
	}
}

func NewWebhookSink(url string, opts ...WebhookOption) *WebhookSink {
	s := &WebhookSink{
		log:    zap.NewNop(),
		client: httpclient.New(),
		url:    url,
		queue:  make(chan Event, DefaultWebhookQueueSize),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.With(zap.String("module", "webhook"))

	return s
}

// Notify queues evt without waiting for delivery.
func (s *WebhookSink) Notify(_ context.Context, evt Event) error {
	select {
	case s.queue <- evt:
		return nil
	default:
		return ErrWebhookQueueFull
	}
}

// Run delivers queued events until ctx is done. Delivery failures are logged
// and the event is dropped.
func (s *WebhookSink) Run(ctx context.Context) error {
	s.log.Info("Start webhook delivery", zap.String("url", s.url))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Context done, stopping webhook delivery", zap.Int("pending", len(s.queue)))

			return nil

		case evt := <-s.queue:
			if err := s.Send(ctx, evt); err != nil {
				s.log.Warn("webhook.Send", zap.String("message", evt.Message), zap.Error(err))
			}
		}
	}
}

// Send posts evt synchronously, retrying per the client settings.
func (s *WebhookSink) Send(ctx context.Context, evt Event) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{
			UserID:    s.userID,
			Message:   evt.Message,
			Severity:  string(evt.Severity),
			CreatedAt: evt.CreatedAt,
		}).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("client.R: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode())
	}

	return nil
}
