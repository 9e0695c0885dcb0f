package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
)

// ErrQueueFull is returned when the delivery queue cannot accept more alerts.
var ErrQueueFull = errors.New("notification queue full")

const (
	defaultQueueSize  = 256
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// Queue decouples alert delivery from the scan loop. A single worker drains
// the queue, retrying each alert with backoff; a circuit breaker stops
// hammering the messenger while it is down. Alerts that cannot be delivered
// are dropped with a log line, never retried forever.
type Queue struct {
	notifier   Notifier
	ch         chan *domain.Alert
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	retryDelay time.Duration
	onDropped  func(*domain.Alert)
}

// QueueOption configures Queue.
type QueueOption func(*Queue)

// WithQueueSize overrides the queue buffer size.
func WithQueueSize(n int) QueueOption {
	return func(q *Queue) { q.ch = make(chan *domain.Alert, n) }
}

// WithMaxRetries overrides delivery attempts per alert.
func WithMaxRetries(n int) QueueOption {
	return func(q *Queue) { q.maxRetries = n }
}

// WithRetryDelay overrides the initial retry backoff.
func WithRetryDelay(d time.Duration) QueueOption {
	return func(q *Queue) { q.retryDelay = d }
}

// WithDroppedHook registers a callback invoked when an alert is dropped
// after exhausting retries.
func WithDroppedHook(fn func(*domain.Alert)) QueueOption {
	return func(q *Queue) { q.onDropped = fn }
}

// NewQueue creates a delivery queue in front of the given notifier.
func NewQueue(notifier Notifier, opts ...QueueOption) *Queue {
	q := &Queue{
		notifier:   notifier,
		ch:         make(chan *domain.Alert, defaultQueueSize),
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "telegram",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("notifier breaker state changed")
		},
	})

	return q
}

// Enqueue adds an alert for delivery without blocking.
func (q *Queue) Enqueue(a *domain.Alert) error {
	select {
	case q.ch <- a:
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth reports the number of queued, undelivered alerts.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Run drains the queue until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-q.ch:
			q.deliver(ctx, a)
		}
	}
}

// deliver attempts delivery with backoff through the circuit breaker. While
// the breaker is open, attempts fail fast and consume retries without
// touching the messenger.
func (q *Queue) deliver(ctx context.Context, a *domain.Alert) {
	delay := q.retryDelay
	for attempt := 1; attempt <= q.maxRetries; attempt++ {
		_, err := q.breaker.Execute(func() (interface{}, error) {
			return nil, q.notifier.SendAlert(ctx, a)
		})
		if err == nil {
			observability.RecordAlertSent()
			log.Info().Str("address", a.Token.Address).Str("symbol", a.Token.Symbol).Msg("alert delivered")
			return
		}

		log.Warn().Err(err).Str("address", a.Token.Address).Int("attempt", attempt).Msg("alert delivery failed")

		if attempt == q.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}

	observability.RecordAlertDropped()
	log.Error().Str("address", a.Token.Address).Int("attempts", q.maxRetries).Msg("alert dropped after retries")
	if q.onDropped != nil {
		q.onDropped(a)
	}
}
