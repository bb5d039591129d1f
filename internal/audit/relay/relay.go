// Package relay drains the audit outbox into the downstream compliance
// topic. The outbox write happens in the same transaction as the audit
// append, so the relay only ever re-publishes what is already durably
// recorded; at-least-once delivery is acceptable downstream.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"custodian/internal/audit"
	"custodian/internal/audit/metrics"

	"github.com/google/uuid"
)

// Producer publishes one message to the audit topic.
type Producer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// Relay polls the outbox and publishes pending entries.
type Relay struct {
	outbox   audit.OutboxStore
	producer Producer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	interval  time.Duration
	batchSize int
}

// Option configures the Relay.
type Option func(*Relay)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

// WithBatchSize overrides how many entries are drained per poll.
func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// New creates a relay with a 5s poll interval and batches of 100.
func New(outbox audit.OutboxStore, producer Producer, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		logger:    logger,
		interval:  5 * time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled. Publish failures are logged
// and retried on the next tick; they never crash the process.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				r.logger.WarnContext(ctx, "audit relay drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	entries, err := r.outbox.NextOutboxBatch(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if err := r.publish(ctx, entry); err != nil {
			r.metrics.IncRelayFailure()
			r.logger.WarnContext(ctx, "outbox publish failed, will retry next tick",
				"record_id", entry.RecordID,
				"error", err,
			)
			break // preserve outbox ordering
		}
		r.metrics.IncRelayPublished()
		published = append(published, entry.ID)
	}

	if len(published) == 0 {
		return nil
	}
	return r.outbox.MarkPublished(ctx, published)
}

// publish attempts one entry with bounded exponential backoff.
func (r *Relay) publish(ctx context.Context, entry audit.OutboxEntry) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.producer.Produce(ctx, []byte(entry.RecordID.String()), entry.Payload); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
