// Package recorder appends immutable audit records with fail-closed
// semantics. The caller blocks until the append succeeds; if it fails the
// enclosing operation MUST fail, because losing an audit trail is treated
// the same as an authorization failure.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"custodian/internal/audit"
	"custodian/internal/audit/metrics"
	"custodian/internal/domain"
	"custodian/internal/retention"
	domainerrors "custodian/pkg/domain-errors"
	"custodian/pkg/requestcontext"
)

// operationNamespace derives deterministic record ids from caller-supplied
// operation ids, making retried appends idempotent.
var operationNamespace = uuid.MustParse("74a3c9dd-5b6e-4c1a-9f0e-2d8b41c6a7f3")

// Request describes one sensitive action to record.
type Request struct {
	Identity domain.Identity
	Action   domain.Operation
	Ref      domain.EntityRef
	Decision domain.Decision
	// OperationID is an optional stable identifier supplied by the caller.
	// When set, retries produce the same record id and the store drops the
	// duplicate; when absent, duplicate rows under retry are acceptable.
	OperationID string
}

// Recorder builds and persists audit records.
type Recorder struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger for failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides the latency clock, for tests. Record timestamps come
// from the request-scoped clock in the context, not from here.
func WithClock(clock func() time.Time) Option {
	return func(r *Recorder) { r.clock = clock }
}

// New creates a Recorder. The store is required.
func New(store audit.Store, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	r := &Recorder{store: store, clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record appends one immutable record for an authorized sensitive
// operation. The expiry timestamp is computed here, at creation time, from
// the static retention table. Timestamps come from the request-scoped
// clock so the record agrees with the evaluation that produced it.
func (r *Recorder) Record(ctx context.Context, req Request) (audit.Record, error) {
	start := r.clock()
	now := requestcontext.Now(ctx)

	recordID := uuid.New()
	if req.OperationID != "" {
		recordID = uuid.NewSHA1(operationNamespace, []byte(req.OperationID))
	}

	record := audit.Record{
		ID:         recordID,
		EntityType: req.Ref.Type,
		EntityID:   req.Ref.ID,
		ActorID:    req.Identity.PrincipalID,
		ActorEmail: req.Identity.Email,
		Action:     req.Action,
		Decision:   req.Decision.Effect,
		Reason:     req.Decision.Reason,
		CreatedAt:  now,
		ExpiresAt:  retention.AuditExpiresAt(req.Ref.Type, now),
	}

	if err := r.store.Append(ctx, record); err != nil {
		r.metrics.IncAppendFailure()
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"entity_type", record.EntityType,
				"entity_id", record.EntityID,
				"action", record.Action,
				"actor_id", record.ActorID,
				"error", err,
			)
		}
		return audit.Record{}, domainerrors.Wrap(domainerrors.CodeAuditWriteFailed,
			"audit record could not be persisted", err)
	}

	r.metrics.ObserveAppendLatency(r.clock().Sub(start))
	r.metrics.IncAppended(string(record.EntityType), string(record.Action))
	return record, nil
}
