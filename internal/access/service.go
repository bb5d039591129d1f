// Package access is the engine's exported surface. It threads one request
// through entity resolution, rule evaluation and audit recording, keeping
// each stage a separate collaborator so the evaluator stays pure.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodian/internal/access/metrics"
	"custodian/internal/audit"
	"custodian/internal/audit/recorder"
	"custodian/internal/domain"
	"custodian/internal/entity"
	"custodian/internal/policy"
	"custodian/pkg/platform/sentinel"
	"custodian/pkg/requestcontext"
)

// Recorder appends one immutable audit record; failure must abort the
// enclosing operation.
type Recorder interface {
	Record(ctx context.Context, req recorder.Request) (audit.Record, error)
}

// Request is one authorization check.
type Request struct {
	Identity  domain.Identity
	Operation domain.Operation
	Ref       domain.EntityRef
	// Proposed is the new state for Create and Update.
	Proposed *domain.Entity
	// OperationID, when set, makes the audit append idempotent under retry.
	OperationID string
}

// Service authorizes operations and records the sensitive ones.
type Service struct {
	resolver entity.Resolver
	recorder Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	lookupTimeout time.Duration
	clock         func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLookupTimeout bounds entity resolution. A timeout denies fail-closed.
func WithLookupTimeout(d time.Duration) Option {
	return func(s *Service) { s.lookupTimeout = d }
}

// WithClock overrides the latency clock, for tests. Evaluation time comes
// from the request-scoped clock in the context, not from here.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// New creates the access service. Resolver and recorder are required.
func New(resolver entity.Resolver, rec Recorder, logger *slog.Logger, opts ...Option) (*Service, error) {
	if resolver == nil {
		return nil, fmt.Errorf("entity resolver is required")
	}
	if rec == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	s := &Service{
		resolver:      resolver,
		recorder:      rec,
		logger:        logger,
		tracer:        otel.Tracer("custodian/access"),
		lookupTimeout: 2 * time.Second,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authorize evaluates one operation and, when the Allow is sensitive,
// appends the audit record before returning. An audit append failure fails
// the whole call (fail-closed); every other fault maps to Deny.
func (s *Service) Authorize(ctx context.Context, req Request) (domain.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "access.Authorize",
		trace.WithAttributes(
			attribute.String("entity.type", string(req.Ref.Type)),
			attribute.String("operation", string(req.Operation)),
		))
	defer span.End()

	start := s.clock()
	decision := s.decide(ctx, req, requestcontext.Now(ctx))

	if decision.Allowed() && audit.Sensitive(req.Operation, req.Ref.Type, req.Identity.Roles) {
		_, err := s.recorder.Record(ctx, recorder.Request{
			Identity:    req.Identity,
			Action:      req.Operation,
			Ref:         req.Ref,
			Decision:    decision,
			OperationID: req.OperationID,
		})
		if err != nil {
			s.metrics.IncDecision(string(req.Ref.Type), string(req.Operation), string(domain.EffectDeny))
			return domain.Decision{}, err
		}
	}

	span.SetAttributes(attribute.String("decision", string(decision.Effect)))
	s.metrics.IncDecision(string(req.Ref.Type), string(req.Operation), string(decision.Effect))
	s.metrics.ObserveAuthorizeLatency(s.clock().Sub(start))
	return decision, nil
}

func (s *Service) decide(ctx context.Context, req Request, now time.Time) domain.Decision {
	var current *domain.Entity
	if req.Operation != domain.OpCreate {
		lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
		defer cancel()

		e, err := s.resolver.Get(lookupCtx, req.Ref.Type, req.Ref.ID)
		switch {
		case err == nil:
			current = e
		case errors.Is(err, sentinel.ErrNotFound):
			// Evaluate with a nil entity; the evaluator reports not-found
			// and the transport folds it into Forbidden.
		default:
			// Lookup failure or timeout: deny fail-closed rather than
			// guess at entity state.
			s.metrics.IncResolverFailure()
			if s.logger != nil {
				s.logger.WarnContext(ctx, "entity lookup failed, denying",
					"entity_type", req.Ref.Type,
					"entity_id", req.Ref.ID,
					"error", err,
				)
			}
			return domain.Deny(domain.ReasonStoreUnavailable)
		}
	}

	return policy.Evaluate(policy.Input{
		Identity:   req.Identity,
		Operation:  req.Operation,
		EntityType: req.Ref.Type,
		Current:    current,
		Proposed:   req.Proposed,
		Now:        now,
	})
}
