// Package sweeper reclaims expired records on a schedule. It is the only
// component that deletes audit or compliance data, and every reclamation
// is gated on the type-specific temporal predicate; there is no capability
// that shortens retention.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"custodian/internal/audit"
	"custodian/internal/entity"
	"custodian/internal/retention"
	"custodian/internal/retention/metrics"
)

// Locker is an optional cross-instance lease so only one deployment sweeps
// at a time. The in-process mutex below already serializes sweeps within
// one process.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Sweeper scans the audit and entity collections for expired records.
type Sweeper struct {
	audits   audit.Store
	entities entity.RetentionStore
	locker   Locker
	logger   *slog.Logger
	metrics  *metrics.Metrics

	interval time.Duration
	clock    func() time.Time

	// mu is the mutual-exclusion guard: overlapping sweeps could race on
	// the same expiring record, so at most one sweep is in flight.
	mu sync.Mutex
}

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithLocker sets the cross-instance lease.
func WithLocker(l Locker) Option {
	return func(s *Sweeper) { s.locker = l }
}

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) { s.clock = clock }
}

// New creates a sweeper with a one-hour tick.
func New(audits audit.Store, entities entity.RetentionStore, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		audits:   audits,
		entities: entities,
		logger:   logger,
		interval: time.Hour,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on every tick until the context is cancelled. A failed sweep
// is logged and retried on the next tick; it never crashes the process.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.clock()); err != nil {
				s.metrics.IncSweepFailure()
				s.logger.WarnContext(ctx, "sweep failed, deferring to next tick", "error", err)
			}
		}
	}
}

// Sweep reclaims every record whose expiry predicate holds at now and
// returns the count of hard-reclaimed records (audit rows and enrichment
// logs; lead flagging and RFP archiving are soft actions counted in
// metrics only). Idempotent: a second sweep at the same instant reclaims
// nothing.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	if !s.mu.TryLock() {
		s.metrics.IncLeaseContention()
		return 0, nil
	}
	defer s.mu.Unlock()

	if s.locker != nil {
		held, err := s.locker.Acquire(ctx)
		if err != nil {
			return 0, err
		}
		if !held {
			s.metrics.IncLeaseContention()
			return 0, nil
		}
		defer func() {
			if err := s.locker.Release(ctx); err != nil {
				s.logger.WarnContext(ctx, "sweep lease release failed", "error", err)
			}
		}()
	}

	start := s.clock()

	var auditReclaimed, logsReclaimed, leadsFlagged, rfpsArchived int
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.audits.DeleteExpired(gctx, now)
		auditReclaimed = n
		return err
	})
	g.Go(func() error {
		n, err := s.entities.DeleteExpiredEnrichmentLogs(gctx, now.Add(-retention.EnrichmentLogRetention))
		logsReclaimed = n
		return err
	})
	g.Go(func() error {
		n, err := s.entities.MarkDormantLeadsInactive(gctx, now.Add(-retention.LeadInactiveAfter))
		leadsFlagged = n
		return err
	})
	g.Go(func() error {
		n, err := s.entities.ArchiveCompletedRFPs(gctx, now.Add(-retention.RFPArchiveAfter))
		rfpsArchived = n
		return err
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.metrics.AddReclaimed("audit_records", "deleted", auditReclaimed)
	s.metrics.AddReclaimed("enrichment_logs", "deleted", logsReclaimed)
	s.metrics.AddReclaimed("leads", "flagged_inactive", leadsFlagged)
	s.metrics.AddReclaimed("rfps", "archived", rfpsArchived)
	s.metrics.ObserveSweepDuration(s.clock().Sub(start))

	reclaimed := auditReclaimed + logsReclaimed
	if reclaimed > 0 || leadsFlagged > 0 || rfpsArchived > 0 {
		s.logger.InfoContext(ctx, "sweep completed",
			"audit_reclaimed", auditReclaimed,
			"enrichment_logs_reclaimed", logsReclaimed,
			"leads_flagged", leadsFlagged,
			"rfps_archived", rfpsArchived,
		)
	}
	return reclaimed, nil
}
