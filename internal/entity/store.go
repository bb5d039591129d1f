// Package entity defines the engine's narrow view of the external entity
// store. The engine reads entities to evaluate rules and, through the
// sweeper, applies retention actions; all other writes belong to the
// storage collaborator that called in for authorization.
package entity

import (
	"context"
	"time"

	"custodian/internal/domain"
)

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Resolver,RetentionStore

// Resolver is the read-only lookup consulted during evaluation. A missing
// entity is reported as sentinel.ErrNotFound.
type Resolver interface {
	Get(ctx context.Context, entityType domain.EntityType, id string) (*domain.Entity, error)
}

// RetentionStore exposes the retention actions owned exclusively by the
// sweeper. Enrichment logs past retention are deleted; leads and RFPs are
// only ever flagged, never removed.
type RetentionStore interface {
	DeleteExpiredEnrichmentLogs(ctx context.Context, cutoff time.Time) (int, error)
	MarkDormantLeadsInactive(ctx context.Context, cutoff time.Time) (int, error)
	ArchiveCompletedRFPs(ctx context.Context, cutoff time.Time) (int, error)
}
