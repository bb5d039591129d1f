// Package audit defines the immutable audit record and the append-only
// store contract. Records are created exactly once when a sensitive
// operation is authorized, never mutated, and removed only by the
// retention sweeper after their expiry has passed.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"custodian/internal/domain"
)

// Record is one immutable audit entry. ExpiresAt is stamped at creation
// from the static retention table, not computed at sweep time.
type Record struct {
	ID         uuid.UUID
	EntityType domain.EntityType
	EntityID   string
	ActorID    string
	ActorEmail string
	Action     domain.Operation
	Decision   domain.Effect
	Reason     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Store is the append-only persistence contract. There is deliberately no
// update method; DeleteExpired is the only removal path and enforces the
// temporal gate itself, so even a buggy caller cannot reclaim early.
//
// The two list methods back the compliance lookups: records are indexed
// by (entity_id, created_at) and (actor_id, created_at).
type Store interface {
	Append(ctx context.Context, record Record) error
	ListByEntity(ctx context.Context, entityType domain.EntityType, entityID string) ([]Record, error)
	ListByActor(ctx context.Context, actorID string) ([]Record, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Sensitive reports whether an Allow on this operation must produce an
// audit record. All compliance-event operations are sensitive; writes are
// sensitive everywhere; enrichment-log reads are sensitive when performed
// under an analyst or admin capability.
func Sensitive(op domain.Operation, t domain.EntityType, roles domain.RoleSet) bool {
	if t == domain.EntityComplianceEvent {
		return true
	}
	switch op {
	case domain.OpCreate, domain.OpUpdate, domain.OpDelete, domain.OpSubmit:
		return true
	case domain.OpRead:
		return t == domain.EntityEnrichmentLog &&
			roles.HasAny(domain.RoleAdmin, domain.RoleDataAnalyst)
	}
	return false
}
