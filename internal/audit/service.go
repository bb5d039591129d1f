package audit

import (
	"context"

	"custodian/internal/domain"
	domainerrors "custodian/pkg/domain-errors"
)

// Service is the read path over the audit trail. Lookups are themselves
// authorized: the trail is compliance data, so org membership alone grants
// nothing.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListByEntity returns the trail for one entity. Admins and compliance
// officers only.
func (s *Service) ListByEntity(ctx context.Context, identity domain.Identity, entityType domain.EntityType, entityID string) ([]Record, error) {
	if !identity.Authenticated() {
		return nil, domainerrors.New(domainerrors.CodeUnauthenticated, "identity required")
	}
	if !identity.Roles.HasAny(domain.RoleAdmin, domain.RoleComplianceOfficer) {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "audit access requires a compliance capability")
	}
	return s.store.ListByEntity(ctx, entityType, entityID)
}

// ListByActor returns the trail of one actor's actions. Admins, compliance
// officers, or the actor themselves.
func (s *Service) ListByActor(ctx context.Context, identity domain.Identity, actorID string) ([]Record, error) {
	if !identity.Authenticated() {
		return nil, domainerrors.New(domainerrors.CodeUnauthenticated, "identity required")
	}
	if identity.PrincipalID != actorID &&
		!identity.Roles.HasAny(domain.RoleAdmin, domain.RoleComplianceOfficer) {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "audit access requires a compliance capability")
	}
	return s.store.ListByActor(ctx, actorID)
}
