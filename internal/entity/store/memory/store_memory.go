package memory

import (
	"context"
	"sync"
	"time"

	"custodian/internal/domain"
	"custodian/pkg/platform/sentinel"
)

type key struct {
	entityType domain.EntityType
	id         string
}

// InMemoryStore implements entity.Resolver and entity.RetentionStore for
// tests and single-node development runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	entities map[key]domain.Entity
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entities: make(map[key]domain.Entity)}
}

// Put seeds or replaces an entity.
func (s *InMemoryStore) Put(entityType domain.EntityType, e domain.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[key{entityType, e.ID}] = e
}

func (s *InMemoryStore) Get(_ context.Context, entityType domain.EntityType, id string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[key{entityType, id}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := e
	return &out, nil
}

func (s *InMemoryStore) DeleteExpiredEnrichmentLogs(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reclaimed := 0
	for k, e := range s.entities {
		// A zero creation timestamp means the row is malformed, not old;
		// never reclaim it.
		if k.entityType == domain.EntityEnrichmentLog &&
			!e.CreatedAt.IsZero() && !e.CreatedAt.After(cutoff) {
			delete(s.entities, k)
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (s *InMemoryStore) MarkDormantLeadsInactive(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flagged := 0
	for k, e := range s.entities {
		if k.entityType != domain.EntityLead || e.Inactive {
			continue
		}
		last := e.LastActivityAt
		if last.IsZero() {
			last = e.UpdatedAt
		}
		if last.IsZero() {
			last = e.CreatedAt
		}
		if !last.IsZero() && !last.After(cutoff) {
			e.Inactive = true
			s.entities[k] = e
			flagged++
		}
	}
	return flagged, nil
}

func (s *InMemoryStore) ArchiveCompletedRFPs(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archived := 0
	for k, e := range s.entities {
		if k.entityType != domain.EntityRFP || e.Archived {
			continue
		}
		if !e.CompletedAt.IsZero() && !e.CompletedAt.After(cutoff) {
			e.Archived = true
			s.entities[k] = e
			archived++
		}
	}
	return archived, nil
}
