package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"custodian/internal/audit"
	"custodian/internal/domain"
)

// InMemoryStore keeps audit records in process. Used by unit tests and
// single-node development runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]audit.Record)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[uuid.UUID]audit.Record)
}

// Append stores the record. A record id that already exists is left
// untouched, which makes retries with a stable operation id idempotent.
func (s *InMemoryStore) Append(_ context.Context, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return nil
	}
	s.records[record.ID] = record
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityType domain.EntityType, entityID string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Record
	for _, r := range s.records {
		if r.EntityType == entityType && r.EntityID == entityID {
			out = append(out, r)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actorID string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Record
	for _, r := range s.records {
		if r.ActorID == actorID {
			out = append(out, r)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// DeleteExpired removes records whose expiry has passed and returns how
// many were reclaimed. The gate lives here as well as in the sweeper so
// no caller can reclaim a live record.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reclaimed := 0
	for id, r := range s.records {
		if now.After(r.ExpiresAt) {
			delete(s.records, id)
			reclaimed++
		}
	}
	return reclaimed, nil
}

// Len reports the number of stored records, for tests.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func sortByCreatedAt(records []audit.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
