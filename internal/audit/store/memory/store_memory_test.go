package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodian/internal/audit"
	"custodian/internal/domain"
)

type StoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) record(id uuid.UUID, entityID, actorID string, createdAt time.Time) audit.Record {
	return audit.Record{
		ID:         id,
		EntityType: domain.EntityLead,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     domain.OpDelete,
		Decision:   domain.EffectAllow,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(365 * 24 * time.Hour),
	}
}

func (s *StoreSuite) TestAppendIsIdempotentByID() {
	id := uuid.New()
	rec := s.record(id, "l1", "u1", s.now)

	s.Require().NoError(s.store.Append(s.ctx, rec))

	dup := rec
	dup.Reason = "mutated-on-retry"
	s.Require().NoError(s.store.Append(s.ctx, dup))

	s.Equal(1, s.store.Len())
	got, err := s.store.ListByEntity(s.ctx, domain.EntityLead, "l1")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Empty(got[0].Reason, "first write wins")
}

func (s *StoreSuite) TestListByEntityOrdering() {
	s.Require().NoError(s.store.Append(s.ctx, s.record(uuid.New(), "l1", "u1", s.now.Add(time.Hour))))
	s.Require().NoError(s.store.Append(s.ctx, s.record(uuid.New(), "l1", "u2", s.now)))
	s.Require().NoError(s.store.Append(s.ctx, s.record(uuid.New(), "l2", "u1", s.now)))

	got, err := s.store.ListByEntity(s.ctx, domain.EntityLead, "l1")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("u2", got[0].ActorID)
	s.Equal("u1", got[1].ActorID)
}

func (s *StoreSuite) TestListByActor() {
	s.Require().NoError(s.store.Append(s.ctx, s.record(uuid.New(), "l1", "u1", s.now)))
	s.Require().NoError(s.store.Append(s.ctx, s.record(uuid.New(), "l2", "u1", s.now.Add(time.Minute))))
	s.Require().NoError(s.store.Append(s.ctx, s.record(uuid.New(), "l3", "u2", s.now)))

	got, err := s.store.ListByActor(s.ctx, "u1")
	s.Require().NoError(err)
	s.Len(got, 2)
}

func (s *StoreSuite) TestDeleteExpired() {
	expired := s.record(uuid.New(), "l1", "u1", s.now.Add(-2*365*24*time.Hour))
	live := s.record(uuid.New(), "l2", "u1", s.now.Add(-time.Hour))
	s.Require().NoError(s.store.Append(s.ctx, expired))
	s.Require().NoError(s.store.Append(s.ctx, live))

	reclaimed, err := s.store.DeleteExpired(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, reclaimed)
	s.Equal(1, s.store.Len())

	s.Run("second pass reclaims nothing", func() {
		reclaimed, err := s.store.DeleteExpired(s.ctx, s.now)
		s.Require().NoError(err)
		s.Zero(reclaimed)
	})

	s.Run("record expiring exactly now is kept", func() {
		boundary := s.record(uuid.New(), "l3", "u1", s.now)
		boundary.ExpiresAt = s.now
		s.Require().NoError(s.store.Append(s.ctx, boundary))

		reclaimed, err := s.store.DeleteExpired(s.ctx, s.now)
		s.Require().NoError(err)
		s.Zero(reclaimed)
	})
}
