// Package postgres adapts the external entity collections to the engine's
// resolver and retention interfaces. Each entity type is a separate
// logical collection keyed by entity id.
//
// Expected schema (one table per collection):
//
//	CREATE TABLE leads (
//	    id               TEXT PRIMARY KEY,
//	    org_id           TEXT        NOT NULL,
//	    created_by       TEXT        NOT NULL,
//	    assigned_to      TEXT        NOT NULL DEFAULT '',
//	    team_members     TEXT[]      NOT NULL DEFAULT '{}',
//	    status           TEXT        NOT NULL DEFAULT '',
//	    inactive         BOOLEAN     NOT NULL DEFAULT FALSE,
//	    last_activity_at TIMESTAMPTZ,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
//
//	rfps, enrichment_logs and compliance_events follow the same shape with
//	their variant columns (completed_at/archived, triggered_by,
//	user_id/user_email/expires_at).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"custodian/internal/domain"
	"custodian/pkg/platform/sentinel"
)

// Store implements entity.Resolver and entity.RetentionStore on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, entityType domain.EntityType, id string) (*domain.Entity, error) {
	switch entityType {
	case domain.EntityLead:
		return s.getLead(ctx, id)
	case domain.EntityRFP:
		return s.getRFP(ctx, id)
	case domain.EntityEnrichmentLog:
		return s.getEnrichmentLog(ctx, id)
	case domain.EntityComplianceEvent:
		return s.getComplianceEvent(ctx, id)
	}
	return nil, fmt.Errorf("unknown entity type %q", entityType)
}

func (s *Store) getLead(ctx context.Context, id string) (*domain.Entity, error) {
	var (
		e            domain.Entity
		teamMembers  pq.StringArray
		lastActivity sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, created_by, assigned_to, team_members, status,
		       inactive, last_activity_at, created_at, updated_at
		FROM leads WHERE id = $1
	`, id).Scan(
		&e.ID, &e.OrgID, &e.CreatedBy, &e.AssignedTo, &teamMembers, &e.Status,
		&e.Inactive, &lastActivity, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr("lead", err)
	}
	e.TeamMembers = teamMembers
	if lastActivity.Valid {
		e.LastActivityAt = lastActivity.Time
	}
	return &e, nil
}

func (s *Store) getRFP(ctx context.Context, id string) (*domain.Entity, error) {
	var (
		e           domain.Entity
		teamMembers pq.StringArray
		completedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, created_by, team_members, status,
		       archived, completed_at, created_at, updated_at
		FROM rfps WHERE id = $1
	`, id).Scan(
		&e.ID, &e.OrgID, &e.CreatedBy, &teamMembers, &e.Status,
		&e.Archived, &completedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr("rfp", err)
	}
	e.TeamMembers = teamMembers
	if completedAt.Valid {
		e.CompletedAt = completedAt.Time
	}
	return &e, nil
}

func (s *Store) getEnrichmentLog(ctx context.Context, id string) (*domain.Entity, error) {
	var e domain.Entity
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, created_by, triggered_by, status, created_at, updated_at
		FROM enrichment_logs WHERE id = $1
	`, id).Scan(
		&e.ID, &e.OrgID, &e.CreatedBy, &e.TriggeredBy, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr("enrichment log", err)
	}
	return &e, nil
}

func (s *Store) getComplianceEvent(ctx context.Context, id string) (*domain.Entity, error) {
	var e domain.Entity
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, created_by, user_id, user_email, expires_at, created_at, updated_at
		FROM compliance_events WHERE id = $1
	`, id).Scan(
		&e.ID, &e.OrgID, &e.CreatedBy, &e.UserID, &e.UserEmail,
		&e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr("compliance event", err)
	}
	return &e, nil
}

func (s *Store) DeleteExpiredEnrichmentLogs(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrichment_logs WHERE created_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired enrichment logs: %w", err)
	}
	return rowsAffected(res)
}

func (s *Store) MarkDormantLeadsInactive(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET inactive = TRUE
		WHERE inactive = FALSE
		  AND COALESCE(last_activity_at, updated_at, created_at) <= $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("flag dormant leads: %w", err)
	}
	return rowsAffected(res)
}

func (s *Store) ArchiveCompletedRFPs(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rfps SET archived = TRUE
		WHERE archived = FALSE
		  AND completed_at IS NOT NULL
		  AND completed_at <= $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive completed rfps: %w", err)
	}
	return rowsAffected(res)
}

func mapErr(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
