// Package postgres persists audit records in an append-only table and
// mirrors every append into an outbox consumed by the Kafka relay.
//
// Expected schema:
//
//	CREATE TABLE audit_records (
//	    id          UUID PRIMARY KEY,
//	    entity_type TEXT        NOT NULL,
//	    entity_id   TEXT        NOT NULL,
//	    actor_id    TEXT        NOT NULL,
//	    actor_email TEXT        NOT NULL DEFAULT '',
//	    action      TEXT        NOT NULL,
//	    decision    TEXT        NOT NULL,
//	    reason      TEXT        NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    expires_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_records_entity_idx ON audit_records (entity_id, created_at);
//	CREATE INDEX audit_records_actor_idx  ON audit_records (actor_id, created_at);
//
//	CREATE TABLE audit_outbox (
//	    id           UUID PRIMARY KEY,
//	    record_id    UUID        NOT NULL,
//	    payload      JSONB       NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    published_at TIMESTAMPTZ
//	);
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custodian/internal/audit"
	"custodian/internal/domain"
	"custodian/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL. Appends are idempotent on
// record id (ON CONFLICT DO NOTHING) so retries with a stable operation id
// never produce duplicate rows.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure published to Kafka by the relay.
type outboxPayload struct {
	ID         string `json:"ID"`
	EntityType string `json:"EntityType"`
	EntityID   string `json:"EntityID"`
	ActorID    string `json:"ActorID"`
	ActorEmail string `json:"ActorEmail,omitempty"`
	Action     string `json:"Action"`
	Decision   string `json:"Decision"`
	Reason     string `json:"Reason,omitempty"`
	CreatedAt  string `json:"CreatedAt"`
	ExpiresAt  string `json:"ExpiresAt"`
}

// Append writes the record and its outbox entry in one transaction so the
// stored trail and the published trail cannot diverge. When the context
// carries a caller transaction, the append joins it and commits with the
// caller's own write.
func (s *Store) Append(ctx context.Context, record audit.Record) error {
	if external, ok := tx.From(ctx); ok {
		return s.append(ctx, external, record)
	}

	own, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append: %w", err)
	}
	defer func() { _ = own.Rollback() }()

	if err := s.append(ctx, own, record); err != nil {
		return err
	}
	return own.Commit()
}

func (s *Store) append(ctx context.Context, dbtx *sql.Tx, record audit.Record) error {
	res, err := dbtx.ExecContext(ctx, `
		INSERT INTO audit_records (
			id, entity_type, entity_id, actor_id, actor_email,
			action, decision, reason, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`,
		record.ID,
		string(record.EntityType),
		record.EntityID,
		record.ActorID,
		record.ActorEmail,
		string(record.Action),
		string(record.Decision),
		record.Reason,
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	// A conflicting id means this operation was already recorded; skip the
	// outbox entry too so the relay does not publish duplicates.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	payload, err := json.Marshal(outboxPayload{
		ID:         record.ID.String(),
		EntityType: string(record.EntityType),
		EntityID:   record.EntityID,
		ActorID:    record.ActorID,
		ActorEmail: record.ActorEmail,
		Action:     string(record.Action),
		Decision:   string(record.Decision),
		Reason:     record.Reason,
		CreatedAt:  record.CreatedAt.Format(time.RFC3339Nano),
		ExpiresAt:  record.ExpiresAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = dbtx.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, record_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), record.ID, payload, time.Now())
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}

	return nil
}

func (s *Store) ListByEntity(ctx context.Context, entityType domain.EntityType, entityID string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, actor_id, actor_email,
		       action, decision, reason, created_at, expires_at
		FROM audit_records
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at
	`, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit by entity: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) ListByActor(ctx context.Context, actorID string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, actor_id, actor_email,
		       action, decision, reason, created_at, expires_at
		FROM audit_records
		WHERE actor_id = $1
		ORDER BY created_at
	`, actorID)
	if err != nil {
		return nil, fmt.Errorf("query audit by actor: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteExpired reclaims records whose expiry has passed. The predicate is
// part of the statement so a concurrent sweep cannot double-delete or
// reclaim a live record.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_records WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired audit records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired audit rows affected: %w", err)
	}
	return int(n), nil
}

// NextOutboxBatch returns unpublished outbox entries oldest-first.
func (s *Store) NextOutboxBatch(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkPublished stamps outbox entries after a successful Kafka produce.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = NOW()
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	var records []audit.Record
	for rows.Next() {
		var (
			r          audit.Record
			entityType string
			action     string
			decision   string
		)
		err := rows.Scan(
			&r.ID, &entityType, &r.EntityID, &r.ActorID, &r.ActorEmail,
			&action, &decision, &r.Reason, &r.CreatedAt, &r.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.EntityType = domain.EntityType(entityType)
		r.Action = domain.Operation(action)
		r.Decision = domain.Effect(decision)
		records = append(records, r)
	}
	return records, rows.Err()
}
