//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema is applied once per container. It mirrors the expected-schema
// comments in the store packages.
const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
    id          UUID PRIMARY KEY,
    entity_type TEXT        NOT NULL,
    entity_id   TEXT        NOT NULL,
    actor_id    TEXT        NOT NULL,
    actor_email TEXT        NOT NULL DEFAULT '',
    action      TEXT        NOT NULL,
    decision    TEXT        NOT NULL,
    reason      TEXT        NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL,
    expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_records_entity_idx ON audit_records (entity_id, created_at);
CREATE INDEX IF NOT EXISTS audit_records_actor_idx  ON audit_records (actor_id, created_at);

CREATE TABLE IF NOT EXISTS audit_outbox (
    id           UUID PRIMARY KEY,
    record_id    UUID        NOT NULL,
    payload      JSONB       NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    published_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS leads (
    id               TEXT PRIMARY KEY,
    org_id           TEXT        NOT NULL,
    created_by       TEXT        NOT NULL,
    assigned_to      TEXT        NOT NULL DEFAULT '',
    team_members     TEXT[]      NOT NULL DEFAULT '{}',
    status           TEXT        NOT NULL DEFAULT '',
    inactive         BOOLEAN     NOT NULL DEFAULT FALSE,
    last_activity_at TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rfps (
    id           TEXT PRIMARY KEY,
    org_id       TEXT        NOT NULL,
    created_by   TEXT        NOT NULL,
    team_members TEXT[]      NOT NULL DEFAULT '{}',
    status       TEXT        NOT NULL DEFAULT '',
    archived     BOOLEAN     NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS enrichment_logs (
    id           TEXT PRIMARY KEY,
    org_id       TEXT        NOT NULL,
    created_by   TEXT        NOT NULL,
    triggered_by TEXT        NOT NULL DEFAULT '',
    status       TEXT        NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS compliance_events (
    id         TEXT PRIMARY KEY,
    org_id     TEXT        NOT NULL,
    created_by TEXT        NOT NULL,
    user_id    TEXT        NOT NULL,
    user_email TEXT        NOT NULL DEFAULT '',
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container and applies the
// schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("custodian_test"),
		tcpostgres.WithUsername("custodian"),
		tcpostgres.WithPassword("custodian"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Note: We don't register t.Cleanup here because the container is managed
	// by the singleton Manager and shared across test suites. Ryuk handles cleanup.

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables empties the given tables. Use between tests to ensure
// isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", ")))
	return err
}
