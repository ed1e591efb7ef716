// Package postgres opens the database and applies the embedded schema at
// startup. The schema is idempotent; there is no migration tooling in this
// service.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS slots (
	key          TEXT PRIMARY KEY,
	record       JSONB NOT NULL,
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	jurisdiction TEXT NOT NULL DEFAULT '',
	domain       TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS slots_active_scope_idx
	ON slots (active, jurisdiction, domain, category);

CREATE TABLE IF NOT EXISTS cases (
	id              UUID PRIMARY KEY,
	jurisdiction    TEXT NOT NULL DEFAULT '',
	domain          TEXT NOT NULL DEFAULT '',
	slot_values     JSONB NOT NULL DEFAULT '{}',
	calculation_log JSONB NOT NULL DEFAULT '[]',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_outbox (
	id           UUID PRIMARY KEY,
	case_id      UUID NOT NULL,
	action       TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS audit_outbox_pending_idx
	ON audit_outbox (created_at) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_events (
	id         UUID PRIMARY KEY,
	case_id    UUID NOT NULL,
	action     TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	timestamp  TIMESTAMPTZ NOT NULL,
	detail     JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS audit_events_case_idx
	ON audit_events (case_id, timestamp);
`

// Open connects, verifies the connection, and applies the schema. Returns
// nil when the DSN is empty (postgres not configured).
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
