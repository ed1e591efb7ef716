package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"canlaw/pkg/domain"
)

// PostgresStore implements Store with the transactional outbox pattern.
// Append writes to audit_outbox; the Relay publishes pending rows to Kafka;
// the Consumer materializes delivered events into audit_events, which is
// what ListByCase reads. Kafka is the source of truth for the trail.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts the event into the outbox. The full event travels as the
// JSON payload; case ID and action are lifted into columns for relay-side
// partitioning and operator queries.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	const query = `
		INSERT INTO audit_outbox (id, case_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		uuid.UUID(event.CaseID),
		string(event.Action),
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Materialize inserts a delivered event into audit_events. Idempotent via
// the event-ID primary key; redelivered Kafka messages are no-ops.
func (s *PostgresStore) Materialize(ctx context.Context, event Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}
	const query = `
		INSERT INTO audit_events (id, case_id, action, actor, request_id, timestamp, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		uuid.UUID(event.CaseID),
		string(event.Action),
		event.Actor,
		event.RequestID,
		event.Timestamp,
		detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID domain.CaseID) ([]Event, error) {
	const query = `
		SELECT id, case_id, action, actor, request_id, timestamp, detail
		FROM audit_events
		WHERE case_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e      Event
			caseID uuid.UUID
			action string
			detail []byte
		)
		if err := rows.Scan(&e.ID, &caseID, &action, &e.Actor, &e.RequestID, &e.Timestamp, &detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.CaseID = domain.CaseID(caseID)
		e.Action = Action(action)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// OutboxEntry is one pending relay row.
type OutboxEntry struct {
	ID      uuid.UUID
	CaseID  uuid.UUID
	Action  string
	Payload []byte
}

// PendingOutbox returns up to limit unpublished entries in insertion order.
// A crash between produce and MarkPublished re-delivers the entry; the
// consumer's idempotent materialization makes that safe.
func (s *PostgresStore) PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error) {
	const query = `
		SELECT id, case_id, action, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Action, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps an outbox entry after its Kafka produce is acked.
func (s *PostgresStore) MarkPublished(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE audit_outbox SET published_at = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
