package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"canlaw/contracts/slotconfig"
	"canlaw/internal/slot"
	"canlaw/pkg/platform/sentinel"
)

// PostgresRegistry persists slot configurations in PostgreSQL. The full wire
// record lives in a JSONB column; scope and category are denormalized for
// filtering.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (p *PostgresRegistry) GetSlot(ctx context.Context, key slot.Key) (*slot.Slot, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT record FROM slots WHERE key = $1`, string(key),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get slot %s: %w", key, err)
	}
	return decodeSlot(raw)
}

func (p *PostgresRegistry) ListActive(ctx context.Context, filter ScopeFilter, categories ...slot.Category) ([]*slot.Slot, error) {
	query := `SELECT record FROM slots
		WHERE active
		  AND (jurisdiction = '' OR $1 = '' OR jurisdiction = $1)
		  AND (domain = '' OR $2 = '' OR domain = $2)`
	args := []any{filter.Jurisdiction, filter.Domain}
	if len(categories) > 0 {
		names := make([]string, 0, len(categories))
		for _, c := range categories {
			names = append(names, c.String())
		}
		query += ` AND category = ANY($3)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY key`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active slots: %w", err)
	}
	defer rows.Close()

	var out []*slot.Slot
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan slot row: %w", err)
		}
		s, err := decodeSlot(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresRegistry) PutSlot(ctx context.Context, s *slot.Slot) error {
	rec, err := slot.ToRecord(s)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", s.Key, err)
	}
	raw, err := slotconfig.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", s.Key, err)
	}

	var jurisdiction, legalDomain string
	if s.Scope != nil {
		jurisdiction = s.Scope.Jurisdiction
		legalDomain = s.Scope.Domain
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO slots (key, record, active, jurisdiction, domain, category, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (key) DO UPDATE SET
		   record = EXCLUDED.record,
		   active = EXCLUDED.active,
		   jurisdiction = EXCLUDED.jurisdiction,
		   domain = EXCLUDED.domain,
		   category = EXCLUDED.category,
		   updated_at = EXCLUDED.updated_at`,
		string(s.Key), raw, s.Active, jurisdiction, legalDomain, s.Category.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put slot %s: %w", s.Key, err)
	}
	return nil
}

func decodeSlot(raw []byte) (*slot.Slot, error) {
	rec, err := slotconfig.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode slot record: %w", err)
	}
	return slot.FromRecord(rec)
}
