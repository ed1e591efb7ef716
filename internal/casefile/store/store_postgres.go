package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"canlaw/internal/casefile"
	"canlaw/internal/slot"
	"canlaw/pkg/domain"
	"canlaw/pkg/platform/sentinel"
)

// PostgresStore persists cases in PostgreSQL. Values and log live in two
// JSONB columns updated by a single statement, so Save is atomic over both
// without an explicit transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, c *casefile.Case) error {
	values, log, err := encodeCaseState(c.SlotValues, c.Log)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO cases (id, jurisdiction, domain, slot_values, calculation_log, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID.String(), c.Jurisdiction, c.Domain, values, log, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create case %s: %w", c.ID, err)
	}
	return nil
}

func (p *PostgresStore) Load(ctx context.Context, id domain.CaseID) (*casefile.Case, error) {
	var (
		c         casefile.Case
		rawID     string
		values    []byte
		log       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, jurisdiction, domain, slot_values, calculation_log, created_at, updated_at
		 FROM cases WHERE id = $1`, id.String(),
	).Scan(&rawID, &c.Jurisdiction, &c.Domain, &values, &log, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load case %s: %w", id, err)
	}

	c.ID = id
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	if err := json.Unmarshal(values, &c.SlotValues); err != nil {
		return nil, fmt.Errorf("decode case %s values: %w", id, err)
	}
	if c.SlotValues == nil {
		c.SlotValues = make(map[slot.Key]domain.Value)
	}
	if err := json.Unmarshal(log, &c.Log); err != nil {
		return nil, fmt.Errorf("decode case %s log: %w", id, err)
	}
	return &c, nil
}

func (p *PostgresStore) Save(ctx context.Context, id domain.CaseID, values map[slot.Key]domain.Value, log []casefile.LogEntry) error {
	rawValues, rawLog, err := encodeCaseState(values, log)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE cases SET slot_values = $2, calculation_log = $3, updated_at = $4 WHERE id = $1`,
		id.String(), rawValues, rawLog, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save case %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save case %s: %w", id, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func encodeCaseState(values map[slot.Key]domain.Value, log []casefile.LogEntry) ([]byte, []byte, error) {
	if values == nil {
		values = make(map[slot.Key]domain.Value)
	}
	rawValues, err := json.Marshal(values)
	if err != nil {
		return nil, nil, fmt.Errorf("encode slot values: %w", err)
	}
	if log == nil {
		log = []casefile.LogEntry{}
	}
	rawLog, err := json.Marshal(log)
	if err != nil {
		return nil, nil, fmt.Errorf("encode calculation log: %w", err)
	}
	return rawValues, rawLog, nil
}
