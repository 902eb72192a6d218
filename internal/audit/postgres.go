package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink appends events to a single append-only table. It never
// issues a SELECT beyond the startup schema check, keeping it a write
// path rather than a second source of truth for controller state.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to dsn and ensures the ledger table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresSink{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS vm_audit_log (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		vm_id TEXT NOT NULL,
		pool_id TEXT NOT NULL,
		host TEXT NOT NULL,
		detail TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresSink) Record(ctx context.Context, ev Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vm_audit_log (kind, vm_id, pool_id, host, detail, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.Kind, ev.VMID, ev.PoolID, ev.Host, ev.Detail, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
