package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fractal-lba/bestarm/internal/report"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the table PostgresStore expects.
const Schema = `
CREATE TABLE IF NOT EXISTS bestarm_reports (
  report_key VARCHAR(255) PRIMARY KEY,
  report JSONB NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bestarm_reports_expires ON bestarm_reports(expires_at);
`

const (
	getQuery = `
		SELECT report
		FROM bestarm_reports
		WHERE report_key = $1 AND expires_at > NOW()
	`

	// An expired row is replaced; a live one keeps the first write.
	putQuery = `
		INSERT INTO bestarm_reports (report_key, report, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (report_key) DO UPDATE
		SET report = EXCLUDED.report, expires_at = EXCLUDED.expires_at
		WHERE bestarm_reports.expires_at <= NOW()
	`

	cleanupQuery = `DELETE FROM bestarm_reports WHERE expires_at <= NOW()`
)

// PostgresStore keeps reports in Postgres. A live row is never overwritten,
// so the first write wins until it expires.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings, ensures the schema exists, and purges
// expired reports.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	p := &PostgresStore{pool: pool}
	if _, err := p.CleanupExpired(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (*report.Report, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, getQuery, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}

	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &rep, nil
}

func (p *PostgresStore) Put(ctx context.Context, key string, rep *report.Report, ttl time.Duration) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if _, err := p.pool.Exec(ctx, putQuery, key, data, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("postgres insert failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// CleanupExpired deletes expired reports and returns the row count.
func (p *PostgresStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, cleanupQuery)
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
