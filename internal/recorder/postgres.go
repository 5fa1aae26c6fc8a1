package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"CycleLedger/internal/model"
)

// PostgresRecorder persists events to PostgreSQL.
type PostgresRecorder struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	log     *logrus.Entry
}

// NewPostgresRecorder connects, pings and creates the events table.
func NewPostgresRecorder(ctx context.Context, databaseURL string, log *logrus.Entry) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &PostgresRecorder{pool: pool, timeout: 5 * time.Second, log: log}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("postgres recorder connected")
	return r, nil
}

func (r *PostgresRecorder) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger_events (
			id          UUID PRIMARY KEY,
			project_id  BIGINT NOT NULL,
			kind        TEXT NOT NULL,
			actor       TEXT,
			amounts     JSONB,
			note        TEXT,
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_events_project ON ledger_events(project_id, occurred_at)`,
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

func (r *PostgresRecorder) Record(evt *model.Event) error {
	amounts, err := json.Marshal(evt.Amounts)
	if err != nil {
		return fmt.Errorf("failed to marshal amounts: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	query := `
		INSERT INTO ledger_events (id, project_id, kind, actor, amounts, note, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.pool.Exec(ctx, query,
		evt.ID,
		int64(evt.ProjectID),
		string(evt.Kind),
		string(evt.Actor),
		amounts,
		evt.Note,
		evt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Close() error {
	r.log.Info("closing postgres recorder")
	r.pool.Close()
	return nil
}
