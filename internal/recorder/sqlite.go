package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"CycleLedger/internal/model"
)

// SQLiteRecorder persists events to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logrus.Entry
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *logrus.Entry) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the ledger writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger_events (
			id          TEXT PRIMARY KEY,
			project_id  INTEGER NOT NULL,
			kind        TEXT NOT NULL,
			actor       TEXT,
			amounts     TEXT,
			note        TEXT,
			timestamp   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_project_ts ON ledger_events(project_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON ledger_events(kind)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Record(evt *model.Event) error {
	amounts, err := json.Marshal(evt.Amounts)
	if err != nil {
		return fmt.Errorf("marshal amounts: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.Exec(`INSERT INTO ledger_events
		(id, project_id, kind, actor, amounts, note, timestamp)
		VALUES (?,?,?,?,?,?,?)`,
		evt.ID, evt.ProjectID, string(evt.Kind), string(evt.Actor),
		string(amounts), evt.Note, evt.Timestamp.UnixNano(),
	)
	return err
}

// Events returns the project's most recent events, newest first.
func (r *SQLiteRecorder) Events(projectID uint64, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT id, project_id, kind, actor, amounts, note, timestamp
		FROM ledger_events WHERE project_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			evt     model.Event
			kind    string
			actor   string
			amounts string
			ts      int64
		)
		if err := rows.Scan(&evt.ID, &evt.ProjectID, &kind, &actor, &amounts, &evt.Note, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Kind = model.EventKind(kind)
		evt.Actor = model.Address(actor)
		evt.Timestamp = time.Unix(0, ts).UTC()
		if err := json.Unmarshal([]byte(amounts), &evt.Amounts); err != nil {
			return nil, fmt.Errorf("decode amounts of %s: %w", evt.ID, err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
