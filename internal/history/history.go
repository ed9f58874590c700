// Package history keeps a sqlite ledger of pipeline runs and per-unit
// outcomes. The ledger is reporting only: the artifact store's
// directory presence remains the sole cache signal, and nothing here
// influences what gets recomputed.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zack-zzq/modpack-localizer/internal/store"
)

// UnitStatus is the terminal state of one unit within a run.
type UnitStatus string

const (
	StatusPending UnitStatus = "pending"
	StatusDone    UnitStatus = "done"
	StatusFailed  UnitStatus = "failed"
)

// UnitRecord is one unit's outcome in a run.
type UnitRecord struct {
	Unit   store.UnitKey
	Status UnitStatus
	Reason string
}

// Store is the sqlite-backed run ledger.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	success INTEGER
);
CREATE TABLE IF NOT EXISTS unit_results (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	category TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, category, name)
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun opens a new run record for a slug and returns its ID.
func (s *Store) StartRun(ctx context.Context, slug string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (slug, started_at) VALUES (?, ?)`,
		slug, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return res.LastInsertId()
}

// RecordUnit upserts one unit's status for a run.
func (s *Store) RecordUnit(ctx context.Context, runID int64, unit store.UnitKey, status UnitStatus, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO unit_results (run_id, category, name, status, reason)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, category, name)
		 DO UPDATE SET status = excluded.status, reason = excluded.reason`,
		runID, string(unit.Category), unit.Name, string(status), reason)
	if err != nil {
		return fmt.Errorf("record unit %s: %w", unit, err)
	}
	return nil
}

// FinishRun closes a run record.
func (s *Store) FinishRun(ctx context.Context, runID int64, success bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, success = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), boolToInt(success), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RunUnits returns the unit outcomes recorded for a run, ordered by
// category then name.
func (s *Store) RunUnits(ctx context.Context, runID int64) ([]UnitRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, name, status, reason FROM unit_results
		 WHERE run_id = ? ORDER BY category, name`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run units: %w", err)
	}
	defer rows.Close()

	var records []UnitRecord
	for rows.Next() {
		var rec UnitRecord
		var category string
		if err := rows.Scan(&category, &rec.Unit.Name, &rec.Status, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan unit record: %w", err)
		}
		rec.Unit.Category = store.Category(category)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
