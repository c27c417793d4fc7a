package resultstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/quaylabs/devsim/devs"
)

// SQLiteStore persists run outcomes to a local SQLite file, one row per
// (variant, iteration, model, observer) result. cmd/devsim uses it for
// both `devsim single` and `devsim multi`, where one process owns the
// whole experiment.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path and
// ensures its schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("resultstore: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("resultstore: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_results (
			variant   INTEGER NOT NULL,
			iteration INTEGER NOT NULL,
			model     TEXT NOT NULL,
			observer  TEXT NOT NULL,
			result    TEXT NOT NULL,
			PRIMARY KEY (variant, iteration, model, observer)
		)
	`)
	if err != nil {
		return fmt.Errorf("resultstore: create run_results table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveOutcome(ctx context.Context, outcome devs.RunOutcome) error {
	records, _ := toRecords(outcome)
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("resultstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO run_results (variant, iteration, model, observer, result)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("resultstore: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Variant, r.Iteration, r.Model, r.Observer, string(r.Result)); err != nil {
			return fmt.Errorf("resultstore: insert result: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadVariant(ctx context.Context, variant uint64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, model, observer, result FROM run_results
		WHERE variant = ?
		ORDER BY iteration, model, observer
	`, variant)
	if err != nil {
		return nil, fmt.Errorf("resultstore: query variant: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		r.Variant = variant
		var result string
		if err := rows.Scan(&r.Iteration, &r.Model, &r.Observer, &result); err != nil {
			return nil, fmt.Errorf("resultstore: scan row: %w", err)
		}
		r.Result = []byte(result)
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
