package resultstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/quaylabs/devsim/devs"
)

// MySQLStore persists run outcomes to a shared MySQL database, for
// experiments whose `devsim multi` workers may span more than one
// process or machine.
type MySQLStore struct {
	db  *sql.DB
	dsn string
}

// NewMySQLStore opens a MySQL connection (see
// github.com/go-sql-driver/mysql for DSN format) and ensures its schema
// exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("resultstore: open mysql: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)

	s := &MySQLStore{db: db, dsn: dsn}
	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_results (
			variant_num   BIGINT UNSIGNED NOT NULL,
			iteration_num BIGINT UNSIGNED NOT NULL,
			model         VARCHAR(512) NOT NULL,
			observer      VARCHAR(128) NOT NULL,
			result        JSON NOT NULL,
			PRIMARY KEY (variant_num, iteration_num, model, observer)
		)
	`)
	if err != nil {
		return fmt.Errorf("resultstore: create run_results table: %w", err)
	}
	return nil
}

func (s *MySQLStore) SaveOutcome(ctx context.Context, outcome devs.RunOutcome) error {
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
		INSERT INTO run_results (variant_num, iteration_num, model, observer, result)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE result = VALUES(result)
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

func (s *MySQLStore) LoadVariant(ctx context.Context, variant uint64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration_num, model, observer, result FROM run_results
		WHERE variant_num = ?
		ORDER BY iteration_num, model, observer
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

func (s *MySQLStore) Close() error { return s.db.Close() }
