// Package sqlite keeps per-employee YTD snapshots in a local SQLite file so
// that successive CLI runs accumulate year-to-date totals without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"payengine/internal/domain/payroll"
)

const schema = `
CREATE TABLE IF NOT EXISTS ytd_snapshots (
  employer_id TEXT NOT NULL,
  employee_id TEXT NOT NULL,
  year INTEGER NOT NULL,
  snapshot TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
  PRIMARY KEY (employer_id, employee_id, year)
);`

type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open ytd database: %w", err)
	}
	// SQLite takes one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ytd database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ytd schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored snapshot, or an empty one for year when the
// employee has none yet.
func (s *Store) Load(ctx context.Context, employerID payroll.EmployerID, employeeID payroll.EmployeeID, year int) (payroll.YtdSnapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
    SELECT snapshot FROM ytd_snapshots
    WHERE employer_id = ? AND employee_id = ? AND year = ?
  `, employerID, employeeID, year).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.NewYtdSnapshot(year), nil
	}
	if err != nil {
		return payroll.YtdSnapshot{}, fmt.Errorf("load ytd: %w", err)
	}

	snap := payroll.NewYtdSnapshot(year)
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return payroll.YtdSnapshot{}, fmt.Errorf("decode ytd: %w", err)
	}
	return snap.Clone(), nil
}

// Save replaces the employee's snapshot for snap.Year.
func (s *Store) Save(ctx context.Context, employerID payroll.EmployerID, employeeID payroll.EmployeeID, snap payroll.YtdSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode ytd: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
    INSERT INTO ytd_snapshots (employer_id, employee_id, year, snapshot)
    VALUES (?, ?, ?, ?)
    ON CONFLICT (employer_id, employee_id, year)
    DO UPDATE SET snapshot = excluded.snapshot, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
  `, employerID, employeeID, snap.Year, string(raw))
	if err != nil {
		return fmt.Errorf("save ytd: %w", err)
	}
	return nil
}
