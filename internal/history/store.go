// Package history persists run records in a local SQLite database.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/laspilot/laspilot/internal/task"
)

// tailLines is how many trailing output lines are kept per run.
const tailLines = 40

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		args TEXT NOT NULL,
		dir TEXT,
		state TEXT NOT NULL,
		exit_code INTEGER,
		started_at TIMESTAMP,
		ended_at TIMESTAMP,
		line_count INTEGER NOT NULL DEFAULT 0,
		output_tail TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record is one row of run history.
type Record struct {
	ID         string
	Tool       string
	Args       []string
	Dir        string
	State      string
	ExitCode   *int
	StartedAt  *time.Time
	EndedAt    *time.Time
	LineCount  int
	OutputTail string
	Error      string
}

// Begin inserts a RUNNING row for a run that has just started.
func (s *Store) Begin(id, tool string, args []string, dir string, startedAt time.Time) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO runs (id, tool, args, dir, state, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, tool, string(argsJSON), dir, task.StateRunning.String(), startedAt,
	)
	return err
}

// Finish updates the row for a completed, failed, or canceled run.
func (s *Store) Finish(res *task.RunResult) error {
	_, err := s.db.Exec(
		`UPDATE runs SET state = ?, exit_code = ?, ended_at = ?, line_count = ?, output_tail = ?, error = ?
		 WHERE id = ?`,
		res.State.String(), res.ExitCode, res.EndedAt, len(res.Lines), res.Tail(tailLines), res.Error, res.RunID,
	)
	return err
}

// Get returns one run by id or id prefix, newest first, or sql.ErrNoRows.
// Literal prefix comparison, so LIKE metacharacters in the argument do not
// act as wildcards.
func (s *Store) Get(id string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT id, tool, args, dir, state, exit_code, started_at, ended_at, line_count, output_tail, error
		 FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY started_at DESC LIMIT 1`, id, id,
	)
	return scanRecord(row)
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]*Record, error) {
	rows, err := s.db.Query(
		`SELECT id, tool, args, dir, state, exit_code, started_at, ended_at, line_count, output_tail, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes all but the newest keep runs. Returns rows deleted.
func (s *Store) Prune(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.Exec(
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var argsJSON string
	var dir, tail, errMsg sql.NullString
	var exitCode sql.NullInt64
	var startedAt, endedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.Tool, &argsJSON, &dir, &rec.State,
		&exitCode, &startedAt, &endedAt, &rec.LineCount, &tail, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(argsJSON), &rec.Args); err != nil {
		return nil, fmt.Errorf("run %s: decode args: %w", rec.ID, err)
	}
	if dir.Valid {
		rec.Dir = dir.String
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		rec.ExitCode = &code
	}
	if startedAt.Valid {
		rec.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	if tail.Valid {
		rec.OutputTail = tail.String
	}
	if errMsg.Valid {
		rec.Error = errMsg.String
	}

	return &rec, nil
}
