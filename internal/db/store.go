package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusApproved  = "approved"
	StatusExhausted = "exhausted"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Store is the run journal.
type Store struct {
	db *sql.DB
}

// NewStore creates a journal store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Run is a journaled pipeline run.
type Run struct {
	ID         string
	CreatedAt  time.Time
	Story      string
	Status     string
	Iterations int
	Verdict    string
	RunDir     string
	EndedAt    time.Time
}

// Event is one timeline entry of a run.
type Event struct {
	Seq      int
	TS       time.Time
	Type     string
	Message  string
	DataJSON string
}

// Outcome finalizes a run.
type Outcome struct {
	Status     string
	Iterations int
	Verdict    string
}

// CreateRun inserts the run record and a run_started event.
func (s *Store) CreateRun(ctx context.Context, runID, story, runDir string) error {
	createdAt := time.Now().UTC().Format(time.RFC3339)
	return s.inTx(ctx, "create run", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO runs(run_id, created_at, story, status, iterations, verdict, run_dir)
			VALUES(?, ?, ?, ?, 0, NULL, ?)`,
			runID, createdAt, story, StatusRunning, runDir); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return insertEvent(ctx, tx, runID, Event{Type: "run_started", Message: "run started"})
	})
}

// AppendEvent adds an event at the end of the run timeline.
func (s *Store) AppendEvent(ctx context.Context, runID string, ev Event) error {
	return s.inTx(ctx, "append event", func(tx *sql.Tx) error {
		return insertEvent(ctx, tx, runID, ev)
	})
}

// FinishRun records the outcome and a run_finished event.
func (s *Store) FinishRun(ctx context.Context, runID string, out Outcome, ev Event) error {
	endedAt := time.Now().UTC().Format(time.RFC3339)
	return s.inTx(ctx, "finish run", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE runs SET status=?, iterations=?, verdict=?, ended_at=? WHERE run_id=?`,
			out.Status, out.Iterations, nullableString(out.Verdict), endedAt, runID)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return insertEvent(ctx, tx, runID, ev)
	})
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, created_at, story, status, iterations, COALESCE(verdict, ''), run_dir, COALESCE(ended_at, '')
		FROM runs ORDER BY created_at DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var r Run
		var createdAt, endedAt string
		if err := rows.Scan(&r.ID, &createdAt, &r.Story, &r.Status, &r.Iterations, &r.Verdict, &r.RunDir, &endedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if endedAt != "" {
			r.EndedAt, _ = time.Parse(time.RFC3339, endedAt)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// GetRunStatus returns the status for a run id, or empty if missing.
func (s *Store) GetRunStatus(ctx context.Context, runID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT status FROM runs WHERE run_id=?`, runID)
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read run status: %w", err)
	}
	return status, nil
}

// Events returns the run timeline in order.
func (s *Store) Events(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, ts, type, message, COALESCE(data_json, '') FROM events WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var ev Event
		var ts string
		if err := rows.Scan(&ev.Seq, &ts, &ev.Type, &ev.Message, &ev.DataJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.TS, _ = time.Parse(time.RFC3339, ts)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// DeleteRun removes a run and its events.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id=?`, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, runID string, ev Event) error {
	seq, err := nextSeq(ctx, tx, runID)
	if err != nil {
		return err
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `INSERT INTO events(run_id, seq, ts, type, message, data_json) VALUES(?, ?, ?, ?, ?, ?)`,
		runID, seq, ts, ev.Type, ev.Message, nullableString(ev.DataJSON)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func nextSeq(ctx context.Context, tx *sql.Tx, runID string) (int, error) {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE run_id=?`, runID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return seq + 1, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
