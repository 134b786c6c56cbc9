package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	ModeDeep  = "deep"
	ModeQuick = "quick"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is one audited research or quick-search invocation.
type Run struct {
	ID            uuid.UUID       `json:"id"`
	Query         string          `json:"query"`
	Mode          string          `json:"mode"`
	Status        string          `json:"status"`
	MaxIterations int             `json:"max_iterations"`
	Iterations    int             `json:"iterations"`
	TotalCost     float64         `json:"total_cost"`
	TotalTokens   int             `json:"total_tokens"`
	State         json.RawMessage `json:"state,omitempty"`
	Report        *string         `json:"report,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         *string         `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Progress carries the counters persisted after every iteration.
type Progress struct {
	Iterations  int
	TotalCost   float64
	TotalTokens int
	State       json.RawMessage
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

const runColumns = `id, query, mode, status, max_iterations, iterations, total_cost, total_tokens, state, report, result, error, created_at, updated_at`

func scanRun(row pgx.Row) (*Run, error) {
	r := &Run{}
	err := row.Scan(&r.ID, &r.Query, &r.Mode, &r.Status, &r.MaxIterations, &r.Iterations,
		&r.TotalCost, &r.TotalTokens, &r.State, &r.Report, &r.Result, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (db *PostgresDB) CreateRun(ctx context.Context, query, mode string, maxIterations int) (*Run, error) {
	q := `
		INSERT INTO research_runs (id, query, mode, status, max_iterations)
		VALUES ($1, $2, $3, 'running', $4)
		RETURNING ` + runColumns
	run, err := scanRun(db.Pool.QueryRow(ctx, q, uuid.New(), query, mode, maxIterations))
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

func (db *PostgresDB) UpdateProgress(ctx context.Context, id uuid.UUID, p Progress) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE research_runs
		SET iterations = $2, total_cost = $3, total_tokens = $4, state = $5, updated_at = NOW()
		WHERE id = $1`,
		id, p.Iterations, p.TotalCost, p.TotalTokens, nullJSON(p.State))
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}
	return nil
}

func (db *PostgresDB) CompleteRun(ctx context.Context, id uuid.UUID, report string, result json.RawMessage, p Progress) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE research_runs
		SET status = 'completed', report = $2, result = $3, iterations = $4, total_cost = $5, total_tokens = $6, updated_at = NOW()
		WHERE id = $1`,
		id, report, nullJSON(result), p.Iterations, p.TotalCost, p.TotalTokens)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

func (db *PostgresDB) FailRun(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := db.Pool.Exec(ctx,
		"UPDATE research_runs SET status = 'failed', error = $2, updated_at = NOW() WHERE id = $1",
		id, reason)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := scanRun(db.Pool.QueryRow(ctx, "SELECT "+runColumns+" FROM research_runs WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the newest runs first.
func (db *PostgresDB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx, "SELECT "+runColumns+" FROM research_runs ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (db *PostgresDB) AppendLog(ctx context.Context, runID uuid.UUID, e LogEntry) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO research_logs (run_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		runID, e.Timestamp, e.Level, e.Message, nullJSON(e.Metadata))
	return err
}

func (db *PostgresDB) GetLogs(ctx context.Context, runID uuid.UUID) ([]LogEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE run_id = $1
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// nullJSON stores an empty document as SQL NULL.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
