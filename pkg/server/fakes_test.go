package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/search-agent/pkg/database"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory RunStore.
type memStore struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]*database.Run
	order     []uuid.UUID
	logs      map[uuid.UUID][]database.LogEntry
	progress  []database.Progress
	createErr error
	pingErr   error
}

func newMemStore() *memStore {
	return &memStore{runs: map[uuid.UUID]*database.Run{}, logs: map[uuid.UUID][]database.LogEntry{}}
}

func (m *memStore) CreateRun(_ context.Context, query, mode string, maxIterations int) (*database.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	run := &database.Run{
		ID: uuid.New(), Query: query, Mode: mode, Status: database.StatusRunning,
		MaxIterations: maxIterations, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	cp := *run
	return &cp, nil
}

func (m *memStore) UpdateProgress(_ context.Context, id uuid.UUID, p database.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return database.ErrRunNotFound
	}
	m.progress = append(m.progress, p)
	run.Iterations, run.TotalCost, run.TotalTokens, run.State = p.Iterations, p.TotalCost, p.TotalTokens, p.State
	return nil
}

func (m *memStore) CompleteRun(_ context.Context, id uuid.UUID, report string, result json.RawMessage, p database.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return database.ErrRunNotFound
	}
	run.Status = database.StatusCompleted
	run.Report = &report
	run.Result = result
	run.Iterations, run.TotalCost, run.TotalTokens = p.Iterations, p.TotalCost, p.TotalTokens
	return nil
}

func (m *memStore) FailRun(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return database.ErrRunNotFound
	}
	run.Status = database.StatusFailed
	run.Error = &reason
	return nil
}

func (m *memStore) GetRun(_ context.Context, id uuid.UUID) (*database.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, database.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (m *memStore) ListRuns(_ context.Context, limit int) ([]database.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Run
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.runs[m.order[i]])
	}
	return out, nil
}

func (m *memStore) AppendLog(_ context.Context, runID uuid.UUID, e database.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return errors.New("foreign key violation")
	}
	e.ID = len(m.logs[runID]) + 1
	m.logs[runID] = append(m.logs[runID], e)
	return nil
}

func (m *memStore) GetLogs(_ context.Context, runID uuid.UUID) ([]database.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.LogEntry(nil), m.logs[runID]...), nil
}

func (m *memStore) Ping(context.Context) error {
	return m.pingErr
}

func (m *memStore) onlyRun() *database.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) != 1 {
		return nil
	}
	cp := *m.runs[m.order[0]]
	return &cp
}
