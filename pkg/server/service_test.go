package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/search-agent/pkg/database"
	"github.com/mikeboe/search-agent/pkg/research"
)

func TestResearchRecordsProgressAndResult(t *testing.T) {
	store := newMemStore()
	deep, _ := scriptedDeep(0, nil)
	svc := NewService(deep, scriptedQuick, store, discardLogger())

	res, err := svc.Research(context.Background(), "  graphene  ", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)

	run := store.onlyRun()
	require.NotNil(t, run)
	assert.Equal(t, "graphene", run.Query)
	assert.Equal(t, database.ModeDeep, run.Mode)
	assert.Equal(t, 3, run.MaxIterations)
	assert.Equal(t, database.StatusCompleted, run.Status)
	require.NotNil(t, run.Report)
	assert.Equal(t, "# Report on graphene", *run.Report)
	assert.Equal(t, 30, run.TotalTokens)

	require.Len(t, store.progress, 3)
	for i, p := range store.progress {
		assert.Equal(t, i+1, p.Iterations)
		var state research.ResearchContext
		require.NoError(t, json.Unmarshal(p.State, &state))
		assert.Equal(t, i+1, state.SearchIterations)
	}

	var stored research.Result
	require.NoError(t, json.Unmarshal(run.Result, &stored))
	assert.Equal(t, res.FinalReport, stored.FinalReport)
}

func TestResearchFailureMarksRunFailed(t *testing.T) {
	store := newMemStore()
	deep, _ := scriptedDeep(0, &research.SynthesisError{Err: errors.New("model down")})
	svc := NewService(deep, scriptedQuick, store, discardLogger())

	_, err := svc.Research(context.Background(), "q", 1)
	var serr *research.SynthesisError
	require.ErrorAs(t, err, &serr)

	run := store.onlyRun()
	require.NotNil(t, run)
	assert.Equal(t, database.StatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "model down")
}

func TestResearchContinuesWhenStoreUnavailable(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("connection refused")
	deep, _ := scriptedDeep(0, nil)
	svc := NewService(deep, scriptedQuick, store, discardLogger())

	res, err := svc.Research(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
	assert.Empty(t, store.progress)
}

func TestResearchRejectsEmptyQueryWithoutRecording(t *testing.T) {
	store := newMemStore()
	deep, seen := scriptedDeep(0, nil)
	svc := NewService(deep, scriptedQuick, store, discardLogger())

	_, err := svc.Research(context.Background(), "", 2)
	assert.ErrorIs(t, err, research.ErrEmptyQuery)
	assert.Empty(t, *seen)
	assert.Nil(t, store.onlyRun())
}

func TestQuickSearchRecordsRun(t *testing.T) {
	store := newMemStore()
	deep, _ := scriptedDeep(0, nil)
	svc := NewService(deep, scriptedQuick, store, discardLogger())

	res, err := svc.QuickSearch(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	run := store.onlyRun()
	require.NotNil(t, run)
	assert.Equal(t, database.ModeQuick, run.Mode)
	assert.Equal(t, svc.QuickMaxIterations, run.MaxIterations)
	assert.Equal(t, database.StatusCompleted, run.Status)
}

func TestQuickSearchNotConfigured(t *testing.T) {
	deep, _ := scriptedDeep(0, nil)
	svc := NewService(deep, nil, nil, discardLogger())
	_, err := svc.QuickSearch(context.Background(), "q", 1)
	assert.Error(t, err)
}

func TestDBLogHandlerTeesRecords(t *testing.T) {
	store := newMemStore()
	run, err := store.CreateRun(context.Background(), "q", database.ModeDeep, 1)
	require.NoError(t, err)

	var console bytes.Buffer
	next := slog.NewTextHandler(&console, nil)
	logger := slog.New(NewDBLogHandler(store, run.ID, next)).With("run_id", "abc").WithGroup("engine")

	logger.Info("Starting iteration", "iteration", 2, "error", errors.New("boom"))
	logger.Debug("hidden on console")

	logs, err := store.GetLogs(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Starting iteration", logs[0].Message)
	assert.Equal(t, "INFO", logs[0].Level)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &meta))
	assert.Equal(t, "abc", meta["run_id"])
	assert.Equal(t, float64(2), meta["engine.iteration"])
	assert.Equal(t, "boom", meta["engine.error"])

	// Records below the console level are dropped from both outputs.
	assert.Contains(t, console.String(), "Starting iteration")
	assert.NotContains(t, console.String(), "hidden on console")
}

func TestDBLogHandlerFollowsConsoleLevel(t *testing.T) {
	store := newMemStore()
	run, err := store.CreateRun(context.Background(), "q", database.ModeDeep, 1)
	require.NoError(t, err)

	var console bytes.Buffer
	next := slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewDBLogHandler(store, run.ID, next))
	logger.Debug("tool arguments")

	logs, err := store.GetLogs(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "DEBUG", logs[0].Level)
	assert.Contains(t, console.String(), "tool arguments")

	// Without a console handler every level is stored.
	sinkOnly := NewDBLogHandler(store, run.ID, nil)
	assert.True(t, sinkOnly.Enabled(context.Background(), slog.LevelDebug))
}

func TestDBLogHandlerReportsSinkErrors(t *testing.T) {
	h := NewDBLogHandler(newMemStore(), uuid.New(), nil)
	err := h.Handle(context.Background(), slog.NewRecord(timeZero, slog.LevelInfo, "orphan", 0))
	assert.Error(t, err)
}
