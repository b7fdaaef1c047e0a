package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logRow struct {
	jobID   uuid.UUID
	level   string
	message string
	meta    map[string]any
}

type fakeExecer struct {
	mu   sync.Mutex
	rows []logRow
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	var meta map[string]any
	_ = json.Unmarshal(args[4].([]byte), &meta)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, logRow{
		jobID:   args[0].(uuid.UUID),
		level:   args[2].(string),
		message: args[3].(string),
		meta:    meta,
	})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestDBLogHandler(t *testing.T) {
	db := &fakeExecer{}
	jobID := uuid.New()
	logger := slog.New(NewDBLogHandler(db, jobID))

	logger.With("job", "j1").Info("Generated SERP queries", "planned", 3, "error", errors.New("partial"), "took", 2*time.Second)
	logger.Debug("dropped below info")

	require.Len(t, db.rows, 1)
	row := db.rows[0]
	assert.Equal(t, jobID, row.jobID)
	assert.Equal(t, "INFO", row.level)
	assert.Equal(t, "Generated SERP queries", row.message)
	assert.Equal(t, "j1", row.meta["job"])
	assert.Equal(t, float64(3), row.meta["planned"])
	assert.Equal(t, "partial", row.meta["error"])
	assert.Equal(t, "2s", row.meta["took"])
}

func TestDBLogHandlerGroups(t *testing.T) {
	db := &fakeExecer{}
	logger := slog.New(NewDBLogHandler(db, uuid.New()))

	logger.WithGroup("branch").With("query", "q1").Warn("Query failed", "attempt", 2)

	require.Len(t, db.rows, 1)
	branch, ok := db.rows[0].meta["branch"].(map[string]any)
	require.True(t, ok, "meta: %v", db.rows[0].meta)
	assert.Equal(t, "q1", branch["query"])
	assert.Equal(t, float64(2), branch["attempt"])
}

func TestTeeHandler(t *testing.T) {
	db := &fakeExecer{}
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(newTeeHandler(NewDBLogHandler(db, uuid.New()), text)).With("job_id", "j1")
	logger.Info("Research complete", "findings", 4)
	logger.Debug("console only")

	assert.Len(t, db.rows, 1)
	assert.Contains(t, buf.String(), "Research complete")
	assert.Contains(t, buf.String(), "job_id=j1")
	assert.Contains(t, buf.String(), "console only")
}

func TestTeeHandlerReportsFirstError(t *testing.T) {
	db := &fakeExecer{err: errors.New("connection refused")}
	var buf bytes.Buffer
	h := newTeeHandler(NewDBLogHandler(db, uuid.New()), slog.NewTextHandler(&buf, nil))

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "boom", 0))
	assert.EqualError(t, err, "connection refused")
	assert.Contains(t, buf.String(), "boom", "other handlers still receive the record")
}
