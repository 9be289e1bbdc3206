package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	r := NewRecord(3, 4096, "password")
	_, err := uuid.Parse(r.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, r.ItemCount)
	assert.Equal(t, int64(4096), r.TotalBytes)
	assert.Equal(t, "password", r.Method)
	assert.Equal(t, time.UTC, r.Timestamp.Location())
	assert.WithinDuration(t, time.Now(), r.Timestamp, time.Minute)
}

func exerciseSink(t *testing.T, s Sink) {
	t.Helper()
	ctx := context.Background()

	empty, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		r := NewRecord(i+1, int64(100*(i+1)), "confirmation")
		r.Timestamp = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Append(ctx, r))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[0].ItemCount)
	assert.Equal(t, 1, all[2].ItemCount)
	assert.True(t, all[0].Timestamp.Equal(base.Add(2*time.Hour)))

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(300), limited[0].TotalBytes)
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	s := NewJSONLSink(path)
	exerciseSink(t, s)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	for _, key := range []string{`"id"`, `"timestamp"`, `"item_count"`, `"total_bytes"`, `"method"`} {
		assert.Contains(t, lines[0], key)
	}
}

func TestJSONLSink_CorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o600))
	_, err := NewJSONLSink(path).List(context.Background(), 0)
	assert.Error(t, err)
}

func TestJSONLSink_CancelledAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewJSONLSink(path).Append(ctx, NewRecord(1, 1, "flag")), context.Canceled)
	assert.NoFileExists(t, path)
}

func TestDBSink(t *testing.T) {
	s, err := OpenDB(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skip("sqlite driver needs cgo")
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseSink(t, s)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("", filepath.Join(dir, "a.jsonl"))
	require.NoError(t, err)
	assert.IsType(t, &JSONLSink{}, s)

	s, err = Open("JSONL", filepath.Join(dir, "b.jsonl"))
	require.NoError(t, err)
	assert.IsType(t, &JSONLSink{}, s)

	_, err = Open("postgres", filepath.Join(dir, "c"))
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
