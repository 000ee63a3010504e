package runlog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(base time.Time) []RunRecord {
	return []RunRecord{
		{RunID: "a", Timestamp: base, Case: "toy", Variant: "basic", Backend: "simplex", Status: "optimal", Objective: 6000},
		{RunID: "b", Timestamp: base.Add(time.Hour), Case: "toy", Variant: "basic", Backend: "simplex", Status: "infeasible", Error: "demand exceeds capacity"},
		{RunID: "c", Timestamp: base.Add(2 * time.Hour), Case: "rts", Variant: "network", Backend: "cbc", Status: "time_limit", Suboptimal: true},
	}
}

func ids(recs []RunRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.RunID
	}
	return out
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, r := range sampleRecords(base) {
		require.NoError(t, s.Append(ctx, r))
	}

	all, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(all))

	byCase, err := s.Query(ctx, Query{Case: "toy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(byCase))

	byStatus, err := s.Query(ctx, Query{Status: "time_limit"})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.True(t, byStatus[0].Suboptimal)

	window, err := s.Query(ctx, Query{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(window))
	assert.Equal(t, "demand exceeds capacity", window[0].Error)
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "runs", "runs.jsonl"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestJSONLStore_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), RunRecord{RunID: "a", Status: "optimal"}))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(out))
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 5, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// Each record carries ~4KiB of error text so 400 records exceed 1MB.
	rec := RunRecord{Timestamp: time.Now(), Case: "big", Status: "error", Error: strings.Repeat("x", 4096)}
	for i := 0; i < 400; i++ {
		require.NoError(t, s.Append(context.Background(), rec))
	}
	files, err := filepath.Glob(filepath.Join(dir, "runs*.jsonl"))
	require.NoError(t, err)
	assert.Greater(t, len(files), 1, "expected rotated backups")

	out, err := s.Query(context.Background(), Query{Case: "big"})
	require.NoError(t, err)
	assert.Len(t, out, 400)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRunRecord_JSON(t *testing.T) {
	data, err := json.Marshal(RunRecord{RunID: "a", Case: "toy", Costs: map[string]string{"total": "6000"}})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"run_id", "timestamp", "case", "status", "objective", "gap", "costs"} {
		assert.Contains(t, m, k)
	}
	assert.NotContains(t, m, "error")
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		cfg  Config
		want any
	}{
		{Config{}, NopStore{}},
		{Config{Backend: "jsonl", Path: filepath.Join(dir, "a.jsonl")}, &JSONLStore{}},
		{Config{Backend: "jsonl_rotating", Path: filepath.Join(dir, "b.jsonl")}, &RotatingJSONLStore{}},
		{Config{Backend: "sqlite", Path: filepath.Join(dir, "c.db")}, &SQLiteStore{}},
	}
	for _, tc := range cases {
		s, err := Open(tc.cfg)
		require.NoError(t, err, tc.cfg.Backend)
		assert.IsType(t, tc.want, s)
		require.NoError(t, s.Close())
	}

	_, err := Open(Config{Backend: "jsonl"})
	assert.ErrorContains(t, err, "path required")
	_, err = Open(Config{Backend: "postgres", Path: "x"})
	assert.ErrorContains(t, err, "unknown backend")
}
