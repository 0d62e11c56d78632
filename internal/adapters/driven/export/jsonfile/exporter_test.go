package jsonfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

func sampleResult() driven.RunResult {
	first := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	return driven.RunResult{
		Run: domain.Run{
			ID:     "run-1",
			Config: domain.DefaultRunConfig("what happened with the return?"),
			Status: domain.StatusDone,
		},
		Threads: []domain.Thread{{
			ID:           "T-001",
			Participants: []string{"a@example.com", "b@allergan.com"},
			First:        first,
			Last:         first.AddDate(0, 0, 1),
			TopScore:     0.9,
			MessageCount: 2,
			Summary:      "The machine was returned under an RMA.",
			Confidence:   0.8,
			Bullets: []domain.Bullet{{
				ThreadID:  "T-001",
				MessageID: "G-001",
				Claim:     "the machine had temperature faults",
				Quote:     "The unit has been experiencing consistent temperature regulation issues.",
				Date:      first,
			}},
		}},
	}
}

func TestExport_WritesResultJSON(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	require.NoError(t, e.Export(context.Background(), sampleResult()))

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "result.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, "what happened with the return?", doc["question"])
	assert.Equal(t, "done", doc["status"])

	threads, ok := doc["threads"].([]any)
	require.True(t, ok)
	require.Len(t, threads, 1)
	thread := threads[0].(map[string]any)
	assert.Equal(t, "T-001", thread["id"])
	assert.Equal(t, "2025-02-01", thread["first"])

	bullets := thread["bullets"].([]any)
	require.Len(t, bullets, 1)
	bullet := bullets[0].(map[string]any)
	assert.Equal(t, "[G-001|T-001|2025-02-01]", bullet["citation"])
}

func TestExport_WritesBulletsCSV(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	require.NoError(t, e.Export(context.Background(), sampleResult()))

	f, err := os.Open(filepath.Join(dir, "run-1", "bullets.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"thread_id", "claim", "quote", "message_id", "date"}, rows[0])
	assert.Equal(t, "T-001", rows[1][0])
	assert.Equal(t, "G-001", rows[1][3])
	assert.Equal(t, "2025-02-01", rows[1][4])
}

func TestExport_NoThreads(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	result := sampleResult()
	result.Threads = nil
	require.NoError(t, e.Export(context.Background(), result))

	rows := readCSV(t, filepath.Join(dir, "run-1", "bullets.csv"))
	assert.Len(t, rows, 1, "header only")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}
