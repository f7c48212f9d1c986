package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/logger"
)

func result(id string) *contracts.RunResult {
	return &contracts.RunResult{
		RunID:     id,
		Status:    contracts.StatusComplete,
		Event:     contracts.Event{Headline: "h", Ticker: "NVDA", Source: "s"},
		Timestamp: "2026-01-02T03:04:05Z",
		Supervisor: &contracts.SupervisorPayload{
			AuditStatus: contracts.AuditCompliant,
		},
	}
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, logger.Nop())

	require.NoError(t, p.Publish(result("run-1")))

	data, err := os.ReadFile(filepath.Join(dir, "pipeline-run-1.json"))
	require.NoError(t, err)

	var got contracts.RunResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.IsComplete())
	assert.Equal(t, "NVDA", got.Event.Ticker)

	index, err := p.ReadRunsIndex()
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, contracts.RunSummary{
		RunID: "run-1", Ticker: "NVDA", Headline: "h", Timestamp: "2026-01-02T03:04:05Z",
	}, index[0])
}

func TestWriteResultRequiresID(t *testing.T) {
	p := New(t.TempDir(), logger.Nop())
	assert.Error(t, p.WriteResult(nil))
	assert.Error(t, p.WriteResult(&contracts.RunResult{}))
}

func TestWriteResultRejectsUnsafeID(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "data", "runs")
	p := New(dir, logger.Nop())

	tests := []struct {
		name string
		id   string
	}{
		{"parent traversal", "x/../../../escaped"},
		{"dot dot", ".."},
		{"absolute", "/tmp/run-1"},
		{"space", "run 1"},
		{"too long", "run-" + strings.Repeat("a", 61)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.WriteResult(result(tt.id))
			assert.ErrorIs(t, err, ErrInvalidRunID)
		})
	}

	var written []string
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			written = append(written, path)
		}
		return err
	}))
	assert.Empty(t, written)
}

func TestConcurrentPublishSameMillisecond(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, logger.Nop())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// half the writers share one id, as two runs in one millisecond did
			id := "run-1700000000000"
			if i%2 == 1 {
				id = fmt.Sprintf("run-1700000000000-%08x", i)
			}
			errs <- p.Publish(result(id))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	index, err := p.ReadRunsIndex()
	require.NoError(t, err)
	assert.Len(t, index, 11)
}

func TestRunsIndexNewestFirstAndBounded(t *testing.T) {
	p := New(t.TempDir(), logger.Nop())

	for i := 0; i < IndexLimit+5; i++ {
		require.NoError(t, p.UpdateRunsIndex(contracts.RunSummary{RunID: fmt.Sprintf("run-%d", i)}))
	}
	// republishing moves a run to the front without duplicating it
	require.NoError(t, p.UpdateRunsIndex(contracts.RunSummary{RunID: "run-30"}))

	index, err := p.ReadRunsIndex()
	require.NoError(t, err)
	assert.Len(t, index, IndexLimit)
	assert.Equal(t, "run-30", index[0].RunID)
	assert.Equal(t, "run-54", index[1].RunID)

	seen := map[string]int{}
	for _, row := range index {
		seen[row.RunID]++
	}
	assert.Equal(t, 1, seen["run-30"])
}

func TestReadRunsIndexMissing(t *testing.T) {
	index, err := New(filepath.Join(t.TempDir(), "none"), logger.Nop()).ReadRunsIndex()
	require.NoError(t, err)
	assert.NotNil(t, index)
	assert.Empty(t, index)
}
