// Package publish writes run results where the poll client expects them:
// pipeline-{runId}.json and runs-index.json in one data directory.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/logger"
)

// IndexLimit bounds runs-index.json
const IndexLimit = 50

// IndexFile is the runs index name inside the data dir
const IndexFile = "runs-index.json"

// ErrInvalidRunID rejects ids that could name a file outside the data dir
var ErrInvalidRunID = errors.New("publish: invalid run id")

// ResultFile returns the file name of a run result
func ResultFile(runID string) string {
	return fmt.Sprintf("pipeline-%s.json", runID)
}

// Publisher writes results and maintains the runs index
type Publisher struct {
	mu     sync.Mutex
	dir    string
	limit  int
	logger *logger.Logger
}

// New creates a publisher rooted at dir
func New(dir string, log *logger.Logger) *Publisher {
	return &Publisher{dir: dir, limit: IndexLimit, logger: log}
}

// Dir returns the data directory
func (p *Publisher) Dir() string {
	return p.dir
}

// Publish writes the result and adds it to the index
func (p *Publisher) Publish(result *contracts.RunResult) error {
	if err := p.WriteResult(result); err != nil {
		return err
	}
	return p.UpdateRunsIndex(result.Summary())
}

// WriteResult writes pipeline-{runId}.json
func (p *Publisher) WriteResult(result *contracts.RunResult) error {
	if result == nil || result.RunID == "" {
		return fmt.Errorf("publish: result without run id")
	}
	if !contracts.ValidRunID(result.RunID) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, result.RunID)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("publish: create data dir: %w", err)
	}

	path := filepath.Join(p.dir, ResultFile(result.RunID))
	if err := writeFile(path, result); err != nil {
		return err
	}

	p.logger.WithRun(result.RunID).WithField("path", path).Debug("Run result published")
	return nil
}

// UpdateRunsIndex prepends summary to runs-index.json, replacing an older row
// of the same run, and keeps the newest IndexLimit rows.
func (p *Publisher) UpdateRunsIndex(summary contracts.RunSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	index, err := p.ReadRunsIndex()
	if err != nil {
		return err
	}

	rows := make([]contracts.RunSummary, 0, len(index)+1)
	rows = append(rows, summary)
	for _, row := range index {
		if row.RunID != summary.RunID {
			rows = append(rows, row)
		}
	}
	if len(rows) > p.limit {
		rows = rows[:p.limit]
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("publish: create data dir: %w", err)
	}
	return writeFile(filepath.Join(p.dir, IndexFile), rows)
}

// ReadRunsIndex returns the current index; a missing file is an empty index
func (p *Publisher) ReadRunsIndex() ([]contracts.RunSummary, error) {
	rows := []contracts.RunSummary{}

	data, err := os.ReadFile(filepath.Join(p.dir, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return rows, nil
	}
	if err != nil {
		return nil, fmt.Errorf("publish: read index: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("publish: decode index: %w", err)
	}
	return rows, nil
}

func writeFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("publish: encode %s: %w", filepath.Base(path), err)
	}

	// unique temp name per writer; concurrent writers never share a .tmp
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("publish: write %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("publish: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("publish: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("publish: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
