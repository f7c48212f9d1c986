package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps each key as a JSON file in a directory
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir (created on first save)
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// On-disk names of the keys
var fileNames = map[string]string{
	KeyAuditLog: "audit-log.json",
	KeyStats:    "stats.json",
	KeyTrades:   "trades.json",
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, fileNames[key])
}

func (f *FileStore) Load(ctx context.Context) (*State, error) {
	state := emptyState()

	if err := readJSON(f.path(KeyAuditLog), &state.Entries); err != nil {
		return nil, err
	}
	if err := readJSON(f.path(KeyStats), &state.Stats); err != nil {
		return nil, err
	}
	if err := readJSON(f.path(KeyTrades), &state.Trades); err != nil {
		return nil, err
	}
	return state.normalize(), nil
}

func (f *FileStore) Save(ctx context.Context, state *State) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	if err := writeJSON(f.path(KeyAuditLog), state.Entries); err != nil {
		return err
	}
	if err := writeJSON(f.path(KeyTrades), state.Trades); err != nil {
		return err
	}
	return writeJSON(f.path(KeyStats), state.Stats)
}

func readJSON(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path atomically (temp file + rename)
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp.Name(), path)
}
