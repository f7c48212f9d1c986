package sizing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/redis"
)

// TableKey names the persisted Q-table
const TableKey = "q_table"

// TableFile is the Q-table file inside the data dir
const TableFile = "q-table.json"

// Store persists the Q-table. A missing table loads as nil, nil.
type Store interface {
	Load(ctx context.Context) (*Table, error)
	Save(ctx context.Context, table *Table) error
}

// OpenStore follows STORAGE_BACKEND: redis keeps the table next to the audit
// keys, memory keeps it in process, file and postgres use DATA_DIR.
func OpenStore(cfg *config.Config, rdb *redis.Client) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageRedis:
		if rdb == nil || !rdb.Enabled() {
			return nil, fmt.Errorf("redis storage requires an enabled redis client")
		}
		return NewRedisStore(rdb), nil
	default:
		return NewFileStore(filepath.Join(cfg.Storage.DataDir, TableFile)), nil
	}
}

// FileStore keeps the table in one JSON file
type FileStore struct {
	path string
}

// NewFileStore creates a store at path (parent created on first save)
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(ctx context.Context) (*Table, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(f.path), err)
	}

	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(f.path), err)
	}
	return &table, nil
}

func (f *FileStore) Save(ctx context.Context, table *Table) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(f.path), err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(f.path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(f.path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(f.path), err)
	}
	return os.Rename(tmp.Name(), f.path)
}

// RedisStore keeps the table under <prefix>:q_table
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store on an enabled client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: fmt.Sprintf("%s:%s", client.Prefix(), TableKey)}
}

func (r *RedisStore) Load(ctx context.Context) (*Table, error) {
	raw, err := r.client.Redis().Get(ctx, r.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", TableKey, err)
	}

	var table Table
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("decode %s: %w", TableKey, err)
	}
	return &table, nil
}

func (r *RedisStore) Save(ctx context.Context, table *Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encode %s: %w", TableKey, err)
	}
	if err := r.client.Redis().Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis save %s: %w", TableKey, err)
	}
	return nil
}

// MemoryStore keeps the table in process
type MemoryStore struct {
	mu    sync.Mutex
	table []byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.table == nil {
		return nil, nil
	}
	var table Table
	if err := json.Unmarshal(m.table, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

func (m *MemoryStore) Save(ctx context.Context, table *Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table = data
	return nil
}
