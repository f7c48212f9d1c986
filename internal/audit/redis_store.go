package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wonny/tradecraft/pkg/redis"
)

// RedisStore keeps each key under <prefix>:<key> (audit_log, stats, trades)
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on an enabled client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: client.Prefix()}
}

func (r *RedisStore) key(name string) string {
	return fmt.Sprintf("%s:%s", r.prefix, name)
}

func (r *RedisStore) Load(ctx context.Context) (*State, error) {
	state := emptyState()

	keys := []string{KeyAuditLog, KeyStats, KeyTrades}
	dests := []interface{}{&state.Entries, &state.Stats, &state.Trades}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = r.key(k)
	}
	values, err := r.client.Redis().MGet(ctx, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load audit state: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok || raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dests[i]); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
	}
	return state.normalize(), nil
}

func (r *RedisStore) Save(ctx context.Context, state *State) error {
	entries, err := json.Marshal(state.Entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyAuditLog, err)
	}
	stats, err := json.Marshal(state.Stats)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyStats, err)
	}
	trades, err := json.Marshal(state.Trades)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyTrades, err)
	}

	_, err = r.client.Redis().TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.key(KeyAuditLog), entries, 0)
		pipe.Set(ctx, r.key(KeyStats), stats, 0)
		pipe.Set(ctx, r.key(KeyTrades), trades, 0)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis save audit state: %w", err)
	}
	return nil
}
