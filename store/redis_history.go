package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/imageflow/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisHistoryStore keeps generation history in Redis. Suitable for
// deployments that want history shared across instances without a
// relational database. Entries live in a capped list, newest first.
type RedisHistoryStore struct {
	client    *redis.Client
	keyPrefix string
	maxLen    int64
}

// RedisHistoryOptions configures a RedisHistoryStore.
type RedisHistoryOptions struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
	// MaxEntries caps the retained list; 0 means 1000.
	MaxEntries int64
}

// NewRedisHistoryStore connects to Redis and verifies the connection.
func NewRedisHistoryStore(opts RedisHistoryOptions) (*RedisHistoryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "imageflow:"
	}
	maxLen := opts.MaxEntries
	if maxLen <= 0 {
		maxLen = 1000
	}

	return &RedisHistoryStore{
		client:    client,
		keyPrefix: prefix + "history:",
		maxLen:    maxLen,
	}, nil
}

// NewRedisHistoryStoreFromClient wraps an already-open client. Used by tests.
func NewRedisHistoryStoreFromClient(client *redis.Client, maxEntries int64) *RedisHistoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &RedisHistoryStore{client: client, keyPrefix: "imageflow:history:", maxLen: maxEntries}
}

func (s *RedisHistoryStore) Close() error { return s.client.Close() }

func (s *RedisHistoryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisHistoryStore) listKey() string { return s.keyPrefix + "ids" }

func (s *RedisHistoryStore) entryKey(id string) string { return s.keyPrefix + "data:" + id }

func (s *RedisHistoryStore) Append(ctx context.Context, entry *types.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return types.NewError(types.ErrInternalError, "marshal history entry").WithCause(err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.entryKey(entry.ID), data, 0)
	pipe.LPush(ctx, s.listKey(), entry.ID)
	pipe.LTrim(ctx, s.listKey(), 0, s.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return types.NewError(types.ErrInternalError, "append history").WithCause(err)
	}
	return nil
}

func (s *RedisHistoryStore) Recent(ctx context.Context, n int) ([]types.HistoryEntry, error) {
	if n <= 0 {
		n = 50
	}

	ids, err := s.client.LRange(ctx, s.listKey(), 0, int64(n)-1).Result()
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "load history").WithCause(err)
	}

	entries := make([]types.HistoryEntry, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, s.entryKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			// Trimmed or deleted out from under the list; skip.
			continue
		}
		if err != nil {
			return nil, types.NewError(types.ErrInternalError, "load history entry").WithCause(err)
		}
		var entry types.HistoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisHistoryStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.listKey()).Result()
	if err != nil {
		return 0, types.NewError(types.ErrInternalError, "count history").WithCause(err)
	}
	return n, nil
}

func (s *RedisHistoryStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, s.entryKey(id)).Result()
	if err != nil {
		return types.NewError(types.ErrInternalError, "delete history entry").WithCause(err)
	}
	if deleted == 0 {
		return types.NewError(types.ErrNotFound, fmt.Sprintf("history entry %s not found", id))
	}
	s.client.LRem(ctx, s.listKey(), 1, id)
	return nil
}

var _ HistoryStore = (*RedisHistoryStore)(nil)
