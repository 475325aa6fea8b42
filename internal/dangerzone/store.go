package dangerzone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store хранит закэшированные записи зоны риска по идентификатору представителя.
// Get возвращает nil без ошибки, если записи нет.
type Store interface {
	Get(ctx context.Context, repID int64) (*Entry, error)
	Put(ctx context.Context, repID int64, e Entry) error
	Delete(ctx context.Context, repID int64) error
}

// MemoryStore хранит кэш в памяти процесса.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]Entry
}

// NewMemoryStore создаёт пустой кэш в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, repID int64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[repID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) Put(_ context.Context, repID int64, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[repID] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, repID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, repID)
	return nil
}

// RedisStore хранит кэш в Redis, общий для нескольких экземпляров. Срок годности записи
// определяется по Timestamp; ключ живёт вдвое дольше, чтобы устаревшая запись была
// видна как Stale, а не как отсутствующая.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore создаёт хранилище поверх клиента Redis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "leadflow:dangerzone"}
}

func (s *RedisStore) key(repID int64) string {
	return s.prefix + ":" + strconv.FormatInt(repID, 10)
}

func (s *RedisStore) Get(ctx context.Context, repID int64) (*Entry, error) {
	payload, err := s.client.Get(ctx, s.key(repID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dangerzone: get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("dangerzone: decode: %w", err)
	}
	return &e, nil
}

func (s *RedisStore) Put(ctx context.Context, repID int64, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("dangerzone: encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(repID), raw, 2*TTL).Err(); err != nil {
		return fmt.Errorf("dangerzone: set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, repID int64) error {
	if err := s.client.Del(ctx, s.key(repID)).Err(); err != nil {
		return fmt.Errorf("dangerzone: del: %w", err)
	}
	return nil
}

// NewRedisClient подключается к Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dangerzone: ping: %w", err)
	}
	return client, nil
}
