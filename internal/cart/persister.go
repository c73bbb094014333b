package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryPersister keeps carts in process memory
type MemoryPersister struct {
	mu    sync.Mutex
	carts map[string][]Line
}

// NewMemoryPersister creates an empty MemoryPersister
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{carts: make(map[string][]Line)}
}

func (m *MemoryPersister) Load(_ context.Context, key string) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines, ok := m.carts[key]
	if !ok {
		return nil, nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out, nil
}

func (m *MemoryPersister) Save(_ context.Context, key string, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]Line, len(lines))
	copy(stored, lines)
	m.carts[key] = stored
	return nil
}

func (m *MemoryPersister) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, key)
	return nil
}

// DefaultCartTTL is how long an untouched session cart is kept
const DefaultCartTTL = 7 * 24 * time.Hour

type redisCart struct {
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisPersister stores each cart as a JSON value under cart:<key>. Every
// save refreshes the expiry, with jitter so carts written together do not
// expire together.
type RedisPersister struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewRedisPersister creates a RedisPersister. A non-positive ttl uses DefaultCartTTL.
func NewRedisPersister(client *redis.Client, ttl time.Duration) *RedisPersister {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &RedisPersister{client: client, baseTTL: ttl}
}

func (r *RedisPersister) Load(ctx context.Context, key string) ([]Line, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var stored redisCart
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return stored.Lines, nil
}

func (r *RedisPersister) Save(ctx context.Context, key string, lines []Line) error {
	data, err := json.Marshal(redisCart{Lines: lines, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, redisKey(key), data, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisPersister) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisPersister) ttl() time.Duration {
	jitter := time.Duration(rand.IntN(60)) * time.Minute
	return r.baseTTL + jitter
}

func redisKey(key string) string {
	return fmt.Sprintf("cart:%s", key)
}
