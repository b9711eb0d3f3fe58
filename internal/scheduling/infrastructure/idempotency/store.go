// Package idempotency remembers the result of a request under a client key
// so a retried request replays the first answer instead of booking twice.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a stored result is replayed.
const DefaultTTL = 24 * time.Hour

// ErrKeyTooLong rejects keys that would bloat the key space.
var ErrKeyTooLong = errors.New("idempotency key too long")

// KeyMaxLength bounds client supplied keys.
const KeyMaxLength = 200

// RedisStore keeps results in Redis under nestly:idem:{key}.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store on client. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: "nestly:idem:", ttl: ttl}
}

// Lookup returns the stored result for key, if any.
func (s *RedisStore) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	if len(key) > KeyMaxLength {
		return nil, false, ErrKeyTooLong
	}
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Remember stores result unless key already holds one; the first result wins.
func (s *RedisStore) Remember(ctx context.Context, key string, result []byte) error {
	if len(key) > KeyMaxLength {
		return ErrKeyTooLong
	}
	return s.client.SetNX(ctx, s.prefix+key, result, s.ttl).Err()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is the in-process store used when no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Lookup(_ context.Context, key string) ([]byte, bool, error) {
	if len(key) > KeyMaxLength {
		return nil, false, ErrKeyTooLong
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (s *MemoryStore) Remember(_ context.Context, key string, result []byte) error {
	if len(key) > KeyMaxLength {
		return ErrKeyTooLong
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[key]; ok && now.Before(entry.expiresAt) {
		return nil
	}
	s.entries[key] = memoryEntry{value: append([]byte(nil), result...), expiresAt: now.Add(s.ttl)}
	return nil
}
