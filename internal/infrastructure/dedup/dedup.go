package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/wekeepgrowing/order-payments/pkg/messaging"
)

// RedisStore remembers processed webhook event ids with SETNX.
type RedisStore struct {
	client messaging.RedisClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client messaging.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "payments:webhook:", ttl: ttl}
}

// Remember reports whether key was seen for the first time.
func (s *RedisStore) Remember(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, s.ttl)
}

// Forget drops key so a failed delivery can be retried.
func (s *RedisStore) Forget(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key)
}

// MemoryStore is the single-process fallback.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryStore) Remember(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.seen[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.seen[key] = now.Add(s.ttl)

	// opportunistic cleanup keeps the map bounded by the ttl window
	if len(s.seen) > 1024 {
		for k, exp := range s.seen {
			if !now.Before(exp) {
				delete(s.seen, k)
			}
		}
	}
	return true, nil
}

func (s *MemoryStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.seen, key)
	return nil
}
