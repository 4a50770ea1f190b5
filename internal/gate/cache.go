package gate

import (
	"context"
	"sync"
	"time"

	"github.com/p-n-ai/pai-arena/internal/platform/cache"
)

const redisKeyPrefix = "arena:certification:"

// RedisCache shares certifications between server instances.
type RedisCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisCache creates a Redis-backed certification cache.
func NewRedisCache(c *cache.Cache, ttl time.Duration) *RedisCache {
	return &RedisCache{cache: c, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, fingerprint string) (*Certification, bool, error) {
	var cert Certification
	found, err := r.cache.GetJSON(ctx, redisKeyPrefix+fingerprint, &cert)
	if err != nil || !found {
		return nil, false, err
	}
	return &cert, true, nil
}

func (r *RedisCache) Put(ctx context.Context, c Certification) error {
	return r.cache.SetJSON(ctx, redisKeyPrefix+c.Fingerprint, c, r.ttl)
}

type memoryEntry struct {
	cert    Certification
	expires time.Time
}

// MemoryCache is a process-local certification cache.
type MemoryCache struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
	mu      sync.Mutex
}

// NewMemoryCache creates an in-memory cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryCache) Get(_ context.Context, fingerprint string) (*Certification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[fingerprint]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, fingerprint)
		return nil, false, nil
	}
	cert := e.cert
	return &cert, true, nil
}

func (m *MemoryCache) Put(_ context.Context, c Certification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[c.Fingerprint] = memoryEntry{cert: c, expires: m.now().Add(m.ttl)}
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := m.now()
	for _, e := range m.entries {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}
