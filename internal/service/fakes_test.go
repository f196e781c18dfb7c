package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

// memoryCache is an in-process CacheRepository round-tripping values through JSON.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func newTestCache() (*CacheService, *memoryCache) {
	store := newMemoryCache()
	return NewCacheService(store, nil, time.Minute, nil, true), store
}

type recordingInvalidator struct {
	catalog     []string
	reviews     []string
	enrollments int
}

func (r *recordingInvalidator) Catalog(ctx context.Context, courseID string) {
	r.catalog = append(r.catalog, courseID)
}

func (r *recordingInvalidator) Reviews(ctx context.Context, courseID string) {
	r.reviews = append(r.reviews, courseID)
}

func (r *recordingInvalidator) Enrollments(ctx context.Context) {
	r.enrollments++
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}
