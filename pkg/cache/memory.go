package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// TTLMap is an in-process Cache. Expired entries are dropped on read and by
// a janitor goroutine.
type TTLMap struct {
	mu       sync.RWMutex
	entries  map[string]entry
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func NewTTLMap(cleanupInterval time.Duration) *TTLMap {
	m := &TTLMap{
		entries: make(map[string]entry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go m.cleanup(cleanupInterval)

	return m
}

func (m *TTLMap) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// A Set may have replaced the entry since the read lock was released.
		if cur, ok := m.entries[key]; ok && !m.now().Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

func (m *TTLMap) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *TTLMap) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *TTLMap) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *TTLMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *TTLMap) cleanup(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictExpired()
		case <-m.stopCh:
			return
		}
	}
}

func (m *TTLMap) evictExpired() {
	now := m.now()
	m.mu.Lock()
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}

func (m *TTLMap) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
