package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 进程内 TTL 缓存，惰性清理过期条目。
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*Entry
	now     func() time.Time
}

// NewMemoryStore 创建内存缓存。ttl <= 0 时使用 DefaultTTL。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Get 查询缓存，过期条目按未命中处理并顺手删除。
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.now().After(entry.ExpiresAt) {
		s.mu.Lock()
		// 重新检查，期间可能已被覆盖写入
		if cur, ok := s.entries[key]; ok && s.now().After(cur.ExpiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry, true, nil
}

// Set 写入缓存，覆盖同键旧值。
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	now := s.now()
	stored := *entry
	if stored.StoredAt.IsZero() {
		stored.StoredAt = now
	}
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = stored.StoredAt.Add(s.ttl)
	}
	s.mu.Lock()
	s.entries[key] = &stored
	s.mu.Unlock()
	return nil
}

// Purge 清空全部条目。
func (s *MemoryStore) Purge(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
	return nil
}

// Close 实现 Store 接口，无需释放资源。
func (s *MemoryStore) Close() error {
	return nil
}

// Len 返回当前条目数（含未清理的过期条目）。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
