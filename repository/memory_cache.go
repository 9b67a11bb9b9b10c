package repository

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// 进程内缓存默认容量与最长有效期
const (
	DefaultMemoryCacheSize   = 4096
	DefaultMemoryCacheMaxTTL = 10 * time.Minute
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache 进程内缓存，未配置 Redis 时使用。条目数有上限，超过最长有效期的条目由 LRU 后台清理
type MemoryCache struct {
	entries *expirable.LRU[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryCache 使用默认容量创建进程内缓存
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithSize(DefaultMemoryCacheSize, DefaultMemoryCacheMaxTTL)
}

// NewMemoryCacheWithSize size 为最大条目数，maxTTL 为任何条目的最长保留时间
func NewMemoryCacheWithSize(size int, maxTTL time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryCacheSize
	}
	if maxTTL <= 0 {
		maxTTL = DefaultMemoryCacheMaxTTL
	}
	return &MemoryCache{
		entries: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now:     time.Now,
	}
}

// Get 过期的条目视为未命中并删除
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set ttl <= 0 时不写入
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	v := make([]byte, len(value))
	copy(v, value)
	c.entries.Add(key, memoryEntry{value: v, expiresAt: c.now().Add(ttl)})
	return nil
}

// Len 当前条目数
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}
