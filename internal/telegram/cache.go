package telegram

import (
	"context"
	"sync"
	"time"

	"normalizer_bot/internal/telegram/models"
	"normalizer_bot/internal/telegram/normalizer"
)

type groupCacheEntry struct {
	group   *models.NormalizerGroup
	expires time.Time
}

// groupConfigCache 群组配置的进程内 TTL 缓存
// 负缓存（nil）同样记录，避免非归一化群的每条消息都打数据库
type groupConfigCache struct {
	mu     sync.RWMutex
	ttl    time.Duration
	values map[int64]groupCacheEntry
}

func newGroupConfigCache(ttl time.Duration) *groupConfigCache {
	if ttl <= 0 {
		return nil
	}
	return &groupConfigCache{
		ttl:    ttl,
		values: make(map[int64]groupCacheEntry),
	}
}

func (c *groupConfigCache) Get(chatID int64) (*models.NormalizerGroup, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.values[chatID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expires) {
		c.mu.Lock()
		delete(c.values, chatID)
		c.mu.Unlock()
		return nil, false
	}

	return entry.group, true
}

func (c *groupConfigCache) Set(chatID int64, group *models.NormalizerGroup) {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.values[chatID] = groupCacheEntry{
		group:   group,
		expires: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// cachedGroupSource 带 TTL 缓存的群组配置读取层
// 实现 normalizer.GroupSource，缓存未命中时回源 Repository
type cachedGroupSource struct {
	inner normalizer.GroupSource
	cache *groupConfigCache
}

func newCachedGroupSource(inner normalizer.GroupSource, ttl time.Duration) normalizer.GroupSource {
	return &cachedGroupSource{
		inner: inner,
		cache: newGroupConfigCache(ttl),
	}
}

func (s *cachedGroupSource) GetActiveByChatID(ctx context.Context, chatID int64) (*models.NormalizerGroup, error) {
	if group, ok := s.cache.Get(chatID); ok {
		return group, nil
	}

	group, err := s.inner.GetActiveByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(chatID, group)
	return group, nil
}
