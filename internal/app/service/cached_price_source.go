package service

import (
	"context"
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
)

const snapshotCacheKey = "gold:prices:latest"

// SnapshotCache 시세 스냅샷 캐시 저장소 (pkg/redis.Client)
type SnapshotCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedPriceSource 성공한 스냅샷만 ttl 동안 캐시한다. 캐시 오류는 무시하고 원본을 조회한다
type CachedPriceSource struct {
	source PriceSource
	cache  SnapshotCache
	ttl    time.Duration
}

func NewCachedPriceSource(source PriceSource, cache SnapshotCache, ttl time.Duration) *CachedPriceSource {
	return &CachedPriceSource{source: source, cache: cache, ttl: ttl}
}

// LiveSource 캐시를 걷어낸 원본 조회기. 캐시가 아니면 그대로 반환
func LiveSource(source PriceSource) PriceSource {
	if c, ok := source.(*CachedPriceSource); ok {
		return LiveSource(c.source)
	}
	return source
}

func (c *CachedPriceSource) Fetch(ctx context.Context) model.PriceSnapshot {
	var cached model.PriceSnapshot
	hit, err := c.cache.GetJSON(ctx, snapshotCacheKey, &cached)
	if err != nil {
		logger.Warn("Price cache read failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if hit && cached.Success {
		return cached
	}

	snapshot := c.source.Fetch(ctx)
	if !snapshot.Success {
		return snapshot
	}

	if err := c.cache.SetJSON(ctx, snapshotCacheKey, snapshot, c.ttl); err != nil {
		logger.Warn("Price cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return snapshot
}
