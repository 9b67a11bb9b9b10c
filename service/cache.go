package service

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/BerniceZTT/crm_stats/utils"
)

// 缓存键与默认有效期
const (
	PayloadCacheTTL = 60 * time.Second
	ConfigCacheTTL  = 600 * time.Second
	ConfigCacheKey  = "stats:config"
	// DefaultBuildTimeout 共享构建的最长时间，与发起请求的调用方是否取消无关
	DefaultBuildTimeout = 15 * time.Second
)

// BuildFunc 缓存未命中时构建缓存内容
type BuildFunc func(ctx context.Context) ([]byte, error)

// CacheLayer 尽力而为的缓存：存储故障视为未命中，构建函数始终可以兜底
type CacheLayer struct {
	name         string
	store        CacheStore
	group        singleflight.Group
	buildTimeout time.Duration
}

// NewCacheLayer store 为 nil 时每次都直接构建
func NewCacheLayer(name string, store CacheStore) *CacheLayer {
	return &CacheLayer{name: name, store: store, buildTimeout: DefaultBuildTimeout}
}

// GetOrBuild 命中时返回缓存内容，否则构建并写入缓存。同一个键的并发构建只执行一次。
// 构建在脱离调用方取消信号的上下文中进行，调用方取消时立即返回 ctx.Err()，构建结果照常写入缓存
func (c *CacheLayer) GetOrBuild(ctx context.Context, key string, ttl time.Duration, build BuildFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.store != nil {
		data, ok, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			cacheLookups.WithLabelValues(c.name, "error").Inc()
			utils.Logger.Warn().Err(err).Str("cache", c.name).Str("key", key).Msg("读取缓存失败，按未命中处理")
		case ok:
			cacheLookups.WithLabelValues(c.name, "hit").Inc()
			return data, nil
		default:
			cacheLookups.WithLabelValues(c.name, "miss").Inc()
		}
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.buildTimeout)
		defer cancel()
		data, err := build(bctx)
		if err != nil {
			return nil, err
		}
		if c.store != nil {
			if err := c.store.Set(bctx, key, data, ttl); err != nil {
				utils.Logger.Warn().Err(err).Str("cache", c.name).Str("key", key).Msg("写入缓存失败")
			}
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// PayloadCacheKey 统计数据缓存键 (用户, 开始日期, 结束日期)
func PayloadCacheKey(userID, startDate, endDate string) string {
	return "stats:payload:" + userID + ":" + startDate + ":" + endDate
}
