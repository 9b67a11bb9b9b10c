package service

import (
	"context"
	"time"

	"github.com/BerniceZTT/crm_stats/models"
)

// RecordSource 外部业务记录的只读分组聚合
type RecordSource interface {
	Aggregate(ctx context.Context, q models.GroupQuery) ([]models.GroupRow, error)
	ShopBacklog(ctx context.Context, q models.BacklogQuery) (models.ShopBacklog, error)
}

// ConfigStore 统计配置存储，返回覆盖值与版本号；未配置时返回 nil
type ConfigStore interface {
	LoadAnalyticsConfig(ctx context.Context) (map[string]interface{}, string, error)
}

// CacheStore 短期缓存存储
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DismissalStore 用户忽略建议记录
type DismissalStore interface {
	ListActive(ctx context.Context, userID string, now time.Time) ([]models.Dismissal, error)
	Upsert(ctx context.Context, d models.Dismissal) error
}
