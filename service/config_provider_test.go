package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/crm_stats/models"
)

func TestConfigProviderMergesOverrides(t *testing.T) {
	store := &fakeConfigStore{
		raw: map[string]interface{}{
			"kpd":    map[string]interface{}{"max_penalty": 0.5, "points_norm": 200},
			"advice": map[string]interface{}{"max_items": 3},
		},
		version: "v2",
	}
	provider := NewConfigProvider(store, NewCacheLayer("config", newMemStore()), 0)

	cfg := provider.Current(context.Background())

	assert.Equal(t, "v2", cfg.Version)
	assert.Equal(t, 0.5, cfg.Kpd.MaxPenalty)
	assert.Equal(t, 200.0, cfg.Kpd.PointsNorm)
	assert.Equal(t, 3, cfg.Advice.MaxItems)
	// 未覆盖的字段保留默认值
	assert.Equal(t, models.DefaultKpdConfig().ActiveNormMinutes, cfg.Kpd.ActiveNormMinutes)
	assert.Equal(t, models.DefaultAdviceConfig().MinNStrong, cfg.Advice.MinNStrong)
}

func TestConfigProviderCachesResult(t *testing.T) {
	store := &fakeConfigStore{version: "v1"}
	provider := NewConfigProvider(store, NewCacheLayer("config", newMemStore()), 0)

	for i := 0; i < 3; i++ {
		assert.Equal(t, "v1", provider.Current(context.Background()).Version)
	}
	assert.Equal(t, int32(1), store.calls)
}

func TestConfigProviderFallsBackOnStoreError(t *testing.T) {
	store := &fakeConfigStore{err: errBoom}
	provider := NewConfigProvider(store, nil, 0)

	cfg := provider.Current(context.Background())

	assert.Equal(t, models.DefaultAnalyticsConfig(), cfg)
}

func TestConfigProviderFallsBackOnBadDocument(t *testing.T) {
	store := &fakeConfigStore{raw: map[string]interface{}{"kpd": "oops"}, version: "broken"}
	provider := NewConfigProvider(store, nil, 0)

	cfg := provider.Current(context.Background())

	assert.Equal(t, models.DefaultConfigVersion, cfg.Version)
}

func TestConfigProviderNilStore(t *testing.T) {
	var provider *ConfigProvider
	assert.Equal(t, models.DefaultAnalyticsConfig(), provider.Current(context.Background()))
	assert.Equal(t, models.DefaultAnalyticsConfig(), NewConfigProvider(nil, nil, 0).Current(context.Background()))
}

func TestMergeAnalyticsConfigEmpty(t *testing.T) {
	cfg, err := MergeAnalyticsConfig(nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAnalyticsConfig(), cfg)
}

func TestSanitizeConfig(t *testing.T) {
	cfg := models.DefaultAnalyticsConfig()
	cfg.Kpd.PointsNorm = -1
	cfg.Kpd.ActiveNormMinutes = 0
	cfg.Kpd.MissedWeight = -0.3
	cfg.Kpd.MaxPenalty = 2
	cfg.Advice.ReportDeadlineHour = 30
	cfg.Advice.MaxItems = 0
	cfg.Advice.SourcePriorCount = -5

	out := SanitizeConfig(cfg)

	assert.Equal(t, 180.0, out.Kpd.PointsNorm)
	assert.Equal(t, 240.0, out.Kpd.ActiveNormMinutes)
	assert.Equal(t, 0.4, out.Kpd.MissedWeight)
	assert.Equal(t, 1.0, out.Kpd.MaxPenalty)
	assert.Equal(t, 19, out.Advice.ReportDeadlineHour)
	assert.Equal(t, 8, out.Advice.MaxItems)
	assert.Equal(t, 5.0, out.Advice.SourcePriorCount)
}
