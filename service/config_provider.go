package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BerniceZTT/crm_stats/models"
	"github.com/BerniceZTT/crm_stats/utils"
)

// ConfigProvider 加载并缓存统计配置，任何故障都回退到内置默认值
type ConfigProvider struct {
	store ConfigStore
	cache *CacheLayer
	ttl   time.Duration
}

// NewConfigProvider ttl <= 0 时使用 ConfigCacheTTL
func NewConfigProvider(store ConfigStore, cache *CacheLayer, ttl time.Duration) *ConfigProvider {
	if ttl <= 0 {
		ttl = ConfigCacheTTL
	}
	if cache == nil {
		cache = NewCacheLayer("config", nil)
	}
	return &ConfigProvider{store: store, cache: cache, ttl: ttl}
}

// Current 返回当前生效的配置
func (p *ConfigProvider) Current(ctx context.Context) models.AnalyticsConfig {
	if p == nil || p.store == nil {
		return models.DefaultAnalyticsConfig()
	}

	data, err := p.cache.GetOrBuild(ctx, ConfigCacheKey, p.ttl, func(ctx context.Context) ([]byte, error) {
		raw, version, err := p.store.LoadAnalyticsConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("加载统计配置失败: %w", err)
		}
		cfg, err := MergeAnalyticsConfig(raw, version)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cfg)
	})
	if err != nil {
		utils.Logger.Warn().Err(err).Msg("统计配置不可用，使用默认配置")
		return models.DefaultAnalyticsConfig()
	}

	var cfg models.AnalyticsConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		utils.Logger.Warn().Err(err).Msg("解析缓存的统计配置失败，使用默认配置")
		return models.DefaultAnalyticsConfig()
	}
	return cfg
}

// MergeAnalyticsConfig 把覆盖值合并到默认配置上，未给出的字段保留默认值
func MergeAnalyticsConfig(raw map[string]interface{}, version string) (models.AnalyticsConfig, error) {
	cfg := models.DefaultAnalyticsConfig()
	if len(raw) > 0 {
		data, err := json.Marshal(raw)
		if err != nil {
			return cfg, fmt.Errorf("序列化配置覆盖值失败: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return models.DefaultAnalyticsConfig(), fmt.Errorf("解析配置覆盖值失败: %w", err)
		}
	}
	cfg.Version = version
	if cfg.Version == "" {
		cfg.Version = models.DefaultConfigVersion
	}
	return SanitizeConfig(cfg), nil
}

// SanitizeConfig 把非法值（非正的归一化常数、负权重）替换为默认值
func SanitizeConfig(cfg models.AnalyticsConfig) models.AnalyticsConfig {
	dk := models.DefaultKpdConfig()
	k := &cfg.Kpd
	positive(&k.ActiveNormMinutes, dk.ActiveNormMinutes)
	positive(&k.ActiveExponent, dk.ActiveExponent)
	positive(&k.ActiveCeiling, dk.ActiveCeiling)
	positive(&k.PointsNorm, dk.PointsNorm)
	positive(&k.PointsExponent, dk.PointsExponent)
	positive(&k.PointsCeiling, dk.PointsCeiling)
	positive(&k.MaxEffort, dk.MaxEffort)
	nonNegative(&k.QualityPriorSuccess, dk.QualityPriorSuccess)
	positive(&k.QualityPriorCount, dk.QualityPriorCount)
	positive(&k.QualityMultiplier, dk.QualityMultiplier)
	positive(&k.MaxQuality, dk.MaxQuality)
	positive(&k.OpsTermCap, dk.OpsTermCap)
	positive(&k.OutreachNorm, dk.OutreachNorm)
	positive(&k.ShopsNorm, dk.ShopsNorm)
	positive(&k.InvoicesNorm, dk.InvoicesNorm)
	positive(&k.MaxOps, dk.MaxOps)
	nonNegative(&k.MissedWeight, dk.MissedWeight)
	nonNegative(&k.LateWeight, dk.LateWeight)
	nonNegative(&k.MissingWeight, dk.MissingWeight)
	nonNegative(&k.PlanMissingWeight, dk.PlanMissingWeight)
	nonNegative(&k.PlanMissingCap, dk.PlanMissingCap)
	positive(&k.FollowupVolumeNorm, dk.FollowupVolumeNorm)
	positive(&k.ReportVolumeNorm, dk.ReportVolumeNorm)
	positive(&k.PlanVolumeNorm, dk.PlanVolumeNorm)
	nonNegative(&k.MaxPenalty, dk.MaxPenalty)
	if k.MaxPenalty > 1 {
		k.MaxPenalty = 1
	}

	da := models.DefaultAdviceConfig()
	a := &cfg.Advice
	if a.ReportDeadlineHour < 0 || a.ReportDeadlineHour > 23 {
		a.ReportDeadlineHour = da.ReportDeadlineHour
	}
	if a.ReportGraceMinutes < 0 {
		a.ReportGraceMinutes = da.ReportGraceMinutes
	}
	if a.StaleShopDays <= 0 {
		a.StaleShopDays = da.StaleShopDays
	}
	if a.IdleWindowDays <= 0 {
		a.IdleWindowDays = da.IdleWindowDays
	}
	if a.MaxItems <= 0 {
		a.MaxItems = da.MaxItems
	}
	if a.ShortTTLHours <= 0 {
		a.ShortTTLHours = da.ShortTTLHours
	}
	if a.LongTTLHours <= 0 {
		a.LongTTLHours = da.LongTTLHours
	}
	positive(&a.SourcePriorCount, da.SourcePriorCount)
	nonNegative(&a.SourcePriorSuccess, da.SourcePriorSuccess)
	return cfg
}

func positive(v *float64, def float64) {
	if *v <= 0 || *v != *v {
		*v = def
	}
}

func nonNegative(v *float64, def float64) {
	if *v < 0 || *v != *v {
		*v = def
	}
}
