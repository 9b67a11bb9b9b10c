package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BerniceZTT/crm_stats/models"
	"github.com/BerniceZTT/crm_stats/utils"
)

var (
	// ErrInvalidUser 用户标识为空
	ErrInvalidUser = errors.New("无效的用户")
	// ErrInvalidAdviceKey 建议键为空或格式不正确
	ErrInvalidAdviceKey = errors.New("无效的建议键")
)

// StatsOptions 统计服务参数
type StatsOptions struct {
	Location   *time.Location
	PayloadTTL time.Duration
	Now        func() time.Time
}

// StatsService 组装数据看板
type StatsService struct {
	config     *ConfigProvider
	aggregator *Aggregator
	advice     *AdviceEngine
	cache      *CacheLayer
	dismissals DismissalStore
	loc        *time.Location
	payloadTTL time.Duration
	now        func() time.Time
}

// NewStatsService 创建统计服务
func NewStatsService(config *ConfigProvider, aggregator *Aggregator, advice *AdviceEngine, cache *CacheLayer, dismissals DismissalStore, opts StatsOptions) *StatsService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PayloadTTL <= 0 {
		opts.PayloadTTL = PayloadCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if advice == nil {
		advice = NewAdviceEngine()
	}
	if cache == nil {
		cache = NewCacheLayer("payload", nil)
	}
	return &StatsService{
		config:     config,
		aggregator: aggregator,
		advice:     advice,
		cache:      cache,
		dismissals: dismissals,
		loc:        opts.Location,
		payloadTTL: opts.PayloadTTL,
		now:        opts.Now,
	}
}

// GetStatsPayload 返回用户在请求窗口内的数据看板。缓存内容包含未过滤的完整建议列表，
// 忽略过滤与条数截断在每次请求时进行
func (s *StatsService) GetStatsPayload(ctx context.Context, userID string, req models.RangeRequest) (*models.StatsPayload, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUser
	}

	now := s.now().In(s.loc)
	current := ResolveRange(req.Period, req.From, req.To, now)
	key := PayloadCacheKey(userID, current.StartDate, current.EndDate)

	data, err := s.cache.GetOrBuild(ctx, key, s.payloadTTL, func(ctx context.Context) ([]byte, error) {
		payload, err := s.build(ctx, userID, current, now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(payload)
	})
	if err != nil {
		return nil, err
	}

	var payload models.StatsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("解析统计数据失败: %w", err)
	}

	var dismissals []models.Dismissal
	if s.dismissals != nil {
		dismissals, err = s.dismissals.ListActive(ctx, userID, now)
		if err != nil {
			utils.Logger.Warn().Err(err).Str("userId", userID).Msg("读取忽略记录失败，按无忽略处理")
			dismissals = nil
		}
	}
	maxItems := s.config.Current(ctx).Advice.MaxItems
	payload.Advice = FinalizeAdvice(payload.Advice, dismissals, now, maxItems)
	return &payload, nil
}

func (s *StatsService) build(ctx context.Context, userID string, current models.StatsRange, now time.Time) (*models.StatsPayload, error) {
	started := time.Now()
	defer func() {
		payloadBuildSeconds.Observe(time.Since(started).Seconds())
	}()

	cfg := s.config.Current(ctx)
	previous := PreviousRange(current)

	aggNow, err := s.aggregator.Build(ctx, userID, current, cfg, now, true)
	if err != nil {
		return nil, err
	}
	aggPrev, err := s.aggregator.Build(ctx, userID, previous, cfg, now, false)
	if err != nil {
		return nil, err
	}

	for i := range aggNow.Series {
		aggNow.Series[i].Kpd = ComputeKpd(aggNow.Series[i].Metrics, cfg.Kpd).Value
	}

	kpdNow := ComputeKpd(aggNow.Metrics, cfg.Kpd)
	kpdPrev := ComputeKpd(aggPrev.Metrics, cfg.Kpd)

	advice := s.advice.Evaluate(AdviceInput{
		UserID:      userID,
		Now:         now,
		RangeNow:    current,
		RangePrev:   previous,
		MetricsNow:  aggNow.Metrics,
		MetricsPrev: aggPrev.Metrics,
		Sources:     aggNow.Breakdowns.Sources,
		Series:      aggNow.Series,
		Config:      cfg.Advice,
	})

	payload := &models.StatsPayload{
		UserID: userID,
		Range:  models.RangeInfo{Current: current, Previous: previous},
		Summary: models.Summary{
			Now:      aggNow.Metrics,
			Prev:     aggPrev.Metrics,
			KpdNow:   kpdNow,
			KpdPrev:  kpdPrev,
			KpdDelta: round(kpdNow.Value-kpdPrev.Value, 2),
			PphNow:   round(aggNow.Metrics.PointsPerActiveHour(), 2),
			PphPrev:  round(aggPrev.Metrics.PointsPerActiveHour(), 2),
		},
		Breakdowns:    aggNow.Breakdowns,
		Series:        aggNow.Series,
		Advice:        advice,
		ConfigVersion: cfg.Version,
		Degraded:      mergeDegraded(aggNow.Degraded, aggPrev.Degraded),
		GeneratedAt:   now,
	}

	if len(payload.Degraded) > 0 {
		utils.Logger.Warn().Str("userId", userID).Strs("degraded", payload.Degraded).Msg("统计数据部分数据源不可用")
	}
	return payload, nil
}

// DismissAdvice 忽略一条建议，重复调用结果一致
func (s *StatsService) DismissAdvice(ctx context.Context, userID, key string, expiresAt *time.Time) error {
	userID = strings.TrimSpace(userID)
	key = strings.TrimSpace(key)
	if userID == "" {
		return ErrInvalidUser
	}
	if key == "" || !strings.Contains(key, ":") {
		return ErrInvalidAdviceKey
	}
	if s.dismissals == nil {
		return errors.New("忽略记录存储未配置")
	}

	now := s.now()
	var exp *time.Time
	if expiresAt != nil {
		t := expiresAt.UTC()
		exp = &t
	}
	err := s.dismissals.Upsert(ctx, models.Dismissal{
		UserID:    userID,
		Key:       key,
		ExpiresAt: exp,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("保存忽略记录失败: %w", err)
	}
	utils.Logger.Info().Str("userId", userID).Str("key", key).Msg("建议已忽略")
	return nil
}

func mergeDegraded(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}
