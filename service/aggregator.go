package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/BerniceZTT/crm_stats/models"
	"github.com/BerniceZTT/crm_stats/utils"
)

// 聚合默认参数
const (
	DefaultSourceTimeout = 3 * time.Second
	DefaultMaxParallel   = 6
)

// ErrInvalidRange 窗口本身不合法（开始不早于结束）
var ErrInvalidRange = errors.New("无效的统计窗口")

// errAborted 上游上下文已结束导致的查询失败，不计入数据源熔断
var errAborted = errors.New("统计构建已中止")

// AggregatorOptions 聚合器参数
type AggregatorOptions struct {
	SourceTimeout time.Duration
	MaxParallel   int
	// Breaker 为每种数据源创建熔断器，为 nil 时使用默认设置
	Breaker func(kind models.RecordKind) *gobreaker.CircuitBreaker
}

// Aggregate 一个窗口的聚合结果
type Aggregate struct {
	Metrics    models.Metrics
	Series     []models.DaySeries
	Breakdowns models.Breakdowns
	Degraded   []string
}

// Aggregator 从各数据源查询分组统计并合并为指标
type Aggregator struct {
	source   RecordSource
	timeout  time.Duration
	parallel int
	breakers map[models.RecordKind]*gobreaker.CircuitBreaker
}

// NewAggregator 创建聚合器
func NewAggregator(source RecordSource, opts AggregatorOptions) *Aggregator {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.Breaker == nil {
		opts.Breaker = defaultBreaker
	}
	breakers := make(map[models.RecordKind]*gobreaker.CircuitBreaker, len(models.AllRecordKinds))
	for _, kind := range models.AllRecordKinds {
		breakers[kind] = opts.Breaker(kind)
	}
	return &Aggregator{
		source:   source,
		timeout:  opts.SourceTimeout,
		parallel: opts.MaxParallel,
		breakers: breakers,
	}
}

func defaultBreaker(kind models.RecordKind) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(BreakerSettings(kind))
}

// BreakerSettings 数据源熔断器的默认设置。调用方中止导致的失败视为成功
func BreakerSettings(kind models.RecordKind) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "stats-source-" + string(kind),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			utils.Logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("数据源熔断状态变化")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errAborted)
		},
	}
}

// 查询槽位，按固定顺序合并
const (
	slotClients = iota
	slotFollowUps
	slotActivity
	slotReports
	slotOutreach
	slotShops
	slotShipments
	slotInvoices
	slotInventory
	slotCommunications
	slotSources
	slotSegments
	slotRoles
	slotCount
)

type queryJob struct {
	slot  int
	query models.GroupQuery
}

// Build 构建用户在窗口内的指标、每日序列，以及（可选）分类统计与店铺积压快照
func (a *Aggregator) Build(ctx context.Context, userID string, r models.StatsRange, cfg models.AnalyticsConfig, now time.Time, withBreakdowns bool) (Aggregate, error) {
	if !r.Start.Before(r.End) || r.Days <= 0 {
		return Aggregate{}, fmt.Errorf("%w: %s - %s", ErrInvalidRange, r.StartDate, r.EndDate)
	}
	loc := r.Start.Location()

	daily := func(kind models.RecordKind, groupBy []string, sums []string, first bool) models.GroupQuery {
		return models.GroupQuery{
			Kind: kind, OwnerID: userID, Start: r.Start, End: r.End,
			ByDay: true, Location: loc, GroupBy: groupBy, Sum: sums, WithFirst: first,
		}
	}
	flat := func(field string) models.GroupQuery {
		return models.GroupQuery{
			Kind: models.KindClients, OwnerID: userID, Start: r.Start, End: r.End,
			Location: loc, GroupBy: []string{field, models.FieldOutcome},
		}
	}

	jobs := []queryJob{
		{slotClients, daily(models.KindClients, []string{models.FieldOutcome, models.FieldHasNextContact}, []string{models.SumPoints}, false)},
		{slotFollowUps, daily(models.KindFollowUps, []string{models.FieldStatus}, nil, false)},
		{slotActivity, daily(models.KindActivity, nil, []string{models.SumActiveSeconds}, false)},
		{slotReports, daily(models.KindReports, nil, nil, true)},
		{slotOutreach, daily(models.KindOutreach, nil, nil, false)},
		{slotShops, daily(models.KindShops, nil, nil, false)},
		{slotShipments, daily(models.KindShipments, nil, nil, false)},
		{slotInvoices, daily(models.KindInvoices, nil, nil, false)},
		{slotInventory, daily(models.KindInventory, []string{models.FieldDirection}, []string{models.SumQuantity}, false)},
		{slotCommunications, daily(models.KindCommunications, nil, nil, false)},
	}
	if withBreakdowns {
		jobs = append(jobs,
			queryJob{slotSources, flat(models.FieldSource)},
			queryJob{slotSegments, flat(models.FieldSegment)},
			queryJob{slotRoles, flat(models.FieldRole)},
		)
	}

	var (
		results  [slotCount][]models.GroupRow
		backlog  models.ShopBacklog
		mu       sync.Mutex
		degraded = map[string]bool{}
	)
	markDegraded := func(kind models.RecordKind) {
		mu.Lock()
		degraded[string(kind)] = true
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(a.parallel)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			rows, err := a.query(ctx, job.query)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logFailure(userID, job.query.Kind, err)
				markDegraded(job.query.Kind)
				return nil
			}
			results[job.slot] = rows
			return nil
		})
	}
	if withBreakdowns {
		g.Go(func() error {
			b, err := a.backlog(ctx, models.BacklogQuery{OwnerID: userID, Now: now, StaleDays: cfg.Advice.StaleShopDays})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logFailure(userID, models.KindShopBacklog, err)
				markDegraded(models.KindShopBacklog)
				return nil
			}
			backlog = b
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Aggregate{}, err
	}

	agg := Aggregate{}
	agg.Series, agg.Metrics = buildSeries(r, results[:], now, cfg.Advice)
	agg.Metrics.StaleShops = backlog.Stale
	agg.Metrics.OverdueNextContact = backlog.OverdueNextContact
	agg.Metrics.OverdueTests = backlog.OverdueTests
	agg.Metrics = agg.Metrics.Normalize()

	if withBreakdowns {
		adv := cfg.Advice
		agg.Breakdowns = models.Breakdowns{
			Sources:  foldBreakdown(results[slotSources], models.FieldSource, adv, sourceBucketOf),
			Segments: foldBreakdown(results[slotSegments], models.FieldSegment, adv, plainBucketOf),
			Roles:    foldBreakdown(results[slotRoles], models.FieldRole, adv, plainBucketOf),
		}
	}

	for kind := range degraded {
		agg.Degraded = append(agg.Degraded, kind)
	}
	sort.Strings(agg.Degraded)
	return agg, nil
}

func (a *Aggregator) query(ctx context.Context, q models.GroupQuery) ([]models.GroupRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	v, err := a.breakers[q.Kind].Execute(func() (interface{}, error) {
		rows, err := a.source.Aggregate(qctx, q)
		return rows, abortedOr(ctx, err)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := v.([]models.GroupRow)
	return rows, nil
}

func (a *Aggregator) backlog(ctx context.Context, q models.BacklogQuery) (models.ShopBacklog, error) {
	if err := ctx.Err(); err != nil {
		return models.ShopBacklog{}, err
	}
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	v, err := a.breakers[models.KindShopBacklog].Execute(func() (interface{}, error) {
		b, err := a.source.ShopBacklog(qctx, q)
		return b, abortedOr(ctx, err)
	})
	if err != nil {
		return models.ShopBacklog{}, err
	}
	b, _ := v.(models.ShopBacklog)
	return b, nil
}

// abortedOr 上游上下文结束时把查询错误标记为中止，单个数据源自身的超时仍按失败计
func abortedOr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", errAborted, err)
	}
	return err
}

func (a *Aggregator) logFailure(userID string, kind models.RecordKind, err error) {
	sourceFailures.WithLabelValues(string(kind)).Inc()
	utils.Logger.Warn().
		Err(err).
		Str("kind", string(kind)).
		Str("userId", userID).
		Msg("数据源查询失败，按空数据处理")
}

// indexByDay 每个数据源一张按日期索引的表
func indexByDay(rows []models.GroupRow) map[string][]models.GroupRow {
	idx := make(map[string][]models.GroupRow, len(rows))
	for _, row := range rows {
		idx[row.Day] = append(idx[row.Day], row)
	}
	return idx
}

// buildSeries 遍历一次固定的日期范围，从各数据源的日期表中取当天的贡献
func buildSeries(r models.StatsRange, results [][]models.GroupRow, now time.Time, adv models.AdviceConfig) ([]models.DaySeries, models.Metrics) {
	clients := indexByDay(results[slotClients])
	followUps := indexByDay(results[slotFollowUps])
	activity := indexByDay(results[slotActivity])
	reports := indexByDay(results[slotReports])
	outreach := indexByDay(results[slotOutreach])
	shops := indexByDay(results[slotShops])
	shipments := indexByDay(results[slotShipments])
	invoices := indexByDay(results[slotInvoices])
	inventory := indexByDay(results[slotInventory])
	comms := indexByDay(results[slotCommunications])

	dates := r.Dates()
	series := make([]models.DaySeries, 0, len(dates))
	var total models.Metrics

	for _, date := range dates {
		day := date.Format(models.DateLayout)
		var m models.Metrics

		for _, row := range clients[day] {
			n := nonNegative64(row.Count)
			outcome := normalizeCode(row.Key(models.FieldOutcome))
			m.Processed += n
			m.Points += nonNegativeF(row.Sum(models.SumPoints))
			m.SuccessWeighted += float64(n) * models.OutcomeWeight(outcome)
			if models.RequiresNextContact(outcome) && row.Key(models.FieldHasNextContact) != models.NextContactYes {
				m.FollowupPlanMissing += n
			}
		}
		for _, row := range followUps[day] {
			n := nonNegative64(row.Count)
			m.FollowupsTotal += n
			switch normalizeCode(row.Key(models.FieldStatus)) {
			case models.FollowUpMissed:
				m.FollowupsMissed += n
			case models.FollowUpDone:
				m.FollowupsDone += n
			}
		}
		for _, row := range activity[day] {
			m.ActiveSeconds += nonNegativeF(row.Sum(models.SumActiveSeconds))
		}
		m.OutreachSent = countRows(outreach[day])
		m.ShopsCreated = countRows(shops[day])
		m.ShipmentsCreated = countRows(shipments[day])
		m.InvoicesCreated = countRows(invoices[day])
		m.Communications = countRows(comms[day])
		for _, row := range inventory[day] {
			qty := nonNegativeF(math.Abs(row.Sum(models.SumQuantity)))
			switch normalizeCode(row.Key(models.FieldDirection)) {
			case models.DirectionIn:
				m.InventoryIn += qty
			case models.DirectionOut:
				m.InventoryOut += qty
			}
		}

		status, required := reportStatus(date, m.Processed, reports[day], now, adv)
		if required {
			m.ReportDaysRequired = 1
			switch status {
			case models.ReportLate:
				m.ReportDaysLate = 1
			case models.ReportMissing:
				m.ReportDaysMissing = 1
			}
		}

		m = m.Normalize()
		total = total.Add(m)
		series = append(series, models.DaySeries{Date: day, Metrics: m, ReportStatus: status})
	}
	return series, total
}

// reportStatus 工作日且当天新建了客户才需要日报；截止时间未到且未提交时当天还不算缺交。不需要日报的日期状态为 none
func reportStatus(day time.Time, processed int64, rows []models.GroupRow, now time.Time, adv models.AdviceConfig) (models.ReportStatus, bool) {
	var first time.Time
	for _, row := range rows {
		if row.Count <= 0 && row.First.IsZero() {
			continue
		}
		if first.IsZero() || (!row.First.IsZero() && row.First.Before(first)) {
			first = row.First
		}
		if first.IsZero() {
			// 有提交但没有时间信息，视为按时
			first = day
		}
	}
	submitted := !first.IsZero()

	y, mo, d := day.Date()
	deadline := time.Date(y, mo, d, adv.ReportDeadlineHour, 0, 0, 0, day.Location()).
		Add(time.Duration(adv.ReportGraceMinutes) * time.Minute)
	weekday := day.Weekday() != time.Saturday && day.Weekday() != time.Sunday
	required := weekday && processed > 0 && (submitted || !now.Before(deadline))

	switch {
	case !required:
		return models.ReportNone, false
	case submitted && first.After(deadline):
		return models.ReportLate, true
	case submitted:
		return models.ReportOnTime, true
	default:
		return models.ReportMissing, true
	}
}

type bucketFunc func(raw string) (key, label string)

func sourceBucketOf(raw string) (string, string) {
	b := ClassifySource(raw)
	return b.Key(), b.Label()
}

func plainBucketOf(raw string) (string, string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return string(models.ChannelUnknown), "未知"
	}
	return strings.ToLower(v), v
}

// foldBreakdown 按桶累加数量与成功加权得分，按数量降序输出
func foldBreakdown(rows []models.GroupRow, field string, adv models.AdviceConfig, bucket bucketFunc) []models.BreakdownItem {
	acc := map[string]*models.BreakdownItem{}
	for _, row := range rows {
		n := nonNegative64(row.Count)
		if n == 0 {
			continue
		}
		key, label := bucket(row.Key(field))
		item, ok := acc[key]
		if !ok {
			item = &models.BreakdownItem{Key: key, Label: label}
			acc[key] = item
		}
		item.Count += n
		item.SuccessWeighted += float64(n) * models.OutcomeWeight(normalizeCode(row.Key(models.FieldOutcome)))
	}

	items := make([]models.BreakdownItem, 0, len(acc))
	for _, item := range acc {
		item.SuccessWeighted = round(item.SuccessWeighted, 4)
		item.SuccessRate = round(SmoothedRate(item.SuccessWeighted, item.Count, adv.SourcePriorSuccess, adv.SourcePriorCount), 4)
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Key < items[j].Key
	})
	return items
}

func countRows(rows []models.GroupRow) int64 {
	var n int64
	for _, row := range rows {
		n += nonNegative64(row.Count)
	}
	return n
}

func normalizeCode(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func nonNegative64(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func nonNegativeF(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
