package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/crm_stats/models"
)

func clientRow(day, outcome, next string, count int64, points float64) models.GroupRow {
	return models.GroupRow{
		Day:   day,
		Keys:  map[string]string{models.FieldOutcome: outcome, models.FieldHasNextContact: next},
		Count: count,
		Sums:  map[string]float64{models.SumPoints: points},
	}
}

func keyed(day, field, value string, count int64) models.GroupRow {
	return models.GroupRow{Day: day, Keys: map[string]string{field: value}, Count: count}
}

func scenarioSource() *fakeSource {
	src := newFakeSource()
	src.daily[models.KindClients] = []models.GroupRow{
		clientRow("2024-03-11", "order_confirmed", models.NextContactNo, 2, 50),
		clientRow("2024-03-11", "interested", models.NextContactNo, 3, 10),
		clientRow("2024-03-12", "callback", models.NextContactYes, 4, 8),
		clientRow("2024-03-13", "rejected", models.NextContactNo, -2, -5),
		clientRow("2024-03-14", "no_answer", models.NextContactNo, 1, 0),
		// 窗口之外
		clientRow("2024-03-01", "order_confirmed", models.NextContactNo, 9, 900),
	}
	src.daily[models.KindFollowUps] = []models.GroupRow{
		keyed("2024-03-12", models.FieldStatus, "missed", 2),
		keyed("2024-03-12", models.FieldStatus, "DONE", 3),
		keyed("2024-03-13", models.FieldStatus, "pending", 1),
	}
	src.daily[models.KindActivity] = []models.GroupRow{
		{Day: "2024-03-11", Count: 4, Sums: map[string]float64{models.SumActiveSeconds: 3600}},
		{Day: "2024-03-13", Count: 1, Sums: map[string]float64{models.SumActiveSeconds: -100}},
	}
	src.daily[models.KindReports] = []models.GroupRow{
		{Day: "2024-03-11", Count: 1, First: at(2024, time.March, 11, 18, 0)},
		{Day: "2024-03-12", Count: 2, First: at(2024, time.March, 12, 20, 0)},
	}
	src.daily[models.KindOutreach] = []models.GroupRow{{Day: "2024-03-11", Count: 5}}
	src.daily[models.KindInvoices] = []models.GroupRow{{Day: "2024-03-12", Count: 1}}
	src.daily[models.KindInventory] = []models.GroupRow{
		{Day: "2024-03-12", Keys: map[string]string{models.FieldDirection: "in"}, Count: 1, Sums: map[string]float64{models.SumQuantity: 10}},
		{Day: "2024-03-12", Keys: map[string]string{models.FieldDirection: "out"}, Count: 1, Sums: map[string]float64{models.SumQuantity: -4}},
	}
	src.failing[models.KindShops] = true
	src.backlog = models.ShopBacklog{Stale: 2, OverdueNextContact: 1}

	src.flat[models.FieldSource] = []models.GroupRow{
		{Keys: map[string]string{models.FieldSource: "Instagram", models.FieldOutcome: "order_confirmed"}, Count: 3},
		{Keys: map[string]string{models.FieldSource: "insta", models.FieldOutcome: "no_answer"}, Count: 2},
		{Keys: map[string]string{models.FieldSource: "", models.FieldOutcome: "callback"}, Count: 1},
	}
	src.flat[models.FieldSegment] = []models.GroupRow{
		{Keys: map[string]string{models.FieldSegment: "Retail", models.FieldOutcome: "interested"}, Count: 4},
		{Keys: map[string]string{models.FieldSegment: "", models.FieldOutcome: "interested"}, Count: 1},
	}
	return src
}

func TestAggregatorBuild(t *testing.T) {
	now := at(2024, time.March, 15, 20, 0)
	r := ResolveRange("week", "", "", now)
	agg := NewAggregator(scenarioSource(), AggregatorOptions{})

	res, err := agg.Build(context.Background(), "u1", r, models.DefaultAnalyticsConfig(), now, true)
	require.NoError(t, err)

	m := res.Metrics
	assert.Equal(t, int64(10), m.Processed)
	assert.InDelta(t, 68.0, m.Points, 1e-9)
	assert.InDelta(t, 3.1, m.SuccessWeighted, 1e-9)
	assert.Equal(t, int64(3), m.FollowupPlanMissing)
	assert.Equal(t, int64(6), m.FollowupsTotal)
	assert.Equal(t, int64(2), m.FollowupsMissed)
	assert.Equal(t, int64(3), m.FollowupsDone)
	assert.Equal(t, 3600.0, m.ActiveSeconds)
	assert.Equal(t, int64(5), m.OutreachSent)
	assert.Equal(t, int64(1), m.InvoicesCreated)
	assert.Equal(t, int64(0), m.ShopsCreated)
	assert.Equal(t, 10.0, m.InventoryIn)
	assert.Equal(t, 4.0, m.InventoryOut)
	assert.Equal(t, int64(3), m.ReportDaysRequired)
	assert.Equal(t, int64(1), m.ReportDaysLate)
	assert.Equal(t, int64(1), m.ReportDaysMissing)
	assert.Equal(t, int64(2), m.StaleShops)
	assert.Equal(t, int64(1), m.OverdueNextContact)

	assert.Equal(t, []string{"shops"}, res.Degraded)

	require.Len(t, res.Series, 7)
	assert.Equal(t, "2024-03-09", res.Series[0].Date)
	assert.Equal(t, "2024-03-15", res.Series[6].Date)
	statuses := map[string]models.ReportStatus{}
	var sum models.Metrics
	for _, d := range res.Series {
		statuses[d.Date] = d.ReportStatus
		sum = sum.Add(d.Metrics)
	}
	assert.Equal(t, models.ReportOnTime, statuses["2024-03-11"])
	assert.Equal(t, models.ReportLate, statuses["2024-03-12"])
	assert.Equal(t, models.ReportNone, statuses["2024-03-13"])
	assert.Equal(t, models.ReportMissing, statuses["2024-03-14"])
	assert.Equal(t, models.ReportNone, statuses["2024-03-15"])
	assert.Equal(t, int64(0), res.Series[4].Metrics.Processed)

	// 每日序列之和等于窗口汇总（积压快照除外）
	assert.Equal(t, m.Processed, sum.Processed)
	assert.InDelta(t, m.Points, sum.Points, 1e-9)
	assert.Equal(t, m.FollowupsTotal, sum.FollowupsTotal)
	assert.Equal(t, m.ReportDaysRequired, sum.ReportDaysRequired)

	sources := res.Breakdowns.Sources
	require.Len(t, sources, 2)
	assert.Equal(t, "instagram", sources[0].Key)
	assert.Equal(t, int64(5), sources[0].Count)
	assert.InDelta(t, 3.0, sources[0].SuccessWeighted, 1e-9)
	assert.InDelta(t, 0.4, sources[0].SuccessRate, 1e-9)
	assert.Equal(t, "unknown", sources[1].Key)

	segments := res.Breakdowns.Segments
	require.Len(t, segments, 2)
	assert.Equal(t, "retail", segments[0].Key)
	assert.Equal(t, "Retail", segments[0].Label)
	assert.Equal(t, "未知", segments[1].Label)
	assert.Empty(t, res.Breakdowns.Roles)
}

func TestAggregatorTodayBeforeDeadline(t *testing.T) {
	now := at(2024, time.March, 14, 12, 0)
	r := ResolveRange("today", "", "", now)
	agg := NewAggregator(scenarioSource(), AggregatorOptions{})

	res, err := agg.Build(context.Background(), "u1", r, models.DefaultAnalyticsConfig(), now, false)
	require.NoError(t, err)

	require.Len(t, res.Series, 1)
	assert.Equal(t, models.ReportNone, res.Series[0].ReportStatus)
	assert.Equal(t, int64(1), res.Metrics.Processed)
	assert.Equal(t, int64(0), res.Metrics.ReportDaysRequired)
	assert.Equal(t, int64(0), res.Metrics.StaleShops)
	assert.Empty(t, res.Breakdowns.Sources)
}

func TestAggregatorSkipsBreakdownQueries(t *testing.T) {
	src := newFakeSource()
	now := at(2024, time.March, 15, 20, 0)
	agg := NewAggregator(src, AggregatorOptions{})

	_, err := agg.Build(context.Background(), "u1", ResolveRange("week", "", "", now), models.DefaultAnalyticsConfig(), now, false)
	require.NoError(t, err)

	assert.Equal(t, int32(10), src.calls)
}

func TestAggregatorAllSourcesFailing(t *testing.T) {
	src := newFakeSource()
	for _, kind := range models.AllRecordKinds {
		src.failing[kind] = true
	}
	now := at(2024, time.March, 15, 20, 0)
	agg := NewAggregator(src, AggregatorOptions{})

	res, err := agg.Build(context.Background(), "u1", ResolveRange("week", "", "", now), models.DefaultAnalyticsConfig(), now, true)
	require.NoError(t, err)

	assert.Len(t, res.Degraded, len(models.AllRecordKinds))
	assert.Equal(t, models.Metrics{}, res.Metrics)
	assert.Len(t, res.Series, 7)
	assert.Empty(t, res.Breakdowns.Sources)
}

func TestAggregatorInvalidRange(t *testing.T) {
	agg := NewAggregator(newFakeSource(), AggregatorOptions{})

	_, err := agg.Build(context.Background(), "u1", models.StatsRange{}, models.DefaultAnalyticsConfig(), time.Now(), false)

	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestReportStatusWeekend(t *testing.T) {
	adv := models.DefaultAdviceConfig()
	saturday := at(2024, time.March, 16, 0, 0)
	now := at(2024, time.March, 18, 9, 0)

	status, required := reportStatus(saturday, 5, nil, now, adv)
	assert.Equal(t, models.ReportNone, status)
	assert.False(t, required)

	// 周末提交的日报不计迟交
	rows := []models.GroupRow{{Count: 1, First: at(2024, time.March, 16, 21, 0)}}
	status, required = reportStatus(saturday, 5, rows, now, adv)
	assert.Equal(t, models.ReportNone, status)
	assert.False(t, required)

	// 工作日无新客户时同样不需要日报
	friday := at(2024, time.March, 15, 0, 0)
	status, required = reportStatus(friday, 0, rows, now, adv)
	assert.Equal(t, models.ReportNone, status)
	assert.False(t, required)
}

func TestReportStatusGraceWindow(t *testing.T) {
	adv := models.DefaultAdviceConfig()
	monday := at(2024, time.March, 11, 0, 0)
	now := at(2024, time.March, 12, 9, 0)

	rows := []models.GroupRow{{Count: 1, First: at(2024, time.March, 11, 19, 25)}}
	status, required := reportStatus(monday, 1, rows, now, adv)
	assert.Equal(t, models.ReportOnTime, status)
	assert.True(t, required)

	rows = []models.GroupRow{{Count: 1, First: at(2024, time.March, 11, 19, 31)}}
	status, _ = reportStatus(monday, 1, rows, now, adv)
	assert.Equal(t, models.ReportLate, status)
}

func TestAggregatorSlowSourceTimesOut(t *testing.T) {
	src := scenarioSource()
	src.failing[models.KindShops] = false
	src.blocking[models.KindClients] = true
	now := at(2024, time.March, 15, 20, 0)
	agg := NewAggregator(src, AggregatorOptions{SourceTimeout: 10 * time.Millisecond})

	res, err := agg.Build(context.Background(), "u1", ResolveRange("week", "", "", now), models.DefaultAnalyticsConfig(), now, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"clients"}, res.Degraded)
	assert.Equal(t, int64(0), res.Metrics.Processed)
	assert.Equal(t, int64(6), res.Metrics.FollowupsTotal)
	assert.Equal(t, 3600.0, res.Metrics.ActiveSeconds)
}

func TestAggregatorOpenBreakerSkipsSource(t *testing.T) {
	src := newFakeSource()
	src.failing[models.KindClients] = true
	now := at(2024, time.March, 15, 20, 0)
	r := ResolveRange("week", "", "", now)
	agg := NewAggregator(src, AggregatorOptions{Breaker: func(kind models.RecordKind) *gobreaker.CircuitBreaker {
		settings := BreakerSettings(kind)
		settings.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
		return gobreaker.NewCircuitBreaker(settings)
	}})

	res, err := agg.Build(context.Background(), "u1", r, models.DefaultAnalyticsConfig(), now, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"clients"}, res.Degraded)
	assert.Equal(t, gobreaker.StateOpen, agg.breakers[models.KindClients].State())

	// 数据源恢复后熔断器仍处于打开状态，不再查询该数据源
	src.failing[models.KindClients] = false
	before := atomic.LoadInt32(&src.calls)
	res, err = agg.Build(context.Background(), "u1", r, models.DefaultAnalyticsConfig(), now, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"clients"}, res.Degraded)
	assert.Equal(t, int32(9), atomic.LoadInt32(&src.calls)-before)
}

func TestAggregatorCancelledContext(t *testing.T) {
	src := scenarioSource()
	now := at(2024, time.March, 15, 20, 0)
	agg := NewAggregator(src, AggregatorOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.Build(ctx, "u1", ResolveRange("week", "", "", now), models.DefaultAnalyticsConfig(), now, true)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.calls))
}

func TestAggregatorAbortedCallsKeepBreakersClosed(t *testing.T) {
	src := scenarioSource()
	src.failing[models.KindShops] = false
	src.blocking[models.KindClients] = true
	now := at(2024, time.March, 15, 20, 0)
	r := ResolveRange("week", "", "", now)
	agg := NewAggregator(src, AggregatorOptions{})

	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(5*time.Millisecond, cancel)
		_, err := agg.Build(ctx, "aborter", r, models.DefaultAnalyticsConfig(), now, true)
		assert.ErrorIs(t, err, context.Canceled)
		cancel()
	}
	assert.Equal(t, gobreaker.StateClosed, agg.breakers[models.KindClients].State())

	src.blocking[models.KindClients] = false
	res, err := agg.Build(context.Background(), "u1", r, models.DefaultAnalyticsConfig(), now, true)
	require.NoError(t, err)

	assert.Empty(t, res.Degraded)
	assert.Equal(t, int64(10), res.Metrics.Processed)
}
