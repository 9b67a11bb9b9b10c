package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BerniceZTT/crm_stats/models"
)

func TestResolveRange(t *testing.T) {
	now := at(2024, time.March, 15, 10, 30)

	tests := []struct {
		name      string
		period    string
		from, to  string
		wantP     models.Period
		wantStart string
		wantEnd   string
		wantDays  int
	}{
		{"today", "today", "", "", models.PeriodToday, "2024-03-15", "2024-03-15", 1},
		{"yesterday", "yesterday", "", "", models.PeriodYesterday, "2024-03-14", "2024-03-14", 1},
		{"week", "week", "", "", models.PeriodWeek, "2024-03-09", "2024-03-15", 7},
		{"month", "MONTH", "", "", models.PeriodMonth, "2024-02-15", "2024-03-15", 30},
		{"range", "range", "2024-03-01", "2024-03-10", models.PeriodRange, "2024-03-01", "2024-03-10", 10},
		{"inverted range is swapped", "range", "2024-03-10", "2024-03-01", models.PeriodRange, "2024-03-01", "2024-03-10", 10},
		{"dotted dates", "range", "01.03.2024", "05.03.2024", models.PeriodRange, "2024-03-01", "2024-03-05", 5},
		{"rfc3339 dates", "range", "2024-03-01T23:00:00+08:00", "2024-03-02T01:00:00+08:00", models.PeriodRange, "2024-03-01", "2024-03-02", 2},
		{"range capped", "range", "2023-01-01", "2024-12-31", models.PeriodRange, "2023-01-01", "2024-01-02", MaxRangeDays},
		{"range missing to falls back to week", "range", "2024-03-01", "", models.PeriodWeek, "2024-03-09", "2024-03-15", 7},
		{"garbage dates fall back to week", "range", "yesterday-ish", "soon", models.PeriodWeek, "2024-03-09", "2024-03-15", 7},
		{"unknown period", "quarter", "", "", models.PeriodWeek, "2024-03-09", "2024-03-15", 7},
		{"empty period", "", "", "", models.PeriodWeek, "2024-03-09", "2024-03-15", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ResolveRange(tt.period, tt.from, tt.to, now)
			assert.Equal(t, tt.wantP, r.Period)
			assert.Equal(t, tt.wantStart, r.StartDate)
			assert.Equal(t, tt.wantEnd, r.EndDate)
			assert.Equal(t, tt.wantDays, r.Days)
			assert.True(t, r.Start.Before(r.End))
			assert.True(t, r.Start.AddDate(0, 0, r.Days).Equal(r.End))
			assert.Len(t, r.Dates(), r.Days)
		})
	}
}

func TestResolveRangeHalfOpenBounds(t *testing.T) {
	r := ResolveRange("today", "", "", at(2024, time.March, 15, 23, 59))

	assert.True(t, at(2024, time.March, 15, 0, 0).Equal(r.Start))
	assert.True(t, at(2024, time.March, 16, 0, 0).Equal(r.End))
	assert.Equal(t, "今天", r.Label)
	assert.Equal(t, "2024-03-15_2024-03-15", r.Window())
}

func TestPreviousRange(t *testing.T) {
	now := at(2024, time.March, 15, 10, 0)

	week := ResolveRange("week", "", "", now)
	prev := PreviousRange(week)
	assert.Equal(t, "2024-03-02", prev.StartDate)
	assert.Equal(t, "2024-03-08", prev.EndDate)
	assert.Equal(t, week.Days, prev.Days)
	assert.True(t, week.Start.Equal(prev.End))

	today := ResolveRange("today", "", "", now)
	y := PreviousRange(today)
	assert.Equal(t, "2024-03-14", y.StartDate)
	assert.Equal(t, 1, y.Days)
	assert.Equal(t, "2024-03-14", y.Label)
	assert.Equal(t, models.PeriodToday, y.Period)
	assert.Equal(t, "02.03 - 08.03.2024", prev.Label)

	custom := ResolveRange("range", "2024-02-28", "2024-03-02", now)
	pc := PreviousRange(custom)
	assert.Equal(t, 4, custom.Days)
	assert.Equal(t, "2024-02-24", pc.StartDate)
	assert.Equal(t, "2024-02-27", pc.EndDate)
}

func TestRangeLabel(t *testing.T) {
	r := ResolveRange("range", "2024-03-01", "2024-03-10", at(2024, time.March, 15, 10, 0))
	assert.Equal(t, "01.03 - 10.03.2024", r.Label)

	single := ResolveRange("range", "2024-03-01", "2024-03-01", at(2024, time.March, 15, 10, 0))
	assert.Equal(t, "2024-03-01", single.Label)
}
