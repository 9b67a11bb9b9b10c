package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/BerniceZTT/crm_stats/models"
)

// MaxRangeDays 自定义区间的最大天数
const MaxRangeDays = 367

var dateLayouts = []string{models.DateLayout, "02.01.2006", "2006/01/02"}

// ResolveRange 根据周期与可选日期计算统计窗口。无法解析的输入回退到近7天
func ResolveRange(period, from, to string, now time.Time) models.StatsRange {
	loc := now.Location()
	today := startOfDay(now)

	switch models.Period(strings.ToLower(strings.TrimSpace(period))) {
	case models.PeriodToday:
		return newRange(models.PeriodToday, today, today)
	case models.PeriodYesterday:
		y := today.AddDate(0, 0, -1)
		return newRange(models.PeriodYesterday, y, y)
	case models.PeriodMonth:
		return newRange(models.PeriodMonth, today.AddDate(0, 0, -29), today)
	case models.PeriodRange:
		start, okFrom := parseDate(from, loc)
		end, okTo := parseDate(to, loc)
		if !okFrom || !okTo {
			return weekRange(today)
		}
		if end.Before(start) {
			start, end = end, start
		}
		if last := start.AddDate(0, 0, MaxRangeDays-1); end.After(last) {
			end = last
		}
		return newRange(models.PeriodRange, start, end)
	default:
		return weekRange(today)
	}
}

// PreviousRange 紧邻当前窗口之前、长度相同的窗口
func PreviousRange(r models.StatsRange) models.StatsRange {
	loc := r.Start.Location()
	first, err := time.ParseInLocation(models.DateLayout, r.StartDate, loc)
	if err != nil {
		first = startOfDay(r.Start)
	}
	days := r.Days
	if days <= 0 {
		days = 1
	}
	end := first.AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(days - 1))
	// 上一窗口按日期命名，周期沿用当前窗口
	prev := newRange(models.PeriodRange, start, end)
	prev.Period = r.Period
	return prev
}

func weekRange(today time.Time) models.StatsRange {
	return newRange(models.PeriodWeek, today.AddDate(0, 0, -6), today)
}

// newRange startDate、endDate 均为当天零点
func newRange(period models.Period, startDate, endDate time.Time) models.StatsRange {
	days := daysBetween(startDate, endDate) + 1
	r := models.StatsRange{
		Period:    period,
		Start:     startDate,
		End:       endDate.AddDate(0, 0, 1),
		StartDate: startDate.Format(models.DateLayout),
		EndDate:   endDate.Format(models.DateLayout),
		Days:      days,
	}
	r.Label = rangeLabel(r)
	return r
}

func rangeLabel(r models.StatsRange) string {
	switch r.Period {
	case models.PeriodToday:
		return "今天"
	case models.PeriodYesterday:
		return "昨天"
	}
	if r.Days == 1 {
		return r.StartDate
	}
	return fmt.Sprintf("%s - %s", r.Start.Format("02.01"), r.End.AddDate(0, 0, -1).Format("02.01.2006"))
}

func parseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return startOfDay(t.In(loc)), true
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween 按日历日计算，不受夏令时影响
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
