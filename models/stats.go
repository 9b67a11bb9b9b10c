package models

import "time"

// Period 统计周期
type Period string

const (
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodWeek      Period = "week"
	PeriodMonth     Period = "month"
	PeriodRange     Period = "range"
)

// DateLayout 日历日期格式
const DateLayout = "2006-01-02"

// RangeRequest 统计时间窗口请求
type RangeRequest struct {
	Period string `json:"period" form:"period"`
	From   string `json:"from,omitempty" form:"from"`
	To     string `json:"to,omitempty" form:"to"`
}

// StatsRange 统计时间窗口，[Start, End) 半开区间
type StatsRange struct {
	Period    Period    `json:"period"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	StartDate string    `json:"startDate"`
	EndDate   string    `json:"endDate"`
	Label     string    `json:"label"`
	Days      int       `json:"days"`
}

// Window 窗口标识，用于缓存键与建议键
func (r StatsRange) Window() string {
	return r.StartDate + "_" + r.EndDate
}

// Dates 按顺序返回窗口内每一天
func (r StatsRange) Dates() []time.Time {
	loc := r.Start.Location()
	first, err := time.ParseInLocation(DateLayout, r.StartDate, loc)
	if err != nil {
		return nil
	}
	dates := make([]time.Time, 0, r.Days)
	for i := 0; i < r.Days; i++ {
		dates = append(dates, first.AddDate(0, 0, i))
	}
	return dates
}
