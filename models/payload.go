package models

import "time"

// ReportStatus 当天日报提交状态
type ReportStatus string

const (
	ReportOnTime  ReportStatus = "on_time"
	ReportLate    ReportStatus = "late"
	ReportMissing ReportStatus = "missing"
	ReportNone    ReportStatus = "none"
)

// DaySeries 每日序列项
type DaySeries struct {
	Date         string       `json:"date"`
	Metrics      Metrics      `json:"metrics"`
	Kpd          float64      `json:"kpd"`
	ReportStatus ReportStatus `json:"reportStatus"`
}

// BreakdownItem 分类统计项
type BreakdownItem struct {
	Key             string  `json:"key"`
	Label           string  `json:"label"`
	Count           int64   `json:"count"`
	SuccessWeighted float64 `json:"successWeighted"`
	SuccessRate     float64 `json:"successRate"` // 平滑后的成功率
}

// Breakdowns 分类统计
type Breakdowns struct {
	Segments []BreakdownItem `json:"segments"`
	Roles    []BreakdownItem `json:"roles"`
	Sources  []BreakdownItem `json:"sources"`
}

// RangeInfo 当前与上一周期
type RangeInfo struct {
	Current  StatsRange `json:"current"`
	Previous StatsRange `json:"previous"`
}

// Summary 汇总指标
type Summary struct {
	Now      Metrics   `json:"now"`
	Prev     Metrics   `json:"prev"`
	KpdNow   KpdResult `json:"kpdNow"`
	KpdPrev  KpdResult `json:"kpdPrev"`
	KpdDelta float64   `json:"kpdDelta"`
	PphNow   float64   `json:"pphNow"`
	PphPrev  float64   `json:"pphPrev"`
}

// StatsPayload 数据看板响应结构
type StatsPayload struct {
	UserID        string       `json:"userId"`
	Range         RangeInfo    `json:"range"`
	Summary       Summary      `json:"summary"`
	Breakdowns    Breakdowns   `json:"breakdowns"`
	Series        []DaySeries  `json:"series"`
	Advice        []AdviceItem `json:"advice"`
	ConfigVersion string       `json:"configVersion"`
	Degraded      []string     `json:"degraded,omitempty"`
	GeneratedAt   time.Time    `json:"generatedAt"`
}
