package models

import "math"

// Metrics 一个时间窗口（或一天）的统计指标
type Metrics struct {
	Processed       int64   `json:"processed"`       // 处理客户数
	Points          float64 `json:"points"`          // 积分
	ActiveSeconds   float64 `json:"activeSeconds"`   // 活跃时长（秒）
	SuccessWeighted float64 `json:"successWeighted"` // 成功加权得分

	FollowupsTotal      int64 `json:"followupsTotal"`
	FollowupsMissed     int64 `json:"followupsMissed"`
	FollowupsDone       int64 `json:"followupsDone"`
	FollowupPlanMissing int64 `json:"followupPlanMissing"` // 关键阶段缺少下次联系计划

	ShopsCreated     int64   `json:"shopsCreated"`
	InvoicesCreated  int64   `json:"invoicesCreated"`
	ShipmentsCreated int64   `json:"shipmentsCreated"`
	Communications   int64   `json:"communications"`
	InventoryIn      float64 `json:"inventoryIn"`
	InventoryOut     float64 `json:"inventoryOut"`
	OutreachSent     int64   `json:"outreachSent"`

	ReportDaysRequired int64 `json:"reportDaysRequired"`
	ReportDaysLate     int64 `json:"reportDaysLate"`
	ReportDaysMissing  int64 `json:"reportDaysMissing"`

	// 店铺积压快照，仅对整个窗口有效
	StaleShops         int64 `json:"staleShops"`
	OverdueNextContact int64 `json:"overdueNextContact"`
	OverdueTests       int64 `json:"overdueTests"`
}

// Add 累加另一组指标
func (m Metrics) Add(o Metrics) Metrics {
	m.Processed += o.Processed
	m.Points += o.Points
	m.ActiveSeconds += o.ActiveSeconds
	m.SuccessWeighted += o.SuccessWeighted
	m.FollowupsTotal += o.FollowupsTotal
	m.FollowupsMissed += o.FollowupsMissed
	m.FollowupsDone += o.FollowupsDone
	m.FollowupPlanMissing += o.FollowupPlanMissing
	m.ShopsCreated += o.ShopsCreated
	m.InvoicesCreated += o.InvoicesCreated
	m.ShipmentsCreated += o.ShipmentsCreated
	m.Communications += o.Communications
	m.InventoryIn += o.InventoryIn
	m.InventoryOut += o.InventoryOut
	m.OutreachSent += o.OutreachSent
	m.ReportDaysRequired += o.ReportDaysRequired
	m.ReportDaysLate += o.ReportDaysLate
	m.ReportDaysMissing += o.ReportDaysMissing
	m.StaleShops += o.StaleShops
	m.OverdueNextContact += o.OverdueNextContact
	m.OverdueTests += o.OverdueTests
	return m
}

// Normalize 把负数与非有限值归零并保证计数之间的约束关系
func (m Metrics) Normalize() Metrics {
	ints := []*int64{
		&m.Processed, &m.FollowupsTotal, &m.FollowupsMissed, &m.FollowupsDone,
		&m.FollowupPlanMissing, &m.ShopsCreated, &m.InvoicesCreated, &m.ShipmentsCreated,
		&m.Communications, &m.OutreachSent, &m.ReportDaysRequired, &m.ReportDaysLate,
		&m.ReportDaysMissing, &m.StaleShops, &m.OverdueNextContact, &m.OverdueTests,
	}
	for _, v := range ints {
		if *v < 0 {
			*v = 0
		}
	}
	floats := []*float64{&m.Points, &m.ActiveSeconds, &m.SuccessWeighted, &m.InventoryIn, &m.InventoryOut}
	for _, v := range floats {
		if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}

	if m.FollowupsMissed > m.FollowupsTotal {
		m.FollowupsMissed = m.FollowupsTotal
	}
	if m.ReportDaysLate > m.ReportDaysRequired {
		m.ReportDaysLate = m.ReportDaysRequired
	}
	if m.ReportDaysLate+m.ReportDaysMissing > m.ReportDaysRequired {
		m.ReportDaysMissing = m.ReportDaysRequired - m.ReportDaysLate
	}
	return m
}

func (m Metrics) ActiveMinutes() float64 { return m.ActiveSeconds / 60 }

func (m Metrics) ActiveHours() float64 { return m.ActiveSeconds / 3600 }

// PointsPerActiveHour 每活跃小时积分，无活跃时长时为0
func (m Metrics) PointsPerActiveHour() float64 {
	hours := m.ActiveHours()
	if hours <= 0 {
		return 0
	}
	return m.Points / hours
}

// FollowupMissRate 跟进逾期比例 (0..1)
func (m Metrics) FollowupMissRate() float64 {
	if m.FollowupsTotal <= 0 {
		return 0
	}
	return float64(m.FollowupsMissed) / float64(m.FollowupsTotal)
}
