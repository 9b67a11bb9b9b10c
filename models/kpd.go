package models

// KpdResult 综合生产力指数 (KPD) 计算结果，不持久化
type KpdResult struct {
	Value     float64            `json:"value"`
	Effort    float64            `json:"effort"`
	Quality   float64            `json:"quality"`
	Ops       float64            `json:"ops"`
	Penalty   float64            `json:"penalty"`
	Breakdown map[string]float64 `json:"breakdown"`
}
