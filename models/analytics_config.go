package models

// ConfigTypeStatsAnalytics 统计评分配置类型
const ConfigTypeStatsAnalytics ConfigType = "stats_analytics"

// DefaultConfigVersion 未配置覆盖值时的版本号
const DefaultConfigVersion = "default"

// KpdConfig KPD 评分公式参数。平滑常数与指数均为经验值，可通过配置调整
type KpdConfig struct {
	ActiveNormMinutes float64 `json:"active_norm_minutes"`
	ActiveExponent    float64 `json:"active_exponent"`
	ActiveCeiling     float64 `json:"active_ceiling"`
	PointsNorm        float64 `json:"points_norm"`
	PointsExponent    float64 `json:"points_exponent"`
	PointsCeiling     float64 `json:"points_ceiling"`
	MaxEffort         float64 `json:"max_effort"`

	QualityPriorSuccess float64 `json:"quality_prior_success"`
	QualityPriorCount   float64 `json:"quality_prior_count"`
	QualityMultiplier   float64 `json:"quality_multiplier"`
	MaxQuality          float64 `json:"max_quality"`

	OpsTermCap   float64 `json:"ops_term_cap"`
	OutreachNorm float64 `json:"outreach_norm"`
	ShopsNorm    float64 `json:"shops_norm"`
	InvoicesNorm float64 `json:"invoices_norm"`
	MaxOps       float64 `json:"max_ops"`

	MissedWeight       float64 `json:"missed_weight"`
	LateWeight         float64 `json:"late_weight"`
	MissingWeight      float64 `json:"missing_weight"`
	PlanMissingWeight  float64 `json:"plan_missing_weight"`
	PlanMissingCap     float64 `json:"plan_missing_cap"`
	FollowupVolumeNorm float64 `json:"followup_volume_norm"`
	ReportVolumeNorm   float64 `json:"report_volume_norm"`
	PlanVolumeNorm     float64 `json:"plan_volume_norm"`
	MaxPenalty         float64 `json:"max_penalty"`
}

// AdviceConfig 建议规则阈值
type AdviceConfig struct {
	MinNStrong     int64   `json:"min_n_strong"`
	MinActiveHours float64 `json:"min_active_hours"`
	PphDeltaPct    float64 `json:"pph_delta_pct"`
	QualityDropPct float64 `json:"quality_drop_pct"`

	MinNFollowups          int64   `json:"min_n_followups"`
	FollowupsMissedWarnPct float64 `json:"followups_missed_warn_pct"`

	MinNSourceTry      int64   `json:"min_n_source_try"`
	SourceTryLiftPct   float64 `json:"source_try_lift_pct"`
	MinNSourceCompare  int64   `json:"min_n_source_compare"`
	MinSourceDiff      float64 `json:"min_source_diff"`
	SourcePriorSuccess float64 `json:"source_prior_success"`
	SourcePriorCount   float64 `json:"source_prior_count"`

	ReportDeadlineHour int     `json:"report_deadline_hour"`
	ReportGraceMinutes int     `json:"report_grace_minutes"`
	MinReportDays      int64   `json:"min_report_days"`
	ReportLateWarnPct  float64 `json:"report_late_warn_pct"`
	ReportMissingWarn  int64   `json:"report_missing_warn"`

	PlanMissingWarn int64 `json:"plan_missing_warn"`

	StaleShopDays          int   `json:"stale_shop_days"`
	StaleShopsWarn         int64 `json:"stale_shops_warn"`
	OverdueNextContactWarn int64 `json:"overdue_next_contact_warn"`
	OverdueTestsWarn       int64 `json:"overdue_tests_warn"`

	IdleWindowDays    int     `json:"idle_window_days"`
	IdleActiveMinutes float64 `json:"idle_active_minutes"`

	MaxItems      int `json:"max_items"`
	ShortTTLHours int `json:"short_ttl_hours"`
	LongTTLHours  int `json:"long_ttl_hours"`
}

// AnalyticsConfig 统计配置，加载后只读
type AnalyticsConfig struct {
	Version string       `json:"version"`
	Kpd     KpdConfig    `json:"kpd"`
	Advice  AdviceConfig `json:"advice"`
}

// DefaultKpdConfig 内置的 KPD 默认参数
func DefaultKpdConfig() KpdConfig {
	return KpdConfig{
		ActiveNormMinutes: 240,
		ActiveExponent:    0.6,
		ActiveCeiling:     1.0,
		PointsNorm:        180,
		PointsExponent:    0.55,
		PointsCeiling:     1.2,
		MaxEffort:         2.2,

		QualityPriorSuccess: 1,
		QualityPriorCount:   5,
		QualityMultiplier:   2.0,
		MaxQuality:          1.6,

		OpsTermCap:   0.4,
		OutreachNorm: 5,
		ShopsNorm:    2,
		InvoicesNorm: 2,
		MaxOps:       1.2,

		MissedWeight:       0.4,
		LateWeight:         0.25,
		MissingWeight:      0.5,
		PlanMissingWeight:  0.3,
		PlanMissingCap:     0.2,
		FollowupVolumeNorm: 10,
		ReportVolumeNorm:   5,
		PlanVolumeNorm:     10,
		MaxPenalty:         0.6,
	}
}

// DefaultAdviceConfig 内置的建议阈值
func DefaultAdviceConfig() AdviceConfig {
	return AdviceConfig{
		MinNStrong:     20,
		MinActiveHours: 1,
		PphDeltaPct:    20,
		QualityDropPct: 25,

		MinNFollowups:          10,
		FollowupsMissedWarnPct: 8,

		MinNSourceTry:      3,
		SourceTryLiftPct:   20,
		MinNSourceCompare:  15,
		MinSourceDiff:      0.10,
		SourcePriorSuccess: 1,
		SourcePriorCount:   5,

		ReportDeadlineHour: 19,
		ReportGraceMinutes: 30,
		MinReportDays:      3,
		ReportLateWarnPct:  30,
		ReportMissingWarn:  1,

		PlanMissingWarn: 3,

		StaleShopDays:          14,
		StaleShopsWarn:         5,
		OverdueNextContactWarn: 3,
		OverdueTestsWarn:       1,

		IdleWindowDays:    3,
		IdleActiveMinutes: 90,

		MaxItems:      8,
		ShortTTLHours: 24,
		LongTTLHours:  48,
	}
}

// DefaultAnalyticsConfig 内置默认配置
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		Version: DefaultConfigVersion,
		Kpd:     DefaultKpdConfig(),
		Advice:  DefaultAdviceConfig(),
	}
}
