package service

import (
	"math"

	"github.com/BerniceZTT/crm_stats/models"
)

// ComputeKpd 计算综合生产力指数。纯函数，不修改入参
func ComputeKpd(m models.Metrics, cfg models.KpdConfig) models.KpdResult {
	m = m.Normalize()

	activeMinutes := m.ActiveMinutes()
	effortActive := 0.0
	if activeMinutes > 0 {
		effortActive = math.Min(cfg.ActiveCeiling, math.Pow(activeMinutes/cfg.ActiveNormMinutes, cfg.ActiveExponent))
	}
	effortPoints := 0.0
	if m.Points > 0 {
		effortPoints = math.Min(cfg.PointsCeiling, math.Pow(m.Points/cfg.PointsNorm, cfg.PointsExponent)*cfg.PointsCeiling)
	}
	effort := math.Min(cfg.MaxEffort, effortActive+effortPoints)

	// 没有处理任何客户时质量项为0，避免平滑先验凭空给分
	qualitySmoothed := 0.0
	quality := 0.0
	if m.Processed > 0 {
		qualitySmoothed = (m.SuccessWeighted + cfg.QualityPriorSuccess) / (float64(m.Processed) + cfg.QualityPriorCount)
		quality = math.Min(cfg.MaxQuality, qualitySmoothed*cfg.QualityMultiplier)
	}

	opsOutreach := math.Min(cfg.OpsTermCap, float64(m.OutreachSent)/cfg.OutreachNorm*cfg.OpsTermCap)
	opsShops := math.Min(cfg.OpsTermCap, float64(m.ShopsCreated)/cfg.ShopsNorm*cfg.OpsTermCap)
	opsInvoices := math.Min(cfg.OpsTermCap, float64(m.InvoicesCreated)/cfg.InvoicesNorm*cfg.OpsTermCap)
	ops := math.Min(cfg.MaxOps, opsOutreach+opsShops+opsInvoices)

	missedRate := m.FollowupMissRate()
	followupVolume := volumeFactor(float64(m.FollowupsTotal), cfg.FollowupVolumeNorm)
	penaltyMissed := missedRate * followupVolume * cfg.MissedWeight

	lateRate, missingRate := 0.0, 0.0
	if m.ReportDaysRequired > 0 {
		lateRate = float64(m.ReportDaysLate) / float64(m.ReportDaysRequired)
		missingRate = float64(m.ReportDaysMissing) / float64(m.ReportDaysRequired)
	}
	reportVolume := volumeFactor(float64(m.ReportDaysRequired), cfg.ReportVolumeNorm)
	penaltyLate := lateRate * reportVolume * cfg.LateWeight
	penaltyMissing := missingRate * reportVolume * cfg.MissingWeight

	planRate := 0.0
	if m.Processed > 0 {
		planRate = math.Min(1, float64(m.FollowupPlanMissing)/float64(m.Processed))
	}
	planVolume := volumeFactor(float64(m.Processed), cfg.PlanVolumeNorm)
	penaltyPlan := math.Min(cfg.PlanMissingCap, planRate*planVolume*cfg.PlanMissingWeight)

	penalty := math.Min(cfg.MaxPenalty, penaltyMissed+penaltyLate+penaltyMissing+penaltyPlan)

	value := math.Max(0, round((effort+quality+ops)*(1-penalty), 2))

	return models.KpdResult{
		Value:   value,
		Effort:  round(effort, 4),
		Quality: round(quality, 4),
		Ops:     round(ops, 4),
		Penalty: round(penalty, 4),
		Breakdown: map[string]float64{
			"active_minutes":    round(activeMinutes, 2),
			"effort_active":     round(effortActive, 4),
			"effort_points":     round(effortPoints, 4),
			"quality_smoothed":  round(qualitySmoothed, 4),
			"ops_outreach":      round(opsOutreach, 4),
			"ops_shops":         round(opsShops, 4),
			"ops_invoices":      round(opsInvoices, 4),
			"missed_rate":       round(missedRate, 4),
			"followup_volume":   round(followupVolume, 4),
			"penalty_missed":    round(penaltyMissed, 4),
			"report_late_rate":  round(lateRate, 4),
			"report_miss_rate":  round(missingRate, 4),
			"report_volume":     round(reportVolume, 4),
			"penalty_late":      round(penaltyLate, 4),
			"penalty_missing":   round(penaltyMissing, 4),
			"plan_missing_rate": round(planRate, 4),
			"plan_volume":       round(planVolume, 4),
			"penalty_plan":      round(penaltyPlan, 4),
		},
	}
}

// volumeFactor 样本量阻尼 min(1, n/norm)
func volumeFactor(n, norm float64) float64 {
	if n <= 0 || norm <= 0 {
		return 0
	}
	return math.Min(1, n/norm)
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
