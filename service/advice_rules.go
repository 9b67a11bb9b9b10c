package service

import (
	"fmt"
	"sort"

	"github.com/BerniceZTT/crm_stats/models"
)

// DefaultRules 内置规则列表，各规则之间没有顺序依赖
func DefaultRules() []Rule {
	return []Rule{
		{Name: "prod_pph", Long: true, Eval: productivityTrendRule},
		{Name: "quality_down", Long: true, Eval: qualityDownRule},
		{Name: "followups_missed", Eval: followupsRule},
		{Name: "active_no_results", Eval: activeNoResultsRule},
		{Name: "reports_late", Eval: reportsLateRule},
		{Name: "reports_missing", Eval: reportsMissingRule},
		{Name: "followup_plan_missing", Eval: planMissingRule},
		{Name: "shops_stale", Eval: shopsStaleRule},
		{Name: "shops_next_overdue", Eval: shopsNextOverdueRule},
		{Name: "shops_test_overdue", Eval: shopsTestOverdueRule},
		{Name: "sources_compare", Long: true, Eval: sourcesCompareRule},
		{Name: "sources_try", Long: true, Eval: sourcesTryRule},
	}
}

func productivityTrendRule(in AdviceInput) *models.AdviceItem {
	cfg := in.Config
	now, prev := in.MetricsNow, in.MetricsPrev
	if now.Processed < cfg.MinNStrong || prev.Processed < cfg.MinNStrong {
		return nil
	}
	if now.ActiveHours() < cfg.MinActiveHours || prev.ActiveHours() < cfg.MinActiveHours {
		return nil
	}
	pphNow, pphPrev := now.PointsPerActiveHour(), prev.PointsPerActiveHour()
	if pphPrev <= 0 {
		return nil
	}
	delta := (pphNow - pphPrev) / pphPrev * 100
	evidence := []string{
		fmt.Sprintf("%.1f → %.1f 积分/小时", pphPrev, pphNow),
		fmt.Sprintf("%+.0f%%", delta),
		fmt.Sprintf("客户 %d / %d", prev.Processed, now.Processed),
	}
	switch {
	case delta >= cfg.PphDeltaPct:
		return &models.AdviceItem{
			Key:      "prod_pph_up",
			Tone:     models.ToneGood,
			Title:    "效率提升",
			Text:     fmt.Sprintf("每活跃小时积分比上一周期提高了 %.0f%%，保持当前节奏。", delta),
			Evidence: evidence,
		}
	case delta <= -cfg.PphDeltaPct:
		return &models.AdviceItem{
			Key:      "prod_pph_down",
			Tone:     models.ToneBad,
			Title:    "效率下降",
			Text:     fmt.Sprintf("每活跃小时积分比上一周期下降了 %.0f%%，检查时间是否花在了低价值客户上。", -delta),
			Evidence: evidence,
			CTA:      "查看客户列表",
		}
	}
	return nil
}

func qualityDownRule(in AdviceInput) *models.AdviceItem {
	cfg := in.Config
	now, prev := in.MetricsNow, in.MetricsPrev
	if now.Processed < cfg.MinNStrong || prev.Processed < cfg.MinNStrong {
		return nil
	}
	rateNow := SmoothedRate(now.SuccessWeighted, now.Processed, cfg.SourcePriorSuccess, cfg.SourcePriorCount)
	ratePrev := SmoothedRate(prev.SuccessWeighted, prev.Processed, cfg.SourcePriorSuccess, cfg.SourcePriorCount)
	if ratePrev <= 0 {
		return nil
	}
	drop := (ratePrev - rateNow) / ratePrev * 100
	if drop < cfg.QualityDropPct {
		return nil
	}
	return &models.AdviceItem{
		Tone:  models.ToneBad,
		Title: "成交质量下降",
		Text:  fmt.Sprintf("平滑成交率下降了 %.0f%%，留意哪些阶段的客户流失增加。", drop),
		Evidence: []string{
			fmt.Sprintf("%.2f → %.2f", ratePrev, rateNow),
			fmt.Sprintf("-%.0f%%", drop),
			fmt.Sprintf("客户 %d / %d", prev.Processed, now.Processed),
		},
	}
}

func followupsRule(in AdviceInput) *models.AdviceItem {
	cfg := in.Config
	m := in.MetricsNow
	if m.FollowupsTotal < cfg.MinNFollowups {
		return nil
	}
	if m.FollowupsMissed == 0 {
		return &models.AdviceItem{
			Key:      "followups_perfect",
			Tone:     models.ToneGood,
			Title:    "跟进零逾期",
			Text:     "本周期所有跟进都按时完成。",
			Evidence: []string{fmt.Sprintf("0/%d", m.FollowupsTotal)},
		}
	}
	rate := m.FollowupMissRate() * 100
	if rate <= cfg.FollowupsMissedWarnPct {
		return nil
	}
	return &models.AdviceItem{
		Key:   "followups_missed",
		Tone:  models.ToneBad,
		Title: "跟进逾期偏多",
		Text:  fmt.Sprintf("%.0f%% 的跟进没有按时完成，超过了 %.0f%% 的警戒线。", rate, cfg.FollowupsMissedWarnPct),
		Evidence: []string{
			fmt.Sprintf("%d/%d", m.FollowupsMissed, m.FollowupsTotal),
			fmt.Sprintf("%.1f%%", rate),
		},
		CTA: "处理逾期跟进",
	}
}

func activeNoResultsRule(in AdviceInput) *models.AdviceItem {
	cfg := in.Config
	days := cfg.IdleWindowDays
	if len(in.Series) == 0 {
		return nil
	}
	if days > len(in.Series) {
		days = len(in.Series)
	}
	var window models.Metrics
	for _, d := range in.Series[len(in.Series)-days:] {
		window = window.Add(d.Metrics)
	}
	if window.ActiveMinutes() < cfg.IdleActiveMinutes {
		return nil
	}
	if window.Processed > 0 || window.Points > 0 {
		return nil
	}
	return &models.AdviceItem{
		Tone:  models.ToneBad,
		Title: "有活跃时间但没有结果",
		Text:  fmt.Sprintf("最近 %d 天有在线时间，但没有处理任何客户。", days),
		Evidence: []string{
			fmt.Sprintf("%.0f 分钟", window.ActiveMinutes()),
			"0 客户",
			"0 积分",
		},
	}
}

func reportsLateRule(in AdviceInput) *models.AdviceItem {
	cfg := in.Config
	m := in.MetricsNow
	if m.ReportDaysRequired < cfg.MinReportDays || m.ReportDaysLate == 0 {
		return nil
	}
	rate := float64(m.ReportDaysLate) / float64(m.ReportDaysRequired) * 100
	if rate < cfg.ReportLateWarnPct {
		return nil
	}
	return &models.AdviceItem{
		Tone:  models.ToneBad,
		Title: "日报经常迟交",
		Text:  fmt.Sprintf("日报应在 %02d:00 前提交（宽限 %d 分钟）。", cfg.ReportDeadlineHour, cfg.ReportGraceMinutes),
		Evidence: []string{
			fmt.Sprintf("%d/%d", m.ReportDaysLate, m.ReportDaysRequired),
			fmt.Sprintf("%.0f%%", rate),
		},
	}
}

func reportsMissingRule(in AdviceInput) *models.AdviceItem {
	cfg := in.Config
	m := in.MetricsNow
	if m.ReportDaysRequired < cfg.MinReportDays || m.ReportDaysMissing < cfg.ReportMissingWarn || m.ReportDaysMissing == 0 {
		return nil
	}
	return &models.AdviceItem{
		Tone:     models.ToneBad,
		Title:    "缺少日报",
		Text:     "有工作记录的工作日没有提交日报。",
		Evidence: []string{fmt.Sprintf("%d/%d", m.ReportDaysMissing, m.ReportDaysRequired)},
		CTA:      "补交日报",
	}
}

func planMissingRule(in AdviceInput) *models.AdviceItem {
	m := in.MetricsNow
	if in.Config.PlanMissingWarn <= 0 || m.FollowupPlanMissing < in.Config.PlanMissingWarn {
		return nil
	}
	return &models.AdviceItem{
		Tone:  models.ToneBad,
		Title: "关键阶段缺少下次联系",
		Text:  "处于意向、寄样、待付款等阶段的客户没有安排下次联系时间。",
		Evidence: []string{
			fmt.Sprintf("%d", m.FollowupPlanMissing),
			fmt.Sprintf("%d/%d", m.FollowupPlanMissing, m.Processed),
		},
		CTA: "安排跟进",
	}
}

func shopsStaleRule(in AdviceInput) *models.AdviceItem {
	m := in.MetricsNow
	if in.Config.StaleShopsWarn <= 0 || m.StaleShops < in.Config.StaleShopsWarn {
		return nil
	}
	return &models.AdviceItem{
		Tone:  models.ToneBad,
		Title: "店铺长期未联系",
		Text:  fmt.Sprintf("有店铺超过 %d 天没有任何沟通记录。", in.Config.StaleShopDays),
		Evidence: []string{
			fmt.Sprintf("%d 家", m.StaleShops),
			fmt.Sprintf(">%d 天", in.Config.StaleShopDays),
		},
	}
}

func shopsNextOverdueRule(in AdviceInput) *models.AdviceItem {
	m := in.MetricsNow
	if in.Config.OverdueNextContactWarn <= 0 || m.OverdueNextContact < in.Config.OverdueNextContactWarn {
		return nil
	}
	return &models.AdviceItem{
		Tone:     models.ToneBad,
		Title:    "下次联系已过期",
		Text:     "部分店铺的计划联系时间已经过去。",
		Evidence: []string{fmt.Sprintf("%d 家", m.OverdueNextContact)},
	}
}

func shopsTestOverdueRule(in AdviceInput) *models.AdviceItem {
	m := in.MetricsNow
	if in.Config.OverdueTestsWarn <= 0 || m.OverdueTests < in.Config.OverdueTestsWarn {
		return nil
	}
	return &models.AdviceItem{
		Tone:     models.ToneNeutral,
		Title:    "试单期已结束",
		Text:     "试单店铺已过试用期但还没有转为正式店铺，确认是否继续合作。",
		Evidence: []string{fmt.Sprintf("%d 家", m.OverdueTests)},
	}
}

// sourcesCompareRule 只有两个来源都达到样本量且平滑成功率差距足够大时才比较
func sourcesCompareRule(in AdviceInput) *models.AdviceItem {
	cfg := in.Config
	eligible := make([]models.BreakdownItem, 0, len(in.Sources))
	for _, s := range in.Sources {
		if s.Count >= cfg.MinNSourceCompare {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) < 2 {
		return nil
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].SuccessRate != eligible[j].SuccessRate {
			return eligible[i].SuccessRate > eligible[j].SuccessRate
		}
		return eligible[i].Key < eligible[j].Key
	})
	best, worst := eligible[0], eligible[len(eligible)-1]
	diff := best.SuccessRate - worst.SuccessRate
	if diff < cfg.MinSourceDiff {
		return nil
	}
	return &models.AdviceItem{
		Tone:  models.ToneNeutral,
		Title: "来源效果差异明显",
		Text:  fmt.Sprintf("「%s」的成交效果明显好于「%s」，可以把更多精力放在前者。", best.Label, worst.Label),
		Evidence: []string{
			fmt.Sprintf("%s %.2f (n=%d)", best.Key, best.SuccessRate, best.Count),
			fmt.Sprintf("%s %.2f (n=%d)", worst.Key, worst.SuccessRate, worst.Count),
			fmt.Sprintf("Δ %.2f", diff),
		},
	}
}

// sourcesTryRule 样本量小但表现好于整体的来源，值得多投入测试
func sourcesTryRule(in AdviceInput) *models.AdviceItem {
	cfg := in.Config
	var total int64
	var success float64
	for _, s := range in.Sources {
		total += s.Count
		success += s.SuccessWeighted
	}
	if total < cfg.MinNStrong {
		return nil
	}
	overall := SmoothedRate(success, total, cfg.SourcePriorSuccess, cfg.SourcePriorCount)
	threshold := overall * (1 + cfg.SourceTryLiftPct/100)

	var pick *models.BreakdownItem
	for i := range in.Sources {
		s := in.Sources[i]
		if s.Key == string(models.ChannelUnknown) {
			continue
		}
		if s.Count < cfg.MinNSourceTry || s.Count >= cfg.MinNSourceCompare {
			continue
		}
		if s.SuccessRate < threshold {
			continue
		}
		if pick == nil || s.SuccessRate > pick.SuccessRate ||
			(s.SuccessRate == pick.SuccessRate && s.Key < pick.Key) {
			pick = &in.Sources[i]
		}
	}
	if pick == nil {
		return nil
	}
	return &models.AdviceItem{
		Tone:  models.ToneNeutral,
		Title: "值得测试的来源",
		Text:  fmt.Sprintf("「%s」客户不多但效果好于整体，样本还小，建议多投入一些再下结论。", pick.Label),
		Evidence: []string{
			fmt.Sprintf("%s %.2f (n=%d)", pick.Key, pick.SuccessRate, pick.Count),
			fmt.Sprintf("整体 %.2f (n=%d)", overall, total),
		},
	}
}
