package service

import (
	"sort"
	"time"

	"github.com/BerniceZTT/crm_stats/models"
)

// AdviceInput 建议规则的输入，全部为只读值
type AdviceInput struct {
	UserID      string
	Now         time.Time
	RangeNow    models.StatsRange
	RangePrev   models.StatsRange
	MetricsNow  models.Metrics
	MetricsPrev models.Metrics
	Sources     []models.BreakdownItem
	Series      []models.DaySeries
	Config      models.AdviceConfig
}

// Rule 一条独立的建议规则。Eval 返回 nil 表示不满足样本量或效应量要求
type Rule struct {
	Name string
	Long bool // 使用较长的有效期
	Eval func(in AdviceInput) *models.AdviceItem
}

// AdviceEngine 按规则列表生成建议
type AdviceEngine struct {
	rules []Rule
}

// NewAdviceEngine rules 为空时使用 DefaultRules
func NewAdviceEngine(rules ...Rule) *AdviceEngine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &AdviceEngine{rules: rules}
}

// Generate 计算、过滤已忽略的建议并排序截断
func (e *AdviceEngine) Generate(in AdviceInput, dismissals []models.Dismissal) []models.AdviceItem {
	return FinalizeAdvice(e.Evaluate(in), dismissals, in.Now, in.Config.MaxItems)
}

// Evaluate 执行全部规则，按键去重并按语气排序（不截断、不过滤忽略）
func (e *AdviceEngine) Evaluate(in AdviceInput) []models.AdviceItem {
	window := in.RangeNow.Window()
	seen := make(map[string]bool, len(e.rules))
	items := make([]models.AdviceItem, 0, len(e.rules))

	for _, rule := range e.rules {
		item := rule.Eval(in)
		if item == nil {
			continue
		}
		name := item.Key
		if name == "" {
			name = rule.Name
		}
		item.Key = name + ":" + window
		if seen[item.Key] {
			continue
		}
		seen[item.Key] = true

		ttl := in.Config.ShortTTLHours
		if rule.Long {
			ttl = in.Config.LongTTLHours
		}
		item.ExpiresAt = in.Now.Add(time.Duration(ttl) * time.Hour)
		item.Assumption = true
		if item.Evidence == nil {
			item.Evidence = []string{}
		}
		items = append(items, *item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Tone.Rank() < items[j].Tone.Rank()
	})
	return items
}

// FinalizeAdvice 去掉 now 时刻仍被忽略的建议，保持顺序并截断到 max 条
func FinalizeAdvice(items []models.AdviceItem, dismissals []models.Dismissal, now time.Time, max int) []models.AdviceItem {
	active := make(map[string]bool, len(dismissals))
	for _, d := range dismissals {
		if d.ActiveAt(now) {
			active[d.Key] = true
		}
	}

	out := make([]models.AdviceItem, 0, len(items))
	for _, item := range items {
		if active[item.Key] {
			continue
		}
		out = append(out, item)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
