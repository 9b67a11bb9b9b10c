package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BerniceZTT/crm_stats/models"
)

func fullEffortMetrics() models.Metrics {
	return models.Metrics{
		Processed:       10,
		Points:          180,
		ActiveSeconds:   240 * 60,
		SuccessWeighted: 4,
		OutreachSent:    5,
		ShopsCreated:    2,
		InvoicesCreated: 2,
	}
}

func TestComputeKpdEmptyWindowIsZero(t *testing.T) {
	res := ComputeKpd(models.Metrics{}, models.DefaultKpdConfig())

	assert.Equal(t, 0.0, res.Value)
	assert.Equal(t, 0.0, res.Effort)
	assert.Equal(t, 0.0, res.Quality)
	assert.Equal(t, 0.0, res.Ops)
	assert.Equal(t, 0.0, res.Penalty)
}

func TestComputeKpdNoPenalty(t *testing.T) {
	res := ComputeKpd(fullEffortMetrics(), models.DefaultKpdConfig())

	assert.InDelta(t, 2.2, res.Effort, 1e-9)
	assert.InDelta(t, 0.6667, res.Quality, 1e-9)
	assert.InDelta(t, 1.2, res.Ops, 1e-9)
	assert.Equal(t, 0.0, res.Penalty)
	assert.Equal(t, 4.07, res.Value)

	assert.Equal(t, 240.0, res.Breakdown["active_minutes"])
	assert.InDelta(t, 1.0, res.Breakdown["effort_active"], 1e-9)
	assert.InDelta(t, 1.2, res.Breakdown["effort_points"], 1e-9)
	assert.InDelta(t, 0.3333, res.Breakdown["quality_smoothed"], 1e-9)
}

func TestComputeKpdPenaltyIsCapped(t *testing.T) {
	m := fullEffortMetrics()
	m.FollowupsTotal = 10
	m.FollowupsMissed = 5
	m.ReportDaysRequired = 5
	m.ReportDaysLate = 1
	m.ReportDaysMissing = 2
	m.FollowupPlanMissing = 10

	res := ComputeKpd(m, models.DefaultKpdConfig())

	assert.InDelta(t, 0.2, res.Breakdown["penalty_missed"], 1e-9)
	assert.InDelta(t, 0.05, res.Breakdown["penalty_late"], 1e-9)
	assert.InDelta(t, 0.2, res.Breakdown["penalty_missing"], 1e-9)
	assert.InDelta(t, 0.2, res.Breakdown["penalty_plan"], 1e-9)
	assert.InDelta(t, 0.6, res.Penalty, 1e-9)
	assert.Equal(t, 1.63, res.Value)
}

func TestComputeKpdVolumeDamping(t *testing.T) {
	m := models.Metrics{FollowupsTotal: 2, FollowupsMissed: 2}

	res := ComputeKpd(m, models.DefaultKpdConfig())

	assert.InDelta(t, 1.0, res.Breakdown["missed_rate"], 1e-9)
	assert.InDelta(t, 0.2, res.Breakdown["followup_volume"], 1e-9)
	assert.InDelta(t, 0.08, res.Penalty, 1e-9)
}

func TestComputeKpdCapsTerms(t *testing.T) {
	m := models.Metrics{
		Processed:       100,
		Points:          100000,
		ActiveSeconds:   100000,
		SuccessWeighted: 100,
		OutreachSent:    1000,
		ShopsCreated:    1000,
		InvoicesCreated: 1000,
	}
	cfg := models.DefaultKpdConfig()

	res := ComputeKpd(m, cfg)

	assert.LessOrEqual(t, res.Effort, cfg.MaxEffort)
	assert.LessOrEqual(t, res.Quality, cfg.MaxQuality)
	assert.LessOrEqual(t, res.Ops, cfg.MaxOps)
	assert.InDelta(t, 5.0, res.Value, 1e-9)
}

func TestComputeKpdClampsNegativeInputs(t *testing.T) {
	m := models.Metrics{Processed: -3, Points: -10, ActiveSeconds: -60, FollowupsTotal: 1, FollowupsMissed: 4}

	res := ComputeKpd(m, models.DefaultKpdConfig())

	assert.GreaterOrEqual(t, res.Value, 0.0)
	assert.Equal(t, 0.0, res.Effort)
	assert.LessOrEqual(t, res.Breakdown["missed_rate"], 1.0)
}

func TestComputeKpdPenaltyNeverRaisesScore(t *testing.T) {
	base := fullEffortMetrics()
	clean := ComputeKpd(base, models.DefaultKpdConfig())

	for missed := int64(0); missed <= 10; missed++ {
		m := base
		m.FollowupsTotal = 10
		m.FollowupsMissed = missed
		res := ComputeKpd(m, models.DefaultKpdConfig())
		assert.LessOrEqual(t, res.Value, clean.Value)
	}
}
