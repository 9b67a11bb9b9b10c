package models

// 客户处理结果代码
const (
	OutcomeOrderConfirmed  = "order_confirmed"
	OutcomeTestBatch       = "test_batch"
	OutcomeAwaitingPayment = "awaiting_payment"
	OutcomeSampleSent      = "sample_sent"
	OutcomeNegotiation     = "negotiation"
	OutcomeCallback        = "callback"
	OutcomeInterested      = "interested"
	OutcomeNoAnswer        = "no_answer"
	OutcomeRejected        = "rejected"
)

// outcomeWeights 处理结果权重表，未列出的结果权重为0
var outcomeWeights = map[string]float64{
	OutcomeOrderConfirmed:  1.0,
	OutcomeTestBatch:       0.8,
	OutcomeAwaitingPayment: 0.6,
	OutcomeSampleSent:      0.4,
	OutcomeNegotiation:     0.3,
	OutcomeCallback:        0.2,
	OutcomeInterested:      0.1,
}

// planRequiredOutcomes 需要安排下次联系的阶段
var planRequiredOutcomes = map[string]bool{
	OutcomeInterested:      true,
	OutcomeCallback:        true,
	OutcomeNegotiation:     true,
	OutcomeSampleSent:      true,
	OutcomeAwaitingPayment: true,
	OutcomeTestBatch:       true,
}

// OutcomeWeight 返回处理结果的成功权重
func OutcomeWeight(outcome string) float64 {
	return outcomeWeights[outcome]
}

// RequiresNextContact 该阶段是否必须有下次联系时间
func RequiresNextContact(outcome string) bool {
	return planRequiredOutcomes[outcome]
}
