package models

import "time"

// Tone 建议的语气
type Tone string

const (
	ToneBad     Tone = "bad"
	ToneNeutral Tone = "neutral"
	ToneGood    Tone = "good"
)

// Rank 排序权重：bad 在前，good 在后
func (t Tone) Rank() int {
	switch t {
	case ToneBad:
		return 0
	case ToneNeutral:
		return 1
	default:
		return 2
	}
}

// AdviceItem 自动生成的建议
type AdviceItem struct {
	Key        string    `json:"key"`
	Tone       Tone      `json:"tone"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Evidence   []string  `json:"evidence"`
	Assumption bool      `json:"assumption"`
	CTA        string    `json:"cta,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Dismissal 用户对某条建议的忽略记录，ExpiresAt 为空表示永久忽略
type Dismissal struct {
	UserID    string     `json:"userId" bson:"userId"`
	Key       string     `json:"key" bson:"key"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" bson:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// ActiveAt 在 now 时刻是否仍然生效
func (d Dismissal) ActiveAt(now time.Time) bool {
	return d.ExpiresAt == nil || !now.After(*d.ExpiresAt)
}

// DismissRequest 忽略建议请求
type DismissRequest struct {
	Key       string     `json:"key" binding:"required"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
