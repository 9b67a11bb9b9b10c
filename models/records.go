package models

import "time"

// RecordKind 外部业务记录类型
type RecordKind string

const (
	KindClients        RecordKind = "clients"
	KindFollowUps      RecordKind = "followups"
	KindActivity       RecordKind = "activity"
	KindReports        RecordKind = "reports"
	KindOutreach       RecordKind = "outreach"
	KindShops          RecordKind = "shops"
	KindShipments      RecordKind = "shipments"
	KindInvoices       RecordKind = "invoices"
	KindInventory      RecordKind = "inventory"
	KindCommunications RecordKind = "communications"
	KindShopBacklog    RecordKind = "shop_backlog"
)

// AllRecordKinds 所有数据源，顺序固定
var AllRecordKinds = []RecordKind{
	KindClients, KindFollowUps, KindActivity, KindReports, KindOutreach,
	KindShops, KindShipments, KindInvoices, KindInventory, KindCommunications,
	KindShopBacklog,
}

// 分组字段
const (
	FieldOutcome        = "outcome"
	FieldSource         = "source"
	FieldSegment        = "segment"
	FieldRole           = "role"
	FieldHasNextContact = "has_next_contact"
	FieldStatus         = "status"
	FieldDirection      = "direction"
)

// 求和字段
const (
	SumPoints        = "points"
	SumActiveSeconds = "active_seconds"
	SumQuantity      = "quantity"
)

// 分类取值
const (
	FollowUpDone    = "done"
	FollowUpMissed  = "missed"
	FollowUpPending = "pending"

	DirectionIn  = "in"
	DirectionOut = "out"

	NextContactYes = "yes"
	NextContactNo  = "no"
)

// GroupQuery 分组聚合查询：owner = OwnerID 且时间 ∈ [Start, End)
type GroupQuery struct {
	Kind      RecordKind
	OwnerID   string
	Start     time.Time
	End       time.Time
	ByDay     bool
	Location  *time.Location
	GroupBy   []string
	Sum       []string
	WithFirst bool // 返回组内最早的时间
}

// GroupRow 分组聚合结果的一行
type GroupRow struct {
	Day   string             `json:"day,omitempty"`
	Keys  map[string]string  `json:"keys,omitempty"`
	Count int64              `json:"count"`
	Sums  map[string]float64 `json:"sums,omitempty"`
	First time.Time          `json:"first,omitempty"`
}

// Key 返回分组字段的值
func (r GroupRow) Key(field string) string {
	if r.Keys == nil {
		return ""
	}
	return r.Keys[field]
}

// Sum 返回求和字段的值
func (r GroupRow) Sum(field string) float64 {
	if r.Sums == nil {
		return 0
	}
	return r.Sums[field]
}

// BacklogQuery 店铺积压快照查询
type BacklogQuery struct {
	OwnerID   string
	Now       time.Time
	StaleDays int
}

// ShopBacklog 店铺积压快照
type ShopBacklog struct {
	Stale              int64 `json:"stale"`
	OverdueNextContact int64 `json:"overdueNextContact"`
	OverdueTests       int64 `json:"overdueTests"`
}
