package repository

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BerniceZTT/crm_stats/models"
	"github.com/BerniceZTT/crm_stats/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RecordSchema 一种业务记录在集合中的位置与字段映射
type RecordSchema struct {
	Collection string
	OwnerField string
	TimeField  string
	// Fields 分组字段到字段路径或表达式
	Fields map[string]interface{}
	// Sums 求和字段到字段路径
	Sums map[string]string
}

// DefaultSchemas 各数据源的默认映射
func DefaultSchemas() map[models.RecordKind]RecordSchema {
	return map[models.RecordKind]RecordSchema{
		models.KindClients: {
			Collection: CustomersCollection,
			OwnerField: "relatedSalesId",
			TimeField:  "createdAt",
			Fields: map[string]interface{}{
				models.FieldOutcome: "$outcome",
				models.FieldSource:  "$source",
				models.FieldSegment: "$segment",
				models.FieldRole:    "$contactRole",
				models.FieldHasNextContact: bson.M{"$cond": bson.A{
					bson.M{"$gt": bson.A{"$nextContactAt", nil}}, models.NextContactYes, models.NextContactNo,
				}},
			},
			Sums: map[string]string{models.SumPoints: "$points"},
		},
		models.KindFollowUps: {
			Collection: FollowUpCollection,
			OwnerField: "creatorId",
			TimeField:  "dueAt",
			Fields:     map[string]interface{}{models.FieldStatus: "$status"},
		},
		models.KindActivity: {
			Collection: ActivityPulsesCollection,
			OwnerField: "userId",
			TimeField:  "at",
			Sums:       map[string]string{models.SumActiveSeconds: "$seconds"},
		},
		models.KindReports: {
			Collection: DailyReportsCollection,
			OwnerField: "userId",
			TimeField:  "submittedAt",
		},
		models.KindOutreach: {
			Collection: OutreachEmailsCollection,
			OwnerField: "senderId",
			TimeField:  "sentAt",
		},
		models.KindShops: {
			Collection: ShopsCollection,
			OwnerField: "ownerId",
			TimeField:  "createdAt",
		},
		models.KindShipments: {
			Collection: ShipmentsCollection,
			OwnerField: "creatorId",
			TimeField:  "createdAt",
		},
		models.KindInvoices: {
			Collection: InvoicesCollection,
			OwnerField: "creatorId",
			TimeField:  "createdAt",
		},
		models.KindInventory: {
			Collection: InventoryRecordsCollection,
			OwnerField: "operatorId",
			TimeField:  "operationTime",
			Fields:     map[string]interface{}{models.FieldDirection: "$operationType"},
			Sums:       map[string]string{models.SumQuantity: "$quantity"},
		},
		models.KindCommunications: {
			Collection: CommunicationsCollection,
			OwnerField: "userId",
			TimeField:  "createdAt",
		},
	}
}

// MongoRecordSource 基于 MongoDB 聚合管道的数据源
type MongoRecordSource struct {
	db      *mongo.Database
	schemas map[models.RecordKind]RecordSchema
	retries int
}

// NewMongoRecordSource schemas 为 nil 时使用 DefaultSchemas
func NewMongoRecordSource(db *mongo.Database, schemas map[models.RecordKind]RecordSchema) *MongoRecordSource {
	if schemas == nil {
		schemas = DefaultSchemas()
	}
	return &MongoRecordSource{db: db, schemas: schemas, retries: 2}
}

type groupResult struct {
	ID    map[string]interface{} `bson:"_id"`
	Count int64                  `bson:"count"`
	First time.Time              `bson:"first"`
	Sums  map[string]interface{} `bson:"sums"`
}

// Aggregate 执行分组统计
func (s *MongoRecordSource) Aggregate(ctx context.Context, q models.GroupQuery) ([]models.GroupRow, error) {
	schema, ok := s.schemas[q.Kind]
	if !ok {
		return nil, fmt.Errorf("未知的数据源: %s", q.Kind)
	}
	pipeline, err := BuildGroupPipeline(schema, q)
	if err != nil {
		return nil, err
	}
	utils.LogDbOperation("aggregate", schema.Collection, pipeline, nil)

	return ExecuteDbOperation(ctx, func(ctx context.Context) ([]models.GroupRow, error) {
		cursor, err := s.db.Collection(schema.Collection).Aggregate(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var results []groupResult
		if err := cursor.All(ctx, &results); err != nil {
			return nil, err
		}

		rows := make([]models.GroupRow, 0, len(results))
		for _, r := range results {
			rows = append(rows, toGroupRow(r, q))
		}
		return rows, nil
	}, s.retries)
}

// BuildGroupPipeline 构建 $match + $group (+ $project) 管道
func BuildGroupPipeline(schema RecordSchema, q models.GroupQuery) (mongo.Pipeline, error) {
	if q.OwnerID == "" {
		return nil, fmt.Errorf("缺少用户ID")
	}
	if !q.Start.Before(q.End) {
		return nil, fmt.Errorf("无效的时间范围: %s - %s", q.Start, q.End)
	}

	match := bson.M{
		schema.OwnerField: q.OwnerID,
		schema.TimeField:  bson.M{"$gte": q.Start, "$lt": q.End},
	}

	timeRef := "$" + schema.TimeField
	id := bson.M{}
	if q.ByDay {
		id["day"] = bson.M{"$dateToString": bson.M{
			"format":   "%Y-%m-%d",
			"date":     timeRef,
			"timezone": mongoTimezone(q.Location, q.Start, q.End),
		}}
	}
	for _, field := range q.GroupBy {
		expr, ok := schema.Fields[field]
		if !ok {
			return nil, fmt.Errorf("数据源 %s 不支持分组字段 %s", q.Kind, field)
		}
		id[field] = expr
	}

	group := bson.M{"_id": id, "count": bson.M{"$sum": 1}}
	project := bson.M{"_id": 1, "count": 1}
	if q.WithFirst {
		group["first"] = bson.M{"$min": timeRef}
		project["first"] = 1
	}
	if len(q.Sum) > 0 {
		sums := bson.M{}
		for _, field := range q.Sum {
			path, ok := schema.Sums[field]
			if !ok {
				return nil, fmt.Errorf("数据源 %s 不支持求和字段 %s", q.Kind, field)
			}
			group["s_"+field] = bson.M{"$sum": path}
			sums[field] = "$s_" + field
		}
		project["sums"] = sums
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: group}},
		{{Key: "$project", Value: project}},
	}, nil
}

// mongoTimezone $dateToString 接受 Olson 名称或 ±HH:MM 偏移。本地时区优先取 TZ 环境变量中的名称，
// 只能使用固定偏移且窗口跨越夏令时切换时按开始时刻的偏移分组
func mongoTimezone(loc *time.Location, start, end time.Time) string {
	if loc == nil {
		return "UTC"
	}
	if name := ianaName(loc); name != "" {
		return name
	}
	_, offset := start.In(loc).Zone()
	if _, endOffset := end.In(loc).Zone(); endOffset != offset {
		utils.Logger.Warn().Str("zone", loc.String()).Int("startOffset", offset).Int("endOffset", endOffset).Msg("统计窗口跨越夏令时切换，按固定偏移分组")
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

func ianaName(loc *time.Location) string {
	name := loc.String()
	if name == "UTC" || strings.Contains(name, "/") {
		return name
	}
	if loc == time.Local {
		if tz := strings.TrimPrefix(os.Getenv("TZ"), ":"); strings.Contains(tz, "/") {
			if _, err := time.LoadLocation(tz); err == nil {
				return tz
			}
		}
	}
	return ""
}

func toGroupRow(r groupResult, q models.GroupQuery) models.GroupRow {
	row := models.GroupRow{Count: r.Count, First: r.First}
	if q.ByDay {
		row.Day = keyString(r.ID["day"])
	}
	if len(q.GroupBy) > 0 {
		row.Keys = make(map[string]string, len(q.GroupBy))
		for _, field := range q.GroupBy {
			row.Keys[field] = keyString(r.ID[field])
		}
	}
	if len(r.Sums) > 0 {
		row.Sums = make(map[string]float64, len(r.Sums))
		for field, v := range r.Sums {
			row.Sums[field] = toFloat(v)
		}
	}
	return row
}

func keyString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case float64:
		return t
	case float32:
		return float64(t)
	default:
		return 0
	}
}

// ShopBacklog 当前店铺积压：久未联系、下次联系已逾期、测试期已结束
func (s *MongoRecordSource) ShopBacklog(ctx context.Context, q models.BacklogQuery) (models.ShopBacklog, error) {
	if q.OwnerID == "" {
		return models.ShopBacklog{}, fmt.Errorf("缺少用户ID")
	}
	coll := s.db.Collection(ShopsCollection)
	filters := BacklogFilters(q)

	var out models.ShopBacklog
	targets := []*int64{&out.Stale, &out.OverdueNextContact, &out.OverdueTests}
	for i, filter := range filters {
		n, err := ExecuteDbOperation(ctx, func(ctx context.Context) (int64, error) {
			return coll.CountDocuments(ctx, filter)
		}, s.retries)
		if err != nil {
			return models.ShopBacklog{}, fmt.Errorf("统计店铺积压失败: %w", err)
		}
		*targets[i] = n
	}
	return out, nil
}

// BacklogFilters 顺序为：久未联系、下次联系逾期、测试逾期
func BacklogFilters(q models.BacklogQuery) []bson.M {
	threshold := q.Now.AddDate(0, 0, -q.StaleDays)
	open := bson.M{"$ne": "closed"}

	stale := bson.M{
		"ownerId": q.OwnerID,
		"status":  open,
		"$or": bson.A{
			bson.M{"lastContactAt": bson.M{"$lt": threshold}},
			bson.M{"lastContactAt": bson.M{"$exists": false}, "createdAt": bson.M{"$lt": threshold}},
		},
	}
	nextOverdue := bson.M{
		"ownerId":       q.OwnerID,
		"status":        open,
		"nextContactAt": bson.M{"$lt": q.Now},
	}
	testOverdue := bson.M{
		"ownerId":    q.OwnerID,
		"testStatus": "active",
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$add": bson.A{
				"$testStartedAt",
				bson.M{"$multiply": bson.A{bson.M{"$ifNull": bson.A{"$testPeriodDays", 0}}, 24 * 60 * 60 * 1000}},
			}},
			q.Now,
		}},
	}
	return []bson.M{stale, nextOverdue, testOverdue}
}
