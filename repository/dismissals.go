package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/BerniceZTT/crm_stats/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDismissalStore 用户忽略建议记录
type MongoDismissalStore struct {
	coll *mongo.Collection
}

// NewMongoDismissalStore 创建忽略记录存储
func NewMongoDismissalStore(db *mongo.Database) *MongoDismissalStore {
	return &MongoDismissalStore{coll: db.Collection(AdviceDismissalsCollection)}
}

// ListActive 返回 now 时刻仍然生效的忽略记录
func (s *MongoDismissalStore) ListActive(ctx context.Context, userID string, now time.Time) ([]models.Dismissal, error) {
	cursor, err := s.coll.Find(ctx, ActiveDismissalFilter(userID, now))
	if err != nil {
		return nil, fmt.Errorf("查询忽略记录失败: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Dismissal
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("解析忽略记录失败: %w", err)
	}
	return out, nil
}

// ActiveDismissalFilter expiresAt 为空或不早于 now
func ActiveDismissalFilter(userID string, now time.Time) bson.M {
	return bson.M{
		"userId": userID,
		"$or": bson.A{
			bson.M{"expiresAt": nil},
			bson.M{"expiresAt": bson.M{"$gte": now}},
		},
	}
}

// Upsert 按 (userId, key) 写入，重复调用只更新过期时间
func (s *MongoDismissalStore) Upsert(ctx context.Context, d models.Dismissal) error {
	filter := bson.M{"userId": d.UserID, "key": d.Key}
	update := bson.M{
		"$set": bson.M{
			"expiresAt": d.ExpiresAt,
			"updatedAt": d.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"createdAt": d.CreatedAt,
		},
	}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("写入忽略记录失败: %w", err)
	}
	return nil
}
