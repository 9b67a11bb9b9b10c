package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/BerniceZTT/crm_stats/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfigStore 从系统配置集合读取统计配置
type MongoConfigStore struct {
	coll *mongo.Collection
}

// NewMongoConfigStore 创建配置存储
func NewMongoConfigStore(db *mongo.Database) *MongoConfigStore {
	return &MongoConfigStore{coll: db.Collection(SystemConfigsCollection)}
}

// LoadAnalyticsConfig 返回最近更新的已启用统计配置；不存在时返回 nil
func (s *MongoConfigStore) LoadAnalyticsConfig(ctx context.Context) (map[string]interface{}, string, error) {
	filter := bson.M{"configType": models.ConfigTypeStatsAnalytics, "isEnabled": true}
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	var config models.SystemConfig
	err := s.coll.FindOne(ctx, filter, opts).Decode(&config)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("读取统计配置失败: %w", err)
	}

	raw, err := ConfigValueMap(config.ConfigValue)
	if err != nil {
		return nil, "", err
	}
	return raw, config.ConfigKey, nil
}

// ConfigValueMap 把 configValue 的各种 BSON 形态统一为普通 map
func ConfigValueMap(value interface{}) (map[string]interface{}, error) {
	if value == nil {
		return nil, nil
	}
	switch v := NormalizeBSON(value).(type) {
	case map[string]interface{}:
		return v, nil
	default:
		return nil, fmt.Errorf("无法解析 ConfigValue，实际类型: %T", value)
	}
}

// NormalizeBSON 递归转换 primitive.D / primitive.M / primitive.A
func NormalizeBSON(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(v))
		for _, elem := range v {
			m[elem.Key] = NormalizeBSON(elem.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]interface{}, len(v))
		for k, val := range v {
			m[k] = NormalizeBSON(val)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, val := range v {
			m[k] = NormalizeBSON(val)
		}
		return m
	case primitive.A:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = NormalizeBSON(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = NormalizeBSON(val)
		}
		return out
	default:
		return v
	}
}
