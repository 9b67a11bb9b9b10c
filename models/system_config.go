package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConfigType 配置类型枚举
type ConfigType string

// SystemConfig 系统配置模型 (MongoDB文档结构)
type SystemConfig struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ConfigType  ConfigType         `bson:"configType" json:"configType"`
	ConfigKey   string             `bson:"configKey" json:"configKey"`
	ConfigValue interface{}        `bson:"configValue" json:"configValue"` // {kpd: {...}, advice: {...}}
	Description string             `bson:"description" json:"description"`
	IsEnabled   bool               `bson:"isEnabled" json:"isEnabled"`

	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}
