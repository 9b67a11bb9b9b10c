package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Port     int    `yaml:"port"`
	MongoURI string `yaml:"mongo_uri"`
	MongoDB  string `yaml:"mongo_db"`
	JWTKey   string `yaml:"jwt_key"`
	Debug    bool   `yaml:"debug"`

	Redis RedisConfig `yaml:"redis"`
	Stats StatsConfig `yaml:"stats"`
}

// RedisConfig 缓存配置，Addr 为空时使用进程内缓存
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StatsConfig 统计服务配置
type StatsConfig struct {
	Timezone      string        `yaml:"timezone"`
	PayloadTTL    time.Duration `yaml:"payload_ttl"`
	ConfigTTL     time.Duration `yaml:"config_ttl"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
	MaxParallel   int           `yaml:"max_parallel"`
}

// Location 统计使用的时区，依次尝试配置值与 TZ 环境变量，都无法识别时使用本地时区
func (s StatsConfig) Location() *time.Location {
	for _, name := range []string{s.Timezone, strings.TrimPrefix(os.Getenv("TZ"), ":")} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.Local
}

func defaults() *Config {
	return &Config{
		Port:     8080,
		MongoURI: "mongodb://127.0.0.1:27017/crm",
		MongoDB:  "crm",
		JWTKey:   "your-secret-key", // 实际环境应替换为安全密钥
		Debug:    true,
		Stats: StatsConfig{
			Timezone:      "Asia/Shanghai",
			PayloadTTL:    60 * time.Second,
			ConfigTTL:     600 * time.Second,
			SourceTimeout: 3 * time.Second,
			MaxParallel:   6,
		},
	}
}

// LoadConfig 加载配置：默认值，然后是 CONFIG_FILE 指定的 YAML 文件，最后是环境变量
func LoadConfig() *Config {
	cfg, err := Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置文件失败，使用默认配置: %v\n", err)
		cfg = defaults()
		applyEnv(cfg)
	}
	return cfg
}

// Load 从指定文件加载配置，path 为空时只读取环境变量
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDB = getEnv("MONGO_DB", cfg.MongoDB)
	cfg.JWTKey = getEnv("JWT_KEY", cfg.JWTKey)
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Debug = mode == "debug"
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Stats.Timezone = getEnv("STATS_TZ", cfg.Stats.Timezone)
	cfg.Stats.PayloadTTL = getEnvDuration("STATS_PAYLOAD_TTL", cfg.Stats.PayloadTTL)
	cfg.Stats.ConfigTTL = getEnvDuration("STATS_CONFIG_TTL", cfg.Stats.ConfigTTL)
	cfg.Stats.SourceTimeout = getEnvDuration("STATS_SOURCE_TIMEOUT", cfg.Stats.SourceTimeout)
	cfg.Stats.MaxParallel = getEnvInt("STATS_MAX_PARALLEL", cfg.Stats.MaxParallel)
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
