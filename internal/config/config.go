// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（API Key、数据库密码）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

// Duration 支持 "1h30m" 形式的 YAML 时长字段
// （yaml.v3 不能直接解码 time.Duration）
type Duration time.Duration

// UnmarshalYAML 实现 yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std 转换为标准库 time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test" // 测试环境（集成测试共用）
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Provider ProviderConfig `yaml:"provider"`
	Memory   MemoryConfig   `yaml:"memory"`
	Routing  RoutingConfig  `yaml:"routing"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	// Driver 可选 "postgres" 或 "sqlite"
	Driver  string `yaml:"driver"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
	// Path SQLite 数据库文件路径（driver=sqlite 时使用）
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
	// Enabled 为 false 时降级为进程内 NoOp 实现
	Enabled bool `yaml:"enabled"`
}

// ProviderConfig LLM 供应商配置
//
// API Key 只从环境变量读取（OPENAI_API_KEY / ANTHROPIC_API_KEY），
// 不出现在 YAML 中。
type ProviderConfig struct {
	// Default 默认供应商名称: "openai", "anthropic", "mock"
	Default string `yaml:"default"`

	// Embedder 嵌入供应商名称（Anthropic 无嵌入接口时需单独指定）
	Embedder string `yaml:"embedder"`

	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

type OpenAIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	Timeout        Duration      `yaml:"timeout"`
}

type AnthropicConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   Duration      `yaml:"timeout"`
}

// MemoryConfig 记忆存储配置
type MemoryConfig struct {
	// TTLSession 会话记忆存活时间
	TTLSession Duration `yaml:"ttl_session"`
	// TTLUser 用户记忆存活时间
	TTLUser Duration `yaml:"ttl_user"`
	// TTLKnowledge 知识记忆存活时间（0 表示永不过期）
	TTLKnowledge Duration `yaml:"ttl_knowledge"`

	// SweepInterval 过期记忆清理周期（0 表示不启动后台清理）
	SweepInterval Duration `yaml:"sweep_interval"`

	// SearchLimit 检索默认返回条数
	SearchLimit int `yaml:"search_limit"`

	// 检索排序权重: score = similarity*w_similarity + importance*w_importance + recency*w_recency
	SimilarityWeight float64 `yaml:"similarity_weight"`
	ImportanceWeight float64 `yaml:"importance_weight"`
	RecencyWeight    float64 `yaml:"recency_weight"`

	// RecencyWindow 新近度衰减窗口（超过该窗口的记忆衰减到下限）
	RecencyWindow Duration `yaml:"recency_window"`
}

// RoutingConfig 角色路由配置
type RoutingConfig struct {
	// HysteresisRatio 滞后阈值：当前角色得分 >= top*ratio 时不切换
	HysteresisRatio float64 `yaml:"hysteresis_ratio"`

	// DiversityBonusWeight 多样性加分系数：
	// bonus = weight * 不同优先级档位的命中数
	DiversityBonusWeight int `yaml:"diversity_bonus_weight"`

	// MaxInheritanceDepth 父链遍历深度上限
	MaxInheritanceDepth int `yaml:"max_inheritance_depth"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env         Environment
	DatabaseURL string
	DBDriver    string
	RedisURL    string
	RedisOn     bool
	APIPort     string
	Provider    ProviderConfig
	Memory      MemoryConfig
	Routing     RoutingConfig

	// 敏感信息（仅来自环境变量）
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	// 加载 .env
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// 解析环境
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 YAML 配置
	yamlCfg := loadYAMLConfig(env)

	// 从环境变量获取敏感信息
	dbPassword := getEnv("DB_PASSWORD", "advisors_dev_password")

	// DATABASE_URL 环境变量优先于 YAML 拼接
	databaseURL := getEnv("DATABASE_URL", buildDatabaseURL(yamlCfg.Database, dbPassword))

	// 构建最终配置
	cfg := &Config{
		Env:             env,
		DatabaseURL:     databaseURL,
		DBDriver:        detectDatabaseDriver(yamlCfg.Database.Driver, databaseURL),
		RedisURL:        buildRedisURL(yamlCfg.Redis),
		RedisOn:         yamlCfg.Redis.Enabled,
		APIPort:         yamlCfg.Server.Port,
		Provider:        yamlCfg.Provider,
		Memory:          yamlCfg.Memory,
		Routing:         yamlCfg.Routing,
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
	}

	// 环境变量覆盖默认供应商（便于本地无 Key 时切换 mock）
	if p := os.Getenv("DEFAULT_PROVIDER"); p != "" {
		cfg.Provider.Default = p
	}

	// 验证并填充默认值
	cfg.Memory.validate()
	cfg.Routing.validate()

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	// 1. 初始化默认值
	cfg := &YAMLConfig{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: "sqlite", Host: "localhost", Port: 5432, User: "advisors", Name: "advisors_admin", SSLMode: "disable", Path: "advisors.db"},
		Redis:    RedisConfig{Host: "localhost", Port: 6380, DB: 0, Enabled: false},
		Provider: ProviderConfig{
			Default:  "openai",
			Embedder: "openai",
			OpenAI: OpenAIConfig{
				BaseURL:        "https://api.openai.com/v1",
				Model:          "gpt-4o-mini",
				EmbeddingModel: "text-embedding-3-small",
				Timeout:        Duration(60 * time.Second),
			},
			Anthropic: AnthropicConfig{
				BaseURL:   "https://api.anthropic.com/v1",
				Model:     "claude-3-haiku-20240307",
				MaxTokens: 1024,
				Timeout:   Duration(60 * time.Second),
			},
		},
		Memory:  MemoryConfig{},
		Routing: RoutingConfig{},
	}

	// 2. 加载 common.yaml（公共配置）
	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildDatabaseURL 根据驱动类型构建数据库连接字符串
func buildDatabaseURL(db DatabaseConfig, password string) string {
	switch strings.ToLower(db.Driver) {
	case "sqlite":
		dbPath := db.Path
		if dbPath == "" {
			dbPath = "advisors.db"
		}
		return fmt.Sprintf("file:%s?cache=shared&mode=rwc", dbPath)
	default: // postgres
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
	}
}

// detectDatabaseDriver 检测数据库驱动类型
// 优先级：YAML driver 字段 > DATABASE_URL 前缀自动检测 > 默认 sqlite
func detectDatabaseDriver(yamlDriver, databaseURL string) string {
	if d := strings.ToLower(yamlDriver); d == "sqlite" || d == "postgres" {
		return d
	}
	switch {
	case strings.HasPrefix(databaseURL, "file:"), strings.HasPrefix(databaseURL, "sqlite:"):
		return "sqlite"
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres"
	default:
		return "sqlite"
	}
}

// buildRedisURL 构建 Redis 连接字符串
func buildRedisURL(redis RedisConfig) string {
	return fmt.Sprintf("redis://%s:%d/%d", redis.Host, redis.Port, redis.DB)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, DB: %s/%s, Redis: %s, Provider: %s}",
		c.Env, c.DBDriver, maskPassword(c.DatabaseURL), c.RedisURL, c.Provider.Default)
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}

// validate 验证并填充记忆存储默认值
func (m *MemoryConfig) validate() {
	if m.TTLSession == 0 {
		m.TTLSession = Duration(time.Hour)
	}
	if m.TTLUser == 0 {
		m.TTLUser = Duration(30 * 24 * time.Hour)
	}
	// TTLKnowledge 保持 0 = 永不过期
	if m.SearchLimit == 0 {
		m.SearchLimit = 5
	}
	if m.SimilarityWeight == 0 && m.ImportanceWeight == 0 && m.RecencyWeight == 0 {
		m.SimilarityWeight = 0.7
		m.ImportanceWeight = 0.2
		m.RecencyWeight = 0.1
	}
	if m.RecencyWindow == 0 {
		m.RecencyWindow = Duration(30 * 24 * time.Hour)
	}
}

// validate 验证并填充路由默认值
func (r *RoutingConfig) validate() {
	if r.HysteresisRatio == 0 {
		r.HysteresisRatio = 0.8
	}
	if r.DiversityBonusWeight == 0 {
		r.DiversityBonusWeight = 2
	}
	if r.MaxInheritanceDepth == 0 {
		r.MaxInheritanceDepth = 64
	}
}
