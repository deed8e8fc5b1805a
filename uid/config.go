package uid

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ceyewan/pkseq/uid/counter"
	"github.com/ceyewan/pkseq/uid/internal"
)

// 支持的计数器驱动
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverEtcd     = "etcd"
	DriverBolt     = "bolt"
	DriverMemory   = "memory"
)

var knownDrivers = []string{DriverPostgres, DriverMySQL, DriverEtcd, DriverBolt, DriverMemory}

// Config 定义 uid 组件的配置结构
type Config struct {
	ServiceName string `json:"serviceName" yaml:"serviceName"` // 服务名称，用于日志和监控

	// 计数器连接
	Driver   string `json:"driver" yaml:"driver"`                         // postgres / mysql / etcd / bolt / memory
	URL      string `json:"url" yaml:"url"`                               // DSN、etcd 地址（逗号分隔）或 bolt 文件路径
	Username string `json:"username,omitempty" yaml:"username,omitempty"` // 可选，覆盖 URL 中的用户名
	Password string `json:"password,omitempty" yaml:"password,omitempty"` // 可选，覆盖 URL 中的密码

	// 计数表结构，留空使用 pk_sequence(k, v, step)
	Table       string `json:"table" yaml:"table"`
	KeyColumn   string `json:"keyColumn,omitempty" yaml:"keyColumn,omitempty"`
	ValueColumn string `json:"valueColumn,omitempty" yaml:"valueColumn,omitempty"`
	StepColumn  string `json:"stepColumn,omitempty" yaml:"stepColumn,omitempty"`

	// Name 单序列模式下的序列名，Next 使用
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// 预加载
	Policy             string        `json:"policy" yaml:"policy"`                         // async（默认）或 sync
	PreloadWaitTimeout time.Duration `json:"preloadWaitTimeout" yaml:"preloadWaitTimeout"` // 等待后台预取的上限
	Workers            int           `json:"workers" yaml:"workers"`                       // 后台预取并发度

	// Seeds 仅 memory 驱动使用的初始行，便于本地开发
	Seeds []counter.Row `json:"seeds,omitempty" yaml:"seeds,omitempty"`
}

// GetDefaultConfig 返回环境相关的默认配置
// 连接参数优先从环境变量读取
func GetDefaultConfig(env string) *Config {
	config := &Config{
		ServiceName:        getEnvWithDefault("SERVICE_NAME", "unknown-service"),
		Driver:             getEnvWithDefault("UID_DRIVER", DriverPostgres),
		URL:                os.Getenv("UID_URL"),
		Username:           os.Getenv("UID_USERNAME"),
		Password:           os.Getenv("UID_PASSWORD"),
		Table:              getEnvWithDefault("UID_TABLE", counter.DefaultTable),
		Name:               os.Getenv("UID_NAME"),
		Policy:             getEnvWithDefault("UID_POLICY", "async"),
		PreloadWaitTimeout: internal.DefaultPreloadWaitTimeout,
		Workers:            getEnvIntWithDefault("UID_WORKERS", 4),
	}

	// 开发环境没有配置连接时退化为内存计数器
	if env == "development" && config.URL == "" && os.Getenv("UID_DRIVER") == "" {
		config.Driver = DriverMemory
	}

	return config
}

// LoadConfig 从 YAML 文件读取配置，未出现的字段保持 GetDefaultConfig 的值
func LoadConfig(path, env string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	config := GetDefaultConfig(env)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return config, nil
}

// Validate 验证配置的有效性
// 在初始化组件之前调用，驱动缺失、表名非法等错误必须在这里暴露
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return internal.NewError(internal.ErrCodeValidation, "服务名称不能为空", nil)
	}

	if c.Driver == "" {
		return internal.NewError(internal.ErrCodeValidation, "计数器驱动不能为空", nil)
	}
	if !slices.Contains(knownDrivers, c.Driver) {
		return internal.NewError(internal.ErrCodeValidation,
			fmt.Sprintf("不支持的计数器驱动: %s", c.Driver), nil)
	}
	if c.Driver != DriverMemory && c.URL == "" {
		return internal.NewError(internal.ErrCodeValidation, "连接地址不能为空", nil)
	}

	if err := c.schema().Validate(); err != nil {
		return internal.NewError(internal.ErrCodeValidation, "计数表结构非法", err)
	}

	if _, err := internal.ParsePolicy(c.Policy); err != nil {
		return internal.NewError(internal.ErrCodeValidation, "预加载策略非法", err)
	}

	if c.PreloadWaitTimeout < 0 {
		return internal.NewError(internal.ErrCodeValidation, "预加载等待时间不能为负数", nil)
	}

	if c.Workers < 0 {
		return internal.NewError(internal.ErrCodeValidation, "后台并发度不能为负数", nil)
	}

	return nil
}

// schema 由配置生成计数表结构
func (c *Config) schema() counter.Schema {
	return counter.Schema{
		Table:       c.Table,
		KeyColumn:   c.KeyColumn,
		ValueColumn: c.ValueColumn,
		StepColumn:  c.StepColumn,
	}
}

func (c *Config) tableName() string {
	if c.Table == "" {
		return counter.DefaultTable
	}
	return c.Table
}

// SetServiceName 设置服务名称
func (c *Config) SetServiceName(name string) *Config {
	c.ServiceName = name
	return c
}

// SetDriver 设置计数器驱动和连接地址
func (c *Config) SetDriver(driver, url string) *Config {
	c.Driver = driver
	c.URL = url
	return c
}

// SetName 设置单序列模式的序列名
func (c *Config) SetName(name string) *Config {
	c.Name = name
	return c
}

// SetPolicy 设置预加载策略
func (c *Config) SetPolicy(policy string) *Config {
	c.Policy = policy
	return c
}

// 环境变量辅助函数
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
