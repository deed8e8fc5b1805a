package clog

import (
	"fmt"
	"os"
	"slices"

	"github.com/ceyewan/pkseq/clog/internal"
)

var validLevels = []string{"debug", "info", "warn", "error", "fatal"}

// Config 是 clog 组件的配置结构体
type Config struct {
	// Level 日志级别: "debug", "info", "warn", "error", "fatal"
	Level string `json:"level" yaml:"level"`

	// Format 输出格式: "json" (生产环境推荐) 或 "console" (开发环境推荐)
	Format string `json:"format" yaml:"format"`

	// Output 输出目标: "stdout", "stderr", 或文件路径
	Output string `json:"output" yaml:"output"`

	// AddSource 控制日志是否包含源码文件名和行号
	AddSource bool `json:"addSource" yaml:"addSource"`

	// EnableColor 是否启用颜色（仅 console 格式）
	EnableColor bool `json:"enableColor" yaml:"enableColor"`

	// RootPath 项目根目录，caller 只显示其后的相对路径
	RootPath string `json:"rootPath,omitempty" yaml:"rootPath,omitempty"`

	// Rotation 日志轮转配置（仅文件输出）
	Rotation *RotationConfig `json:"rotation,omitempty" yaml:"rotation,omitempty"`
}

// RotationConfig 定义日志文件轮转设置
type RotationConfig struct {
	MaxSize    int  `json:"maxSize" yaml:"maxSize"`       // 单个日志文件最大尺寸(MB)
	MaxBackups int  `json:"maxBackups" yaml:"maxBackups"` // 最多保留文件个数
	MaxAge     int  `json:"maxAge" yaml:"maxAge"`         // 日志保留天数
	Compress   bool `json:"compress" yaml:"compress"`     // 是否压缩轮转文件
}

// GetDefaultConfig 返回默认的日志配置
// 开发环境：console 格式，debug 级别，带颜色
// 生产环境：json 格式，info 级别，无颜色
// LOG_LEVEL 环境变量可覆盖级别
func GetDefaultConfig(env string) *Config {
	var config *Config
	switch env {
	case "development":
		config = &Config{
			Level:       "debug",
			Format:      "console",
			Output:      "stdout",
			AddSource:   true,
			EnableColor: true,
			RootPath:    "pkseq",
		}
	case "production":
		config = &Config{
			Level:     "info",
			Format:    "json",
			Output:    "stdout",
			AddSource: true,
		}
	default:
		config = &Config{
			Level:       "info",
			Format:      "console",
			Output:      "stdout",
			AddSource:   true,
			EnableColor: true,
			RootPath:    "pkseq",
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = level
	}
	return config
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if !slices.Contains(validLevels, c.Level) {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("invalid log format: %s", c.Format)
	}

	if c.Output == "" {
		return fmt.Errorf("log output cannot be empty")
	}

	if r := c.Rotation; r != nil {
		if r.MaxSize < 0 || r.MaxBackups < 0 || r.MaxAge < 0 {
			return fmt.Errorf("rotation settings cannot be negative: %+v", *r)
		}
	}

	return nil
}

func (c *Config) settings() internal.Settings {
	s := internal.Settings{
		Level:       c.Level,
		Format:      c.Format,
		Output:      c.Output,
		AddSource:   c.AddSource,
		EnableColor: c.EnableColor,
		RootPath:    c.RootPath,
	}
	if c.Rotation != nil {
		s.Rotation = &internal.Rotation{
			MaxSize:    c.Rotation.MaxSize,
			MaxBackups: c.Rotation.MaxBackups,
			MaxAge:     c.Rotation.MaxAge,
			Compress:   c.Rotation.Compress,
		}
	}
	return s
}
