package internal

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ExitFunc allows mocking os.Exit in tests
var ExitFunc = os.Exit

// SetExitFunc sets the exit function for testing
func SetExitFunc(fn func(int)) {
	ExitFunc = fn
}

// Logger 定义日志接口
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger
	WithOptions(opts ...zap.Option) Logger
	Namespace(name string) Logger

	// Sync 刷新缓冲区，进程退出前调用
	Sync() error
}

// Settings 由 clog.Config 转换而来的内部配置
type Settings struct {
	Level       string
	Format      string
	Output      string
	AddSource   bool
	EnableColor bool
	RootPath    string
	Rotation    *Rotation
}

// Rotation 文件轮转参数
type Rotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

const namespaceKey = "namespace"

// exitHook 让 Fatal 经由 ExitFunc 退出，测试中可替换
type exitHook struct{}

func (exitHook) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {
	ExitFunc(1)
}

// zapLogger 封装 zap.Logger，namespace 在写日志时作为第一个字段输出
type zapLogger struct {
	base      *zap.Logger
	namespace string
}

// NewLogger 按配置构建 logger
func NewLogger(s Settings, namespace string) (Logger, error) {
	sink, err := buildWriteSyncer(s)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(
		createEncoder(s.Format, buildEncoderConfig(s)),
		sink,
		parseLevel(s.Level),
	)

	opts := []zap.Option{
		zap.AddStacktrace(zapcore.ErrorLevel),
		// 跳过 zapLogger 自身的一层调用
		zap.AddCallerSkip(1),
		zap.WithFatalHook(exitHook{}),
	}
	if s.AddSource {
		opts = append(opts, zap.AddCaller())
	}

	return &zapLogger{base: zap.New(core, opts...), namespace: namespace}, nil
}

// NewFallbackLogger 创建备用 logger
func NewFallbackLogger() Logger {
	logger, _ := zap.NewProduction(zap.AddCallerSkip(1), zap.WithFatalHook(exitHook{}))
	return &zapLogger{base: logger}
}

func (l *zapLogger) fields(fields []zap.Field) []zap.Field {
	if l.namespace == "" {
		return fields
	}
	all := make([]zap.Field, 0, len(fields)+1)
	all = append(all, zap.String(namespaceKey, l.namespace))
	return append(all, fields...)
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.base.Debug(msg, l.fields(fields)...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.base.Info(msg, l.fields(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.base.Warn(msg, l.fields(fields)...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.base.Error(msg, l.fields(fields)...) }
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) { l.base.Fatal(msg, l.fields(fields)...) }

// With 添加固定字段，namespace 字段由 Namespace 管理，这里丢弃
func (l *zapLogger) With(fields ...zap.Field) Logger {
	kept := fields[:0:0]
	for _, f := range fields {
		if f.Key != namespaceKey {
			kept = append(kept, f)
		}
	}
	return &zapLogger{base: l.base.With(kept...), namespace: l.namespace}
}

func (l *zapLogger) WithOptions(opts ...zap.Option) Logger {
	return &zapLogger{base: l.base.WithOptions(opts...), namespace: l.namespace}
}

// Namespace 创建子命名空间，与父命名空间以 "." 连接
func (l *zapLogger) Namespace(name string) Logger {
	ns := name
	if l.namespace != "" {
		ns = l.namespace + "." + name
	}
	return &zapLogger{base: l.base, namespace: ns}
}

func (l *zapLogger) Sync() error {
	return l.base.Sync()
}

// parseLevel 解析日志级别，未知级别按 info 处理
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
