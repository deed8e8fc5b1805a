package internal

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// buildEncoderConfig 根据格式创建编码器配置
func buildEncoderConfig(s Settings) zapcore.EncoderConfig {
	config := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	if s.AddSource {
		config.CallerKey = "caller"
		config.EncodeCaller = callerEncoder(s.RootPath)
	}

	if s.Format == "console" {
		config.EncodeLevel = zapcore.CapitalLevelEncoder
		if s.EnableColor {
			config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	return config
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// callerEncoder 输出相对 rootPath 的路径；rootPath 为空或不在路径中时退回短路径
func callerEncoder(rootPath string) zapcore.CallerEncoder {
	return func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		if !caller.Defined {
			enc.AppendString("undefined")
			return
		}
		if rootPath != "" {
			if idx := strings.Index(caller.File, rootPath); idx != -1 {
				rel := strings.TrimLeft(caller.File[idx+len(rootPath):], "/\\")
				enc.AppendString(rel + ":" + strconv.Itoa(caller.Line))
				return
			}
		}
		zapcore.ShortCallerEncoder(caller, enc)
	}
}

func createEncoder(format string, config zapcore.EncoderConfig) zapcore.Encoder {
	if format == "console" {
		return zapcore.NewConsoleEncoder(config)
	}
	return zapcore.NewJSONEncoder(config)
}
