package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// buildWriteSyncer 根据 Output 创建写入器：stdout、stderr 或文件路径
func buildWriteSyncer(s Settings) (zapcore.WriteSyncer, error) {
	switch s.Output {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	default:
		return buildFileWriteSyncer(s.Output, s.Rotation)
	}
}

// buildFileWriteSyncer 创建文件写入器，配置了 Rotation 时交给 lumberjack 轮转
func buildFileWriteSyncer(filename string, rotation *Rotation) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("create log directory failed: %w", err)
	}

	if rotation == nil {
		file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		return zapcore.Lock(file), nil
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    rotation.MaxSize,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAge,
		Compress:   rotation.Compress,
		LocalTime:  true,
	}), nil
}
