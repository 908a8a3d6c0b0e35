package logger

import (
	"os"
	"strings"

	"github.com/truongcongthanh2000/command-trade/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var sugaredLogger *zap.SugaredLogger

// InitDefault 用info级别的控制台配置初始化日志。
// 进程启动时在加载配置文件之前调用, 之后由 InitLogger 按配置重建。
func InitDefault() {
	InitLogger(models.LogConfig{Level: "info", Output: "console"})
}

// InitLogger 按配置初始化全局日志记录器。
func InitLogger(cfg models.LogConfig) {
	core := zapcore.NewTee(buildCores(cfg)...)
	sugaredLogger = zap.New(core, zap.AddCaller()).Sugar()
}

// buildCores 按输出模式组合日志输出: "file"、"console" 或 "both"。
// 配置不合法时退回控制台输出, 保证任何情况下日志都有去处。
func buildCores(cfg models.LogConfig) []zapcore.Core {
	level := parseLevel(cfg.Level)
	encoder := newEncoder()

	var cores []zapcore.Core
	output := strings.ToLower(cfg.Output)
	if output == "file" || output == "both" {
		// lumberjack负责日志文件的切割与清理
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder, fileWriter, level))
	}
	if output == "console" || output == "both" || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}
	return cores
}

// parseLevel 解析日志级别, 解析失败时用Info。
func parseLevel(level string) zap.AtomicLevel {
	atomicLevel := zap.NewAtomicLevel()
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		atomicLevel.SetLevel(zap.InfoLevel)
	}
	return atomicLevel
}

// newEncoder 创建带颜色级别和ISO8601时间格式的控制台encoder。
func newEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// S 返回全局的sugared logger实例, 未初始化时先走默认配置。
func S() *zap.SugaredLogger {
	if sugaredLogger == nil {
		InitDefault()
	}
	return sugaredLogger
}
