package logger

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func toZapLevel(l string) zapcore.Level {
	levels := map[Level]zapcore.Level{
		LevelDebug: zapcore.DebugLevel,
		LevelInfo:  zapcore.InfoLevel,
		LevelWarn:  zapcore.WarnLevel,
		LevelError: zapcore.ErrorLevel,
	}
	if level, ok := levels[Level(strings.ToLower(strings.TrimSpace(l)))]; ok {
		return level
	}
	return zapcore.InfoLevel
}

// Options configures where and how much is logged.
// An empty Filename with Stdout unset logs to stderr, which keeps
// stdout free for the serve protocol and report output.
type Options struct {
	Stdout     bool   `config:"stdout"`
	Level      string `config:"level"`
	Filename   string `config:"filename"`
	MaxSize    int    `config:"maxSize"` // unit: MB
	MaxAge     int    `config:"maxAge"`  // unit: days
	MaxBackups int    `config:"maxBackups"`
}

// Logger is a leveled printf-style logger backed by zap.
// The zero value discards everything.
type Logger struct {
	sugared *zap.SugaredLogger
}

func (l Logger) Debugf(template string, args ...any) {
	if l.sugared != nil {
		l.sugared.Debugf(template, args...)
	}
}

func (l Logger) Infof(template string, args ...any) {
	if l.sugared != nil {
		l.sugared.Infof(template, args...)
	}
}

func (l Logger) Warnf(template string, args ...any) {
	if l.sugared != nil {
		l.sugared.Warnf(template, args...)
	}
}

func (l Logger) Errorf(template string, args ...any) {
	if l.sugared != nil {
		l.sugared.Errorf(template, args...)
	}
}

// With returns a child logger that adds key/value pairs to every entry.
func (l Logger) With(args ...any) Logger {
	if l.sugared == nil {
		return l
	}
	return Logger{sugared: l.sugared.With(args...)}
}

// Sync flushes buffered entries.
func (l Logger) Sync() error {
	if l.sugared == nil {
		return nil
	}
	return l.sugared.Sync()
}

// New creates a Logger from opts.
func New(opt Options) Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Local().Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var w zapcore.WriteSyncer
	switch {
	case opt.Stdout:
		w = zapcore.AddSync(os.Stdout)
	case opt.Filename == "":
		w = zapcore.Lock(zapcore.AddSync(os.Stderr))
	default:
		if err := os.MkdirAll(filepath.Dir(opt.Filename), os.ModePerm); err != nil {
			panic(err)
		}

		w = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.Filename,
			MaxSize:    opt.MaxSize,
			MaxBackups: opt.MaxBackups,
			MaxAge:     opt.MaxAge,
			LocalTime:  true,
		})
	}

	level := toZapLevel(opt.Level)
	core := zapcore.NewCore(encoder, w, level)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return Logger{
		sugared: logger.Sugar(),
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return Logger{sugared: zap.NewNop().Sugar()}
}

var (
	stdOpt = Options{Level: string(LevelWarn)}
	std    = New(stdOpt)
)

// Std returns the global Logger.
func Std() Logger {
	return std
}

// SetOptions replaces the global Logger configuration.
func SetOptions(opt Options) {
	stdOpt = opt
	std = New(opt)
}

// SetLoggerLevel changes the level of the global Logger.
func SetLoggerLevel(s string) {
	stdOpt.Level = strings.ToLower(strings.TrimSpace(s))
	std = New(stdOpt)
}

func Debugf(template string, args ...any) {
	std.Debugf(template, args...)
}

func Infof(template string, args ...any) {
	std.Infof(template, args...)
}

func Warnf(template string, args ...any) {
	std.Warnf(template, args...)
}

func Errorf(template string, args ...any) {
	std.Errorf(template, args...)
}
