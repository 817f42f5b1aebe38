package log

import (
	"os"
	"slices"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*ZapLogger)(nil)

// ZapLogger is the production Logger implementation. The zero value is not
// usable; construct it with NewZapLogger.
type ZapLogger struct {
	lg   *zap.SugaredLogger
	name string
	kv   []any
}

// NewZapLogger creates a logger with the given config. Entries go to the
// provided write syncers, or to stdout when none are given.
func NewZapLogger(cfg Config, ws ...zapcore.WriteSyncer) Logger {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		encoder = zaplogfmt.NewEncoder(encoderCfg)
	}

	var sink zapcore.WriteSyncer
	if len(ws) > 0 {
		sink = zapcore.NewMultiWriteSyncer(ws...)
	} else {
		sink = zapcore.Lock(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, zapLevel(cfg.Level))
	// Skip the ZapLogger wrapper frame so the caller points at user code.
	lg := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &ZapLogger{lg: lg.Sugar()}
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.lg.Debugw(msg, keysAndValues...)
}

func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Infow(msg, keysAndValues...)
}

func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.lg.Warnw(msg, keysAndValues...)
}

func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.lg.Errorw(msg, keysAndValues...)
}

func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	l.lg.Fatalw(msg, keysAndValues...)
}

func (l *ZapLogger) WithName(name string) Logger {
	fullName := name
	if l.name != "" {
		fullName = l.name + "." + name
	}
	return &ZapLogger{
		lg:   l.lg.Named(name),
		name: fullName,
		kv:   l.kv,
	}
}

func (l *ZapLogger) Name() string { return l.name }

func (l *ZapLogger) WithKV(keysAndValues ...any) Logger {
	return &ZapLogger{
		lg:   l.lg.With(keysAndValues...),
		name: l.name,
		kv:   append(slices.Clone(l.kv), keysAndValues...),
	}
}

func (l *ZapLogger) GetAllKV() []any { return l.kv }

func (l *ZapLogger) AddCallerSkip(skip int) Logger {
	return &ZapLogger{
		lg:   l.lg.Desugar().WithOptions(zap.AddCallerSkip(skip)).Sugar(),
		name: l.name,
		kv:   l.kv,
	}
}
