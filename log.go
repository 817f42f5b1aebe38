package main

import (
	"context"
	"os"
	"slices"

	ipfslog "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"

	"github.com/openproof/signet/pkg/log"
)

// NewLogger builds the service logger from the configuration: the zap
// backend with the configured format, or the ipfs go-log backend for
// deployments that rely on its per-subsystem level control.
func NewLogger(cfg Config) log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.LevelInfo
	}
	if cfg.LogBackend == "ipfs" {
		return NewLoggerIPFS("signetd")
	}
	return log.NewZapLogger(log.Config{Format: cfg.LogFormat, Level: level}).WithName("signetd")
}

// NewLoggerIPFS creates a Logger backed by ipfs go-log. Log level comes from
// SIGNET_LOG_LEVEL, with go-log's own environment knobs still honored.
func NewLoggerIPFS(name string) log.Logger {
	return &ipfsLogger{
		lg:   ipfslog.Logger(name).SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar(),
		name: name,
	}
}

var _ log.Logger = (*ipfsLogger)(nil)

type ipfsLogger struct {
	lg   *zap.SugaredLogger
	name string
	kv   []any
}

func (l *ipfsLogger) Debug(msg string, keysAndValues ...any) {
	l.lg.Debugw(msg, keysAndValues...)
}

func (l *ipfsLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Infow(msg, keysAndValues...)
}

func (l *ipfsLogger) Warn(msg string, keysAndValues ...any) {
	l.lg.Warnw(msg, keysAndValues...)
}

func (l *ipfsLogger) Error(msg string, keysAndValues ...any) {
	l.lg.Errorw(msg, keysAndValues...)
}

func (l *ipfsLogger) Fatal(msg string, keysAndValues ...any) {
	l.lg.Fatalw(msg, keysAndValues...)
}

func (l *ipfsLogger) WithName(name string) log.Logger {
	fullName := name
	if l.name != "" {
		fullName = l.name + "." + name
	}
	return &ipfsLogger{
		lg:   ipfslog.Logger(fullName).SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().With(l.kv...),
		name: fullName,
		kv:   l.kv,
	}
}

func (l *ipfsLogger) Name() string { return l.name }

func (l *ipfsLogger) WithKV(keysAndValues ...any) log.Logger {
	return &ipfsLogger{
		lg:   l.lg.With(keysAndValues...),
		name: l.name,
		kv:   append(slices.Clone(l.kv), keysAndValues...),
	}
}

func (l *ipfsLogger) GetAllKV() []any { return l.kv }

func (l *ipfsLogger) AddCallerSkip(skip int) log.Logger {
	return &ipfsLogger{
		lg:   l.lg.Desugar().WithOptions(zap.AddCallerSkip(skip)).Sugar(),
		name: l.name,
		kv:   l.kv,
	}
}

type loggerContextKey struct{}

// SetContextLogger attaches the provided logger to the context.
func SetContextLogger(ctx context.Context, lg log.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// LoggerFromContext retrieves the logger stored in the context.
// If none is found, it returns a noop logger.
func LoggerFromContext(ctx context.Context) log.Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(log.Logger); ok {
		return l
	}
	return log.NewNoopLogger()
}

func init() {
	logLevel := os.Getenv("SIGNET_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info" // Default log level
	}
	zapLevel, err := ipfslog.Parse(logLevel)
	if err != nil {
		zapLevel = ipfslog.LevelInfo // Fallback to Info level if parsing fails
	}

	ipfslog.SetupLogging(ipfslog.Config{
		Level:  zapLevel,
		Stderr: true,
	})
}
