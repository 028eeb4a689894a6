package observability

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pitabwire/erpconsole/internal/config"
	"github.com/pitabwire/erpconsole/model"
)

type loggerKey struct{}

type correlationKey struct{}

// NewLogger creates a JSON zap.Logger writing to stdout and, when a log file
// path is configured, to a size-rotated file as well.
//
// Level conventions:
//   - error: infrastructure failures, 5xx responses, panics
//   - warn:  4xx from the backend, open circuit, failed policy reload
//   - info:  sign-in and sign-out, definition and policy reloads
//   - debug: cache traffic, superseded list pages, redacted payloads
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	enabler := zap.NewAtomicLevelAt(level)
	encoder := zapcore.NewJSONEncoder(encoderConfig())

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), enabler),
	}
	if cfg.LogFile.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAgeDays,
			Compress:   cfg.LogFile.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), enabler))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	), nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in the context, or fallback.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// WithCorrelationID stores the request correlation id in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom returns the correlation id stored in the context.
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// RequestLogger returns the context logger enriched with the correlation
// id, the signed-in username and the trace id when they are known.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)

	var fields []zap.Field
	if id := CorrelationIDFrom(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if ident := model.IdentityFrom(ctx); ident != nil {
		fields = append(fields, zap.String("username", ident.Username))
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

var defaultSensitiveFields = map[string]bool{
	"password":        true,
	"newPassword":     true,
	"confirmPassword": true,
	"token":           true,
	"accessToken":     true,
	"refreshToken":    true,
	"authorization":   true,
	"bankAccount":     true,
	"idNumber":        true,
}

// RedactBody returns a copy of body with sensitive fields replaced by
// "[REDACTED]". extra names are redacted in addition to the defaults. Meant
// for debug logging only.
func RedactBody(body map[string]any, extra ...string) map[string]any {
	if body == nil {
		return nil
	}
	redact := func(k string) bool {
		if defaultSensitiveFields[k] {
			return true
		}
		for _, f := range extra {
			if f == k {
				return true
			}
		}
		return false
	}

	result := make(map[string]any, len(body))
	for k, v := range body {
		switch {
		case redact(k):
			result[k] = "[REDACTED]"
		case isObject(v):
			result[k] = RedactBody(v.(map[string]any), extra...)
		default:
			result[k] = v
		}
	}
	return result
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}
