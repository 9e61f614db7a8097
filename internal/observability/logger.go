package observability

import (
	"context"

	"github.com/upb/auth-service/internal/shared"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the encoder and static fields of the process logger.
type LogConfig struct {
	Level   string
	Format  string // json or text
	Service string
	Env     string
	Version string
}

// NewLogger builds the process logger. Text format uses the development
// encoder; anything else logs JSON.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	var cfg zap.Config
	if c.Format == "text" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	level := new(zapcore.Level)
	if err := level.Set(c.Level); err != nil {
		*level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(*level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build(
		zap.Fields(
			zap.String("service", c.Service),
			zap.String("env", c.Env),
			zap.String("version", c.Version),
		),
	)
}

// LoggerFromContext returns base annotated with the request id carried by ctx.
func LoggerFromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if id := shared.RequestID(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}
