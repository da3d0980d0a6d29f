package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds a production ready structured logger.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// WithOperation enriches the logger with the operation name and the object it
// acts on (prediction id, image key or chat id).
func WithOperation(logger *zap.Logger, operation, ref string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if ref != "" {
		fields = append(fields, zap.String("ref", ref))
	}
	return logger.With(fields...)
}
