package logger

import (
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. LOG_DEVELOPMENT=true switches to the human readable development encoder.
func New() (*zap.Logger, error) {
	dev, _ := strconv.ParseBool(os.Getenv("LOG_DEVELOPMENT"))
	if dev {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}
