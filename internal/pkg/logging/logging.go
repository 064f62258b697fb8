// Package logging builds the process-wide zap logger: colored console
// output in development, JSON in production.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger appropriate for the given environment string
// ("development" enables the console encoder and debug level).
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stdout),
			zap.NewAtomicLevelAt(zapcore.DebugLevel),
		)
		return zap.New(core, zap.AddCaller()), nil
	}
	return zap.NewProduction()
}
