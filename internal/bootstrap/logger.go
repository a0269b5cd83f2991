package bootstrap

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a production JSON logger at level (debug, info, warn,
// error). Unknown levels are an error.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
