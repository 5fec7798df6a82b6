// Package logging builds the process-wide zap logger and narrows it into
// per-subsystem children via Category.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem. Library code accepts a *zap.Logger
// (or zap.NewNop() as its zero value) rather than constructing one, so only
// cmd/rlm ever calls New; everything else calls For on the result.
type Category string

const (
	CategorySandbox   Category = "sandbox"
	CategoryAllowlist Category = "allowlist"
	CategoryEval      Category = "eval"
	CategoryAgent     Category = "agent"
	CategoryRetrieve  Category = "retrieve"
	CategoryHTTP      Category = "http"
	CategoryLLM       Category = "llm"
	CategoryCLI       Category = "cli"
)

// New builds the root logger: zap.NewProductionConfig() normally, or
// zap.NewDevelopmentConfig() under verbose, which switches to a
// human-readable console encoder at debug level.
func New(verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// For narrows a root logger to a named subsystem. Passing a nil logger
// returns a no-op logger, so callers in tests can skip wiring one up.
func For(logger *zap.Logger, category Category) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(string(category))
}
