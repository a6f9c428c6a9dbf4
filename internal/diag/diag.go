// Package diag provides the internal diagnostic logger: candidate
// classification and build/run command tracing that is never shown to
// the user by default, only surfaced via zap's structured fields when
// --verbose raises the level.
//
// Grounding: _examples/theRebelliousNerd-codenerd/cmd/nerd/main.go's
// PersistentPreRunE builds a *zap.Logger from zap.NewProductionConfig,
// raising the level to Debug when its own --verbose flag is set.
package diag

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the diagnostic logger for one run, at Info level normally and
// Debug level under --verbose.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// NewNop returns a logger that discards everything. cmd/necessist does not
// use it: every run, --quiet included, builds its logger with New.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
