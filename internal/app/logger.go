package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production always logs JSON for
// the log pipeline; elsewhere LOG_FORMAT picks the handler and the
// level drops to debug.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg == nil || !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	if cfg != nil && (cfg.IsProduction() || cfg.LogFormat == "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
