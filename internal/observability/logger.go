// Package observability builds the logger and Prometheus metrics shared by
// every stage of a run.
package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/park-access/internal/config"
)

// NewLogger returns the process logger at cfg.LogLevel in cfg.LogFormat and
// installs it as the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
}
