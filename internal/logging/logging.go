// =============================================================================
// shopinvoice - Logging
// =============================================================================
//
// Every command logs through a single structured slog logger. Records are
// written as key=value text to the given writer (stderr in the CLI) and carry
// the store name so interleaved runs for several shops stay readable.
//
// LEVELS:
//   - Default: warnings and errors only
//   - --verbose: progress messages at info level as well
//
// =============================================================================

package logging

import (
	"io"
	"log/slog"
	"math"
)

// StoreKey is the attribute naming the shop on every record.
const StoreKey = "store"

// New creates the logger used by the commands and installs it as the slog
// default so packages that fall back to slog.Default() share its settings.
//
// PARAMETERS:
//   - w: Destination for log records
//   - store: Shop name attached to every record; omitted when empty
//   - verbose: Log info records too
//
// RETURNS:
//   - *slog.Logger: The configured logger
func New(w io.Writer, store string, verbose bool) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: Level(verbose),
	}))
	if store != "" {
		logger = logger.With(StoreKey, store)
	}
	slog.SetDefault(logger)
	return logger
}

// Level returns the minimum level logged for the verbosity setting.
func Level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}
