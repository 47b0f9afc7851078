// Package logx provides the per-step debug logging enabled by the CLI's
// -d/--debug flag. User-facing progress narration stays in fmte; this
// package is for the structured, skippable detail: every database write,
// every skipped directory, every inference miss.
package logx

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/lmittmann/tint"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

// steps counts database-affecting operations performed during a run, for
// parity with the original scanner's debug step counter.
var steps atomic.Int64

// Configure installs a tint handler that emits Debug and above when debug
// is true, and only warnings and above otherwise. Before Configure is
// called, a plain text handler at Warn level is in place.
func Configure(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
	slog.SetDefault(logger)
}

// Step logs a database-affecting operation at Debug level and increments
// the step counter.
func Step(msg string, args ...any) {
	steps.Add(1)
	logger.Debug(msg, args...)
}

// Steps returns the number of Step calls made so far in this process.
func Steps() int64 {
	return steps.Load()
}

// Skip logs a per-directory or per-file failure that must stay isolated
// rather than aborting the run (an inference miss, a prefix miss, a fetch
// failure, a malformed configured regex).
func Skip(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Debug logs at Debug level.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Info logs at Info level.
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Error logs at Error level.
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}
