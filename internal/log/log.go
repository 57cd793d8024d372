// Package log wraps log/slog with the small set of structured events
// World emits once per step (spec.md §7): which phase ran, and whether
// the conjugate-gradient solve converged before its iteration budget ran
// out. Grounded on the teacher corpus's own slog.Info/slog.Warn field
// convention rather than a bespoke logging type.
package log

import "log/slog"

// Logger is a thin, domain-specific facade over *slog.Logger.
type Logger struct {
	*slog.Logger
}

// New wraps the given handler.
func New(h slog.Handler) *Logger {
	return &Logger{slog.New(h)}
}

// Default wraps slog's package-level default logger.
func Default() *Logger {
	return &Logger{slog.Default()}
}

// Phase logs one step phase at Debug level.
func (l *Logger) Phase(frame int, phase string) {
	l.Debug("phase", "frame", frame, "phase", phase)
}

// SolverResult logs a conjugate-gradient solve's outcome: Debug if it
// converged inside its iteration budget, Warn if it ran to
// maxIterations without dropping below its error tolerance (spec.md §7:
// "non-convergence ... mirrors physical acceptability").
func (l *Logger) SolverResult(frame int, phase string, maxIterations, outIterations int, outError float32) {
	if outIterations >= maxIterations {
		l.Warn("solver did not converge", "frame", frame, "phase", phase, "iterations", outIterations, "error", outError)
		return
	}
	l.Debug("solver converged", "frame", frame, "phase", phase, "iterations", outIterations, "error", outError)
}
