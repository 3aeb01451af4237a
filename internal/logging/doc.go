// Package logging provides structured logging for Ari dashboard sessions.
//
// Logs are JSON lines written by log/slog, either to stderr or to
// {sessionDir}/debug.log with optional size-based rotation. Child loggers
// created with WithSession, WithComponent, WithWidget or With carry persistent
// attributes and share the parent's writer and level.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. [RotatingWriter]
// serializes writes and rotation with a mutex.
//
// # Basic Usage
//
//	logger, err := logging.NewLoggerWithRotation(dir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	routerLog := logger.WithSession(id).WithComponent("router")
//	routerLog.Warn("message evicted", "target", "thinking", "seq", 42)
//
// # Runtime Level Changes
//
// The level is stored in a slog.LevelVar. SetLevel on any logger changes the
// level for the whole family, which lets configuration hot reload adjust
// verbosity without rebuilding the component graph.
package logging
