// Package logging provides structured logging for lance.
//
// This package wraps Go's log/slog to provide JSON-formatted logs that can
// be filtered after the fact, which is how lifecycle problems (a stuck
// poll, a deletion that never fired) are diagnosed.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (session ID, component)
//   - Size-based rotation with gzip-compressed backups
//   - Reading, filtering, and rendering of past logs (lance logs)
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(logDir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithSession("abc123").WithComponent("poller")
//	log.Info("status applied", "phase", "processing", "seq", 4)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"status applied","session_id":"abc123","component":"poller","phase":"processing","seq":4}
//
// # Log Rotation
//
// Rotated files are named lance.log.1, lance.log.2, and so on, where .1 is
// the most recent backup. With compression enabled they become
// lance.log.1.gz and so on.
//
// # Reading Logs
//
//	entries, err := logging.ReadLogs(logDir)
//	errs := logging.FilterLogs(entries, logging.LogFilter{Level: "WARN", SessionID: "abc123"})
//	_ = logging.WriteEntries(os.Stdout, errs, "text")
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a buffer to
// assert on emitted entries.
package logging
