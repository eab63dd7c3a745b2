// Package logging provides structured logging for wormhole processes.
//
// It wraps Go's log/slog with a JSON handler. Every process that takes part in
// message passing (host application, extension, companion) can write its own
// log file into a directory of its choosing, which makes it possible to line
// up a write in one process with the listener invocation in another.
//
// # Context Propagation
//
// Child loggers carry persistent attributes:
//
//	logger := logging.NopLogger()
//	fileLog := logger.WithTransport("file")
//	fileLog.WithIdentifier("button").Warn("write failed", "error", err)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"write failed","transport":"file","identifier":"button","error":"..."}
//
// # Thread Safety
//
// [Logger] is safe for concurrent use. Child loggers share the underlying
// writer.
package logging
