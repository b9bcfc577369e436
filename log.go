package jls

import "go.uber.org/zap"

// newDefaultLogger returns the logger used when a caller does not supply one
// via WriterOptions/ReaderOptions: a no-op logger, so the library is silent
// unless the caller opts in to structured logging.
func newDefaultLogger() *zap.Logger {
	return zap.NewNop()
}

// withSignal returns a child logger tagged with the signal it's reporting
// on, mirroring the module-tagging convention used elsewhere for
// per-component loggers.
func withSignal(log *zap.Logger, signalID uint16) *zap.Logger {
	return log.With(zap.Uint16("signal_id", signalID))
}
