package application

import "log/slog"

// ResolveLogger guarantees a non-nil logger so use cases and workers can
// log without nil checks at every call site.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
