package logger

// Logger is the minimal structured logging interface the engine depends on.
// Implementations accept alternating key/value pairs as variadic arguments,
// which keeps the interface small and trivial to mock in tests.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}
