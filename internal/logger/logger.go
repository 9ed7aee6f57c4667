package logger

// Log levels accepted in configuration.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// New returns a logger writing to stdout at the given level.
// Components receive the handle explicitly; there is no package-level instance.
func New(level string) *Logger {
	return newZapLogger(level)
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return newNopLogger()
}

// Named returns a child logger whose entries carry the given name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name)}
}

// With returns a child logger that always adds the given key/value pairs.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(kv...)}
}
