package logging

// Logger is the printf-style logger shared by every watchdog package.
// Entries below the process-wide threshold are discarded before formatting.
type Logger interface {
	LogLevelf(level Level, format string, args ...interface{})
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// WithTarget returns a logger whose entries carry the target identity field.
	WithTarget(target string) Logger

	Sync() error
}
