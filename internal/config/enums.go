package config

// LogLevel represents the logging level for the application.
type LogLevel string

const (
	// LogLevelDebug is the debug logging level, providing detailed information.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the informational logging level, providing general information.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the warning logging level, indicating potential issues.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the error logging level, indicating serious issues.
	LogLevelError LogLevel = "error"
)

// DatabaseDriver represents the audit database backend in use.
type DatabaseDriver string

const (
	// DatabaseDriverSQLite is the SQLite database driver (the default; a
	// single node's audit log has no business needing a network database).
	DatabaseDriverSQLite DatabaseDriver = "sqlite"
)
