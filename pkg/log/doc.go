/*
Package log provides structured logging for FleetLink built on zerolog.

Init configures the global logger once at startup (console output for
interactive use, JSON for machine consumption). Components obtain child
loggers via WithComponent so every line carries its origin:

	logger := log.WithComponent("cache")
	logger.Warn().Err(err).Msg("cache file unreadable, starting empty")

The package-level helpers (Info, Warn, Error, ...) cover the simple cases.
*/
package log
