package constants

import "time"

// Timeout and duration constants used throughout the application.
const (
	// ShutdownTimeout is the maximum time allowed for graceful shutdown of the
	// watch loop.
	// Used in: commands/watch.go
	// Default: 5 seconds
	ShutdownTimeout = 5 * time.Second

	// WatchDebounce collapses bursts of write events from editors into a single
	// reload.
	// Used in: config/watch.go
	// Default: 100 milliseconds
	WatchDebounce = 100 * time.Millisecond
)
