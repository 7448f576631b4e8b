// Package constants provides centralized constant definitions for dock.
// All hardcoded values that are reused across the codebase should be defined here
// to ensure consistency, maintainability, and ease of configuration.
package constants

// Path suffixes of the standard deployment layout. Every derived path is the
// application root joined with one of these suffixes.
// Used in: config/layout.go, render/render.go
const (
	// PIDFileSuffix is where the running process ID is recorded.
	PIDFileSuffix = "tmp/pids/puma.pid"

	// StateFileSuffix is where process state is persisted for control tools.
	StateFileSuffix = "tmp/pids/puma.state"

	// StdoutLogSuffix is the redirection target for standard output.
	StdoutLogSuffix = "log/puma.stdout.log"

	// StderrLogSuffix is the redirection target for standard error.
	StderrLogSuffix = "log/puma.stderr.log"

	// SocketSuffix is the unix-domain socket the server listens on.
	SocketSuffix = "tmp/sockets/gitlab.socket"

	// ControlSocketSuffix is the control endpoint socket used when the control
	// app is activated with the "auto" URL.
	ControlSocketSuffix = "tmp/sockets/pumactl.sock"
)

// Default file locations used by the CLI.
const (
	// DefaultConfigFile is the configuration path used when --config is not given.
	// Used in: commands/root.go
	DefaultConfigFile = "config/puma.rb"

	// DefaultWorkingDirectory is the working directory a daemon moves to when
	// no directory is configured.
	// Used in: daemon/daemon.go
	DefaultWorkingDirectory = "/"
)
