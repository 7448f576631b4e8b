package constants

// Environment variable names read or exported by dock.
const (
	// EnvAppEnv, EnvRackEnv and EnvRailsEnv select the runtime environment
	// before the server is invoked. The first non-empty one wins.
	// Used in: config/config.go, launch/launch.go
	EnvAppEnv   = "APP_ENV"
	EnvRackEnv  = "RACK_ENV"
	EnvRailsEnv = "RAILS_ENV"

	// EnvBind carries the space separated bind URIs to the runtime.
	// Used in: launch/launch.go
	EnvBind = "DOCK_BIND"

	// EnvThreads carries "min:max" to the runtime.
	EnvThreads = "DOCK_THREADS"

	// EnvWorkers carries the worker process count to the runtime.
	EnvWorkers = "DOCK_WORKERS"

	// EnvControlURL and EnvControlToken describe the control endpoint.
	EnvControlURL   = "DOCK_CONTROL_URL"
	EnvControlToken = "DOCK_CONTROL_TOKEN"

	// EnvDaemonized marks a re-executed child so it does not fork again.
	// Used in: daemon/daemon.go
	EnvDaemonized = "DOCK_DAEMONIZED"
)

// RuntimeEnvVars lists the variables that select the runtime environment, in
// lookup order.
var RuntimeEnvVars = []string{EnvAppEnv, EnvRackEnv, EnvRailsEnv}
