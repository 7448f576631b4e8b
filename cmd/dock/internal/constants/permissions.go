package constants

import "os"

// File and directory permission constants used for creating files and directories.
// These constants ensure consistent permission settings across the application.
const (
	// DirPermissions is the default permission mode for creating directories.
	// Value: 0755 (rwxr-xr-x) - Owner: read/write/execute, Group/Others: read/execute
	// Used in: daemon/daemon.go, logging/logger.go, preflight/preflight.go
	DirPermissions os.FileMode = 0755

	// FilePermissions is the default permission mode for creating regular files.
	// Value: 0644 (rw-r--r--) - Owner: read/write, Group/Others: read-only
	// Used in: daemon/daemon.go, daemon/redirect.go, logging/logger.go, state/state.go
	FilePermissions os.FileMode = 0644

	// StatePermissions is the permission mode for the state file.
	// Value: 0600 (rw-------) because the file may carry the control auth token.
	// Used in: state/state.go
	StatePermissions os.FileMode = 0600
)
