package constants

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestPermissionConstants verifies that file permission constants are defined correctly.
func TestPermissionConstants(t *testing.T) {
	assert.Equal(t, os.FileMode(0755), DirPermissions)
	assert.Equal(t, os.FileMode(0644), FilePermissions)
	assert.Equal(t, os.FileMode(0600), StatePermissions)
}

// TestTimeoutConstants verifies that timeout constants are defined with expected values.
func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant time.Duration
		expected time.Duration
	}{
		{"Shutdown timeout", ShutdownTimeout, 5 * time.Second},
		{"Watch debounce", WatchDebounce, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.constant)
		})
	}
}

// TestPathSuffixes verifies the layout suffixes are relative.
func TestPathSuffixes(t *testing.T) {
	for _, suffix := range []string{
		PIDFileSuffix, StateFileSuffix, StdoutLogSuffix, StderrLogSuffix, SocketSuffix, ControlSocketSuffix,
	} {
		assert.NotRegexp(t, "^/", suffix, "suffix must be relative")
	}
}

// TestRuntimeEnvVarsOrder verifies the environment lookup order.
func TestRuntimeEnvVarsOrder(t *testing.T) {
	assert.Equal(t, []string{"APP_ENV", "RACK_ENV", "RAILS_ENV"}, RuntimeEnvVars)
}
