// Package state reads and writes the state file that control tools use to
// find a running server.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thalib/dock/cmd/dock/internal/constants"
	"github.com/thalib/dock/cmd/dock/internal/daemon"
	"gopkg.in/yaml.v3"
)

// State is the content of a state file.
type State struct {
	PID              int       `yaml:"pid"`
	RunID            string    `yaml:"run_id,omitempty"`
	ControlURL       string    `yaml:"control_url,omitempty"`
	ControlAuthToken string    `yaml:"control_auth_token,omitempty"`
	RunningFrom      string    `yaml:"running_from"`
	StartedAt        time.Time `yaml:"started_at,omitempty"`
}

// ErrNoPID is returned for a state file without a pid.
var ErrNoPID = errors.New("state file has no pid")

// WriteState writes s to path as a single YAML document. The file is replaced
// atomically and is readable by the owner only, as it may carry the control
// auth token.
func WriteState(path string, s State) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Chmod(constants.StatePermissions); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set state file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// ReadState parses the state file at path.
func ReadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if s.PID <= 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPID)
	}
	return &s, nil
}

// RemoveState removes the state file; a missing file is not an error.
func RemoveState(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// Inspect reads the state file and reports whether the recorded process is
// alive.
func Inspect(path string) (*State, bool, error) {
	s, err := ReadState(path)
	if err != nil {
		return nil, false, err
	}
	return s, daemon.IsRunning(s.PID), nil
}
