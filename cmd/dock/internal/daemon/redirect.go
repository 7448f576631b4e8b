package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/thalib/dock/cmd/dock/internal/constants"
	"golang.org/x/sys/unix"
)

// Redirect points the process's stdout and stderr at files. An empty path
// leaves that stream alone. Files are truncated unless appendMode is set.
// The descriptors survive Exec.
func Redirect(stdout, stderr string, appendMode bool) error {
	if stdout != "" {
		if err := redirectFD(stdout, int(os.Stdout.Fd()), appendMode); err != nil {
			return fmt.Errorf("stdout: %w", err)
		}
	}
	if stderr != "" {
		if err := redirectFD(stderr, int(os.Stderr.Fd()), appendMode); err != nil {
			return fmt.Errorf("stderr: %w", err)
		}
	}
	return nil
}

func redirectFD(path string, fd int, appendMode bool) error {
	f, err := OpenLog(path, appendMode)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Dup2(int(f.Fd()), fd); err != nil {
		return fmt.Errorf("failed to redirect to %s: %w", path, err)
	}
	return nil
}

// OpenLog opens a redirection target, creating its directory.
func OpenLog(path string, appendMode bool) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, constants.FilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// Exec replaces the current process with argv[0], searched in PATH.
// It only returns on failure.
func Exec(argv []string, env []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("no command given")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return err
	}
	if err := unix.Exec(path, argv, env); err != nil {
		return fmt.Errorf("failed to exec %s: %w", path, err)
	}
	return nil
}
