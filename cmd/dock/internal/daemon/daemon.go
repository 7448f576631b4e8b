// Package daemon handles the process-level side of a configuration: detaching
// from the terminal, recording the pid, redirecting output and handing the
// process over to the server binary.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/thalib/dock/cmd/dock/internal/constants"
	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned when the pid file names a live process.
var ErrAlreadyRunning = errors.New("process already running")

// Config holds daemon configuration
type Config struct {
	// PIDFile is the path to the PID file, empty for none
	PIDFile string

	// WorkDir is the working directory for the daemon
	WorkDir string

	// Args is the command line of the child, os.Args when empty
	Args []string
}

// IsDaemon reports whether this process is the detached child of Daemonize.
func IsDaemon() bool {
	return os.Getenv(constants.EnvDaemonized) == "1"
}

// Daemonize detaches the process from the terminal and runs in background.
// The binary is started again in a new session with a marker in its
// environment; the parent exits. In the child, Daemonize returns nil at once.
func Daemonize(config Config) error {
	if IsDaemon() {
		return nil
	}

	if _, err := Spawn(config); err != nil {
		return err
	}

	os.Exit(0)
	return nil // Unreachable but required for type-checker
}

// Spawn starts the detached child and returns its pid.
func Spawn(config Config) (int, error) {
	args := config.Args
	if len(args) == 0 {
		args = os.Args
	}
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to locate executable: %w", err)
	}
	dir := config.WorkDir
	if dir == "" {
		dir = constants.DefaultWorkingDirectory
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	pid, err := syscall.ForkExec(exe, args, &syscall.ProcAttr{
		Dir:   dir,
		Env:   markedEnv(os.Environ()),
		Files: []uintptr{devNull.Fd(), os.Stdout.Fd(), os.Stderr.Fd()},
		Sys: &syscall.SysProcAttr{
			Setsid: true, // Create new session
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fork process: %w", err)
	}
	return pid, nil
}

// markedEnv returns env with the daemon marker set. An inherited marker is
// dropped first since the first duplicate wins.
func markedEnv(env []string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if !strings.HasPrefix(kv, constants.EnvDaemonized+"=") {
			out = append(out, kv)
		}
	}
	return append(out, constants.EnvDaemonized+"=1")
}

// ReadPIDFile returns the pid recorded in pidFile.
func ReadPIDFile(pidFile string) (int, error) {
	content, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s: %q", pidFile, strings.TrimSpace(string(content)))
	}
	return pid, nil
}

// IsRunning reports whether a process with pid exists. A process owned by
// another user counts as running.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// WritePIDFile writes the current process ID to the PID file.
// A file naming a live process is an error; a stale or unreadable one is
// replaced.
func WritePIDFile(pidFile string) error {
	return writePID(pidFile, os.Getpid())
}

func writePID(pidFile string, pid int) error {
	dir := filepath.Dir(pidFile)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	if old, err := ReadPIDFile(pidFile); err == nil && old != pid && IsRunning(old) {
		return fmt.Errorf("%w with PID %d (%s)", ErrAlreadyRunning, old, pidFile)
	}

	content := []byte(fmt.Sprintf("%d\n", pid))
	if err := os.WriteFile(pidFile, content, constants.FilePermissions); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// RemovePIDFile removes the PID file
func RemovePIDFile(pidFile string) error {
	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}
