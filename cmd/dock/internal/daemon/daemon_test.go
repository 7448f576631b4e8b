package daemon

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalib/dock/cmd/dock/internal/constants"
	"golang.org/x/sys/unix"
)

const envChildReport = "DOCK_TEST_CHILD_REPORT"

// TestDaemonChild is the process started by TestSpawn; it does nothing in a
// normal test run.
func TestDaemonChild(t *testing.T) {
	report := os.Getenv(envChildReport)
	if report == "" {
		return
	}
	wd, _ := os.Getwd()
	err := Daemonize(Config{})
	content := strings.Join([]string{wd, strconv.FormatBool(IsDaemon()), strconv.FormatBool(err == nil)}, "\n")
	_ = os.WriteFile(report, []byte(content), 0644)
	os.Exit(0)
}

// TestSpawn tests that the detached child starts in the configured directory
// with the marker set, and that Daemonize is a no-op there
func TestSpawn(t *testing.T) {
	workDir := t.TempDir()
	report := filepath.Join(t.TempDir(), "report")
	t.Setenv(envChildReport, report)
	// An inherited marker must not shadow the one Spawn sets.
	t.Setenv(constants.EnvDaemonized, "")

	pid, err := Spawn(Config{
		WorkDir: workDir,
		Args:    []string{os.Args[0], "-test.run=^TestDaemonChild$"},
	})
	require.NoError(t, err)
	var ws unix.WaitStatus
	_, err = unix.Wait4(pid, &ws, 0, nil)
	require.NoError(t, err)

	content, err := os.ReadFile(report)
	require.NoError(t, err, "child did not report")
	lines := strings.Split(string(content), "\n")
	require.Len(t, lines, 3, "report %q", content)

	want, err := filepath.EvalSymlinks(workDir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)
	assert.Equal(t, want, got, "child working directory")
	assert.Equal(t, "true", lines[1], "child sees the daemon marker")
	assert.Equal(t, "true", lines[2], "Daemonize in the child returns nil without forking")
}

func TestMarkedEnv(t *testing.T) {
	env := markedEnv([]string{"PATH=/usr/bin", constants.EnvDaemonized + "=", "HOME=/root"})
	assert.Equal(t, []string{"PATH=/usr/bin", "HOME=/root", constants.EnvDaemonized + "=1"}, env)
}

// TestWritePIDFile_FailedDirCreation tests PID file creation with invalid directory
func TestWritePIDFile_FailedDirCreation(t *testing.T) {
	blockingFile := filepath.Join(t.TempDir(), "blocking")
	require.NoError(t, os.WriteFile(blockingFile, []byte("block"), 0644))

	assert.Error(t, WritePIDFile(filepath.Join(blockingFile, "subdir", "test.pid")))
}

// TestWritePIDFile_StalePIDFile tests replacement of stale PID files
func TestWritePIDFile_StalePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "tmp", "pids", "puma.pid")
	require.NoError(t, os.MkdirAll(filepath.Dir(pidFile), 0755))
	require.NoError(t, os.WriteFile(pidFile, []byte("999999999\n"), 0644))

	require.NoError(t, WritePIDFile(pidFile), "stale PID file is replaced")

	pid, err := ReadPIDFile(pidFile)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

// TestWritePIDFile_InvalidPIDContent tests handling of invalid PID file content
func TestWritePIDFile_InvalidPIDContent(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("invalid-pid\n"), 0644))

	_, err := ReadPIDFile(pidFile)
	assert.Error(t, err)
	assert.NoError(t, WritePIDFile(pidFile), "invalid PID content is replaced")
}

// TestWritePIDFile_AlreadyRunning tests that a live process is not clobbered
func TestWritePIDFile_AlreadyRunning(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	pidFile := filepath.Join(t.TempDir(), "test.pid")
	live := strconv.Itoa(cmd.Process.Pid)
	require.NoError(t, os.WriteFile(pidFile, []byte(live+"\n"), 0644))

	require.ErrorIs(t, WritePIDFile(pidFile), ErrAlreadyRunning)

	content, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	assert.Equal(t, live, strings.TrimSpace(string(content)), "PID file was overwritten")
}

// TestWritePIDFile_OwnPID tests that rewriting our own pid is allowed
func TestWritePIDFile_OwnPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")
	require.NoError(t, WritePIDFile(pidFile))
	assert.NoError(t, WritePIDFile(pidFile))
}

func TestRemovePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")
	require.NoError(t, WritePIDFile(pidFile))
	require.NoError(t, RemovePIDFile(pidFile))
	assert.NoFileExists(t, pidFile)
	// Removing twice is not an error
	assert.NoError(t, RemovePIDFile(pidFile))
}

func TestIsRunning(t *testing.T) {
	assert.True(t, IsRunning(os.Getpid()))
	assert.False(t, IsRunning(0))
	assert.False(t, IsRunning(-1))
	assert.False(t, IsRunning(999999999))
}

func TestIsDaemon(t *testing.T) {
	t.Setenv(constants.EnvDaemonized, "")
	assert.False(t, IsDaemon())
	t.Setenv(constants.EnvDaemonized, "1")
	assert.True(t, IsDaemon())
	// In the child Daemonize is a no-op.
	assert.NoError(t, Daemonize(Config{}))
}

func TestOpenLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "puma.stdout.log")

	write := func(appendMode bool, s string) {
		t.Helper()
		f, err := OpenLog(path, appendMode)
		require.NoError(t, err)
		defer f.Close()
		_, err = f.WriteString(s)
		require.NoError(t, err)
	}

	write(false, "first\n")
	write(true, "second\n")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(content), "appended")

	write(false, "third\n")
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "third\n", string(content), "truncated")
}

func TestExec_MissingBinary(t *testing.T) {
	assert.Error(t, Exec([]string{"dock-no-such-binary"}, nil))
	assert.Error(t, Exec(nil, nil), "empty argv")
}
