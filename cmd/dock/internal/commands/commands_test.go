package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalib/dock/cmd/dock/internal/bind"
	"github.com/thalib/dock/cmd/dock/internal/constants"
	"github.com/thalib/dock/cmd/dock/internal/state"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, name := range constants.RuntimeEnvVars {
		t.Setenv(name, "")
	}
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func gitlabConfig(root string) string {
	return `application_path = '` + root + `'
directory application_path
environment 'production'
daemonize true
pidfile "#{application_path}/tmp/pids/puma.pid"
state_path "#{application_path}/tmp/pids/puma.state"
stdout_redirect "#{application_path}/log/puma.stdout.log", "#{application_path}/log/puma.stderr.log"
bind "unix://#{application_path}/tmp/sockets/gitlab.socket"
ENV['SECRET_KEY_BASE'] = "s3cr3t-base"
activate_control_app 'auto', { auth_token: 'hunter2' }
`
}

func TestCheck_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "puma.rb", gitlabConfig("/srv/gitlab/gitlab"))

	out, err := run(t, "check", "-C", path)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ "+path+" is valid")
	assert.Contains(t, out, "pidfile: /srv/gitlab/gitlab/tmp/pids/puma.pid")
	assert.Contains(t, out, "environment: production")
	assert.Contains(t, out, "url: unix:///srv/gitlab/gitlab/tmp/sockets/pumactl.sock")
	assert.Contains(t, out, constants.RedactedPlaceholder)
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cr3t-base")
}

func TestCheck_ShowSecretsAndText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "puma.rb", gitlabConfig("/srv/app"))

	out, err := run(t, "check", "-C", path, "--show-secrets")
	require.NoError(t, err)
	assert.Contains(t, out, "hunter2")

	out, err = run(t, "check", "-C", path, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "bind")
	assert.Contains(t, out, "unix:///srv/app/tmp/sockets/gitlab.socket")
	assert.Contains(t, out, "SECRET_KEY_BASE="+constants.RedactedPlaceholder)
}

func TestCheck_Overrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "puma.rb", gitlabConfig("/srv/app"))

	out, err := run(t, "check", "-C", path, "--daemonize=false", "-e", "staging")
	require.NoError(t, err)
	assert.Contains(t, out, "daemonize: false")
	assert.Contains(t, out, "environment: staging")
}

func TestCheck_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := writeFile(t, dir, "bad.rb", "bind 'http://0.0.0.0:80'\n")
	_, err := run(t, "check", "-C", bad)
	assert.True(t, errors.Is(err, bind.ErrUnsupportedScheme), "got %v", err)

	_, err = run(t, "check", "-C", filepath.Join(dir, "missing.rb"))
	assert.Error(t, err)

	ok := writeFile(t, dir, "ok.rb", "")
	out, err := run(t, "check", "-C", ok, "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
	assert.NotContains(t, out, "✓", "nothing is reported valid before the format is checked")

	_, err = run(t, "check", "-C", ok, "--log-level", "loud")
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	out, err := run(t, "paths", "/srv/gitlab/gitlab")
	require.NoError(t, err)

	for _, want := range []string{
		"/srv/gitlab/gitlab/tmp/pids/puma.pid",
		"/srv/gitlab/gitlab/tmp/pids/puma.state",
		"/srv/gitlab/gitlab/log/puma.stdout.log",
		"/srv/gitlab/gitlab/log/puma.stderr.log",
		"/srv/gitlab/gitlab/tmp/sockets/gitlab.socket",
	} {
		assert.Contains(t, out, want)
	}

	path := writeFile(t, t.TempDir(), "puma.rb", gitlabConfig("/srv/gitlab/gitlab"))
	fromConfig, err := run(t, "paths", "-C", path)
	require.NoError(t, err)
	assert.Equal(t, out, fromConfig)
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config", "puma.rb")

	out, err := run(t, "init", "/srv/app", "-o", target, "-e", "staging")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ wrote "+target)

	out, err = run(t, "check", "-C", target)
	require.NoError(t, err)
	assert.Contains(t, out, "environment: staging")
	assert.Contains(t, out, "daemonize: true")

	_, err = run(t, "init", "/srv/app", "-o", target)
	assert.Error(t, err, "existing file must not be overwritten")

	_, err = run(t, "init", "/srv/other", "-o", target, "--force")
	assert.NoError(t, err)
}

func TestInit_UnloadableOutputIsRemoved(t *testing.T) {
	dir := t.TempDir()
	// A .yaml name selects the YAML loader, which cannot read the template.
	target := filepath.Join(dir, "dock.yaml")

	out, err := run(t, "init", "/srv/app", "-o", target)
	assert.ErrorContains(t, err, "does not load")
	assert.NotContains(t, out, "✓")
	assert.NoFileExists(t, target)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file left behind")
}

func TestInit_Stdout(t *testing.T) {
	out, err := run(t, "init", "/srv/app", "--daemonize=false")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "#!/usr/bin/env puma"))
	assert.Contains(t, out, "daemonize false")
}

func TestStatus(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, t.TempDir(), "puma.rb", gitlabConfig(root))
	statePath := filepath.Join(root, "tmp", "pids", "puma.state")
	pidPath := filepath.Join(root, "tmp", "pids", "puma.pid")

	_, err := run(t, "status", "-C", path)
	assert.True(t, errors.Is(err, ErrNotRunning), "got %v", err)

	require.NoError(t, os.MkdirAll(filepath.Dir(pidPath), 0755))
	require.NoError(t, os.WriteFile(pidPath, []byte("999999999\n"), 0644))
	_, err = run(t, "status", "-C", path)
	assert.True(t, errors.Is(err, ErrNotRunning), "got %v", err)
	assert.Contains(t, err.Error(), "stale pid file")

	require.NoError(t, state.WriteState(statePath, state.State{PID: os.Getpid(), RunID: "01JNBX3Z5Q0000000000000000", RunningFrom: root}))
	out, err := run(t, "status", "-C", path)
	require.NoError(t, err)
	assert.Contains(t, out, "running (pid")
	assert.Contains(t, out, "run 01JNBX3Z5Q0000000000000000")
}

func TestStatus_NothingConfigured(t *testing.T) {
	path := writeFile(t, t.TempDir(), "puma.rb", "")
	_, err := run(t, "status", "-C", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither state_path nor pidfile")
}

func TestLaunch_DryRun(t *testing.T) {
	path := writeFile(t, t.TempDir(), "puma.rb", gitlabConfig("/srv/gitlab/gitlab"))

	out, err := run(t, "launch", "-C", path, "--dry-run", "--", "bundle", "exec", "puma")
	require.NoError(t, err)

	assert.Contains(t, out, "dir: /srv/gitlab/gitlab")
	assert.Contains(t, out, "require: /srv/gitlab/gitlab\n")
	assert.Contains(t, out, "create: /srv/gitlab/gitlab/tmp/pids")
	assert.Contains(t, out, "env: RAILS_ENV=production")
	assert.Contains(t, out, "env: DOCK_BIND=unix:///srv/gitlab/gitlab/tmp/sockets/gitlab.socket")
	assert.Contains(t, out, "env: DOCK_CONTROL_TOKEN="+constants.RedactedPlaceholder)
	assert.Contains(t, out, "env: SECRET_KEY_BASE="+constants.RedactedPlaceholder)
	assert.Contains(t, out, "daemonize")
	assert.Contains(t, out, "exec: bundle exec puma")
}

func TestLaunch_RequiresCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "puma.rb", "")
	_, err := run(t, "launch", "-C", path)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "0.4")
}

func TestCheck_RelativeConfigPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "puma.rb", gitlabConfig("/srv/app"))
	t.Chdir(dir)

	out, err := run(t, "check", "-C", "puma.rb", "-o", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+filepath.Join(dir, "puma.rb")+" is valid")
}
