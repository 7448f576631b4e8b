// Package launch prepares the process described by a configuration and hands
// it over to the server runtime with exec.
package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/thalib/dock/cmd/dock/internal/bind"
	"github.com/thalib/dock/cmd/dock/internal/config"
	"github.com/thalib/dock/cmd/dock/internal/constants"
	"github.com/thalib/dock/cmd/dock/internal/daemon"
	"github.com/thalib/dock/cmd/dock/internal/logging"
	"github.com/thalib/dock/cmd/dock/internal/runid"
	"github.com/thalib/dock/cmd/dock/internal/state"
	"github.com/thalib/dock/internal/preflight"
)

// Step is one stage of a launch.
type Step string

const (
	StepPreflight Step = "preflight"
	StepChdir     Step = "chdir"
	StepDaemonize Step = "daemonize"
	StepRedirect  Step = "redirect"
	StepPIDFile   Step = "pidfile"
	StepState     Step = "state"
	StepExec      Step = "exec"
)

// ErrNoCommand is returned when no runtime command was given.
var ErrNoCommand = errors.New("no runtime command given")

// daemonize is replaced in tests; the real one exits the calling process.
var daemonize = daemon.Daemonize

// Export is an environment variable set for the runtime.
type Export struct {
	Name  string
	Value string
}

// Plan is what Run would do, computed without side effects.
type Plan struct {
	Dir     string
	Argv    []string
	Exports []Export
	Steps   []Step
	// Checks are the directories verified or created before anything else.
	Checks []preflight.FileCheck
}

// NewPlan computes the launch plan for opts and argv.
func NewPlan(opts *config.Options, argv []string) (*Plan, error) {
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}

	p := &Plan{
		Dir:    opts.Directory,
		Argv:   append([]string(nil), argv...),
		Checks: preflight.ChecksFor(opts.Directory, writtenPaths(opts)...),
	}

	p.export(constants.EnvRackEnv, opts.Environment)
	p.export(constants.EnvRailsEnv, opts.Environment)
	for _, k := range opts.EnvKeys {
		p.export(k, opts.Env[k])
	}

	uris := make([]string, 0, len(opts.Listeners))
	for _, b := range opts.Listeners {
		uris = append(uris, b.String())
	}
	p.export(constants.EnvBind, strings.Join(uris, " "))
	p.export(constants.EnvThreads, fmt.Sprintf("%d:%d", opts.Threads.Min, opts.Threads.Max))
	p.export(constants.EnvWorkers, strconv.Itoa(opts.Workers))
	if opts.Control.Enabled() {
		p.export(constants.EnvControlURL, opts.Control.URL)
		if opts.Control.AuthToken != "" {
			p.export(constants.EnvControlToken, opts.Control.AuthToken)
		}
	}

	p.Steps = []Step{StepPreflight, StepChdir}
	if opts.Daemonize {
		p.Steps = append(p.Steps, StepDaemonize)
	}
	if opts.Redirect.Enabled() {
		p.Steps = append(p.Steps, StepRedirect)
	}
	if opts.PIDFile != "" {
		p.Steps = append(p.Steps, StepPIDFile)
	}
	if opts.StatePath != "" {
		p.Steps = append(p.Steps, StepState)
	}
	p.Steps = append(p.Steps, StepExec)

	return p, nil
}

// export sets name, replacing an earlier value.
func (p *Plan) export(name, value string) {
	for i := range p.Exports {
		if p.Exports[i].Name == name {
			p.Exports[i].Value = value
			return
		}
	}
	p.Exports = append(p.Exports, Export{Name: name, Value: value})
}

// Has reports whether the plan includes step.
func (p *Plan) Has(step Step) bool {
	for _, s := range p.Steps {
		if s == step {
			return true
		}
	}
	return false
}

// Environ returns base with the plan's exports applied. Exported names
// replace existing entries.
func (p *Plan) Environ(base []string) []string {
	set := make(map[string]bool, len(p.Exports))
	for _, e := range p.Exports {
		set[e.Name] = true
	}
	env := make([]string, 0, len(base)+len(p.Exports))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if !set[name] {
			env = append(env, kv)
		}
	}
	for _, e := range p.Exports {
		env = append(env, e.Name+"="+e.Value)
	}
	return env
}

// writtenPaths lists every file the launch or the runtime writes.
func writtenPaths(opts *config.Options) []string {
	paths := []string{opts.PIDFile, opts.StatePath, opts.Redirect.Stdout, opts.Redirect.Stderr}
	for _, b := range opts.Listeners {
		if b.IsUnix() {
			paths = append(paths, b.Path)
		}
	}
	if opts.Control.Enabled() {
		if b, err := bind.Parse(opts.Control.URL); err == nil && b.IsUnix() {
			paths = append(paths, b.Path)
		}
	}
	return paths
}

// Run performs the plan and replaces the process with argv. It only returns
// on failure. With daemonize set the calling process exits and the detached
// child runs the remaining steps.
func Run(ctx context.Context, opts *config.Options, argv []string, logger *logging.Logger) error {
	plan, err := NewPlan(opts, argv)
	if err != nil {
		return err
	}

	if _, err := preflight.ValidateAndCreate(plan.Checks); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}
	// The detached child re-reads its command line, so it has to start where
	// relative arguments such as --config were given.
	callerDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := os.Chdir(plan.Dir); err != nil {
		return fmt.Errorf("failed to change directory: %w", err)
	}
	// Fail on the terminal rather than in a detached child.
	if _, err := exec.LookPath(argv[0]); err != nil {
		return fmt.Errorf("runtime command: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if plan.Has(StepDaemonize) {
		if !daemon.IsDaemon() {
			logger.Infof("Daemonizing, working directory %s", plan.Dir)
		}
		if err := daemonize(daemon.Config{WorkDir: callerDir}); err != nil {
			return fmt.Errorf("failed to daemonize: %w", err)
		}
	}

	if plan.Has(StepRedirect) {
		if err := daemon.Redirect(opts.Redirect.Stdout, opts.Redirect.Stderr, opts.Redirect.Append); err != nil {
			return fmt.Errorf("failed to redirect output: %w", err)
		}
	}

	started := time.Now()
	id := runid.New(started)
	log := logger.WithFields(map[string]any{
		"run_id":      id,
		"environment": opts.Environment,
	})

	if plan.Has(StepPIDFile) {
		if err := daemon.WritePIDFile(opts.PIDFile); err != nil {
			return err
		}
	}

	if plan.Has(StepState) {
		st := state.State{
			PID:              os.Getpid(),
			RunID:            id,
			ControlURL:       opts.Control.URL,
			ControlAuthToken: opts.Control.AuthToken,
			RunningFrom:      plan.Dir,
			StartedAt:        started.UTC(),
		}
		if err := state.WriteState(opts.StatePath, st); err != nil {
			cleanup(opts, log)
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		cleanup(opts, log)
		return err
	}

	log.Infof("Starting %s", strings.Join(argv, " "))
	if err := daemon.Exec(argv, plan.Environ(os.Environ())); err != nil {
		log.ErrorWithErr("Failed to start runtime", err)
		cleanup(opts, log)
		return err
	}
	return nil
}

// cleanup removes the files written for a launch that did not happen.
func cleanup(opts *config.Options, log *logging.Logger) {
	if opts.PIDFile != "" {
		if err := daemon.RemovePIDFile(opts.PIDFile); err != nil {
			log.Warnf("Failed to remove pid file: %v", err)
		}
	}
	if opts.StatePath != "" {
		if err := state.RemoveState(opts.StatePath); err != nil {
			log.Warnf("Failed to remove state file: %v", err)
		}
	}
}
