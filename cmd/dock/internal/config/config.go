// Package config provides configuration management for dock.
// A configuration file is either the puma-style DSL (any extension other than
// .yml/.yaml) or YAML using the same keys. Every option has a centralized
// default; a directive that is present overrides it, an absent one leaves it.
// The configuration is read once and is immutable after Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"github.com/thalib/dock/cmd/dock/internal/bind"
	"github.com/thalib/dock/cmd/dock/internal/constants"
	"github.com/thalib/dock/cmd/dock/internal/directive"
)

const (
	// VersionMajor is the major version number
	VersionMajor = 0
	// VersionMinor is the minor version number
	VersionMinor = 4
)

// Version returns the version string in format {major}.{minor}
func Version() string {
	return fmt.Sprintf("%d.%d", VersionMajor, VersionMinor)
}

// Defaults contains all default configuration values
// centralized in one place to avoid hardcoded literals.
// Directory and Environment are resolved at load time, see defaultDirectory
// and defaultEnvironment.
var Defaults = struct {
	Environment string
	Daemonize   bool
	PIDFile     string
	StatePath   string
	Redirect    struct {
		Stdout string
		Stderr string
		Append bool
	}
	Quiet   bool
	Threads struct {
		Min int
		Max int
	}
	Bind           []string
	Workers        int
	WorkerTimeout  int
	Rackup         string
	Tag            string
	RestartCommand string
	PreloadApp     bool
	ControlURL     string
}{
	Environment: "development",
	Daemonize:   false,
	PIDFile:     "",
	StatePath:   "",
	Redirect: struct {
		Stdout string
		Stderr string
		Append bool
	}{
		Stdout: "",
		Stderr: "",
		Append: false,
	},
	Quiet: false,
	Threads: struct {
		Min int
		Max int
	}{
		Min: 0,
		Max: 16,
	},
	Bind:           []string{bind.Default},
	Workers:        0,
	WorkerTimeout:  60, // seconds
	Rackup:         "config.ru",
	Tag:            "",
	RestartCommand: "",
	PreloadApp:     false,
	ControlURL:     "", // control app disabled
}

// Options holds the resolved process configuration.
type Options struct {
	Directory      string          `mapstructure:"directory" yaml:"directory"`
	Environment    string          `mapstructure:"environment" yaml:"environment"`
	Daemonize      bool            `mapstructure:"daemonize" yaml:"daemonize"`
	PIDFile        string          `mapstructure:"pidfile" yaml:"pidfile"`
	StatePath      string          `mapstructure:"state_path" yaml:"state_path"`
	Redirect       RedirectOptions `mapstructure:"stdout_redirect" yaml:"stdout_redirect"`
	Quiet          bool            `mapstructure:"quiet" yaml:"quiet"`
	Threads        ThreadOptions   `mapstructure:"threads" yaml:"threads"`
	Bind           []string        `mapstructure:"bind" yaml:"bind"`
	Workers        int             `mapstructure:"workers" yaml:"workers"`
	WorkerTimeout  int             `mapstructure:"worker_timeout" yaml:"worker_timeout"` // seconds
	Rackup         string          `mapstructure:"rackup" yaml:"rackup"`
	Tag            string          `mapstructure:"tag" yaml:"tag,omitempty"`
	RestartCommand string          `mapstructure:"restart_command" yaml:"restart_command,omitempty"`
	PreloadApp     bool            `mapstructure:"preload_app" yaml:"preload_app"`
	Control        ControlOptions  `mapstructure:"control" yaml:"control"`

	// Env holds variables exported to the runtime, keyed by name.
	Env map[string]string `mapstructure:"-" yaml:"env,omitempty"`
	// EnvKeys keeps Env in declaration order.
	EnvKeys []string `mapstructure:"-" yaml:"-"`
	// Hooks are recorded lifecycle blocks. They are handed to the runtime
	// verbatim and never evaluated here.
	Hooks []directive.Hook `mapstructure:"-" yaml:"-"`
	// Listeners are the parsed Bind entries with unix paths resolved.
	Listeners []bind.Bind `mapstructure:"-" yaml:"-"`
	// Source is the file the options were loaded from.
	Source string `mapstructure:"-" yaml:"-"`
}

// RedirectOptions holds stdout/stderr redirection targets.
type RedirectOptions struct {
	Stdout string `mapstructure:"stdout" yaml:"stdout,omitempty"`
	Stderr string `mapstructure:"stderr" yaml:"stderr,omitempty"`
	Append bool   `mapstructure:"append" yaml:"append"`
}

// Enabled reports whether any stream is redirected.
func (r RedirectOptions) Enabled() bool {
	return r.Stdout != "" || r.Stderr != ""
}

// ThreadOptions holds the per-worker thread pool bounds.
type ThreadOptions struct {
	Min int `mapstructure:"min" yaml:"min"`
	Max int `mapstructure:"max" yaml:"max"`
}

// ControlOptions describes the optional control endpoint.
type ControlOptions struct {
	URL       string `mapstructure:"url" yaml:"url,omitempty"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token,omitempty"`
	NoToken   bool   `mapstructure:"no_token" yaml:"no_token"`
}

// Enabled reports whether the control app is activated.
func (c ControlOptions) Enabled() bool {
	return c.URL != ""
}

// Override adjusts the viper instance after the file has been merged.
// Overrides take precedence over the file.
type Override func(v *viper.Viper) error

// Set returns an Override that forces key to value.
func Set(key string, value any) Override {
	return func(v *viper.Viper) error {
		v.Set(key, value)
		return nil
	}
}

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// Load reads path, applies overrides, resolves relative paths and validates
// the result.
func Load(path string, overrides ...Override) (*Options, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	v, err := newViper()
	if err != nil {
		return nil, err
	}

	var parsed *directive.File
	if isYAML(path) {
		v.SetConfigType("yaml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		parsed, err = directive.ParseFile(path)
		if err != nil {
			return nil, err
		}
		values, err := applyDirectives(parsed)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(values); err != nil {
			return nil, fmt.Errorf("failed to merge directives: %w", err)
		}
	}

	for _, o := range overrides {
		if err := o(v); err != nil {
			return nil, fmt.Errorf("failed to apply override: %w", err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	opts.Source = absPath

	if parsed != nil {
		opts.Env = parsed.Env
		opts.EnvKeys = parsed.EnvKeys
		opts.Hooks = parsed.Hooks
	} else {
		opts.Env, opts.EnvKeys = yamlEnv(v)
	}

	// A directory from the file is relative to the file; the default is the
	// working directory and already absolute.
	if !filepath.IsAbs(opts.Directory) {
		opts.Directory = filepath.Join(filepath.Dir(absPath), opts.Directory)
	}

	if err := validate(&opts); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &opts, nil
}

func newViper() (*viper.Viper, error) {
	dir, err := defaultDirectory()
	if err != nil {
		return nil, err
	}

	v := viper.New()

	// Set default values from centralized Defaults struct
	v.SetDefault("directory", dir)
	v.SetDefault("environment", defaultEnvironment())
	v.SetDefault("daemonize", Defaults.Daemonize)
	v.SetDefault("pidfile", Defaults.PIDFile)
	v.SetDefault("state_path", Defaults.StatePath)
	v.SetDefault("stdout_redirect.stdout", Defaults.Redirect.Stdout)
	v.SetDefault("stdout_redirect.stderr", Defaults.Redirect.Stderr)
	v.SetDefault("stdout_redirect.append", Defaults.Redirect.Append)
	v.SetDefault("quiet", Defaults.Quiet)
	v.SetDefault("threads.min", Defaults.Threads.Min)
	v.SetDefault("threads.max", Defaults.Threads.Max)
	v.SetDefault("bind", Defaults.Bind)
	v.SetDefault("workers", Defaults.Workers)
	v.SetDefault("worker_timeout", Defaults.WorkerTimeout)
	v.SetDefault("rackup", Defaults.Rackup)
	v.SetDefault("tag", Defaults.Tag)
	v.SetDefault("restart_command", Defaults.RestartCommand)
	v.SetDefault("preload_app", Defaults.PreloadApp)
	v.SetDefault("control.url", Defaults.ControlURL)
	v.SetDefault("control.auth_token", "")
	v.SetDefault("control.no_token", false)

	return v, nil
}

func defaultDirectory() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	return dir, nil
}

// defaultEnvironment returns the first non-empty of APP_ENV, RACK_ENV and
// RAILS_ENV, else Defaults.Environment. An environment directive in the file
// still wins over these variables.
func defaultEnvironment() string {
	for _, name := range constants.RuntimeEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return Defaults.Environment
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// yamlEnv reads the env section. Viper lower-cases keys, so names are
// upper-cased back.
func yamlEnv(v *viper.Viper) (map[string]string, []string) {
	raw := v.GetStringMapString("env")
	if len(raw) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(raw))
	keys := make([]string, 0, len(raw))
	for k, val := range raw {
		name := strings.ToUpper(k)
		env[name] = val
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return env, keys
}

// validate checks option ranges and resolves paths against Directory.
func validate(opts *Options) error {
	if strings.TrimSpace(opts.Environment) == "" {
		return fmt.Errorf("environment cannot be empty")
	}

	if opts.Threads.Min < 0 {
		return fmt.Errorf("threads: minimum (%d) cannot be negative", opts.Threads.Min)
	}
	if opts.Threads.Max < 1 {
		return fmt.Errorf("threads: maximum (%d) must be at least 1", opts.Threads.Max)
	}
	if opts.Threads.Min > opts.Threads.Max {
		return fmt.Errorf("threads: minimum (%d) cannot exceed maximum (%d)", opts.Threads.Min, opts.Threads.Max)
	}

	if opts.Workers < 0 {
		return fmt.Errorf("workers (%d) cannot be negative", opts.Workers)
	}
	if opts.WorkerTimeout <= 0 {
		return fmt.Errorf("worker_timeout (%d) must be positive", opts.WorkerTimeout)
	}

	if opts.Redirect.Stderr != "" && opts.Redirect.Stdout == "" {
		return fmt.Errorf("stdout_redirect: stderr target given without stdout target")
	}

	opts.PIDFile = resolvePath(opts.Directory, opts.PIDFile)
	opts.StatePath = resolvePath(opts.Directory, opts.StatePath)
	opts.Redirect.Stdout = resolvePath(opts.Directory, opts.Redirect.Stdout)
	opts.Redirect.Stderr = resolvePath(opts.Directory, opts.Redirect.Stderr)

	if len(opts.Bind) == 0 {
		return fmt.Errorf("at least one bind is required")
	}
	opts.Listeners = make([]bind.Bind, 0, len(opts.Bind))
	for i, raw := range opts.Bind {
		b, err := bind.Parse(raw)
		if err != nil {
			return fmt.Errorf("bind[%d]: %w", i, err)
		}
		opts.Listeners = append(opts.Listeners, b.Resolve(opts.Directory))
	}

	if err := validateControl(opts); err != nil {
		return fmt.Errorf("control: %w", err)
	}

	return nil
}

// validateControl resolves "auto", checks the scheme and fills in a token.
func validateControl(opts *Options) error {
	c := &opts.Control
	if !c.Enabled() {
		return nil
	}

	if c.NoToken && c.AuthToken != "" {
		return fmt.Errorf("auth_token and no_token are mutually exclusive")
	}

	if c.URL == ControlAuto {
		c.URL = "unix://" + joinSuffix(opts.Directory, constants.ControlSocketSuffix)
	}

	b, err := bind.Parse(c.URL)
	if err != nil {
		return err
	}
	if b.Scheme == bind.SchemeSSL {
		return fmt.Errorf("%w: control endpoint must be tcp:// or unix://", bind.ErrUnsupportedScheme)
	}
	c.URL = b.Resolve(opts.Directory).String()

	if !c.NoToken && c.AuthToken == "" {
		c.AuthToken = generateToken()
	}
	return nil
}

// resolvePath appends a relative p to dir the way Layout does, without
// cleaning, so dir stays a literal prefix.
func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return joinSuffix(dir, strings.TrimPrefix(p, "./"))
}
