// Package commands implements the dock command line.
package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/thalib/dock/cmd/dock/internal/config"
	"github.com/thalib/dock/cmd/dock/internal/constants"
	"github.com/thalib/dock/cmd/dock/internal/logging"
)

// app carries the persistent flags and the logger built from them.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	logger     *logging.Logger
}

// NewRootCmd builds the dock command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "dock",
		Short: "Check, render and launch puma-style server configurations",
		Long: `dock reads a puma-style configuration file (or the same options as YAML),
resolves every option against its documented default and validates it.
It can print the derived filesystem layout, render a new configuration,
report whether the server is running and prepare the process before
handing it to the server runtime.`,
		SilenceErrors:         true,
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Version:               config.Version(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Relative to the caller; launch changes directory later.
			path, err := filepath.Abs(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to resolve config path: %w", err)
			}
			a.configPath = path
			return a.initLogger(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "C", constants.DefaultConfigFile, "path to the configuration file (.rb, .yml or .yaml)")
	pf.StringVar(&a.logLevel, "log-level", string(logging.LevelInfo), "log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", logging.FormatConsole, "log format (simple, console, json)")

	root.AddCommand(
		a.checkCmd(),
		a.pathsCmd(),
		a.initCmd(),
		a.statusCmd(),
		a.launchCmd(),
		a.watchCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fail(root.ErrOrStderr(), err)
		return 1
	}
	return 0
}

func (a *app) initLogger(w io.Writer) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	switch a.logFormat {
	case logging.FormatSimple, logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q (want simple, console or json)", a.logFormat)
	}
	logging.Init(logging.LoggerConfig{
		Level:   level,
		Format:  a.logFormat,
		Output:  w,
		Version: config.Version(),
	})
	a.logger = logging.GetLogger()
	return nil
}

// load reads the configuration with the command's override flags applied.
func (a *app) load(cmd *cobra.Command) (*config.Options, error) {
	opts, err := config.Load(a.configPath, config.WithFlags(cmd.Flags()))
	if err != nil {
		return nil, err
	}
	a.logger.Debugf("Loaded %s", opts.Source)
	return opts, nil
}

var (
	okMark   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failMark = color.New(color.FgRed, color.Bold).SprintFunc()
)

func ok(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", okMark("✓"), fmt.Sprintf(format, args...))
}

func fail(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", failMark("✗"), err)
}
