package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/thalib/dock/cmd/dock/internal/config"
	"github.com/thalib/dock/cmd/dock/internal/constants"
	"gopkg.in/yaml.v3"
)

func (a *app) checkCmd() *cobra.Command {
	var output string
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Parse and validate the configuration and print the effective options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case "yaml", "text", "none":
			default:
				return fmt.Errorf("unknown output format %q (want yaml, text or none)", output)
			}

			opts, err := a.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ok(out, "%s is valid", opts.Source)

			if !showSecrets {
				opts = redact(opts)
			}
			switch output {
			case "yaml":
				return printYAML(out, opts)
			case "text":
				return printSummary(out, opts)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml, text, none)")
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print tokens and sensitive environment values")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// redact returns a copy of opts with the control token and sensitive
// environment values replaced.
func redact(opts *config.Options) *config.Options {
	c := *opts
	if c.Control.AuthToken != "" {
		c.Control.AuthToken = constants.RedactedPlaceholder
	}
	if len(opts.Env) > 0 {
		c.Env = make(map[string]string, len(opts.Env))
		for k, v := range opts.Env {
			if isSensitive(k) {
				v = constants.RedactedPlaceholder
			}
			c.Env[k] = v
		}
	}
	return &c
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, f := range constants.SensitiveFields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}
	return enc.Close()
}

func printSummary(w io.Writer, opts *config.Options) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k string, v any) { fmt.Fprintf(tw, "%s\t%v\n", k, v) }

	row("directory", opts.Directory)
	row("environment", opts.Environment)
	row("daemonize", opts.Daemonize)
	row("pidfile", orDash(opts.PIDFile))
	row("state_path", orDash(opts.StatePath))
	row("stdout", orDash(opts.Redirect.Stdout))
	row("stderr", orDash(opts.Redirect.Stderr))
	row("threads", fmt.Sprintf("%d, %d", opts.Threads.Min, opts.Threads.Max))
	row("workers", opts.Workers)
	for _, b := range opts.Listeners {
		row("bind", b.String())
	}
	if opts.Control.Enabled() {
		row("control", opts.Control.URL)
	}
	for _, k := range opts.EnvKeys {
		row("env", k+"="+opts.Env[k])
	}
	for _, h := range opts.Hooks {
		row("hook", fmt.Sprintf("%s (line %d)", h.Name, h.Line))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
