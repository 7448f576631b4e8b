package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thalib/dock/cmd/dock/internal/config"
	"github.com/thalib/dock/cmd/dock/internal/constants"
	"github.com/thalib/dock/cmd/dock/internal/launch"
)

func (a *app) launchCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "launch [flags] -- COMMAND [ARGS...]",
		Short: "Prepare the process and exec the server runtime",
		Long: `Create the directories the configuration writes into, change to the
application directory, export the environment, daemonize and redirect
output if configured, write the pid and state files, then replace dock
with COMMAND.

Exported to COMMAND: RACK_ENV, RAILS_ENV, ENV[...] assignments from the
configuration, DOCK_BIND, DOCK_THREADS, DOCK_WORKERS and, with the control
app enabled, DOCK_CONTROL_URL and DOCK_CONTROL_TOKEN.`,
		Example: "  dock launch -C config/puma.rb -- bundle exec puma",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.load(cmd)
			if err != nil {
				return err
			}

			if dryRun {
				plan, err := launch.NewPlan(opts, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "dir: %s\n", plan.Dir)
				for _, c := range plan.Checks {
					mode := "create"
					if c.MustExist {
						mode = "require"
					}
					fmt.Fprintf(out, "%s: %s\n", mode, c.Path)
				}
				for _, e := range plan.Exports {
					v := e.Value
					if e.Name == constants.EnvControlToken || isSensitive(e.Name) {
						v = constants.RedactedPlaceholder
					}
					fmt.Fprintf(out, "env: %s=%s\n", e.Name, v)
				}
				steps := make([]string, len(plan.Steps))
				for i, s := range plan.Steps {
					steps[i] = string(s)
				}
				fmt.Fprintf(out, "steps: %s\n", strings.Join(steps, " → "))
				fmt.Fprintf(out, "exec: %s\n", strings.Join(plan.Argv, " "))
				return nil
			}

			return launch.Run(cmd.Context(), opts, args, a.logger)
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print what would be done and exit")
	config.RegisterFlags(cmd.Flags())
	return cmd
}
