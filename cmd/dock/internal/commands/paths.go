package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/thalib/dock/cmd/dock/internal/config"
)

func (a *app) pathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths [ROOT]",
		Short: "Print the derived filesystem layout",
		Long: `Print the pid file, state file, log files and socket of a deployment.
With ROOT, the standard layout under ROOT is printed without reading any
configuration. Without it, the paths come from the configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var l config.Layout
			if len(args) == 1 {
				l = config.NewLayout(args[0])
			} else {
				opts, err := a.load(cmd)
				if err != nil {
					return err
				}
				l = opts.Layout()
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "root\t%s\n", l.Root)
			fmt.Fprintf(tw, "pidfile\t%s\n", orDash(l.PIDFile))
			fmt.Fprintf(tw, "state_path\t%s\n", orDash(l.StateFile))
			fmt.Fprintf(tw, "stdout\t%s\n", orDash(l.StdoutLog))
			fmt.Fprintf(tw, "stderr\t%s\n", orDash(l.StderrLog))
			fmt.Fprintf(tw, "socket\t%s\n", orDash(l.Socket))
			return tw.Flush()
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}
