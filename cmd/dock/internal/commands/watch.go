package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/thalib/dock/cmd/dock/internal/config"
	"github.com/thalib/dock/cmd/dock/internal/constants"
	"github.com/thalib/dock/internal/shutdown"
)

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate the configuration every time it changes",
		Long: `Load the configuration, then load it again after every change and report
the result. A running server is never reloaded. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			zl := a.logger.Zerolog()
			h := shutdown.NewHandler(shutdown.Config{
				Timeout: constants.ShutdownTimeout,
				Logger:  &zl,
			})
			h.RegisterCancel("watch", cancel)
			go h.Start()

			out := cmd.OutOrStdout()
			a.logger.Infof("Watching %s", a.configPath)
			err := config.Watch(ctx, a.configPath, func(opts *config.Options, err error) {
				if err != nil {
					fail(out, err)
					return
				}
				ok(out, "%s is valid (environment %s, %d bind(s))", opts.Source, opts.Environment, len(opts.Listeners))
			}, config.WithFlags(cmd.Flags()))

			// Stop the signal listener if Watch ended on its own.
			h.Trigger()
			h.Wait()
			return err
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}
