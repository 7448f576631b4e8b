package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thalib/dock/cmd/dock/internal/config"
	"github.com/thalib/dock/cmd/dock/internal/daemon"
	"github.com/thalib/dock/cmd/dock/internal/state"
)

// ErrNotRunning is returned by status when no live process is recorded.
var ErrNotRunning = errors.New("not running")

func (a *app) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the server recorded in the state or pid file is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if opts.StatePath != "" {
				st, running, err := state.Inspect(opts.StatePath)
				switch {
				case err == nil && running:
					ok(out, "running (pid %d, from %s%s)", st.PID, st.RunningFrom, describeRun(st))
					return nil
				case err == nil:
					return fmt.Errorf("%w: stale state file %s (pid %d)", ErrNotRunning, opts.StatePath, st.PID)
				case !os.IsNotExist(err):
					return err
				}
				a.logger.Debugf("No state file at %s", opts.StatePath)
			}

			if opts.PIDFile == "" {
				if opts.StatePath == "" {
					return errors.New("neither state_path nor pidfile is configured")
				}
				return fmt.Errorf("%w: no state file at %s", ErrNotRunning, opts.StatePath)
			}

			pid, err := daemon.ReadPIDFile(opts.PIDFile)
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: no pid file at %s", ErrNotRunning, opts.PIDFile)
			}
			if err != nil {
				return err
			}
			if !daemon.IsRunning(pid) {
				return fmt.Errorf("%w: stale pid file %s (pid %d)", ErrNotRunning, opts.PIDFile, pid)
			}
			ok(out, "running (pid %d)", pid)
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func describeRun(st *state.State) string {
	if st.RunID == "" {
		return ""
	}
	s := ", run " + st.RunID
	if !st.StartedAt.IsZero() {
		s += ", started " + st.StartedAt.Format("2006-01-02 15:04:05 MST")
	}
	return s
}
