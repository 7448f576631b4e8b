package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/thalib/dock/cmd/dock/internal/config"
	"github.com/thalib/dock/cmd/dock/internal/constants"
	"github.com/thalib/dock/cmd/dock/internal/render"
)

func (a *app) initCmd() *cobra.Command {
	var (
		ro     render.RenderOptions
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init ROOT",
		Short: "Render a configuration file for an application root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var buf bytes.Buffer
			if err := render.Render(&buf, args[0], ro); err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}

			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}
			if err := os.MkdirAll(filepath.Dir(output), constants.DirPermissions); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			if err := writeVerified(output, buf.Bytes()); err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "wrote %s", output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ro.Environment, "environment", "e", "production", "environment directive")
	f.BoolVarP(&ro.Daemonize, "daemonize", "d", true, "daemonize directive")
	f.BoolVar(&ro.Append, "append", false, "append to the stdout/stderr logs instead of truncating")
	f.StringVar(&ro.RelativeURLRoot, "relative-url-root", "", "export RAILS_RELATIVE_URL_ROOT")
	f.StringVarP(&output, "output", "o", "-", "file to write, - for stdout")
	f.BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// writeVerified writes content next to path, loads it, and only then renames
// it into place. A file that does not load is removed. The temporary name
// keeps the extension since it selects the config format.
func writeVerified(path string, content []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".dock-init-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	_, err = f.Write(content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp, constants.FilePermissions); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	// The rendered file must load; anything else is a bug in the template
	// or an output name that selects another format.
	if _, err := config.Load(tmp); err != nil {
		return fmt.Errorf("rendered configuration does not load: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
