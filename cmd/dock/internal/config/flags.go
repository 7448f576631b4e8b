package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagKeys maps CLI flag names to configuration keys.
var FlagKeys = map[string]string{
	"directory":   "directory",
	"environment": "environment",
	"daemonize":   "daemonize",
	"pidfile":     "pidfile",
	"state":       "state_path",
	"bind":        "bind",
	"workers":     "workers",
	"quiet":       "quiet",
}

// WithFlags binds the flags of fs named in FlagKeys. Viper only takes a
// flag's value when the flag was set on the command line.
func WithFlags(fs *pflag.FlagSet) Override {
	return func(v *viper.Viper) error {
		for name, key := range FlagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
		return nil
	}
}

// RegisterFlags adds the override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("directory", "D", "", "override the application directory")
	fs.StringP("environment", "e", "", "override the runtime environment")
	fs.BoolP("daemonize", "d", false, "override daemonize")
	fs.String("pidfile", "", "override the pid file path")
	fs.String("state", "", "override the state file path")
	fs.StringSliceP("bind", "b", nil, "override the bind URIs (repeatable)")
	fs.IntP("workers", "w", 0, "override the worker count")
	fs.BoolP("quiet", "q", false, "override quiet")
}
