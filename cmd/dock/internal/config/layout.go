package config

import (
	"strings"

	"github.com/thalib/dock/cmd/dock/internal/constants"
)

// LayoutSuffixes are the fixed path suffixes of a deployment layout.
type LayoutSuffixes struct {
	PIDFile   string
	StateFile string
	StdoutLog string
	StderrLog string
	Socket    string
}

// DefaultSuffixes returns the documented suffixes.
func DefaultSuffixes() LayoutSuffixes {
	return LayoutSuffixes{
		PIDFile:   constants.PIDFileSuffix,
		StateFile: constants.StateFileSuffix,
		StdoutLog: constants.StdoutLogSuffix,
		StderrLog: constants.StderrLogSuffix,
		Socket:    constants.SocketSuffix,
	}
}

// Layout is the set of paths derived from one application root.
type Layout struct {
	Root      string
	PIDFile   string
	StateFile string
	StdoutLog string
	StderrLog string
	Socket    string
}

// NewLayout derives the default layout for root.
func NewLayout(root string) Layout {
	return DefaultSuffixes().Layout(root)
}

// Layout derives every path as root + "/" + suffix. Nothing else about the
// options (daemonize, environment, ...) takes part.
func (s LayoutSuffixes) Layout(root string) Layout {
	return Layout{
		Root:      root,
		PIDFile:   joinSuffix(root, s.PIDFile),
		StateFile: joinSuffix(root, s.StateFile),
		StdoutLog: joinSuffix(root, s.StdoutLog),
		StderrLog: joinSuffix(root, s.StderrLog),
		Socket:    joinSuffix(root, s.Socket),
	}
}

// SocketURI is the bind URI for the layout's unix socket.
func (l Layout) SocketURI() string {
	return "unix://" + l.Socket
}

// joinSuffix concatenates without cleaning, so the result is literally the
// root followed by the suffix. A trailing slash on root is not doubled.
func joinSuffix(root, suffix string) string {
	root = strings.TrimRight(root, "/")
	return root + "/" + strings.TrimLeft(suffix, "/")
}

// Layout reports the options as a Layout rooted at Directory. Paths that are
// not configured are empty.
func (o *Options) Layout() Layout {
	l := Layout{
		Root:      o.Directory,
		PIDFile:   o.PIDFile,
		StateFile: o.StatePath,
		StdoutLog: o.Redirect.Stdout,
		StderrLog: o.Redirect.Stderr,
	}
	for _, b := range o.Listeners {
		if b.IsUnix() {
			l.Socket = b.Path
			break
		}
	}
	return l
}
