// Package render writes configuration templates for an application root.
package render

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/thalib/dock/cmd/dock/internal/bind"
	"github.com/thalib/dock/cmd/dock/internal/config"
)

//go:embed puma.rb.tmpl
var pumaTpl string

var tmpl = template.Must(template.New("puma.rb").Funcs(template.FuncMap{
	"sq":  singleQuote,
	"dq":  doubleQuote,
	"dqs": escapeDouble,
}).Parse(pumaTpl))

// RenderOptions selects the active values of the rendered file.
type RenderOptions struct {
	// Environment defaults to "production".
	Environment string
	Daemonize   bool
	// Append sets the third stdout_redirect argument.
	Append bool
	// RelativeURLRoot, when set, is exported as RAILS_RELATIVE_URL_ROOT.
	RelativeURLRoot string
	// Suffixes default to config.DefaultSuffixes().
	Suffixes *config.LayoutSuffixes
}

// ErrInvalidRoot is returned for a root that is empty, relative or "/".
var ErrInvalidRoot = errors.New("application root must be an absolute directory other than /")

type data struct {
	Root            string
	Environment     string
	Daemonize       bool
	Append          bool
	RelativeURLRoot string
	Suffixes        config.LayoutSuffixes
	Defaults        any
	DefaultBind     string
}

// Render writes a commented configuration file whose active directives
// describe the layout under root. Loading the output yields
// config.NewLayout(root) for the same suffixes.
func Render(w io.Writer, root string, opts RenderOptions) error {
	root = strings.TrimRight(root, "/")
	if root == "" || !strings.HasPrefix(root, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidRoot, root)
	}

	d := data{
		Root:            root,
		Environment:     opts.Environment,
		Daemonize:       opts.Daemonize,
		Append:          opts.Append,
		RelativeURLRoot: opts.RelativeURLRoot,
		Suffixes:        config.DefaultSuffixes(),
		Defaults:        config.Defaults,
		DefaultBind:     bind.Default,
	}
	if d.Environment == "" {
		d.Environment = "production"
	}
	if opts.Suffixes != nil {
		d.Suffixes = *opts.Suffixes
	}
	d.Suffixes = trimSuffixes(d.Suffixes)

	if err := tmpl.Execute(w, d); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}
	return nil
}

func trimSuffixes(s config.LayoutSuffixes) config.LayoutSuffixes {
	for _, p := range []*string{&s.PIDFile, &s.StateFile, &s.StdoutLog, &s.StderrLog, &s.Socket} {
		*p = strings.TrimLeft(*p, "/")
	}
	return s
}

// singleQuote renders s as a '...' literal.
func singleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// escapeDouble escapes s for the inside of a "..." literal, including #
// so that no interpolation is introduced.
func escapeDouble(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `#`, `\#`, "\n", `\n`)
	return r.Replace(s)
}

func doubleQuote(s string) string {
	return `"` + escapeDouble(s) + `"`
}
