package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/thalib/dock/cmd/dock/internal/bind"
	"github.com/thalib/dock/cmd/dock/internal/directive"
)

// ControlAuto is the activate_control_app URL that picks a unix socket under
// the application directory.
const ControlAuto = "auto"

// ErrUnknownDirective is returned for a directive dock does not implement.
var ErrUnknownDirective = errors.New("unknown directive")

// DirectiveError reports a directive whose arguments are invalid.
type DirectiveError struct {
	File string
	Line int
	Name string
	Err  error
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Name, e.Err)
}

func (e *DirectiveError) Unwrap() error {
	return e.Err
}

// HookNames lists the block directives that are recorded.
var HookNames = map[string]bool{
	"on_restart":         true,
	"on_worker_boot":     true,
	"on_worker_shutdown": true,
	"before_fork":        true,
	"after_worker_boot":  true,
}

type handler func(acc *accumulator, args []directive.Value) error

// handlers maps directive names to their semantics.
var handlers = map[string]handler{
	"directory":       stringSetter("directory"),
	"environment":     stringSetter("environment"),
	"pidfile":         stringSetter("pidfile"),
	"state_path":      stringSetter("state_path"),
	"rackup":          stringSetter("rackup"),
	"tag":             stringSetter("tag"),
	"restart_command": stringSetter("restart_command"),
	"daemonize":       boolSetter("daemonize"),
	"quiet":           boolSetter("quiet"),
	"preload_app!":    boolSetter("preload_app"),
	"workers":         intSetter("workers", 0),
	"worker_timeout":  intSetter("worker_timeout", 1),
	"threads":         applyThreads,
	"stdout_redirect": applyRedirect,
	"bind":            applyBind,
	"ssl_bind":        applySSLBind,
	"port":            applyPort,

	"activate_control_app": applyControl,
}

// accumulator collects directive values into the nested map merged into viper.
type accumulator struct {
	values map[string]any
	binds  []string
}

func (a *accumulator) section(name string) map[string]any {
	if m, ok := a.values[name].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	a.values[name] = m
	return m
}

// applyDirectives converts parsed directives into viper config values.
// Directives are applied in order, so a later one wins; bind-like directives
// accumulate and the first of them replaces the default listener.
func applyDirectives(f *directive.File) (map[string]any, error) {
	acc := &accumulator{values: map[string]any{}}

	for _, d := range f.Directives {
		if HookNames[d.Name] {
			return nil, &DirectiveError{File: f.Name, Line: d.Line, Name: d.Name, Err: errors.New("hooks must use a do ... end block")}
		}
		h, ok := handlers[d.Name]
		if !ok {
			return nil, &DirectiveError{File: f.Name, Line: d.Line, Name: d.Name, Err: ErrUnknownDirective}
		}
		if err := h(acc, d.Args); err != nil {
			return nil, &DirectiveError{File: f.Name, Line: d.Line, Name: d.Name, Err: err}
		}
	}

	for _, hk := range f.Hooks {
		if !HookNames[hk.Name] {
			return nil, &DirectiveError{File: f.Name, Line: hk.Line, Name: hk.Name, Err: ErrUnknownDirective}
		}
	}

	if len(acc.binds) > 0 {
		acc.values["bind"] = acc.binds
	}
	return acc.values, nil
}

func argCount(args []directive.Value, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("expected %d argument(s), got %d", lo, len(args))
		}
		return fmt.Errorf("expected %d to %d arguments, got %d", lo, hi, len(args))
	}
	return nil
}

func asString(v directive.Value) (string, error) {
	switch v.Kind {
	case directive.KindString, directive.KindSymbol:
		return v.Str, nil
	default:
		return "", fmt.Errorf("expected a string, got %s", v.Kind)
	}
}

func asInt(v directive.Value) (int, error) {
	switch v.Kind {
	case directive.KindInt:
		return int(v.Int), nil
	case directive.KindString:
		n, err := strconv.Atoi(v.Str)
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", v.Str)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %s", v.Kind)
	}
}

func asBool(v directive.Value) (bool, error) {
	if v.Kind != directive.KindBool {
		return false, fmt.Errorf("expected true or false, got %s", v.Kind)
	}
	return v.Bool, nil
}

func stringSetter(key string) handler {
	return func(acc *accumulator, args []directive.Value) error {
		if err := argCount(args, 1, 1); err != nil {
			return err
		}
		s, err := asString(args[0])
		if err != nil {
			return err
		}
		acc.values[key] = s
		return nil
	}
}

// boolSetter treats a bare directive as true.
func boolSetter(key string) handler {
	return func(acc *accumulator, args []directive.Value) error {
		if err := argCount(args, 0, 1); err != nil {
			return err
		}
		b := true
		if len(args) == 1 {
			var err error
			if b, err = asBool(args[0]); err != nil {
				return err
			}
		}
		acc.values[key] = b
		return nil
	}
}

func intSetter(key string, floor int) handler {
	return func(acc *accumulator, args []directive.Value) error {
		if err := argCount(args, 1, 1); err != nil {
			return err
		}
		n, err := asInt(args[0])
		if err != nil {
			return err
		}
		if n < floor {
			return fmt.Errorf("must be at least %d, got %d", floor, n)
		}
		acc.values[key] = n
		return nil
	}
}

func applyThreads(acc *accumulator, args []directive.Value) error {
	if err := argCount(args, 2, 2); err != nil {
		return err
	}
	lo, err := asInt(args[0])
	if err != nil {
		return err
	}
	hi, err := asInt(args[1])
	if err != nil {
		return err
	}
	threads := acc.section("threads")
	threads["min"] = lo
	threads["max"] = hi
	return nil
}

// applyRedirect handles stdout_redirect(stdout, stderr = nil, append = false).
func applyRedirect(acc *accumulator, args []directive.Value) error {
	if err := argCount(args, 1, 3); err != nil {
		return err
	}
	r := acc.section("stdout_redirect")

	stdout, err := optionalString(args[0])
	if err != nil {
		return err
	}
	r["stdout"] = stdout
	r["stderr"] = ""
	r["append"] = false

	if len(args) > 1 {
		if r["stderr"], err = optionalString(args[1]); err != nil {
			return err
		}
	}
	if len(args) > 2 {
		if r["append"], err = asBool(args[2]); err != nil {
			return err
		}
	}
	return nil
}

func optionalString(v directive.Value) (string, error) {
	if v.Kind == directive.KindNil {
		return "", nil
	}
	return asString(v)
}

func applyBind(acc *accumulator, args []directive.Value) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}
	raw, err := asString(args[0])
	if err != nil {
		return err
	}
	b, err := bind.Parse(raw)
	if err != nil {
		return err
	}
	acc.binds = append(acc.binds, b.String())
	return nil
}

// applySSLBind handles ssl_bind(host, port, opts).
func applySSLBind(acc *accumulator, args []directive.Value) error {
	if err := argCount(args, 3, 3); err != nil {
		return err
	}
	host, err := asString(args[0])
	if err != nil {
		return err
	}
	port := args[1].Text()
	if args[2].Kind != directive.KindHash {
		return fmt.Errorf("expected an options hash, got %s", args[2].Kind)
	}
	opts := make(map[string]string, len(args[2].Hash))
	for _, p := range args[2].Hash {
		opts[p.Key] = p.Value.Text()
	}
	b, err := bind.SSL(host, port, opts)
	if err != nil {
		return err
	}
	acc.binds = append(acc.binds, b.String())
	return nil
}

// applyPort handles port(port, host = nil).
func applyPort(acc *accumulator, args []directive.Value) error {
	if err := argCount(args, 1, 2); err != nil {
		return err
	}
	port, err := asInt(args[0])
	if err != nil {
		return err
	}
	host := ""
	if len(args) == 2 {
		if host, err = optionalString(args[1]); err != nil {
			return err
		}
	}
	b, err := bind.TCP(host, port)
	if err != nil {
		return err
	}
	acc.binds = append(acc.binds, b.String())
	return nil
}

// applyControl handles activate_control_app(url = "auto", opts = {}).
func applyControl(acc *accumulator, args []directive.Value) error {
	if err := argCount(args, 0, 2); err != nil {
		return err
	}
	url := ControlAuto
	var opts directive.Value

	for i, a := range args {
		switch {
		case a.Kind == directive.KindHash && i == len(args)-1:
			opts = a
		case i == 0:
			s, err := asString(a)
			if err != nil {
				return err
			}
			url = s
		default:
			return fmt.Errorf("expected an options hash, got %s", a.Kind)
		}
	}

	c := acc.section("control")
	c["url"] = url
	c["auth_token"] = ""
	c["no_token"] = false

	for _, p := range opts.Hash {
		switch p.Key {
		case "auth_token":
			s, err := asString(p.Value)
			if err != nil {
				return fmt.Errorf("auth_token: %w", err)
			}
			c["auth_token"] = s
		case "no_token":
			b, err := asBool(p.Value)
			if err != nil {
				return fmt.Errorf("no_token: %w", err)
			}
			c["no_token"] = b
		default:
			return fmt.Errorf("unknown option %q", p.Key)
		}
	}
	return nil
}
