// Package bind parses and renders listener URIs. Only tcp://, unix:// and
// ssl:// are accepted.
package bind

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Scheme is a listener protocol.
type Scheme string

const (
	SchemeTCP  Scheme = "tcp"
	SchemeUnix Scheme = "unix"
	SchemeSSL  Scheme = "ssl"
)

// Default is the listener used when no bind is configured.
const Default = "tcp://0.0.0.0:9292"

// DefaultHost is used by TCP when no host is given.
const DefaultHost = "0.0.0.0"

var (
	// ErrUnsupportedScheme is returned for any scheme other than tcp, unix or ssl.
	ErrUnsupportedScheme = errors.New("unsupported bind scheme")

	// ErrInvalidBind is returned for a well-formed scheme with a bad address.
	ErrInvalidBind = errors.New("invalid bind")
)

// Bind is a parsed listener URI.
type Bind struct {
	Scheme Scheme
	Host   string
	Port   int
	Path   string
	Query  url.Values
}

// Parse parses raw into a Bind.
func Parse(raw string) (Bind, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Bind{}, fmt.Errorf("%w: %q has no scheme", ErrUnsupportedScheme, raw)
	}

	switch Scheme(scheme) {
	case SchemeUnix:
		return parseUnix(rest, raw)
	case SchemeTCP, SchemeSSL:
		return parseNet(Scheme(scheme), rest, raw)
	default:
		return Bind{}, fmt.Errorf("%w: %q (expected tcp://, unix:// or ssl://)", ErrUnsupportedScheme, raw)
	}
}

func parseUnix(rest, raw string) (Bind, error) {
	path, query, _ := strings.Cut(rest, "?")
	if path == "" {
		return Bind{}, fmt.Errorf("%w: %q has an empty socket path", ErrInvalidBind, raw)
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return Bind{}, fmt.Errorf("%w: %q: %v", ErrInvalidBind, raw, err)
	}
	for _, key := range []string{"umask", "mode"} {
		if v := q.Get(key); v != "" {
			if _, err := strconv.ParseUint(v, 8, 32); err != nil {
				return Bind{}, fmt.Errorf("%w: %q: %s must be octal", ErrInvalidBind, raw, key)
			}
		}
	}
	return Bind{Scheme: SchemeUnix, Path: path, Query: q}, nil
}

func parseNet(scheme Scheme, rest, raw string) (Bind, error) {
	u, err := url.Parse(string(scheme) + "://" + rest)
	if err != nil {
		return Bind{}, fmt.Errorf("%w: %q: %v", ErrInvalidBind, raw, err)
	}
	if u.Path != "" && u.Path != "/" {
		return Bind{}, fmt.Errorf("%w: %q must not carry a path", ErrInvalidBind, raw)
	}
	host := u.Hostname()
	if host == "" {
		return Bind{}, fmt.Errorf("%w: %q has no host", ErrInvalidBind, raw)
	}
	port, err := parsePort(u.Port())
	if err != nil {
		return Bind{}, fmt.Errorf("%w: %q: %v", ErrInvalidBind, raw, err)
	}

	b := Bind{Scheme: scheme, Host: host, Port: port, Query: u.Query()}
	if scheme == SchemeSSL {
		if err := checkSSL(b.Query); err != nil {
			return Bind{}, fmt.Errorf("%w: %q: %v", ErrInvalidBind, raw, err)
		}
	}
	return b, nil
}

func parsePort(s string) (int, error) {
	if s == "" {
		return 0, errors.New("missing port")
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %q out of range 1-65535", s)
	}
	return port, nil
}

// checkSSL requires key and cert, unless a java keystore is used.
func checkSSL(q url.Values) error {
	if q.Get("keystore") != "" {
		return nil
	}
	if q.Get("key") == "" || q.Get("cert") == "" {
		return errors.New("ssl requires key and cert")
	}
	return nil
}

// TCP builds a tcp bind. An empty host means DefaultHost.
func TCP(host string, port int) (Bind, error) {
	if host == "" {
		host = DefaultHost
	}
	if port < 1 || port > 65535 {
		return Bind{}, fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidBind, port)
	}
	return Bind{Scheme: SchemeTCP, Host: host, Port: port, Query: url.Values{}}, nil
}

// SSL builds an ssl bind from host, port and ssl options such as key and cert.
func SSL(host, port string, opts map[string]string) (Bind, error) {
	if host == "" {
		host = DefaultHost
	}
	p, err := parsePort(port)
	if err != nil {
		return Bind{}, fmt.Errorf("%w: %v", ErrInvalidBind, err)
	}
	q := url.Values{}
	for k, v := range opts {
		q.Set(k, v)
	}
	if err := checkSSL(q); err != nil {
		return Bind{}, fmt.Errorf("%w: %v", ErrInvalidBind, err)
	}
	return Bind{Scheme: SchemeSSL, Host: host, Port: p, Query: q}, nil
}

// String renders the canonical URI. Query keys are sorted.
func (b Bind) String() string {
	var s string
	if b.Scheme == SchemeUnix {
		s = "unix://" + b.Path
	} else {
		s = string(b.Scheme) + "://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
	}
	if q := encodeQuery(b.Query); q != "" {
		s += "?" + q
	}
	return s
}

// encodeQuery is url.Values.Encode without escaping '/', so file paths in
// ssl options stay readable.
func encodeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		for _, v := range q[k] {
			parts = append(parts, k+"="+strings.ReplaceAll(url.QueryEscape(v), "%2F", "/"))
		}
	}
	return strings.Join(parts, "&")
}

// Network returns the net.Listen network name.
func (b Bind) Network() string {
	if b.Scheme == SchemeUnix {
		return "unix"
	}
	return "tcp"
}

// Address returns host:port, or the socket path for unix binds.
func (b Bind) Address() string {
	if b.Scheme == SchemeUnix {
		return b.Path
	}
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// IsUnix reports whether the bind is a unix-domain socket.
func (b Bind) IsUnix() bool {
	return b.Scheme == SchemeUnix
}

// Resolve returns a copy whose relative unix socket path is joined to dir.
func (b Bind) Resolve(dir string) Bind {
	if b.Scheme == SchemeUnix && !filepath.IsAbs(b.Path) && !strings.HasPrefix(b.Path, "@") {
		b.Path = strings.TrimRight(dir, "/") + "/" + strings.TrimPrefix(b.Path, "./")
	}
	return b
}
