package bind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		scheme  Scheme
		network string
		address string
		str     string
	}{
		{
			name:    "default tcp",
			raw:     Default,
			scheme:  SchemeTCP,
			network: "tcp",
			address: "0.0.0.0:9292",
			str:     "tcp://0.0.0.0:9292",
		},
		{
			name:    "unix absolute",
			raw:     "unix:///srv/gitlab/gitlab/tmp/sockets/gitlab.socket",
			scheme:  SchemeUnix,
			network: "unix",
			address: "/srv/gitlab/gitlab/tmp/sockets/gitlab.socket",
			str:     "unix:///srv/gitlab/gitlab/tmp/sockets/gitlab.socket",
		},
		{
			name:    "unix relative with umask",
			raw:     "unix://tmp/app.sock?umask=0111",
			scheme:  SchemeUnix,
			network: "unix",
			address: "tmp/app.sock",
			str:     "unix://tmp/app.sock?umask=0111",
		},
		{
			name:    "ssl",
			raw:     "ssl://127.0.0.1:9292?key=/etc/ssl/key.pem&cert=/etc/ssl/cert.pem",
			scheme:  SchemeSSL,
			network: "tcp",
			address: "127.0.0.1:9292",
			str:     "ssl://127.0.0.1:9292?cert=/etc/ssl/cert.pem&key=/etc/ssl/key.pem",
		},
		{
			name:    "ipv6",
			raw:     "tcp://[::1]:8080",
			scheme:  SchemeTCP,
			network: "tcp",
			address: "[::1]:8080",
			str:     "tcp://[::1]:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, b.Scheme)
			assert.Equal(t, tt.network, b.Network())
			assert.Equal(t, tt.address, b.Address())
			assert.Equal(t, tt.str, b.String())

			again, err := Parse(b.String())
			require.NoError(t, err)
			assert.Equal(t, b.String(), again.String())
		})
	}
}

func TestParse_RejectsOtherSchemes(t *testing.T) {
	for _, raw := range []string{
		"http://0.0.0.0:9292",
		"udp://0.0.0.0:9292",
		"0.0.0.0:9292",
		"/tmp/app.sock",
		"TCP://0.0.0.0:9292",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			assert.ErrorIs(t, err, ErrUnsupportedScheme)
		})
	}
}

func TestParse_InvalidAddresses(t *testing.T) {
	for _, raw := range []string{
		"tcp://0.0.0.0",
		"tcp://0.0.0.0:0",
		"tcp://0.0.0.0:70000",
		"tcp://:9292",
		"tcp://0.0.0.0:9292/path",
		"unix://",
		"unix:///tmp/a.sock?umask=999",
		"ssl://127.0.0.1:9292",
		"ssl://127.0.0.1:9292?key=/k.pem",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			assert.ErrorIs(t, err, ErrInvalidBind)
		})
	}
}

func TestParse_SSLKeystore(t *testing.T) {
	b, err := Parse("ssl://0.0.0.0:9443?keystore=/etc/ks.jks&keystore-pass=secret")
	require.NoError(t, err)
	assert.Equal(t, "/etc/ks.jks", b.Query.Get("keystore"))
}

func TestBuilders(t *testing.T) {
	b, err := TCP("", 3000)
	require.NoError(t, err)
	assert.Equal(t, "tcp://0.0.0.0:3000", b.String())

	_, err = TCP("localhost", 0)
	assert.ErrorIs(t, err, ErrInvalidBind)

	s, err := SSL("127.0.0.1", "9292", map[string]string{"key": "/k.pem", "cert": "/c.pem"})
	require.NoError(t, err)
	assert.Equal(t, "ssl://127.0.0.1:9292?cert=/c.pem&key=/k.pem", s.String())

	_, err = SSL("127.0.0.1", "9292", nil)
	assert.ErrorIs(t, err, ErrInvalidBind)
}

func mustParse(t *testing.T, raw string) Bind {
	t.Helper()
	b, err := Parse(raw)
	require.NoError(t, err)
	return b
}

func TestResolve(t *testing.T) {
	rel := mustParse(t, "unix://tmp/sockets/app.sock")
	assert.Equal(t, "/srv/app/tmp/sockets/app.sock", rel.Resolve("/srv/app").Path)
	assert.Equal(t, "/srv//app/tmp/sockets/app.sock", rel.Resolve("/srv//app").Path, "dir is kept literally")

	abs := mustParse(t, "unix:///run/app.sock")
	assert.Equal(t, "/run/app.sock", abs.Resolve("/srv/app").Path)

	tcp := mustParse(t, "tcp://127.0.0.1:9292")
	assert.Equal(t, tcp, tcp.Resolve("/srv/app"))
}
