package bouncer

import (
	"io"
	"testing"

	"github.com/pior/replyroute/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, password string) (*Server, *Network) {
	t.Helper()
	n := newTestNetwork(t)
	config := &Config{Password: password, Networks: []NetworkConfig{n.config}}
	config.SetDefaults()
	return NewServer(config, []*Network{n}, zap.NewNop()), n
}

func TestServer_Register(t *testing.T) {
	tests := []struct {
		name     string
		password string
		lines    []string
		written  []string
	}{
		{
			name:  "explicit network",
			lines: []string{"NICK me", "USER me/libera 0 * :Me"},
		},
		{
			name:  "single network default",
			lines: []string{"USER me 0 * :Me", "NICK me"},
		},
		{
			name:     "password",
			password: "secret",
			lines:    []string{"PASS secret", "NICK me", "USER me 0 * :Me"},
		},
		{
			name:    "capability negotiation",
			lines:   []string{"CAP LS 302", "NICK me", "USER me 0 * :Me", "CAP END"},
			written: []string{":replyroute CAP * LS :"},
		},
		{
			name:    "ping before registration",
			lines:   []string{"PING :abc", "NICK me", "USER me 0 * :Me"},
			written: []string{":replyroute PONG replyroute abc"},
		},
		{
			name:    "empty nick is rejected",
			lines:   []string{"NICK :", "NICK me", "USER me 0 * :Me"},
			written: []string{":replyroute 431 * :No nickname given"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, n := newTestServer(t, tt.password)
			mock := testutils.NewConnectionMock(tt.lines...)

			client, network, err := s.register(NewConn(mock), zap.NewNop())
			require.NoError(t, err)
			require.NotNil(t, client)
			assert.Same(t, n, network)
			assert.Equal(t, tt.written, mock.WrittenLines())
		})
	}
}

func TestServer_RegisterFailures(t *testing.T) {
	tests := []struct {
		name     string
		password string
		lines    []string
		err      error
		written  []string
	}{
		{
			name:     "wrong password",
			password: "secret",
			lines:    []string{"PASS nope", "NICK me", "USER me 0 * :Me"},
			err:      ErrPasswordMismatch,
			written: []string{
				":replyroute 464 me :Password incorrect",
				"ERROR :Closing link: Password incorrect",
			},
		},
		{
			name:     "missing password",
			password: "secret",
			lines:    []string{"NICK me", "USER me 0 * :Me"},
			err:      ErrPasswordMismatch,
			written: []string{
				":replyroute 464 me :Password incorrect",
				"ERROR :Closing link: Password incorrect",
			},
		},
		{
			name:    "unknown network",
			lines:   []string{"NICK me", "USER me/efnet 0 * :Me"},
			err:     ErrUnknownNetwork,
			written: []string{"ERROR :Closing link: replyroute: unknown network: efnet"},
		},
		{
			name:  "quit",
			lines: []string{"NICK me", "QUIT :bye"},
			err:   ErrClientQuit,
		},
		{
			name:  "connection closed",
			lines: []string{"NICK me"},
			err:   io.EOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.password)
			mock := testutils.NewConnectionMock(tt.lines...)

			_, _, err := s.register(NewConn(mock), zap.NewNop())
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.written, mock.WrittenLines())
		})
	}
}
