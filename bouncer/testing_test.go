package bouncer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pior/replyroute"
	"github.com/pior/replyroute/internal/testutils"
	"github.com/pior/replyroute/irc"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testNetworkConfig() NetworkConfig {
	config := NetworkConfig{
		Name:         "libera",
		Servers:      []string{"irc.example.net:6667"},
		Nick:         "gopher",
		RouteTimeout: time.Minute,
		PingInterval: time.Minute,
	}
	config.setDefaults()
	return config
}

func refuseDial(ctx context.Context, addr string) (net.Conn, error) {
	return nil, errors.New("connection refused")
}

// newTestNetwork returns a network whose loop is driven by the test itself.
func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	n, err := NewNetwork(testNetworkConfig(), NetworkOptions{dial: refuseDial})
	require.NoError(t, err)
	t.Cleanup(n.upstream.Close)
	return n
}

// openUpstream gives the network an upstream connection that has not
// registered yet.
func openUpstream(t *testing.T, n *Network) (*Conn, *testutils.ConnectionMock) {
	t.Helper()
	mock := testutils.NewConnectionMock()
	conn := NewConn(mock)
	n.onUpstreamOpen(conn)
	return conn, mock
}

// registerUpstream opens an upstream connection and completes registration.
func registerUpstream(t *testing.T, n *Network) (*Conn, *testutils.ConnectionMock) {
	t.Helper()
	conn, mock := openUpstream(t, n)
	n.onServerLine(conn, parse(t, ":irc.example.net 001 gopher :Welcome to the network"))
	require.Equal(t, replyroute.StateConnected, n.State())
	return conn, mock
}

type testClient struct {
	*Client
	mock *testutils.ConnectionMock
}

func (c *testClient) lines() []string {
	return c.mock.WrittenLines()
}

// attachClient attaches a client and discards what attach wrote to it.
func attachClient(t *testing.T, n *Network, name string) *testClient {
	t.Helper()
	mock := testutils.NewConnectionMock()
	c := newClient(NewConn(mock), name, name, zap.NewNop())
	n.attach(c)
	tc := &testClient{Client: c, mock: mock}
	tc.reset()
	return tc
}

func (c *testClient) reset() {
	mock := testutils.NewConnectionMock()
	c.mock = mock
	c.conn = NewConn(mock)
}

func parse(t *testing.T, line string) ircmsg.Message {
	t.Helper()
	msg, err := ircmsg.ParseLine(line)
	require.NoError(t, err)
	return msg
}

func messageLines(msgs []ircmsg.Message) []string {
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, irc.String(msg))
	}
	return lines
}
