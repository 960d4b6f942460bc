package bouncer

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pior/replyroute"
	"github.com/pior/replyroute/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// peer is one end of a line based TCP conversation.
type peer struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func newPeer(t *testing.T, conn net.Conn) *peer {
	t.Cleanup(func() { conn.Close() })
	return &peer{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func dialPeer(t *testing.T, addr string) *peer {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	return newPeer(t, conn)
}

func (p *peer) send(line string) {
	p.t.Helper()
	_, err := p.conn.Write([]byte(line + "\r\n"))
	require.NoError(p.t, err)
}

func (p *peer) expect(want ...string) {
	p.t.Helper()
	for _, w := range want {
		p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		line, err := p.reader.ReadString('\n')
		require.NoError(p.t, err, "waiting for %q", w)
		require.Equal(p.t, w, strings.TrimRight(line, "\r\n"))
	}
}

func TestBouncer_EndToEnd(t *testing.T) {
	upstreamLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer upstreamLn.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := upstreamLn.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	dbPath := filepath.Join(t.TempDir(), "replyroute.db")
	config, err := ParseConfig([]byte(`
database: ` + dbPath + `
networks:
  - name: libera
    nick: gopher
    servers:
      - ` + upstreamLn.Addr().String() + `
`))
	require.NoError(t, err)

	b, err := New(config, zaptest.NewLogger(t))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, ln) }()

	var server *peer
	select {
	case conn := <-accepted:
		server = newPeer(t, conn)
	case <-time.After(5 * time.Second):
		t.Fatal("bouncer never connected upstream")
	}
	server.expect("NICK gopher", "USER gopher 0 * gopher")

	a := dialPeer(t, ln.Addr().String())
	a.send("NICK a")
	a.send("USER a/libera 0 * :A")
	a.expect(
		":replyroute 001 gopher :Welcome to replyroute, you are attached to libera",
		":*replyroute!replyroute@replyroute NOTICE gopher :Not connected to libera yet",
	)

	c := dialPeer(t, ln.Addr().String())
	c.send("NICK c")
	c.send("USER c 0 * :C")
	c.expect(
		":replyroute 001 gopher :Welcome to replyroute, you are attached to libera",
		":*replyroute!replyroute@replyroute NOTICE gopher :Not connected to libera yet",
	)

	server.send(":irc.test 001 gopher :Welcome to the test network")
	a.expect(":*replyroute!replyroute@replyroute NOTICE gopher :Connected to libera as gopher")
	c.expect(":*replyroute!replyroute@replyroute NOTICE gopher :Connected to libera as gopher")

	a.send("WHO #chan")
	server.expect("WHO #chan")
	server.send(":irc.test 352 gopher #chan ~u host irc.test bob H :0 Bob")
	server.send(":bob!u@host PRIVMSG #chan :hello there")
	server.send(":irc.test 315 gopher #chan :End of /WHO list.")

	a.expect(
		":irc.test 352 gopher #chan ~u host irc.test bob H :0 Bob",
		":bob!u@host PRIVMSG #chan :hello there",
		":irc.test 315 gopher #chan :End of /WHO list.",
	)
	c.expect(":bob!u@host PRIVMSG #chan :hello there")

	a.send("PRIVMSG *replyroute :silent yes")
	a.expect(":*replyroute!replyroute@replyroute NOTICE gopher :Timeout messages are disabled.")

	rec := httptest.NewRecorder()
	b.Exporter().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `replyroute_exchanges_completed_total{network="libera"} 1`)
	assert.Contains(t, rec.Body.String(), `replyroute_clients{network="libera"} 2`)

	cancel()
	server.expect("QUIT :replyroute shutting down")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bouncer did not stop")
	}
	require.NoError(t, b.Close())

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	value, err := db.Scope("libera").Preference(replyroute.PreferenceSilentTimeouts)
	require.NoError(t, err)
	assert.Equal(t, "yes", value)
}

func TestBouncer_ReconnectsAfterUpstreamLoss(t *testing.T) {
	upstreamLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer upstreamLn.Close()

	accepted := make(chan net.Conn, 2)
	go func() {
		for {
			conn, err := upstreamLn.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	config, err := ParseConfig([]byte(`
database: ":memory:"
networks:
  - name: libera
    nick: gopher
    reconnect_delay: 10ms
    servers:
      - ` + upstreamLn.Addr().String() + `
`))
	require.NoError(t, err)

	b, err := New(config, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, ln) }()

	first := newPeer(t, <-accepted)
	first.expect("NICK gopher", "USER gopher 0 * gopher")
	first.conn.Close()

	var second *peer
	select {
	case conn := <-accepted:
		second = newPeer(t, conn)
	case <-time.After(5 * time.Second):
		t.Fatal("bouncer did not reconnect")
	}
	second.expect("NICK gopher", "USER gopher 0 * gopher")

	require.Eventually(t, func() bool {
		return b.Networks()[0].UpstreamStats().Dials == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
