package bouncer

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pior/replyroute"
	"github.com/pior/replyroute/internal/coarsetime"
	"github.com/pior/replyroute/irc"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ServerName is the source of every line the bouncer itself generates.
const ServerName = "replyroute"

const keepaliveToken = "replyroute-keepalive"

const eventQueueSize = 256

var errNetworkStopped = errors.New("replyroute: network stopped")

// NetworkOptions holds the settings a Network takes from outside its
// NetworkConfig.
type NetworkOptions struct {
	// ModuleNick is the nick clients message to reach the control commands.
	ModuleNick string

	// Preferences stores module settings. If nil, settings are not persisted.
	Preferences replyroute.Preferences

	// Selector picks upstream servers. If nil, DefaultServerSelector is used.
	Selector ServerSelector

	// Dialer is the net.Dialer used for upstream connections.
	Dialer *net.Dialer

	Logger *zap.Logger

	// for testing purposes only
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// Network is one upstream connection shared by its attached clients.
//
// Every event (server line, client line, attach, detach, timer) runs on the
// goroutine of Run, so the router and the fields below the events channel
// need no locking.
type Network struct {
	name       string
	config     NetworkConfig
	moduleNick string
	logger     *zap.Logger

	upstream *Upstream
	router   *replyroute.Router

	events   chan func()
	done     chan struct{}
	stopOnce sync.Once

	clientCount atomic.Int64

	// loop state
	conn      *Conn
	state     replyroute.ConnState
	nick      string
	clients   map[*Client]struct{}
	keepalive *time.Timer
}

// NewNetwork creates a network. Nothing connects until Run.
func NewNetwork(config NetworkConfig, options NetworkOptions) (*Network, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("network", config.Name))

	moduleNick := options.ModuleNick
	if moduleNick == "" {
		moduleNick = replyroute.DefaultModuleNick
	}

	n := &Network{
		name:       config.Name,
		config:     config,
		moduleNick: moduleNick,
		logger:     logger,
		events:     make(chan func(), eventQueueSize),
		done:       make(chan struct{}),
		nick:       config.Nick,
		clients:    make(map[*Client]struct{}),
	}

	upstream, err := NewUpstream(UpstreamConfig{
		Network: config.Name,
		Servers: NewServers(config.Name+"/"+config.Nick, options.Selector, config.Servers...),
		Registration: Registration{
			Password: config.Password,
			Nick:     config.Nick,
			User:     config.User,
			RealName: config.RealName,
		},
		DialTimeout: config.DialTimeout,
		Dialer:      options.Dialer,
		Breaker:     NewDialBreaker(config.Name, config.BreakerFailures, config.BreakerTimeout, logger),
		Logger:      logger,
		dial:        options.dial,
	})
	if err != nil {
		return nil, err
	}
	n.upstream = upstream

	router, err := replyroute.NewRouter(replyroute.Config{
		Upstream:    n,
		Timers:      loopTimers{n},
		Preferences: options.Preferences,
		Notice:      n.notice,
		Timeout:     config.RouteTimeout,
		ModuleNick:  moduleNick,
		Logger:      logger.Named("router"),
	})
	if err != nil {
		return nil, err
	}
	n.router = router

	return n, nil
}

// Name returns the configured network name.
func (n *Network) Name() string {
	return n.name
}

// Run connects upstream and processes events until ctx is done.
// On return, queued requests have been flushed and every client is closed.
func (n *Network) Run(ctx context.Context) error {
	// The upstream outlives ctx until queued requests are flushed
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.connectLoop(connCtx)
	}()

	n.armKeepalive()
	n.logger.Info("network started", zap.Strings("servers", n.config.Servers))

	for {
		select {
		case fn := <-n.events:
			fn()
		case <-ctx.Done():
			n.shutdown()
			n.stop()
			cancel()
			wg.Wait()
			n.upstream.Close()
			n.logger.Info("network stopped")
			return nil
		}
	}
}

// post queues fn for the event loop. It reports false once the loop stopped.
func (n *Network) post(fn func()) bool {
	select {
	case n.events <- fn:
		return true
	case <-n.done:
		return false
	}
}

func (n *Network) stop() {
	n.stopOnce.Do(func() { close(n.done) })
}

// Attach hands a registered client to the network.
func (n *Network) Attach(c *Client) bool {
	return n.post(func() { n.attach(c) })
}

// Deliver queues a line received from an attached client.
func (n *Network) Deliver(c *Client, msg ircmsg.Message) bool {
	return n.post(func() { n.onClientMessage(c, msg) })
}

// Detach removes a client whose connection ended.
func (n *Network) Detach(c *Client) bool {
	return n.post(func() { n.detach(c) })
}

// connectLoop keeps the upstream slot filled until ctx is done.
func (n *Network) connectLoop(ctx context.Context) {
	for {
		res, err := n.upstream.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.logger.Warn("upstream connection failed",
				zap.Error(err),
				zap.Stringer("breaker", n.upstream.BreakerState()))
			if !sleepContext(ctx, n.config.ReconnectDelay) {
				return
			}
			continue
		}

		conn := res.Value()
		if !n.post(func() { n.onUpstreamOpen(conn) }) {
			res.Destroy()
			return
		}

		err = n.readLoop(ctx, conn)
		res.Destroy()
		n.post(func() { n.onUpstreamClosed(conn, err) })

		if !sleepContext(ctx, n.config.ReconnectDelay) {
			return
		}
	}
}

// readLoop posts every server line until the connection fails.
func (n *Network) readLoop(ctx context.Context, conn *Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if irc.ShouldCloseConnection(err) {
				return err
			}
			n.logger.Debug("skipping server line", zap.Error(err))
			continue
		}

		if !n.post(func() { n.onServerLine(conn, msg) }) {
			return errNetworkStopped
		}
	}
}

func (n *Network) onUpstreamOpen(conn *Conn) {
	n.conn = conn
	n.state = replyroute.StateDisconnected
	n.nick = n.config.Nick
	n.logger.Debug("upstream registering", zap.String("addr", conn.RemoteAddr()))
}

func (n *Network) onUpstreamClosed(conn *Conn, err error) {
	if conn != n.conn {
		return
	}

	n.conn = nil
	n.state = replyroute.StateDisconnected
	n.router.OnUpstreamDisconnected()

	n.logger.Warn("upstream disconnected", zap.Error(err))
	n.noticeAll("Disconnected from " + n.name)
}

// onServerLine runs the router first. A line the router handled is not
// processed by the bouncer at all, not only kept from the other clients.
func (n *Network) onServerLine(conn *Conn, msg ircmsg.Message) {
	if conn != n.conn {
		return
	}

	// Answer to our own keepalive PING, which the router never saw
	if isKeepalivePong(msg) {
		return
	}

	if n.router.OnServerLine(msg) == replyroute.Handled {
		return
	}

	if n.process(msg) {
		n.broadcast(msg)
	}
}

// process applies a server line to the bouncer state and reports whether
// clients should see it.
func (n *Network) process(msg ircmsg.Message) bool {
	switch strings.ToUpper(msg.Command) {
	case irc.CmdPing:
		n.sendUpstream(ircmsg.MakeMessage(nil, "", irc.CmdPong, msg.Params...))
		return false

	case irc.RplWelcome:
		if len(msg.Params) > 0 {
			n.nick = msg.Params[0]
		}
		n.state = replyroute.StateConnected
		n.router.OnUpstreamConnected()

		n.logger.Info("upstream registered", zap.String("nick", n.nick))
		n.noticeAll("Connected to " + n.name + " as " + n.nick)
		return false

	case irc.ErrNicknameInUse:
		if n.state != replyroute.StateConnected {
			n.nick += "_"
			n.sendUpstream(ircmsg.MakeMessage(nil, "", irc.CmdNick, n.nick))
			return false
		}

	case irc.CmdNick:
		if len(msg.Params) > 0 && strings.EqualFold(msg.Nick(), n.nick) {
			n.nick = msg.Params[0]
		}

	case irc.CmdError:
		n.logger.Warn("upstream error", zap.Strings("params", msg.Params))
	}

	return true
}

func (n *Network) onClientMessage(c *Client, msg ircmsg.Message) {
	if _, ok := n.clients[c]; !ok {
		return
	}

	switch strings.ToUpper(msg.Command) {
	case irc.CmdPrivmsg:
		if len(msg.Params) > 1 && strings.EqualFold(msg.Params[0], n.moduleNick) {
			n.router.OnControlCommand(c, msg.Params[1])
			return
		}
	case irc.CmdNotice:
		if len(msg.Params) > 0 && strings.EqualFold(msg.Params[0], n.moduleNick) {
			return
		}
	case irc.CmdQuit:
		n.detach(c)
		return
	case irc.CmdPass, irc.CmdUser, irc.CmdCap:
		return
	}

	if n.router.OnClientCommand(c, msg) == replyroute.Handled {
		return
	}

	if n.conn == nil {
		// Keep clients alive while the server is away
		if strings.EqualFold(msg.Command, irc.CmdPing) {
			c.Send(ircmsg.MakeMessage(nil, ServerName, irc.CmdPong, append([]string{ServerName}, msg.Params...)...))
		}
		return
	}
	n.sendUpstream(msg)
}

func (n *Network) attach(c *Client) {
	n.clients[c] = struct{}{}
	n.clientCount.Add(1)

	c.Send(ircmsg.MakeMessage(nil, ServerName, irc.RplWelcome, n.nick,
		"Welcome to replyroute, you are attached to "+n.name))
	if n.state != replyroute.StateConnected {
		n.notice(c, "Not connected to "+n.name+" yet")
	}

	c.logger.Info("client attached", zap.Int64("clients", n.clientCount.Load()))
}

func (n *Network) detach(c *Client) {
	if _, ok := n.clients[c]; !ok {
		return
	}
	delete(n.clients, c)
	n.clientCount.Add(-1)

	n.router.OnClientDisconnected(c)
	c.Close()

	c.logger.Info("client detached", zap.Int64("clients", n.clientCount.Load()))
}

// shutdown flushes queued requests upstream and closes everything.
func (n *Network) shutdown() {
	if n.keepalive != nil {
		n.keepalive.Stop()
	}

	n.router.Close()

	if n.conn != nil {
		n.sendUpstream(ircmsg.MakeMessage(nil, "", irc.CmdQuit, "replyroute shutting down"))
	}

	for c := range n.clients {
		c.Send(ircmsg.MakeMessage(nil, "", irc.CmdError, "Closing link: replyroute shutting down"))
		c.Close()
		delete(n.clients, c)
	}
	n.clientCount.Store(0)
}

func isKeepalivePong(msg ircmsg.Message) bool {
	return strings.EqualFold(msg.Command, irc.CmdPong) &&
		len(msg.Params) > 0 && msg.Params[len(msg.Params)-1] == keepaliveToken
}

func (n *Network) armKeepalive() {
	n.keepalive = time.AfterFunc(n.config.PingInterval, func() {
		n.post(n.onKeepalive)
	})
}

// onKeepalive pings the server and drops a connection that stopped answering.
func (n *Network) onKeepalive() {
	n.armKeepalive()

	if n.conn == nil || n.state != replyroute.StateConnected {
		return
	}

	if lastRead := n.conn.LastRead(); coarsetime.Since(lastRead) > 2*n.config.PingInterval {
		n.logger.Warn("upstream stopped answering", zap.Time("last_read", lastRead))
		n.conn.Close()
		return
	}
	n.sendUpstream(ircmsg.MakeMessage(nil, "", irc.CmdPing, keepaliveToken))
}

func (n *Network) sendUpstream(msg ircmsg.Message) {
	if n.conn == nil {
		n.logger.Debug("no upstream, dropping line", zap.String("command", msg.Command))
		return
	}
	if err := n.conn.WriteMessage(msg); err != nil {
		n.logger.Warn("upstream write failed", zap.Error(err))
	}
}

func (n *Network) broadcast(msg ircmsg.Message) {
	for c := range n.clients {
		c.Send(msg)
	}
}

// notice sends a line from the module nick to one client.
func (n *Network) notice(client replyroute.Client, text string) {
	client.Send(ircmsg.MakeMessage(nil, n.moduleNick+"!"+ServerName+"@"+ServerName, irc.CmdNotice, n.nick, text))
}

func (n *Network) noticeAll(text string) {
	for c := range n.clients {
		n.notice(c, text)
	}
}

// State implements replyroute.Upstream.
func (n *Network) State() replyroute.ConnState {
	if n.conn == nil {
		return replyroute.StateDisconnected
	}
	return n.state
}

// Send implements replyroute.Upstream.
func (n *Network) Send(msg ircmsg.Message) {
	n.sendUpstream(msg)
}

// RouterStats returns the router statistics. Safe for concurrent use.
func (n *Network) RouterStats() replyroute.RouterStats {
	return n.router.Stats()
}

// UpstreamStats returns the upstream slot statistics. Safe for concurrent use.
func (n *Network) UpstreamStats() UpstreamStats {
	return n.upstream.Stats()
}

// BreakerState returns the dial circuit breaker state. Safe for concurrent use.
func (n *Network) BreakerState() gobreaker.State {
	return n.upstream.BreakerState()
}

// Clients returns the number of attached clients. Safe for concurrent use.
func (n *Network) Clients() int {
	return int(n.clientCount.Load())
}

// loopTimers runs timer callbacks on the network event loop.
type loopTimers struct {
	n *Network
}

func (t loopTimers) AfterFunc(d time.Duration, f func()) replyroute.Timer {
	return time.AfterFunc(d, func() { t.n.post(f) })
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
