package bouncer

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/jackc/puddle/v2"
	"github.com/pior/replyroute/irc"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Registration is what the bouncer sends to register with a server.
type Registration struct {
	Password string
	Nick     string
	User     string
	RealName string
}

// Messages returns PASS (when a password is set), NICK and USER.
func (r Registration) Messages() []ircmsg.Message {
	msgs := make([]ircmsg.Message, 0, 3)
	if r.Password != "" {
		msgs = append(msgs, ircmsg.MakeMessage(nil, "", irc.CmdPass, r.Password))
	}
	msgs = append(msgs,
		ircmsg.MakeMessage(nil, "", irc.CmdNick, r.Nick),
		ircmsg.MakeMessage(nil, "", irc.CmdUser, r.User, "0", "*", r.RealName),
	)
	return msgs
}

// UpstreamConfig holds configuration for an Upstream.
type UpstreamConfig struct {
	// Network names the upstream in logs and in the circuit breaker.
	Network string

	// Servers picks the address of every dial.
	Servers *Servers

	// Registration is sent right after the connection is established.
	Registration Registration

	// DialTimeout bounds a single dial. Zero means DefaultDialTimeout.
	DialTimeout time.Duration

	// Dialer is the net.Dialer used to create new connections.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Breaker guards dials. If nil, dials are never short-circuited.
	Breaker *gobreaker.CircuitBreaker[net.Conn]

	Logger *zap.Logger

	// for testing purposes only
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// UpstreamStats contains statistics about the upstream connection slot.
type UpstreamStats struct {
	Dials        uint64 // Successful dials
	DialFailures uint64 // Failed or short-circuited dials
	Destroyed    uint64 // Connections torn down
	Connected    bool   // A connection currently exists
}

// Upstream owns the single server connection of a network.
//
// The connection lives in a puddle pool of size one: Acquire dials and
// registers when the slot is empty, and destroying the resource frees the
// slot for the next Acquire.
type Upstream struct {
	network      string
	servers      *Servers
	registration Registration
	dialTimeout  time.Duration
	breaker      *gobreaker.CircuitBreaker[net.Conn]
	dial         func(ctx context.Context, addr string) (net.Conn, error)
	logger       *zap.Logger

	pool *puddle.Pool[*Conn]

	// attempt counts failed dials since the last successful one
	attempt      atomic.Int64
	dials        atomic.Uint64
	dialFailures atomic.Uint64
	destroyed    atomic.Uint64
}

// NewUpstream creates the connection slot. Nothing is dialed until Acquire.
func NewUpstream(config UpstreamConfig) (*Upstream, error) {
	if config.Servers == nil {
		return nil, ErrNoServers
	}

	u := &Upstream{
		network:      config.Network,
		servers:      config.Servers,
		registration: config.Registration,
		dialTimeout:  config.DialTimeout,
		breaker:      config.Breaker,
		dial:         config.dial,
		logger:       config.Logger,
	}

	if u.dialTimeout <= 0 {
		u.dialTimeout = DefaultDialTimeout
	}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	if u.dial == nil {
		dialer := config.Dialer
		if dialer == nil {
			dialer = &net.Dialer{}
		}
		u.dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		}
	}

	pool, err := puddle.NewPool(&puddle.Config[*Conn]{
		Constructor: u.connect,
		Destructor: func(c *Conn) {
			u.destroyed.Add(1)
			_ = c.Close()
		},
		MaxSize: 1,
	})
	if err != nil {
		return nil, err
	}
	u.pool = pool
	return u, nil
}

// Acquire returns the upstream connection, dialing and registering if the
// slot is empty. Release the resource with Destroy once the connection is
// done with; there is no idle reuse.
func (u *Upstream) Acquire(ctx context.Context) (*puddle.Resource[*Conn], error) {
	return u.pool.Acquire(ctx)
}

// connect dials the next server and sends the registration.
func (u *Upstream) connect(ctx context.Context) (*Conn, error) {
	attempt := int(u.attempt.Load())
	addr, err := u.servers.Select(attempt)
	if err != nil {
		return nil, err
	}

	dial := func() (net.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, u.dialTimeout)
		defer cancel()
		return u.dial(dialCtx, addr)
	}

	var netConn net.Conn
	if u.breaker != nil {
		netConn, err = u.breaker.Execute(dial)
	} else {
		netConn, err = dial()
	}
	if err != nil {
		u.attempt.Add(1)
		u.dialFailures.Add(1)
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	u.attempt.Store(0)
	u.dials.Add(1)

	u.logger.Info("upstream connected",
		zap.String("network", u.network),
		zap.String("addr", addr),
		zap.Int("attempt", attempt))

	conn := NewConn(netConn)
	for _, msg := range u.registration.Messages() {
		if err := conn.WriteMessage(msg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("register on %s: %w", addr, err)
		}
	}
	return conn, nil
}

// BreakerState returns the dial circuit breaker state.
func (u *Upstream) BreakerState() gobreaker.State {
	if u.breaker == nil {
		return gobreaker.StateClosed
	}
	return u.breaker.State()
}

// Stats returns a snapshot of upstream statistics.
func (u *Upstream) Stats() UpstreamStats {
	return UpstreamStats{
		Dials:        u.dials.Load(),
		DialFailures: u.dialFailures.Load(),
		Destroyed:    u.destroyed.Load(),
		Connected:    u.pool.Stat().TotalResources() > 0,
	}
}

// Close destroys the connection slot. It blocks until an acquired
// connection is destroyed.
func (u *Upstream) Close() {
	u.pool.Close()
}
