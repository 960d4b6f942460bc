package bouncer

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pior/replyroute/internal/coarsetime"
	"github.com/pior/replyroute/irc"
)

var ErrConnectionClosed = errors.New("replyroute: connection closed")

// DefaultWriteTimeout bounds a single write to a peer.
const DefaultWriteTimeout = 10 * time.Second

// Conn is one IRC connection, upstream or downstream.
//
// Reads must come from a single goroutine. Writes are serialised and may
// come from any goroutine.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader

	mu           sync.Mutex
	writer       *bufio.Writer
	writeTimeout time.Duration
	closed       bool

	lastRead atomic.Int64
}

// NewConn wraps an established network connection.
func NewConn(conn net.Conn) *Conn {
	c := &Conn{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, irc.MaxMessageLength),
		writer:       bufio.NewWriter(conn),
		writeTimeout: DefaultWriteTimeout,
	}
	c.lastRead.Store(coarsetime.Now().UnixNano())
	return c
}

// ReadMessage blocks until the next message arrives.
func (c *Conn) ReadMessage() (ircmsg.Message, error) {
	msg, err := irc.ReadMessage(c.reader)
	if err == nil {
		c.lastRead.Store(coarsetime.Now().UnixNano())
	}
	return msg, err
}

// WriteMessage sends msg. A failed write closes the connection, so the
// reader sees the failure too.
func (c *Conn) WriteMessage(msg ircmsg.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	if err := irc.WriteMessage(c.writer, msg); err != nil {
		if irc.ShouldCloseConnection(err) {
			c.markClosed()
		}
		return err
	}

	return nil
}

// SetWriteTimeout changes the bound on each write. Zero disables it.
func (c *Conn) SetWriteTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeTimeout = d
}

// SetReadDeadline bounds the next reads. Zero clears the deadline.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// LastRead returns when the last line was read, or when the connection was
// wrapped if nothing was read yet. The clock is coarse.
func (c *Conn) LastRead() time.Time {
	return time.Unix(0, c.lastRead.Load())
}

// IsClosed returns whether the connection is closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.markClosed()
}

func (c *Conn) markClosed() error {
	c.closed = true
	return c.conn.Close()
}
