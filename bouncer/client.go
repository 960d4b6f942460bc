package bouncer

import (
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is one registered downstream connection.
type Client struct {
	id     uuid.UUID
	conn   *Conn
	logger *zap.Logger
}

func newClient(conn *Conn, nick, user string, logger *zap.Logger) *Client {
	id := uuid.New()
	return &Client{
		id:   id,
		conn: conn,
		logger: logger.With(
			zap.Stringer("client", id),
			zap.String("nick", nick),
			zap.String("user", user),
			zap.String("remote", conn.RemoteAddr())),
	}
}

func (c *Client) String() string {
	return c.id.String()
}

// Send writes msg to the client. It runs on the network loop and blocks for
// at most the connection write timeout. A client that cannot be written to
// is closed, so later sends return at once, and it is detached when its
// reader notices.
func (c *Client) Send(msg ircmsg.Message) {
	if err := c.conn.WriteMessage(msg); err != nil {
		c.logger.Debug("client write failed", zap.Error(err))
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
