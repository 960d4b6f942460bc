package bouncer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pior/replyroute/irc"
	"go.uber.org/zap"
)

var (
	ErrPasswordMismatch  = errors.New("replyroute: password mismatch")
	ErrClientQuit        = errors.New("replyroute: client quit during registration")
	ErrNetworkNotRunning = errors.New("replyroute: network not running")
)

// Server accepts downstream clients and attaches them to their network.
type Server struct {
	config   *Config
	networks map[string]*Network
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewServer creates a listener front end for the given networks.
func NewServer(config *Config, networks []*Network, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	byName := make(map[string]*Network, len(networks))
	for _, n := range networks {
		byName[strings.ToLower(n.Name())] = n
	}

	return &Server{
		config:   config,
		networks: byName,
		logger:   logger,
	}
}

// Serve accepts clients on ln until ctx is done, then waits for every
// client session to end.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	for {
		netConn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, netConn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, netConn net.Conn) {
	conn := NewConn(netConn)
	conn.SetWriteTimeout(s.config.ClientWriteTimeout)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	logger := s.logger.With(zap.String("remote", conn.RemoteAddr()))

	client, network, err := s.register(conn, logger)
	if err != nil {
		logger.Info("client registration failed", zap.Error(err))
		return
	}

	if !network.Attach(client) {
		return
	}

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if irc.ShouldCloseConnection(err) {
				break
			}
			client.logger.Debug("skipping client line", zap.Error(err))
			continue
		}
		if !network.Deliver(client, msg) {
			return
		}
	}

	network.Detach(client)
}

// register runs the PASS/NICK/USER handshake. USER carries the network as
// "name/network"; the network may be omitted when only one is configured.
func (s *Server) register(conn *Conn, logger *zap.Logger) (*Client, *Network, error) {
	conn.SetReadDeadline(time.Now().Add(s.config.RegisterTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var pass, nick, user string
	for nick == "" || user == "" {
		msg, err := conn.ReadMessage()
		if err != nil {
			if irc.ShouldCloseConnection(err) {
				return nil, nil, err
			}
			continue
		}

		switch strings.ToUpper(msg.Command) {
		case irc.CmdPass:
			if len(msg.Params) > 0 {
				pass = msg.Params[0]
			}
		case irc.CmdNick:
			if len(msg.Params) == 0 || msg.Params[0] == "" {
				s.reply(conn, irc.ErrNoNicknameGiven, "*", "No nickname given")
				continue
			}
			nick = msg.Params[0]
		case irc.CmdUser:
			if len(msg.Params) == 0 {
				s.reply(conn, irc.ErrNeedMoreParams, "*", irc.CmdUser, "Not enough parameters")
				continue
			}
			user = msg.Params[0]
		case irc.CmdCap:
			// No capabilities are offered
			if len(msg.Params) > 0 && strings.EqualFold(msg.Params[0], "LS") {
				conn.WriteMessage(ircmsg.MakeMessage(nil, ServerName, irc.CmdCap, "*", "LS", ""))
			}
		case irc.CmdPing:
			conn.WriteMessage(ircmsg.MakeMessage(nil, ServerName, irc.CmdPong, append([]string{ServerName}, msg.Params...)...))
		case irc.CmdQuit:
			return nil, nil, ErrClientQuit
		}
	}

	if s.config.Password != "" && pass != s.config.Password {
		s.reply(conn, irc.ErrPasswdMismatch, nick, "Password incorrect")
		s.closeLink(conn, "Password incorrect")
		return nil, nil, ErrPasswordMismatch
	}

	name, networkName, _ := strings.Cut(user, "/")
	config, err := s.config.Network(networkName)
	if err != nil {
		s.closeLink(conn, err.Error())
		return nil, nil, err
	}

	network, ok := s.networks[strings.ToLower(config.Name)]
	if !ok {
		s.closeLink(conn, "Network "+config.Name+" is not running")
		return nil, nil, fmt.Errorf("%w: %s", ErrNetworkNotRunning, config.Name)
	}

	client := newClient(conn, nick, name, logger.With(zap.String("network", network.Name())))
	return client, network, nil
}

func (s *Server) reply(conn *Conn, numeric string, params ...string) {
	conn.WriteMessage(ircmsg.MakeMessage(nil, ServerName, numeric, params...))
}

func (s *Server) closeLink(conn *Conn, reason string) {
	conn.WriteMessage(ircmsg.MakeMessage(nil, "", irc.CmdError, "Closing link: "+reason))
}
