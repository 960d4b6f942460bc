package replyroute

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pior/replyroute/irc"
	"go.uber.org/zap"
)

// DefaultTimeout is how long an exchange may wait for its terminal reply.
const DefaultTimeout = 60 * time.Second

// DefaultModuleNick is the nick clients message to reach the control surface.
const DefaultModuleNick = "*replyroute"

// PreferenceSilentTimeouts disables the timeout diagnostic when true.
const PreferenceSilentTimeouts = "silent_timeouts"

var ErrMissingTimers = errors.New("replyroute: Config.Timers is required")

// Verdict tells the caller what to do with a message after the router saw it.
type Verdict int

const (
	// Passthrough leaves the message to default handling (forward or broadcast).
	Passthrough Verdict = iota

	// Handled means the router took the message. For server lines this also
	// skips the host's own processing of the line, not only the broadcast.
	Handled
)

func (v Verdict) String() string {
	if v == Handled {
		return "handled"
	}
	return "passthrough"
}

// Config holds configuration for a Router.
type Config struct {
	// Upstream is the shared server connection.
	// Nil means no connection exists and every command passes through.
	Upstream Upstream

	// Timers schedules the exchange timeout.
	// Required: callbacks must run on the goroutine driving the Router.
	Timers Timers

	// Preferences stores the silent_timeouts setting.
	// If nil, an in-memory store is used.
	Preferences Preferences

	// Notice delivers control surface lines to a client.
	// If nil, control surface output is discarded.
	Notice NoticeFunc

	// Timeout is the per-exchange timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	// Rules is the reply rule table. If nil, DefaultRules is used.
	Rules RuleTable

	// ModuleNick is shown in the timeout diagnostic. Empty means DefaultModuleNick.
	ModuleNick string

	// Logger receives debug traces of routing decisions. If nil, logging is disabled.
	Logger *zap.Logger
}

// Router serialises ambiguous request/reply exchanges over one upstream
// connection and delivers each reply set only to the client that asked.
//
// A Router is not safe for concurrent use: every method, timer callbacks
// included, must be called from the same event loop. Stats is the exception.
type Router struct {
	upstream   Upstream
	timers     Timers
	prefs      Preferences
	notice     NoticeFunc
	rules      RuleTable
	timeout    time.Duration
	moduleNick string
	logger     *zap.Logger

	pending *pendingQueue
	active  *exchange // nil when idle

	timer    Timer
	timerGen uint64

	stats *routerStatsCollector
}

// NewRouter creates a Router for one upstream connection.
func NewRouter(config Config) (*Router, error) {
	if config.Timers == nil {
		return nil, ErrMissingTimers
	}

	r := &Router{
		upstream:   config.Upstream,
		timers:     config.Timers,
		prefs:      config.Preferences,
		notice:     config.Notice,
		rules:      config.Rules,
		timeout:    config.Timeout,
		moduleNick: config.ModuleNick,
		logger:     config.Logger,
		pending:    newPendingQueue(),
		stats:      newRouterStatsCollector(),
	}

	if r.prefs == nil {
		r.prefs = memoryPreferences{}
	}
	if r.notice == nil {
		r.notice = func(Client, string) {}
	}
	if r.rules == nil {
		r.rules = DefaultRules()
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.moduleNick == "" {
		r.moduleNick = DefaultModuleNick
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	return r, nil
}

// OnClientCommand is called for every command a client sends, before it is
// forwarded upstream. Handled means the router queued the command and will
// send it itself.
func (r *Router) OnClientCommand(client Client, msg ircmsg.Message) Verdict {
	if r.upstream == nil || r.upstream.State() != StateConnected {
		r.stats.recordPassthrough()
		return Passthrough
	}

	rules := r.rules.routable(msg)
	if rules == nil {
		r.stats.recordPassthrough()
		return Passthrough
	}

	r.pending.push(client, queuedRequest{msg: msg, rules: rules})
	r.stats.recordAdmit()
	r.stats.setPending(r.pending.len())

	r.logger.Debug("request queued",
		clientField(client),
		zap.String("verb", rules.Verb),
		zap.Int("pending", r.pending.len()))

	r.progress()
	return Handled
}

// OnServerLine is called for every line received from the server, before
// the host processes or broadcasts it.
func (r *Router) OnServerLine(msg ircmsg.Message) Verdict {
	if r.active == nil {
		return Passthrough
	}

	marker := strings.ToUpper(msg.Command)

	// :server 461 nick WHO :Not enough parameters
	// The server rejected the request we forwarded.
	if marker == irc.ErrNeedMoreParams && len(msg.Params) > 1 &&
		strings.EqualFold(msg.Params[1], r.active.request.Command) {
		return r.route(msg, true)
	}

	reply, ok := r.active.rules.Match(marker)
	if !ok {
		return Passthrough
	}
	return r.route(msg, reply.Terminal)
}

// OnUpstreamConnected resets all state: nothing sent on a previous
// connection can still be answered.
func (r *Router) OnUpstreamConnected() {
	r.reset("upstream connected")
}

// OnUpstreamDisconnected resets all state. Queued requests are dropped, not
// flushed, since there is no connection to flush them to.
func (r *Router) OnUpstreamDisconnected() {
	r.reset("upstream disconnected")
}

// OnClientDisconnected releases the exchange owned by client, if any, and
// drops the client's queued requests.
//
// Replies still in flight for a released exchange fall through to default
// handling and are broadcast to the remaining clients.
func (r *Router) OnClientDisconnected(client Client) {
	if r.active != nil && r.active.owns(client) {
		r.stopTimer()
		r.active = nil
		r.stats.recordAbandon()
		r.logger.Debug("exchange abandoned by client", clientField(client))
	}

	if n := r.pending.remove(client); n > 0 {
		r.stats.recordDropped(n)
		r.stats.setPending(r.pending.len())
	}

	r.progress()
}

// Close sends every queued request upstream unrouted, so none is silently
// lost, and clears all state. The Router must not be used afterwards.
func (r *Router) Close() {
	r.stopTimer()
	r.active = nil

	r.pending.drain(func(_ Client, req queuedRequest) {
		if r.upstream != nil {
			r.upstream.Send(req.msg)
		}
		r.stats.recordFlushed()
	})

	r.stats.setPending(0)
	r.stats.recordIdle()
}

// Stats returns a snapshot of router statistics. Safe for concurrent use.
func (r *Router) Stats() RouterStats {
	return r.stats.snapshot()
}

// route delivers msg to the owner of the active exchange.
func (r *Router) route(msg ircmsg.Message, terminal bool) Verdict {
	ex := r.active
	ex.client.Send(msg)
	r.stats.recordRouted()

	if terminal {
		r.stopTimer()
		r.active = nil
		r.stats.recordComplete()

		r.logger.Debug("exchange completed",
			clientField(ex.client),
			zap.String("verb", ex.rules.Verb),
			zap.String("reply", msg.Command))

		r.progress()
	}
	return Handled
}

// progress promotes the next queued request when no exchange is in flight.
// It is safe to call after any state change.
func (r *Router) progress() {
	if r.active != nil {
		return
	}

	client, req, ok := r.pending.pop()
	if !ok {
		return
	}
	r.stats.setPending(r.pending.len())

	r.armTimer()
	r.active = newExchange(client, req)
	r.stats.recordPromote()

	r.logger.Debug("request sent",
		clientField(client),
		zap.String("request", irc.String(req.msg)))

	r.upstream.Send(req.msg)
}

// armTimer replaces any running timer with a fresh one for the new exchange.
func (r *Router) armTimer() {
	r.stopTimer()

	r.timerGen++
	gen := r.timerGen
	r.timer = r.timers.AfterFunc(r.timeout, func() {
		r.onTimeout(gen)
	})
}

func (r *Router) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// onTimeout abandons the stalled exchange. Callbacks from a timer that was
// stopped or replaced after it fired are ignored.
func (r *Router) onTimeout(gen uint64) {
	if r.timer == nil || gen != r.timerGen {
		return
	}

	// The host owns the fired timer, never reuse it
	r.timer = nil

	ex := r.active
	if ex == nil {
		return
	}

	r.logger.Info("exchange timed out",
		clientField(ex.client),
		zap.String("request", irc.String(ex.request)),
		zap.Duration("timeout", r.timeout))

	if !r.silent() {
		r.reportTimeout(ex)
	}

	r.active = nil
	r.stats.recordTimeout()
	r.progress()
}

func (r *Router) reportTimeout(ex *exchange) {
	lines := []string{
		"This module hit a timeout which is probably a connectivity issue.",
		"However, if you can provide steps to reproduce this issue, please do report a bug.",
		fmt.Sprintf("To disable this message, do \"/msg %s silent yes\"", r.moduleNick),
		"Last request: " + irc.String(ex.request),
		"Expected replies:",
	}
	for _, reply := range ex.rules.Replies {
		if reply.Terminal {
			lines = append(lines, reply.Marker+" (last)")
		} else {
			lines = append(lines, reply.Marker)
		}
	}

	for _, line := range lines {
		r.notice(ex.client, line)
	}
}

func (r *Router) silent() bool {
	value, err := r.prefs.Preference(PreferenceSilentTimeouts)
	if err != nil {
		r.logger.Warn("failed to read preference",
			zap.String("key", PreferenceSilentTimeouts),
			zap.Error(err))
		return false
	}
	return parseBool(value)
}

func (r *Router) reset(reason string) {
	r.stopTimer()
	if r.active != nil {
		r.active = nil
		r.stats.recordAbandon()
	}

	if n := r.pending.clear(); n > 0 {
		r.stats.recordDropped(n)
		r.logger.Debug("queued requests dropped", zap.String("reason", reason), zap.Int("count", n))
	}
	r.stats.setPending(0)
}

// parseBool interprets a stored preference. Empty, all zeros, "false",
// "off", "no" and "n" are false; anything else is true.
func parseBool(value string) bool {
	value = strings.TrimSpace(value)
	if strings.Trim(value, "0") == "" {
		return false
	}
	switch strings.ToLower(value) {
	case "false", "off", "no", "n":
		return false
	}
	return true
}

func clientField(client Client) zap.Field {
	if s, ok := client.(fmt.Stringer); ok {
		return zap.Stringer("client", s)
	}
	return zap.String("client", fmt.Sprintf("%T", client))
}
