package replyroute

import (
	"errors"
	"testing"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pior/replyroute/irc"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	state ConnState
	sent  []ircmsg.Message
}

func (u *fakeUpstream) State() ConnState {
	return u.state
}

func (u *fakeUpstream) Send(msg ircmsg.Message) {
	u.sent = append(u.sent, msg)
}

func (u *fakeUpstream) lines() []string {
	return messageLines(u.sent)
}

type fakeClient struct {
	name     string
	received []ircmsg.Message
	notices  []string
}

func newFakeClient(name string) *fakeClient {
	return &fakeClient{name: name}
}

func (c *fakeClient) Send(msg ircmsg.Message) {
	c.received = append(c.received, msg)
}

func (c *fakeClient) String() string {
	return c.name
}

func verbsOf(msgs []ircmsg.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Command)
	}
	return out
}

// manualTimers records every timer and fires them only when told to.
type manualTimers struct {
	created []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{d: d, f: f}
	m.created = append(m.created, t)
	return t
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// pending returns timers that were neither stopped nor fired.
func (m *manualTimers) pending() []*manualTimer {
	var out []*manualTimer
	for _, t := range m.created {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the single pending timer.
func (m *manualTimers) fire(t *testing.T) {
	t.Helper()
	pending := m.pending()
	require.Len(t, pending, 1, "expected exactly one pending timer")
	pending[0].fired = true
	pending[0].f()
}

type failingPreferences struct{}

func (failingPreferences) Preference(string) (string, error) {
	return "", errors.New("disk on fire")
}

func (failingPreferences) SetPreference(string, string) error {
	return errors.New("disk on fire")
}

type testRouter struct {
	*Router
	upstream *fakeUpstream
	timers   *manualTimers
	prefs    memoryPreferences
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()

	tr := &testRouter{
		upstream: &fakeUpstream{state: StateConnected},
		timers:   &manualTimers{},
		prefs:    memoryPreferences{},
	}

	r, err := NewRouter(Config{
		Upstream:    tr.upstream,
		Timers:      tr.timers,
		Preferences: tr.prefs,
		Notice: func(client Client, text string) {
			c := client.(*fakeClient)
			c.notices = append(c.notices, text)
		},
	})
	require.NoError(t, err)
	tr.Router = r
	return tr
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
