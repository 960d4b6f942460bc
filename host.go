package replyroute

import (
	"time"

	"github.com/ergochat/irc-go/ircmsg"
)

// ConnState is the state of the upstream connection as seen by the router.
type ConnState int

const (
	// StateDisconnected means a connection exists but is not registered with the server.
	StateDisconnected ConnState = iota
	// StateConnected means the server accepted the registration (RPL_WELCOME seen).
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Upstream is the server-facing connection shared by every client.
// A nil Upstream in Config means the network has no connection at all.
type Upstream interface {
	State() ConnState

	// Send forwards msg to the server. Delivery is fire-and-forget.
	Send(msg ircmsg.Message)
}

// Client is one downstream client connection.
//
// Clients are used as map keys and compared with ==, so implementations
// must be comparable; pointer types are the natural choice.
type Client interface {
	Send(msg ircmsg.Message)
}

// Timer is a pending single-shot callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already ran
	// or was already posted to the event loop.
	Stop() bool
}

// Timers schedules single-shot callbacks.
//
// Callbacks must run on the goroutine that drives the Router, never
// concurrently with another Router method.
type Timers interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Preferences is durable key/value storage for module settings.
type Preferences interface {
	// Preference returns the stored value for key, or "" when unset.
	Preference(key string) (string, error)
	SetPreference(key, value string) error
}

// NoticeFunc delivers a line of the module's control surface to one client.
type NoticeFunc func(client Client, text string)

// memoryPreferences is used when Config.Preferences is nil.
type memoryPreferences map[string]string

func (m memoryPreferences) Preference(key string) (string, error) {
	return m[key], nil
}

func (m memoryPreferences) SetPreference(key, value string) error {
	m[key] = value
	return nil
}
