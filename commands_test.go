package replyroute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControl_Silent(t *testing.T) {
	r := newTestRouter(t)
	a := newFakeClient("a")

	r.OnControlCommand(a, "silent")
	r.OnControlCommand(a, "silent yes")
	r.OnControlCommand(a, "SILENT")
	r.OnControlCommand(a, "silent no")

	assert.Equal(t, []string{
		"Timeout messages are enabled.",
		"Timeout messages are disabled.",
		"Timeout messages are disabled.",
		"Timeout messages are enabled.",
	}, a.notices)
	assert.Equal(t, "no", r.prefs[PreferenceSilentTimeouts])
}

func TestControl_SilentStoreFailure(t *testing.T) {
	var notices []string
	r, err := NewRouter(Config{
		Timers:      &manualTimers{},
		Preferences: failingPreferences{},
		Notice:      func(_ Client, text string) { notices = append(notices, text) },
	})
	assert.NoError(t, err)

	r.OnControlCommand(newFakeClient("a"), "silent yes")
	assert.Equal(t, []string{"Failed to save the setting."}, notices)
}

func TestControl_Help(t *testing.T) {
	r := newTestRouter(t)
	a := newFakeClient("a")

	r.OnControlCommand(a, "help")
	assert.Equal(t, []string{
		"help [search]: Generates this output",
		"silent [yes|no]: Decides whether to show the timeout messages or not",
	}, a.notices)

	a.notices = nil
	r.OnControlCommand(a, "")
	assert.Len(t, a.notices, 2)

	a.notices = nil
	r.OnControlCommand(a, "help SIL")
	assert.Equal(t, []string{"silent [yes|no]: Decides whether to show the timeout messages or not"}, a.notices)

	a.notices = nil
	r.OnControlCommand(a, "help nothing")
	assert.Equal(t, []string{"No matches for 'nothing'"}, a.notices)
}

func TestControl_Unknown(t *testing.T) {
	r := newTestRouter(t)
	a := newFakeClient("a")

	r.OnControlCommand(a, "frobnicate now")
	assert.Equal(t, []string{`Unknown command "frobnicate". Try: help`}, a.notices)
}
