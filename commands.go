package replyroute

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type command struct {
	name        string
	args        string
	description string
}

var commands = []command{
	{name: "help", args: "[search]", description: "Generates this output"},
	{name: "silent", args: "[yes|no]", description: "Decides whether to show the timeout messages or not"},
}

// OnControlCommand runs a line a client sent to the module nick.
// Command names are case-insensitive.
func (r *Router) OnControlCommand(client Client, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		r.helpCommand(client, nil)
		return
	}

	switch strings.ToLower(fields[0]) {
	case "help":
		r.helpCommand(client, fields[1:])
	case "silent":
		r.silentCommand(client, fields[1:])
	default:
		r.notice(client, fmt.Sprintf("Unknown command %q. Try: help", fields[0]))
	}
}

func (r *Router) helpCommand(client Client, args []string) {
	var filter string
	if len(args) > 0 {
		filter = strings.ToLower(args[0])
	}

	matched := false
	for _, cmd := range commands {
		if filter != "" && !strings.Contains(cmd.name, filter) {
			continue
		}
		matched = true
		r.notice(client, fmt.Sprintf("%s %s: %s", cmd.name, cmd.args, cmd.description))
	}

	if !matched {
		r.notice(client, "No matches for '"+args[0]+"'")
	}
}

// silentCommand stores the given value, if any, and reports the current state.
func (r *Router) silentCommand(client Client, args []string) {
	if len(args) > 0 {
		if err := r.prefs.SetPreference(PreferenceSilentTimeouts, args[0]); err != nil {
			r.logger.Warn("failed to store preference",
				zap.String("key", PreferenceSilentTimeouts),
				zap.Error(err))
			r.notice(client, "Failed to save the setting.")
			return
		}
	}

	if r.silent() {
		r.notice(client, "Timeout messages are disabled.")
	} else {
		r.notice(client, "Timeout messages are enabled.")
	}
}
