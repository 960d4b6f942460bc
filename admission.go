package replyroute

import (
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pior/replyroute/irc"
)

// listModes are the channel modes whose query returns a reply list.
const listModes = "Ibe"

// routable returns the rule set for a client command, or nil when the
// command must be left to default handling.
func (t RuleTable) routable(msg ircmsg.Message) *RuleSet {
	verb := strings.ToUpper(msg.Command)

	switch verb {
	case irc.CmdMode:
		if !isListModeQuery(msg.Params) {
			return nil
		}
	case irc.CmdTopic:
		// TOPIC #chan :text changes the topic and every client must see it
		if len(msg.Params) > 1 {
			return nil
		}
	}

	return t.Lookup(verb)
}

// isListModeQuery reports whether MODE params ask for a single list mode
// without changing anything: "#chan b", "#chan +I".
func isListModeQuery(params []string) bool {
	// Arguments after the mode string mean a change, e.g. +o nick
	if len(params) > 2 {
		return false
	}

	// MODE #chan alone is answered from channel state by the bouncer itself
	if len(params) < 2 || params[1] == "" {
		return false
	}

	mode := strings.TrimPrefix(params[1], "+")
	if len(mode) != 1 {
		return false
	}
	return strings.Contains(listModes, mode)
}
