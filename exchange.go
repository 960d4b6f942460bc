package replyroute

import "github.com/ergochat/irc-go/ircmsg"

// exchange is the request currently in flight on the upstream connection.
// The Router holds either no exchange (nil) or one with both client and
// rules set; the two are never set or cleared independently.
type exchange struct {
	client Client
	rules  *RuleSet

	// request is kept for diagnostics and for matching ERR_NEEDMOREPARAMS.
	request ircmsg.Message
}

func newExchange(client Client, req queuedRequest) *exchange {
	if client == nil || req.rules == nil {
		panic("replyroute: exchange needs both a client and a rule set")
	}
	return &exchange{
		client:  client,
		rules:   req.rules,
		request: req.msg,
	}
}

// owns reports whether the exchange was requested by client.
func (e *exchange) owns(client Client) bool {
	return e.client == client
}
