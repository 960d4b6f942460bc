package replyroute

import (
	"sort"
	"strings"
)

// Reply is one expected reply to a routed request.
type Reply struct {
	// Marker is the reply's command: a three digit numeric or an upper-case verb.
	Marker string

	// Terminal marks the reply that ends the exchange.
	Terminal bool
}

// RuleSet is the ordered list of replies expected for one request verb.
// Order is precedence: the first reply with a matching marker wins.
//
// RuleSets are shared by pointer between every exchange for the same verb
// and must not be modified after construction.
type RuleSet struct {
	Verb    string
	Replies []Reply
}

// Match returns the first reply whose marker equals marker.
// The comparison is case-insensitive for verbs; numerics compare exactly.
func (rs *RuleSet) Match(marker string) (Reply, bool) {
	marker = strings.ToUpper(marker)
	for _, reply := range rs.Replies {
		if reply.Marker == marker {
			return reply, true
		}
	}
	return Reply{}, false
}

// RuleTable maps upper-case request verbs to their rule sets.
type RuleTable map[string]*RuleSet

// Lookup returns the rule set for verb, or nil if the verb is not routable.
func (t RuleTable) Lookup(verb string) *RuleSet {
	return t[strings.ToUpper(verb)]
}

// Verbs returns the routable verbs in alphabetical order.
func (t RuleTable) Verbs() []string {
	verbs := make([]string, 0, len(t))
	for verb := range t {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	return verbs
}

// NewRuleTable builds a table from rule sets, keyed by upper-cased verb.
// A later set for the same verb replaces an earlier one.
func NewRuleTable(sets ...*RuleSet) RuleTable {
	t := make(RuleTable, len(sets))
	for _, rs := range sets {
		t[strings.ToUpper(rs.Verb)] = rs
	}
	return t
}

// DefaultRules returns the built-in table. The table is shared; callers
// must not modify it.
//
// The lists are far from complete and no generic error replies are handled:
// a server answering with a numeric that is not listed leaves the exchange
// open until it times out.
func DefaultRules() RuleTable {
	return defaultRules
}

var defaultRules = NewRuleTable(
	&RuleSet{Verb: "WHO", Replies: []Reply{
		{"402", true},  // rfc1459 ERR_NOSUCHSERVER
		{"352", false}, // rfc1459 RPL_WHOREPLY
		{"315", true},  // rfc1459 RPL_ENDOFWHO
		{"354", false}, // RPL_WHOSPCRPL, e.g. Quakenet WHO #chan %n
		{"403", true},  // rfc1459 ERR_NOSUCHCHANNEL
	}},
	&RuleSet{Verb: "LIST", Replies: []Reply{
		{"402", true},  // rfc1459 ERR_NOSUCHSERVER
		{"321", false}, // rfc1459 RPL_LISTSTART
		{"322", false}, // rfc1459 RPL_LIST
		{"323", true},  // rfc1459 RPL_LISTEND
	}},
	&RuleSet{Verb: "NAMES", Replies: []Reply{
		{"353", false}, // rfc1459 RPL_NAMREPLY
		{"366", true},  // rfc1459 RPL_ENDOFNAMES
		{"401", true},  // rfc1459 ERR_NOSUCHNICK
		{"403", true},  // rfc1459 ERR_NOSUCHCHANNEL
	}},
	&RuleSet{Verb: "LUSERS", Replies: []Reply{
		{"251", false}, // rfc1459 RPL_LUSERCLIENT
		{"252", false}, // rfc1459 RPL_LUSEROP
		{"253", false}, // rfc1459 RPL_LUSERUNKNOWN
		{"254", false}, // rfc1459 RPL_LUSERCHANNELS
		{"255", false}, // rfc1459 RPL_LUSERME
		{"265", false}, // RPL_LOCALUSERS
		{"266", true},  // RPL_GLOBALUSERS
		// 250 is not handled, some servers never send it
	}},
	&RuleSet{Verb: "WHOIS", Replies: []Reply{
		{"311", false}, // rfc1459 RPL_WHOISUSER
		{"312", false}, // rfc1459 RPL_WHOISSERVER
		{"313", false}, // rfc1459 RPL_WHOISOPERATOR
		{"317", false}, // rfc1459 RPL_WHOISIDLE
		{"319", false}, // rfc1459 RPL_WHOISCHANNELS
		{"320", false}, // unreal RPL_WHOISSPECIAL
		{"301", false}, // rfc1459 RPL_AWAY
		{"276", false}, // oftc-hybrid RPL_WHOISCERTFP
		{"330", false}, // ratbox RPL_WHOISLOGGEDIN aka ircu RPL_WHOISACCOUNT
		{"337", false}, // solanum RPL_WHOISTEXT
		{"338", false}, // ircu RPL_WHOISACTUALLY
		{"378", false}, // RPL_WHOISHOST
		{"671", false}, // RPL_WHOISSECURE
		{"307", false}, // RPL_WHOISREGNICK
		{"379", false}, // RPL_WHOISMODES
		{"760", false}, // ircv3.2 RPL_WHOISKEYVALUE
		{"318", true},  // rfc1459 RPL_ENDOFWHOIS
		{"401", true},  // rfc1459 ERR_NOSUCHNICK
		{"402", true},  // rfc1459 ERR_NOSUCHSERVER
		{"431", true},  // rfc1459 ERR_NONICKNAMEGIVEN
	}},
	&RuleSet{Verb: "PING", Replies: []Reply{
		{"PONG", true},
		{"402", true}, // rfc1459 ERR_NOSUCHSERVER
		{"409", true}, // rfc1459 ERR_NOORIGIN
	}},
	&RuleSet{Verb: "USERHOST", Replies: []Reply{
		{"302", true}, // rfc1459 RPL_USERHOST
		{"461", true}, // rfc1459 ERR_NEEDMOREPARAMS
	}},
	&RuleSet{Verb: "TIME", Replies: []Reply{
		{"391", true}, // rfc1459 RPL_TIME
		{"402", true}, // rfc1459 ERR_NOSUCHSERVER
	}},
	&RuleSet{Verb: "WHOWAS", Replies: []Reply{
		{"406", false}, // rfc1459 ERR_WASNOSUCHNICK
		{"312", false}, // rfc1459 RPL_WHOISSERVER
		{"314", false}, // rfc1459 RPL_WHOWASUSER
		{"330", false}, // ratbox RPL_WHOISLOGGEDIN aka ircu RPL_WHOISACCOUNT
		{"338", false}, // ircu RPL_WHOISACTUALLY
		{"369", true},  // rfc1459 RPL_ENDOFWHOWAS
		{"431", true},  // rfc1459 ERR_NONICKNAMEGIVEN
	}},
	&RuleSet{Verb: "ISON", Replies: []Reply{
		{"303", true}, // rfc1459 RPL_ISON
		{"461", true}, // rfc1459 ERR_NEEDMOREPARAMS
	}},
	&RuleSet{Verb: "LINKS", Replies: []Reply{
		{"364", false}, // rfc1459 RPL_LINKS
		{"365", true},  // rfc1459 RPL_ENDOFLINKS
		{"402", true},  // rfc1459 ERR_NOSUCHSERVER
	}},
	&RuleSet{Verb: "MAP", Replies: []Reply{
		{"006", false}, // RPL_MAP
		{"270", false}, // inspircd RPL_MAPUSERS
		{"015", false},
		{"017", true},
		{"007", true}, // RPL_MAPEND
		{"481", true}, // rfc1459 ERR_NOPRIVILEGES
	}},
	&RuleSet{Verb: "TRACE", Replies: []Reply{
		{"200", false}, // rfc1459 RPL_TRACELINK
		{"201", false}, // rfc1459 RPL_TRACECONNECTING
		{"202", false}, // rfc1459 RPL_TRACEHANDSHAKE
		{"203", false}, // rfc1459 RPL_TRACEUNKNOWN
		{"204", false}, // rfc1459 RPL_TRACEOPERATOR
		{"205", false}, // rfc1459 RPL_TRACEUSER
		{"206", false}, // rfc1459 RPL_TRACESERVER
		{"208", false}, // rfc1459 RPL_TRACENEWTYPE
		{"261", false}, // rfc1459 RPL_TRACELOG
		{"262", true},  // RPL_TRACEEND
		{"402", true},  // rfc1459 ERR_NOSUCHSERVER
	}},
	&RuleSet{Verb: "USERS", Replies: []Reply{
		{"265", false}, // RPL_LOCALUSERS
		{"266", true},  // RPL_GLOBALUSERS
		{"392", false}, // rfc1459 RPL_USERSSTART
		{"393", false}, // rfc1459 RPL_USERS
		{"394", true},  // rfc1459 RPL_ENDOFUSERS
		{"395", false}, // rfc1459 RPL_NOUSERS
		{"402", true},  // rfc1459 ERR_NOSUCHSERVER
		{"424", true},  // rfc1459 ERR_FILEERROR
		{"446", true},  // rfc1459 ERR_USERSDISABLED
	}},
	&RuleSet{Verb: "METADATA", Replies: []Reply{
		{"761", false}, // ircv3.2 RPL_KEYVALUE
		{"762", true},  // ircv3.2 RPL_METADATAEND
		{"765", true},  // ircv3.2 ERR_TARGETINVALID
		{"766", true},  // ircv3.2 ERR_NOMATCHINGKEYS
		{"767", true},  // ircv3.2 ERR_KEYINVALID
		{"768", true},  // ircv3.2 ERR_KEYNOTSET
		{"769", true},  // ircv3.2 ERR_KEYNOPERMISSION
	}},
	// Every list-mode query shares one set. Only one exchange runs at a
	// time, so the replies of the different list modes cannot interleave.
	&RuleSet{Verb: "MODE", Replies: []Reply{
		{"482", true},  // rfc1459 ERR_CHANOPRIVSNEEDED
		{"346", false}, // RPL_INVITELIST (MODE I)
		{"347", true},  // RPL_ENDOFINVITELIST
		{"367", false}, // rfc1459 RPL_BANLIST (MODE b)
		{"368", true},  // rfc1459 RPL_ENDOFBANLIST
		{"348", false}, // RPL_EXCEPTLIST (MODE e)
		{"349", true},  // RPL_ENDOFEXCEPTLIST
		{"403", true},  // rfc1459 ERR_NOSUCHCHANNEL
		{"442", true},  // rfc1459 ERR_NOTONCHANNEL
		{"467", true},  // rfc1459 ERR_KEYSET
		{"472", true},  // rfc1459 ERR_UNKNOWNMODE
		{"501", true},  // rfc1459 ERR_UMODEUNKNOWNFLAG
		{"502", true},  // rfc1459 ERR_USERSDONTMATCH
	}},
	&RuleSet{Verb: "TOPIC", Replies: []Reply{
		{"461", true},  // rfc1459 ERR_NEEDMOREPARAMS
		{"403", true},  // rfc1459 ERR_NOSUCHCHANNEL
		{"442", true},  // rfc1459 ERR_NOTONCHANNEL
		{"482", true},  // rfc1459 ERR_CHANOPRIVSNEEDED
		{"331", true},  // rfc1459 RPL_NOTOPIC
		{"332", false}, // rfc1459 RPL_TOPIC
		{"333", true},  // ircu RPL_TOPICWHOTIME
	}},
)
