package replyroute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules_Verbs(t *testing.T) {
	assert.Equal(t, []string{
		"ISON", "LINKS", "LIST", "LUSERS", "MAP", "METADATA", "MODE", "NAMES", "PING",
		"TIME", "TOPIC", "TRACE", "USERHOST", "USERS", "WHO", "WHOIS", "WHOWAS",
	}, DefaultRules().Verbs())
}

func TestDefaultRules_EveryVerbCanTerminate(t *testing.T) {
	for verb, rs := range DefaultRules() {
		t.Run(verb, func(t *testing.T) {
			assert.Equal(t, verb, rs.Verb)
			require.NotEmpty(t, rs.Replies)

			terminal := false
			for _, reply := range rs.Replies {
				terminal = terminal || reply.Terminal
				assert.NotEmpty(t, reply.Marker)
			}
			assert.True(t, terminal, "%s never ends", verb)
		})
	}
}

func TestRuleTable_Lookup(t *testing.T) {
	rules := DefaultRules()

	assert.NotNil(t, rules.Lookup("WHO"))
	assert.Same(t, rules.Lookup("WHO"), rules.Lookup("who"))
	assert.Nil(t, rules.Lookup("PRIVMSG"))
	assert.Nil(t, rules.Lookup(""))
}

func TestRuleSet_Match(t *testing.T) {
	who := DefaultRules().Lookup("WHO")

	reply, ok := who.Match("352")
	require.True(t, ok)
	assert.False(t, reply.Terminal)

	reply, ok = who.Match("315")
	require.True(t, ok)
	assert.True(t, reply.Terminal)

	_, ok = who.Match("366")
	assert.False(t, ok)

	ping := DefaultRules().Lookup("PING")
	reply, ok = ping.Match("pong")
	require.True(t, ok)
	assert.Equal(t, "PONG", reply.Marker)
}

func TestRuleSet_MatchFirstWins(t *testing.T) {
	rs := &RuleSet{Verb: "X", Replies: []Reply{
		{"100", false},
		{"100", true},
	}}

	reply, ok := rs.Match("100")
	require.True(t, ok)
	assert.False(t, reply.Terminal)
}

func TestNewRuleTable(t *testing.T) {
	first := &RuleSet{Verb: "foo", Replies: []Reply{{"1", true}}}
	second := &RuleSet{Verb: "FOO", Replies: []Reply{{"2", true}}}

	table := NewRuleTable(first, second)
	assert.Len(t, table, 1)
	assert.Same(t, second, table.Lookup("Foo"))
}
