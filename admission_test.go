package replyroute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleTable_Routable(t *testing.T) {
	tests := []struct {
		line string
		verb string // empty when not routable
	}{
		{"WHO #chan", "WHO"},
		{"who #chan", "WHO"},
		{"WHOIS nick", "WHOIS"},
		{"LIST", "LIST"},
		{"PING :123", "PING"},
		{"PRIVMSG #chan :hi", ""},
		{"JOIN #chan", ""},

		{"MODE #chan I", "MODE"},
		{"MODE #chan b", "MODE"},
		{"MODE #chan e", "MODE"},
		{"MODE #chan +b", "MODE"},
		{"MODE #chan", ""},
		{"MODE #chan :", ""},
		{"MODE #chan +o nick", ""},
		{"MODE #chan b *!*@host", ""},
		{"MODE #chan -b", ""},
		{"MODE #chan be", ""},
		{"MODE #chan B", ""},
		{"MODE #chan o", ""},
		{"MODE me +i", ""},

		{"TOPIC #chan", "TOPIC"},
		{"TOPIC", "TOPIC"},
		{"TOPIC #chan :new topic", ""},
		{"TOPIC #chan :", ""},
	}

	rules := DefaultRules()
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rs := rules.routable(parse(t, tt.line))
			if tt.verb == "" {
				assert.Nil(t, rs)
				return
			}
			if assert.NotNil(t, rs) {
				assert.Equal(t, tt.verb, rs.Verb)
			}
		})
	}
}
