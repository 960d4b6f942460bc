package irc

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldCloseConnection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"parse error", &ParseError{Line: "x", Err: errors.New("bad")}, false},
		{"connection error", &ConnectionError{Op: "read", Err: io.EOF}, true},
		{"wrapped parse error", fmt.Errorf("upstream: %w", &ParseError{Line: "x"}), false},
		{"format error", &FormatError{Command: "PRIVMSG", Err: errors.New("bad")}, false},
		{"unknown error", errors.New("something else"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldCloseConnection(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "connection error during read: EOF", (&ConnectionError{Op: "read", Err: io.EOF}).Error())
	assert.Equal(t, `parse error: "x": bad`, (&ParseError{Line: "x", Err: errors.New("bad")}).Error())
}
