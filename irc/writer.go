package irc

import (
	"bufio"
	"io"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// WriteMessage serialises msg and writes it to w terminated by CRLF.
// A *bufio.Writer is flushed before returning.
//
// Serialisation failures are returned as FormatError; write failures are
// wrapped in ConnectionError.
func WriteMessage(w io.Writer, msg ircmsg.Message) error {
	line, err := FormatMessage(msg)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, line); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}

	if bw, ok := w.(*bufio.Writer); ok {
		if err := bw.Flush(); err != nil {
			return &ConnectionError{Op: "write", Err: err}
		}
	}
	return nil
}

// FormatMessage returns the wire form of msg, CRLF included.
func FormatMessage(msg ircmsg.Message) (string, error) {
	line, err := msg.Line()
	if err != nil {
		return "", &FormatError{Command: msg.Command, Err: err}
	}
	return strings.TrimRight(line, CRLF) + CRLF, nil
}

// String returns the wire form of msg without CRLF, for logs and diagnostics.
// Unserialisable messages fall back to the command and parameters joined by spaces.
func String(msg ircmsg.Message) string {
	line, err := msg.Line()
	if err != nil {
		return strings.TrimSpace(msg.Command + " " + strings.Join(msg.Params, " "))
	}
	return strings.TrimRight(line, CRLF)
}
