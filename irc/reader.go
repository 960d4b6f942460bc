package irc

import (
	"bufio"
	"bytes"

	"github.com/ergochat/irc-go/ircmsg"
)

// ReadMessage reads and parses the next non-empty line from r.
// Both CRLF and bare LF terminators are accepted. A line longer than
// MaxMessageLength is discarded up to its terminator, so memory stays
// bounded whatever the peer sends.
//
// Go errors returned:
//   - ConnectionError: read failed (including io.EOF), close the connection
//   - ParseError: the line was malformed or too long, skip it and keep reading
func ReadMessage(r *bufio.Reader) (ircmsg.Message, error) {
	for {
		line, err := r.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			// Line exceeds buffer, accumulate up to the limit (allocates)
			buf := append([]byte(nil), line...)
			for err == bufio.ErrBufferFull && len(buf) <= MaxMessageLength {
				line, err = r.ReadSlice('\n')
				buf = append(buf, line...)
			}
			line = buf
		}
		for err == bufio.ErrBufferFull {
			_, err = r.ReadSlice('\n')
		}
		if err != nil {
			return ircmsg.Message{}, &ConnectionError{Op: "read", Err: err}
		}

		if len(line) > MaxMessageLength {
			return ircmsg.Message{}, &ParseError{Line: string(line[:MaxLineLength]), Err: ErrLineTooLong}
		}

		line = bytes.TrimRight(line, CRLF)
		if len(line) == 0 {
			continue
		}

		text := string(line)
		msg, err := ircmsg.ParseLine(text)
		if err != nil {
			return ircmsg.Message{}, &ParseError{Line: text, Err: err}
		}
		return msg, nil
	}
}
