package irc

import (
	"errors"
	"fmt"
)

// ErrLineTooLong is wrapped in a ParseError when a line exceeds MaxMessageLength.
var ErrLineTooLong = errors.New("line too long")

// Error types for line I/O.
// They tell callers whether the connection can keep being used.

// ParseError is returned when a line was read completely but could not be
// parsed as an IRC message.
//
// Common causes:
//   - Line without a command
//   - NUL or bare CR inside the line
//   - Oversized tag section
//   - Line longer than MaxMessageLength (ErrLineTooLong), already discarded
//
// Connection handling: framing is intact, the line can be skipped and the
// connection REUSED
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %q: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns false - one bad line does not desynchronise the stream
func (e *ParseError) ShouldCloseConnection() bool {
	return false
}

// FormatError is returned when a message cannot be serialised, for example
// a message without a command or with a space inside a middle parameter.
//
// Connection handling: nothing was written, the connection can be REUSED
type FormatError struct {
	Command string
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error: %s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *FormatError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns false - the message never reached the wire
func (e *FormatError) ShouldCloseConnection() bool {
	return false
}

// ConnectionError wraps underlying I/O errors from connection operations.
//
// Common causes:
//   - Connection closed by peer (io.EOF)
//   - Network timeout
//   - Connection reset
//
// Connection handling: Connection is already broken, CLOSE and potentially RECONNECT
type ConnectionError struct {
	Op  string // Operation that failed (read, write)
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by all codec error types.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns false for nil, ParseError and FormatError, true for ConnectionError and for any
// error type it does not know.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
