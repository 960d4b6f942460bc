// Package irc provides the line codec shared by the upstream and downstream
// sides of the bouncer.
//
// Messages are github.com/ergochat/irc-go/ircmsg values; this package only
// frames them on the wire and classifies failures.
//
// # Reading and Writing
//
// ReadMessage reads one line from a bufio.Reader and parses it:
//
//	msg, err := irc.ReadMessage(r)
//	if err != nil {
//	    if irc.ShouldCloseConnection(err) {
//	        conn.Close()
//	        return err
//	    }
//	    // malformed line, skip it
//	}
//
// WriteMessage serialises a message and terminates it with CRLF:
//
//	err := irc.WriteMessage(conn, ircmsg.MakeMessage(nil, "", irc.CmdWho, "#chan"))
//
// # Error Handling
//
//   - ParseError: a single line could not be parsed, the stream is still framed
//     and the connection can be REUSED
//   - ConnectionError: network/I/O error, connection already broken
//
// # Constants
//
// Command verbs (CmdWho, CmdMode, ...) and the numeric replies the bouncer
// itself needs (RplWelcome, ErrNeedMoreParams, ...) are defined in
// constants.go.
//
// # Thread Safety
//
// ReadMessage and WriteMessage hold no state. Callers serialise access to a
// given reader or writer.
package irc
