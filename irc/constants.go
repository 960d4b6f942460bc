package irc

// Line framing
const (
	CRLF = "\r\n"

	// MaxLineLength is the RFC 1459 limit including CRLF.
	MaxLineLength = 512

	// MaxTagsLength is the IRCv3 allowance for the tag section.
	MaxTagsLength = 8191

	// MaxMessageLength is the longest line ReadMessage accepts, CRLF included.
	MaxMessageLength = MaxTagsLength + MaxLineLength
)

// Command verbs
const (
	CmdPass     = "PASS"
	CmdNick     = "NICK"
	CmdUser     = "USER"
	CmdQuit     = "QUIT"
	CmdPing     = "PING"
	CmdPong     = "PONG"
	CmdPrivmsg  = "PRIVMSG"
	CmdNotice   = "NOTICE"
	CmdError    = "ERROR"
	CmdWho      = "WHO"
	CmdWhois    = "WHOIS"
	CmdWhowas   = "WHOWAS"
	CmdList     = "LIST"
	CmdNames    = "NAMES"
	CmdLusers   = "LUSERS"
	CmdUserhost = "USERHOST"
	CmdTime     = "TIME"
	CmdIson     = "ISON"
	CmdLinks    = "LINKS"
	CmdMap      = "MAP"
	CmdTrace    = "TRACE"
	CmdUsers    = "USERS"
	CmdMetadata = "METADATA"
	CmdMode     = "MODE"
	CmdTopic    = "TOPIC"
	CmdCap      = "CAP"
)

// Numeric replies used outside the reply rule table
const (
	RplWelcome         = "001" // rfc2812 RPL_WELCOME
	ErrNeedMoreParams  = "461" // rfc1459 ERR_NEEDMOREPARAMS
	ErrPasswdMismatch  = "464" // rfc1459 ERR_PASSWDMISMATCH
	ErrNoNicknameGiven = "431" // rfc1459 ERR_NONICKNAMEGIVEN
	ErrUnknownCommand  = "421" // rfc1459 ERR_UNKNOWNCOMMAND
	ErrNicknameInUse   = "433" // rfc1459 ERR_NICKNAMEINUSE
)
