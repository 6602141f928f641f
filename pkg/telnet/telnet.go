package telnet

// Telnet command bytes (RFC 854).
const (
	SE   byte = 240 // subnegotiation end
	NOP  byte = 241
	BRK  byte = 243
	IP   byte = 244
	AO   byte = 245
	AYT  byte = 246
	EC   byte = 247
	EL   byte = 248
	GA   byte = 249
	SB   byte = 250 // subnegotiation begin
	WILL byte = 251
	WONT byte = 252
	DO   byte = 253
	DONT byte = 254
	IAC  byte = 255 // interpret as command
)

// Option codes this server negotiates.
const (
	OptEcho            byte = 1 // RFC 857
	OptSuppressGoAhead byte = 3 // RFC 858
)

// Result reports the outcome of option negotiation.
type Result struct {
	// EchoAcked is true once the client accepted our ECHO offer, meaning
	// it stops echoing its own keystrokes.
	EchoAcked bool

	// SGAAcked is true once the client accepted our suppress-go-ahead
	// offer for the server direction.
	SGAAcked bool

	// CharMode is true once the client agreed to suppress go-ahead for
	// its own direction, i.e. character-at-a-time mode.
	CharMode bool

	// Complete is true if all offers were answered before the
	// negotiation deadline. False means the session proceeded fail-open.
	Complete bool
}
