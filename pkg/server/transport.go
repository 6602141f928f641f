package server

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/telcine/telcine/pkg/telnet"
)

// Negotiation outcomes, used as log fields and metric labels.
const (
	NegotiationComplete = "complete" // every offer answered
	NegotiationPartial  = "partial"  // deadline passed, played fail-open
	NegotiationFailed   = "failed"   // connection died during negotiation
)

// Negotiation describes how a transport's pre-playback handshake went.
type Negotiation struct {
	Outcome string
	Detail  string // transport-specific, for logs
}

// Transport is one client connection as a session sees it: a sink for
// rendered frames, an input drain for disconnect detection, and a
// pre-playback handshake.
type Transport interface {
	io.WriteCloser

	// Name identifies the transport kind in logs and metrics.
	Name() string

	// Negotiate runs the transport's handshake. Protocols that can
	// proceed without answers must fail open within the timeout; an
	// error means the client is unusable and the session never plays.
	Negotiate(timeout time.Duration) (Negotiation, error)

	// DrainInput consumes and discards client input, returning when the
	// peer disconnects or the transport closes. Sessions use the return
	// as their disconnect signal.
	DrainInput() error

	// SetWriteDeadline bounds the next writes.
	SetWriteDeadline(t time.Time) error

	RemoteAddr() net.Addr
}

// telnetTransport adapts a raw TCP connection through the Telnet framing
// and negotiation layer.
type telnetTransport struct {
	conn *telnet.Conn
}

// NewTelnetTransport wraps an accepted TCP connection.
func NewTelnetTransport(c net.Conn) Transport {
	return &telnetTransport{conn: telnet.NewConn(c)}
}

func (t *telnetTransport) Name() string { return "telnet" }

func (t *telnetTransport) Negotiate(timeout time.Duration) (Negotiation, error) {
	res, err := t.conn.Negotiate(timeout)
	neg := Negotiation{
		Outcome: NegotiationPartial,
		Detail: fmt.Sprintf("echo=%t sga=%t charmode=%t",
			res.EchoAcked, res.SGAAcked, res.CharMode),
	}
	if err != nil {
		neg.Outcome = NegotiationFailed
		return neg, err
	}
	if res.Complete {
		neg.Outcome = NegotiationComplete
	}
	return neg, nil
}

func (t *telnetTransport) DrainInput() error {
	_, err := io.Copy(io.Discard, t.conn)
	return err
}

func (t *telnetTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }

func (t *telnetTransport) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }

func (t *telnetTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *telnetTransport) Close() error { return t.conn.Close() }
