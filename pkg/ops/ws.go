package ops

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/telcine/telcine/pkg/server"
)

// wsTransport adapts a WebSocket connection to the session transport.
// Each frame write becomes one binary message, so the browser sees the
// same write boundaries a Telnet client does.
type wsTransport struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

func newWSTransport(conn *websocket.Conn) server.Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Name() string { return "websocket" }

// Negotiate is a no-op: the HTTP upgrade already framed the stream and
// browsers have no options to haggle over.
func (t *wsTransport) Negotiate(time.Duration) (server.Negotiation, error) {
	return server.Negotiation{
		Outcome: server.NegotiationComplete,
		Detail:  "upgrade",
	}, nil
}

func (t *wsTransport) Write(p []byte) (int, error) {
	if err := t.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// DrainInput discards browser messages until the peer goes away.
func (t *wsTransport) DrainInput() error {
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func (t *wsTransport) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }

func (t *wsTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

// Close sends a close frame on a best-effort basis, then drops the
// connection.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "fin"),
			time.Now().Add(time.Second))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
