package telnet

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// parseState tracks where the incoming byte stream is inside a command
// sequence. State survives across Read calls, so sequences split over
// several TCP segments parse correctly.
type parseState int

const (
	stateData parseState = iota
	stateIAC             // seen IAC
	stateOption          // seen IAC WILL/WONT/DO/DONT, option byte next
	stateSub             // inside IAC SB ... IAC SE
	stateSubIAC          // seen IAC inside subnegotiation
)

// offersSent is the number of options Negotiate proposes and therefore the
// number of answers that make a negotiation complete.
const offersSent = 3

// Conn wraps a net.Conn with the Telnet data-phase framing rules. It
// implements net.Conn. Read strips command sequences and answers option
// proposals; Write escapes IAC bytes in the payload. Reads and writes may
// run concurrently from different goroutines, but each direction must be
// driven by a single goroutine at a time.
type Conn struct {
	conn net.Conn
	br   *bufio.Reader

	// writeMu serializes payload writes with protocol replies issued
	// from the read path.
	writeMu sync.Mutex

	state   parseState
	command byte // pending WILL/WONT/DO/DONT awaiting its option byte

	res      Result
	answered int
	echoAns  bool
	sgaAns   bool
	charAns  bool
}

// NewConn wraps an accepted connection.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		conn: c,
		br:   bufio.NewReader(c),
	}
}

// Negotiate sends the option offers and collects answers until all offers
// are answered or the timeout passes. A quiet, slow, or confused client is
// not an error: negotiation fails open and the returned Result reports what
// was actually agreed. The error is non-nil only when the connection itself
// failed.
func (c *Conn) Negotiate(timeout time.Duration) (Result, error) {
	offer := []byte{
		IAC, WILL, OptEcho,
		IAC, WILL, OptSuppressGoAhead,
		IAC, DO, OptSuppressGoAhead,
	}
	if err := c.writeRaw(offer); err != nil {
		return c.res, fmt.Errorf("telnet: send offers: %w", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return c.res, fmt.Errorf("telnet: set negotiation deadline: %w", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for c.answered < offersSent {
		b, err := c.br.ReadByte()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return c.res, nil // fail open
			}
			return c.res, fmt.Errorf("telnet: read answer: %w", err)
		}
		// Data bytes sent during negotiation are discarded.
		if _, _, reply := c.parseByte(b); len(reply) > 0 {
			if err := c.writeRaw(reply); err != nil {
				return c.res, fmt.Errorf("telnet: send reply: %w", err)
			}
		}
	}
	c.res.Complete = true
	return c.res, nil
}

// Read fills p with data bytes, stripping command sequences. It blocks until
// at least one data byte arrives or the connection errors. Option proposals
// encountered mid-stream are refused; reply failures are not reported here,
// they surface on the next read of the broken connection.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for {
		b, err := c.br.ReadByte()
		if err != nil {
			return n, err
		}
		data, ok, reply := c.parseByte(b)
		if len(reply) > 0 {
			c.writeRaw(reply)
		}
		if ok {
			p[n] = data
			n++
			if n == len(p) {
				return n, nil
			}
		}
		if n > 0 && c.br.Buffered() == 0 {
			return n, nil
		}
	}
}

// Write sends p, doubling IAC bytes so the client never mistakes payload
// for commands.
func (c *Conn) Write(p []byte) (int, error) {
	if bytes.IndexByte(p, IAC) < 0 {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.conn.Write(p)
	}

	buf := make([]byte, 0, len(p)+4)
	for _, b := range p {
		buf = append(buf, b)
		if b == IAC {
			buf = append(buf, IAC)
		}
	}

	c.writeMu.Lock()
	written, err := c.conn.Write(buf)
	c.writeMu.Unlock()
	if err == nil {
		return len(p), nil
	}
	return sourceBytes(buf, written), err
}

// sourceBytes maps a byte count in the escaped stream back to the number of
// payload bytes fully written.
func sourceBytes(buf []byte, written int) int {
	n := 0
	for i := 0; i < written; {
		if buf[i] == IAC {
			if i+1 >= written {
				break // escape pair split by the failure
			}
			i += 2
		} else {
			i++
		}
		n++
	}
	return n
}

func (c *Conn) writeRaw(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(p)
	return err
}

// parseByte advances the stream state machine by one byte. It returns the
// data byte (if this byte produced one) and any protocol reply owed.
func (c *Conn) parseByte(b byte) (data byte, ok bool, reply []byte) {
	switch c.state {
	case stateData:
		if b == IAC {
			c.state = stateIAC
			return 0, false, nil
		}
		return b, true, nil

	case stateIAC:
		switch b {
		case IAC:
			// Escaped literal 0xFF.
			c.state = stateData
			return IAC, true, nil
		case WILL, WONT, DO, DONT:
			c.command = b
			c.state = stateOption
			return 0, false, nil
		case SB:
			c.state = stateSub
			return 0, false, nil
		default:
			// NOP, GA, AYT and friends need no answer.
			c.state = stateData
			return 0, false, nil
		}

	case stateOption:
		c.state = stateData
		return 0, false, c.handleOption(c.command, b)

	case stateSub:
		if b == IAC {
			c.state = stateSubIAC
		}
		return 0, false, nil

	case stateSubIAC:
		switch b {
		case SE:
			c.state = stateData
		default:
			// Escaped IAC or a stray command inside the
			// subnegotiation; keep swallowing until IAC SE.
			c.state = stateSub
		}
		return 0, false, nil
	}
	return 0, false, nil
}

// handleOption applies one option answer or proposal. Our three offers are
// recorded; anything else is refused.
func (c *Conn) handleOption(cmd, opt byte) []byte {
	switch cmd {
	case DO:
		switch opt {
		case OptEcho:
			c.recordEcho(true)
			return nil
		case OptSuppressGoAhead:
			c.recordSGA(true)
			return nil
		default:
			return []byte{IAC, WONT, opt}
		}

	case DONT:
		switch opt {
		case OptEcho:
			c.recordEcho(false)
			return []byte{IAC, WONT, opt}
		case OptSuppressGoAhead:
			c.recordSGA(false)
			return []byte{IAC, WONT, opt}
		default:
			// Already WONT everything else; no state change, no
			// reply, no loop.
			return nil
		}

	case WILL:
		if opt == OptSuppressGoAhead {
			c.recordCharMode(true)
			return nil
		}
		return []byte{IAC, DONT, opt}

	case WONT:
		if opt == OptSuppressGoAhead {
			c.recordCharMode(false)
			return []byte{IAC, DONT, opt}
		}
		return nil
	}
	return nil
}

func (c *Conn) recordEcho(acked bool) {
	if !c.echoAns {
		c.echoAns = true
		c.answered++
	}
	c.res.EchoAcked = acked
}

func (c *Conn) recordSGA(acked bool) {
	if !c.sgaAns {
		c.sgaAns = true
		c.answered++
	}
	c.res.SGAAcked = acked
}

func (c *Conn) recordCharMode(acked bool) {
	if !c.charAns {
		c.charAns = true
		c.answered++
	}
	c.res.CharMode = acked
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// SetDeadline sets the read and write deadlines.
func (c *Conn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// SetReadDeadline sets the read deadline.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline on future payload writes.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
