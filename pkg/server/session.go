package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telcine/telcine/internal/metrics"
	"github.com/telcine/telcine/pkg/movie"
	"github.com/telcine/telcine/pkg/player"
)

// Session close reasons, used as log fields and metric labels.
const (
	CloseCompleted        = "completed"
	CloseDisconnect       = "disconnect"
	CloseWriteTimeout     = "write_timeout"
	CloseWriteError       = "write_error"
	CloseNegotiationError = "negotiation_error"
	CloseShutdown         = "shutdown"
)

// Session is one client watching the movie. It owns the transport and
// runs two goroutines: a play loop that renders frames on schedule, and
// a drain loop that discards client input until the peer hangs up.
type Session struct {
	ID         string
	CreatedAt  time.Time
	RemoteAddr string

	transport Transport
	config    *SessionConfig
	movie     *movie.Movie
	logger    *slog.Logger
	tracer    trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state       atomic.Int32
	closed      atomic.Bool
	closeReason atomic.Pointer[string]
	negotiation atomic.Pointer[Negotiation]

	framesSent atomic.Uint64
	bytesSent  atomic.Uint64

	// onClose is invoked exactly once after the session closes, from
	// whichever goroutine closed it. Set by the manager before Start.
	onClose func(*Session)
}

// SessionStats is a point-in-time snapshot for the ops surface.
type SessionStats struct {
	ID          string        `json:"id"`
	RemoteAddr  string        `json:"remote_addr"`
	Transport   string        `json:"transport"`
	State       string        `json:"state"`
	Negotiation string        `json:"negotiation"`
	CreatedAt   time.Time     `json:"created_at"`
	Age         time.Duration `json:"age"`
	FramesSent  uint64        `json:"frames_sent"`
	BytesSent   uint64        `json:"bytes_sent"`
}

func newSession(parent context.Context, t Transport, m *movie.Movie, cfg *SessionConfig, logger *slog.Logger, tracer trace.Tracer) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:        generateSessionID(),
		CreatedAt: time.Now(),
		transport: t,
		config:    cfg,
		movie:     m,
		tracer:    tracer,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if addr := t.RemoteAddr(); addr != nil {
		s.RemoteAddr = addr.String()
	}
	s.logger = logger.With("session_id", s.ID, "remote_addr", s.RemoteAddr)
	s.state.Store(int32(player.StateNegotiating))
	return s
}

// generateSessionID returns a 32-char hex ID from crypto/rand.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("server: session ID generation failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// Start launches the session's play loop. It returns immediately. The
// input drain starts once negotiation is over; until then the play loop
// is the connection's only reader.
func (s *Session) Start() {
	go s.playLoop()
}

func (s *Session) playLoop() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session panic",
				"panic", r,
				"stack", string(debug.Stack()))
			s.close(CloseWriteError)
		}
	}()

	ctx, span := s.tracer.Start(s.ctx, "session.play",
		trace.WithAttributes(
			attribute.String("session.id", s.ID),
			attribute.String("session.remote_addr", s.RemoteAddr),
			attribute.String("session.transport", s.transport.Name()),
		))
	defer span.End()

	neg, err := s.transport.Negotiate(s.config.NegotiateTimeout)
	s.negotiation.Store(&neg)
	metrics.RecordNegotiation(neg.Outcome)
	span.SetAttributes(attribute.String("session.negotiation", neg.Outcome))
	if err != nil {
		s.logger.Info("negotiation failed", "error", err)
		s.close(CloseNegotiationError)
		return
	}
	s.logger.Debug("negotiation done", "outcome", neg.Outcome, "detail", neg.Detail)

	go s.drainLoop()
	s.setState(player.StatePlaying)

	p := player.New(s.movie, &sessionSink{s: s})
	p.OnFrame = func(int) {
		s.framesSent.Add(1)
		metrics.RecordFrame()
	}
	err = p.Play(ctx)
	span.SetAttributes(
		attribute.Int64("session.frames_sent", int64(s.framesSent.Load())),
		attribute.Int64("session.bytes_sent", int64(s.bytesSent.Load())),
	)

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// Usually closed from elsewhere, and that path recorded its
		// reason. A bare base-context cancel still needs the cleanup.
		s.close(CloseShutdown)
		return
	case isTimeout(err):
		s.logger.Warn("client stalled past write timeout", "error", err)
		s.close(CloseWriteTimeout)
		return
	default:
		s.logger.Info("write failed", "error", err)
		s.close(CloseWriteError)
		return
	}

	s.setState(player.StateDraining)
	if err := p.Drain(); err != nil {
		s.logger.Debug("drain write failed", "error", err)
	}
	s.close(CloseCompleted)
}

// drainLoop discards client input for the life of the session. Telnet
// clients keep sending keystrokes and negotiation chatter; none of it
// matters except as a disconnect signal.
func (s *Session) drainLoop() {
	err := s.transport.DrainInput()
	if s.closed.Load() {
		return
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("input drain ended", "error", err)
	}
	s.close(CloseDisconnect)
}

// Close terminates the session from outside (shutdown, ops kill).
func (s *Session) Close() error {
	s.close(CloseShutdown)
	return nil
}

// close shuts the session down exactly once; the first caller's reason
// wins and later calls are no-ops.
func (s *Session) close(reason string) {
	if s.closed.Swap(true) {
		return
	}
	s.closeReason.Store(&reason)
	s.setState(player.StateClosed)
	s.cancel()
	s.transport.Close()

	age := time.Since(s.CreatedAt)
	metrics.RecordSessionEnd(reason, age.Seconds())
	s.logger.Info("session closed",
		"reason", reason,
		"duration", age.Round(time.Millisecond),
		"frames_sent", s.framesSent.Load(),
		"bytes_sent", s.bytesSent.Load())

	if s.onClose != nil {
		s.onClose(s)
	}
	close(s.done)
}

// Done is closed when the session has fully shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// State reports where the session is in its lifecycle.
func (s *Session) State() player.State { return player.State(s.state.Load()) }

func (s *Session) setState(st player.State) { s.state.Store(int32(st)) }

// Transport reports the transport name, such as "telnet".
func (s *Session) Transport() string { return s.transport.Name() }

// CloseReason reports why the session closed, or "" while it is live.
func (s *Session) CloseReason() string {
	if r := s.closeReason.Load(); r != nil {
		return *r
	}
	return ""
}

// Stats snapshots the session for the ops surface.
func (s *Session) Stats() SessionStats {
	st := SessionStats{
		ID:         s.ID,
		RemoteAddr: s.RemoteAddr,
		Transport:  s.Transport(),
		State:      s.State().String(),
		CreatedAt:  s.CreatedAt,
		Age:        time.Since(s.CreatedAt),
		FramesSent: s.framesSent.Load(),
		BytesSent:  s.bytesSent.Load(),
	}
	if neg := s.negotiation.Load(); neg != nil {
		st.Negotiation = neg.Outcome
	}
	return st
}

// sessionSink is the writer the player renders into. Every write gets a
// fresh deadline, so a stalled client fails its own session instead of
// holding a goroutine forever. Drain writes get the shorter drain
// deadline.
type sessionSink struct {
	s *Session
}

func (w *sessionSink) Write(p []byte) (int, error) {
	if w.s.closed.Load() {
		return 0, NewSessionError(w.s.ID, "write", ErrSessionClosed)
	}
	timeout := w.s.config.WriteTimeout
	if w.s.State() == player.StateDraining {
		timeout = w.s.config.DrainTimeout
	}
	if timeout > 0 {
		w.s.transport.SetWriteDeadline(time.Now().Add(timeout))
	}
	n, err := w.s.transport.Write(p)
	if n > 0 {
		w.s.bytesSent.Add(uint64(n))
		metrics.RecordBytes(n)
	}
	if err != nil {
		return n, NewSessionError(w.s.ID, "write", err)
	}
	return n, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
