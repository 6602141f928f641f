package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/telcine/telcine/internal/metrics"
	"github.com/telcine/telcine/pkg/movie"
)

// refusalNotice is written to connections turned away at the session
// limit before they are closed.
const refusalNotice = "Sorry, every seat is taken. Try again soon.\r\n"

// Server accepts TCP connections for the lifetime of the process and
// hands each one to the session manager. Accept errors are logged and
// retried with backoff; a failed or misbehaving client never takes the
// listener down.
type Server struct {
	config   *ServerConfig
	movie    *movie.Movie
	sessions *SessionManager
	logger   *slog.Logger

	listenerMu sync.Mutex
	listener   net.Listener

	inShutdown atomic.Bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// New builds a server around an already loaded movie. Unset config
// fields take their defaults; a nil logger falls back to slog.Default.
func New(cfg *ServerConfig, m *movie.Movie, logger *slog.Logger) (*Server, error) {
	if m == nil || m.Len() == 0 {
		return nil, ErrNoMovie
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:     cfg,
		movie:      m,
		sessions:   NewSessionManager(ctx, m, cfg, logger),
		logger:     logger,
		baseCtx:    ctx,
		baseCancel: cancel,
	}, nil
}

// Sessions exposes the session manager for the ops surface and for
// notification hooks.
func (s *Server) Sessions() *SessionManager { return s.sessions }

// Movie returns the movie every session plays.
func (s *Server) Movie() *movie.Movie { return s.movie }

// Config returns the effective configuration.
func (s *Server) Config() *ServerConfig { return s.config }

// Addr returns the listener address, or nil before Serve. Useful with
// ":0" listeners.
func (s *Server) Addr() net.Addr {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe listens on the configured address and serves until
// Shutdown or a fatal listener error.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown closes it. It always
// returns a non-nil error, ErrServerClosed after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.listenerMu.Lock()
	if s.inShutdown.Load() {
		s.listenerMu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.listenerMu.Unlock()

	s.logger.Info("listening",
		"addr", ln.Addr().String(),
		"frames", s.movie.Len(),
		"movie_duration", s.movie.Duration().Round(time.Second),
		"max_sessions", s.config.MaxSessions)

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.inShutdown.Load() || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			metrics.RecordAcceptError()
			s.logger.Error("accept failed", "error", err, "retry_in", tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetKeepAlive(true)
	}

	sess, err := s.sessions.Create(NewTelnetTransport(conn))
	if err != nil {
		s.refuse(conn, err)
		return
	}
	sess.Start()
}

// refuse turns a connection away with a short notice. The write is
// best-effort under a one second deadline.
func (s *Server) refuse(conn net.Conn, err error) {
	metrics.RecordSessionRefused()
	s.logger.Warn("connection refused",
		"remote_addr", conn.RemoteAddr().String(),
		"error", err)
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.Write([]byte(refusalNotice))
	conn.Close()
}

// Shutdown stops accepting, closes every session, and waits for them
// or for ctx. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.inShutdown.Swap(true) {
		return nil
	}
	s.logger.Info("shutting down")

	s.listenerMu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.listenerMu.Unlock()

	err := s.sessions.Shutdown(ctx)
	s.baseCancel()
	if err != nil {
		s.logger.Warn("shutdown did not finish cleanly", "error", err)
		return err
	}

	stats := s.sessions.Stats()
	s.logger.Info("shutdown complete",
		"sessions_served", stats.TotalCreated,
		"peak_sessions", stats.Peak)
	return nil
}

// Run serves until SIGINT or SIGTERM, then shuts down within the
// configured timeout. It returns nil after a signal-driven shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if errors.Is(err, ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		s.logger.Info("signal received", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(ctx)
	}
}
