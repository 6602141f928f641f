package server

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/telcine/telcine/internal/metrics"
	"github.com/telcine/telcine/pkg/movie"
)

const tracerName = "github.com/telcine/telcine/pkg/server"

// ManagerStats summarizes the session population.
type ManagerStats struct {
	Active       int    `json:"active"`
	Peak         int    `json:"peak"`
	TotalCreated uint64 `json:"total_created"`
	TotalClosed  uint64 `json:"total_closed"`
}

// SessionManager tracks every live session, enforces the session limit,
// and closes the whole population on shutdown. All methods are safe for
// concurrent use.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	peak     int

	baseCtx     context.Context
	movie       *movie.Movie
	config      *SessionConfig
	maxSessions int
	logger      *slog.Logger
	tracer      trace.Tracer

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64

	onSessionCreate func(*Session)
	onSessionClose  func(*Session)
}

// NewSessionManager builds a manager whose sessions inherit ctx; cancel
// it and every session's playback stops.
func NewSessionManager(ctx context.Context, m *movie.Movie, cfg *ServerConfig, logger *slog.Logger) *SessionManager {
	cfg = cfg.withDefaults()
	return &SessionManager{
		sessions:    make(map[string]*Session),
		baseCtx:     ctx,
		movie:       m,
		config:      cfg.Session,
		maxSessions: cfg.MaxSessions,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
}

// OnSessionCreate registers a callback invoked after each session is
// registered, before it starts. Must be set before serving.
func (sm *SessionManager) OnSessionCreate(fn func(*Session)) { sm.onSessionCreate = fn }

// OnSessionClose registers a callback invoked after each session closes
// and is removed. Must be set before serving.
func (sm *SessionManager) OnSessionClose(fn func(*Session)) { sm.onSessionClose = fn }

// Create registers a session for the transport without starting it.
// It fails with ErrMaxSessionsReached at the configured limit.
func (sm *SessionManager) Create(t Transport) (*Session, error) {
	sm.mu.Lock()
	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		sm.mu.Unlock()
		return nil, ErrMaxSessionsReached
	}
	s := newSession(sm.baseCtx, t, sm.movie, sm.config, sm.logger, sm.tracer)
	s.onClose = sm.release
	sm.sessions[s.ID] = s
	active := len(sm.sessions)
	if active > sm.peak {
		sm.peak = active
	}
	sm.mu.Unlock()

	sm.totalCreated.Add(1)
	metrics.RecordSessionStart(t.Name())
	sm.logger.Info("session created",
		"session_id", s.ID,
		"remote_addr", s.RemoteAddr,
		"transport", t.Name(),
		"active", active)
	if sm.onSessionCreate != nil {
		sm.onSessionCreate(s)
	}
	return s, nil
}

// release is every session's onClose hook.
func (sm *SessionManager) release(s *Session) {
	sm.mu.Lock()
	delete(sm.sessions, s.ID)
	active := len(sm.sessions)
	sm.mu.Unlock()

	sm.totalClosed.Add(1)
	sm.logger.Debug("session released", "session_id", s.ID, "active", active)
	if sm.onSessionClose != nil {
		sm.onSessionClose(s)
	}
}

// Get returns a live session by ID.
func (sm *SessionManager) Get(id string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[id]
	return s, ok
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ForEach calls fn for every live session.
func (sm *SessionManager) ForEach(fn func(*Session)) {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.RUnlock()

	for _, s := range sessions {
		fn(s)
	}
}

// Sessions snapshots every live session, oldest first.
func (sm *SessionManager) Sessions() []SessionStats {
	sm.mu.RLock()
	stats := make([]SessionStats, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		stats = append(stats, s.Stats())
	}
	sm.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].CreatedAt.Before(stats[j].CreatedAt)
	})
	return stats
}

// Stats summarizes the session population.
func (sm *SessionManager) Stats() ManagerStats {
	sm.mu.RLock()
	active := len(sm.sessions)
	peak := sm.peak
	sm.mu.RUnlock()

	return ManagerStats{
		Active:       active,
		Peak:         peak,
		TotalCreated: sm.totalCreated.Load(),
		TotalClosed:  sm.totalClosed.Load(),
	}
}

// Shutdown closes every live session concurrently and waits for them,
// or for ctx.
func (sm *SessionManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.Unlock()

	if len(sessions) == 0 {
		return nil
	}
	sm.logger.Info("closing sessions", "count", len(sessions))

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
