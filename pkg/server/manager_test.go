package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeTransport is a transport with no wire behind it. Writes are
// discarded, negotiation always completes, and DrainInput blocks until
// Close.
type fakeTransport struct {
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{closed: make(chan struct{})}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Negotiate(time.Duration) (Negotiation, error) {
	return Negotiation{Outcome: NegotiationComplete}, nil
}

func (f *fakeTransport) DrainInput() error {
	<-f.closed
	return net.ErrClosed
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	select {
	case <-f.closed:
		return 0, net.ErrClosed
	default:
		return len(p), nil
	}
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func testManager(t *testing.T, cfg *ServerConfig) *SessionManager {
	t.Helper()
	m := testMovie(t, 30*time.Millisecond)
	return NewSessionManager(context.Background(), m, cfg, testLogger())
}

func TestManagerMaxSessions(t *testing.T) {
	sm := testManager(t, &ServerConfig{MaxSessions: 2})

	first, err := sm.Create(newFakeTransport())
	if err != nil {
		t.Fatalf("create #1: %v", err)
	}
	if _, err := sm.Create(newFakeTransport()); err != nil {
		t.Fatalf("create #2: %v", err)
	}
	if _, err := sm.Create(newFakeTransport()); err != ErrMaxSessionsReached {
		t.Fatalf("create #3: err = %v, want ErrMaxSessionsReached", err)
	}

	first.Close()
	if _, err := sm.Create(newFakeTransport()); err != nil {
		t.Fatalf("create after release: %v", err)
	}
	if got := sm.Count(); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestManagerCallbacksAndStats(t *testing.T) {
	sm := testManager(t, &ServerConfig{})

	var mu sync.Mutex
	var created, closed []string
	sm.OnSessionCreate(func(s *Session) {
		mu.Lock()
		created = append(created, s.ID)
		mu.Unlock()
	})
	sm.OnSessionClose(func(s *Session) {
		mu.Lock()
		closed = append(closed, s.ID)
		mu.Unlock()
	})

	a, err := sm.Create(newFakeTransport())
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := sm.Create(newFakeTransport())
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	if got, ok := sm.Get(a.ID); !ok || got != a {
		t.Errorf("Get(%q) = %v, %t", a.ID, got, ok)
	}
	if got := len(sm.Sessions()); got != 2 {
		t.Errorf("session list length = %d, want 2", got)
	}

	a.Close()
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(created) != 2 || len(closed) != 2 {
		t.Errorf("callbacks: created %d, closed %d, want 2 and 2", len(created), len(closed))
	}

	stats := sm.Stats()
	want := ManagerStats{Active: 0, Peak: 2, TotalCreated: 2, TotalClosed: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestManagerShutdown(t *testing.T) {
	sm := testManager(t, &ServerConfig{})

	sessions := make([]*Session, 3)
	for i := range sessions {
		s, err := sm.Create(newFakeTransport())
		if err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
		sessions[i] = s
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sm.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := sm.Count(); got != 0 {
		t.Errorf("count after shutdown = %d, want 0", got)
	}
	for i, s := range sessions {
		if got := s.CloseReason(); got != CloseShutdown {
			t.Errorf("session #%d close reason = %q, want %q", i, got, CloseShutdown)
		}
	}
}

func TestManagerShutdownEmpty(t *testing.T) {
	sm := testManager(t, &ServerConfig{})
	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown with no sessions: %v", err)
	}
}
