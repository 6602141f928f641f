package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/telcine/telcine/pkg/movie"
	"github.com/telcine/telcine/pkg/server"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMovie(t *testing.T, durations ...time.Duration) *movie.Movie {
	t.Helper()
	frames := make([]movie.Frame, len(durations))
	for i, d := range durations {
		frames[i] = movie.Frame{
			Lines:    []string{fmt.Sprintf("frame %d", i)},
			Duration: d,
		}
	}
	m, err := movie.New(frames, movie.Options{
		ScreenWidth:  20,
		ScreenHeight: 4,
		FrameWidth:   10,
		FrameHeight:  1,
	})
	if err != nil {
		t.Fatalf("build movie: %v", err)
	}
	return m
}

func newTestOps(t *testing.T, cfg *server.ServerConfig) (*Server, *server.SessionManager, *movie.Movie) {
	t.Helper()
	m := testMovie(t, 30*time.Millisecond, 30*time.Millisecond, 30*time.Millisecond)
	sm := server.NewSessionManager(context.Background(), m, cfg, testLogger())
	return New(Config{}, sm, m, testLogger()), sm, m
}

func getJSON(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK && out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v\nbody: %s", path, err, rec.Body.String())
		}
	}
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	o, _, _ := newTestOps(t, &server.ServerConfig{})

	var health healthResponse
	rec := getJSON(t, o.Handler(), "/healthz", &health)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if health.Status != "ok" {
		t.Errorf("status field = %q, want %q", health.Status, "ok")
	}
	if health.ActiveSessions != 0 {
		t.Errorf("active sessions = %d, want 0", health.ActiveSessions)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	o, sm, _ := newTestOps(t, &server.ServerConfig{})

	serverEnd, clientEnd := net.Pipe()
	defer clientEnd.Close()
	sess, err := sm.Create(server.NewTelnetTransport(serverEnd))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer sess.Close()

	var resp sessionsResponse
	rec := getJSON(t, o.Handler(), "/sessions", &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Stats.Active != 1 {
		t.Errorf("active = %d, want 1", resp.Stats.Active)
	}
	if len(resp.Sessions) != 1 {
		t.Fatalf("session list length = %d, want 1", len(resp.Sessions))
	}
	got := resp.Sessions[0]
	if got.ID != sess.ID {
		t.Errorf("session ID = %q, want %q", got.ID, sess.ID)
	}
	if got.State != "negotiating" {
		t.Errorf("state = %q, want %q", got.State, "negotiating")
	}
	if got.Transport != "telnet" {
		t.Errorf("transport = %q, want %q", got.Transport, "telnet")
	}
}

func TestMovieEndpoint(t *testing.T) {
	o, _, m := newTestOps(t, &server.ServerConfig{})

	var resp movieResponse
	rec := getJSON(t, o.Handler(), "/movie", &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Frames != m.Len() {
		t.Errorf("frames = %d, want %d", resp.Frames, m.Len())
	}
	if resp.Duration != m.Duration().String() {
		t.Errorf("duration = %q, want %q", resp.Duration, m.Duration().String())
	}
	if resp.ScreenWidth != 20 || resp.ScreenHeight != 4 {
		t.Errorf("screen = %dx%d, want 20x4", resp.ScreenWidth, resp.ScreenHeight)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	o, _, _ := newTestOps(t, &server.ServerConfig{})

	rec := getJSON(t, o.Handler(), "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty metrics exposition")
	}
}

func TestWatchPage(t *testing.T) {
	o, _, _ := newTestOps(t, &server.ServerConfig{})
	h := o.Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "/live") {
		t.Error("watch page does not reference /live")
	}

	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag header")
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("revalidation status = %d, want 304", rec.Code)
	}
}

func dialLive(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestLiveStreamsMovie(t *testing.T) {
	o, sm, _ := newTestOps(t, &server.ServerConfig{})
	ts := httptest.NewServer(o.Handler())
	defer ts.Close()

	conn := dialLive(t, ts)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var all []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break // normal or abrupt close, either ends the show
		}
		all = append(all, data...)
	}

	text := string(all)
	if !strings.Contains(text, "frame 0") || !strings.Contains(text, "frame 2") {
		t.Errorf("stream missing frames:\n%q", text)
	}
	if !strings.Contains(text, "Thanks for watching.") {
		t.Error("stream missing the goodbye line")
	}
	if got := sm.Stats().TotalCreated; got != 1 {
		t.Errorf("sessions created = %d, want 1", got)
	}
}

func TestLiveRefusedAtLimit(t *testing.T) {
	o, sm, _ := newTestOps(t, &server.ServerConfig{MaxSessions: 1})
	ts := httptest.NewServer(o.Handler())
	defer ts.Close()

	// Occupy the only seat with a session that never finishes.
	serverEnd, clientEnd := net.Pipe()
	defer clientEnd.Close()
	seat, err := sm.Create(server.NewTelnetTransport(serverEnd))
	if err != nil {
		t.Fatalf("occupy seat: %v", err)
	}
	defer seat.Close()

	conn := dialLive(t, ts)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("read succeeded, want refusal close")
	}
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Errorf("close error = %v, want try-again-later", err)
	}
}
