package ops

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telcine/telcine/pkg/movie"
	"github.com/telcine/telcine/pkg/server"
)

// DefaultAddress is where the ops endpoint listens when unconfigured.
const DefaultAddress = ":9090"

// Config holds the ops endpoint settings.
type Config struct {
	Address string
}

// Server is the ops HTTP endpoint. Build one with New, then run it with
// ListenAndServe.
type Server struct {
	config   Config
	sessions *server.SessionManager
	movie    *movie.Movie
	logger   *slog.Logger
	upgrader websocket.Upgrader
	started  time.Time
	httpSrv  *http.Server
}

// New builds the ops endpoint over an existing session manager, so
// browser viewers and Telnet watchers share one session population.
func New(cfg Config, sessions *server.SessionManager, m *movie.Movie, logger *slog.Logger) *Server {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Server{
		config:   cfg,
		sessions: sessions,
		movie:    m,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		started: time.Now(),
	}
	o.httpSrv = &http.Server{
		Addr:              cfg.Address,
		Handler:           o.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return o
}

// Handler returns the ops router, also mountable inside another server.
func (o *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", o.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/sessions", o.handleSessions)
	r.Get("/movie", o.handleMovie)
	r.Get("/live", o.handleLive)
	r.Get("/", o.serveWatchPage)
	return r
}

// ListenAndServe blocks until Shutdown. A clean shutdown returns nil.
func (o *Server) ListenAndServe() error {
	o.logger.Info("ops listening", "addr", o.config.Address)
	err := o.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server, waiting for in-flight requests.
func (o *Server) Shutdown(ctx context.Context) error {
	return o.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	ActiveSessions int    `json:"active_sessions"`
}

func (o *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Uptime:         time.Since(o.started).Round(time.Second).String(),
		ActiveSessions: o.sessions.Count(),
	})
}

type sessionsResponse struct {
	Stats    server.ManagerStats   `json:"stats"`
	Sessions []server.SessionStats `json:"sessions"`
}

func (o *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionsResponse{
		Stats:    o.sessions.Stats(),
		Sessions: o.sessions.Sessions(),
	})
}

type movieResponse struct {
	Frames       int    `json:"frames"`
	SourceFrames int    `json:"source_frames"`
	Duration     string `json:"duration"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
	FrameWidth   int    `json:"frame_width"`
	FrameHeight  int    `json:"frame_height"`
}

func (o *Server) handleMovie(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, movieResponse{
		Frames:       o.movie.Len(),
		SourceFrames: o.movie.SourceFrames(),
		Duration:     o.movie.Duration().String(),
		ScreenWidth:  o.movie.ScreenWidth(),
		ScreenHeight: o.movie.ScreenHeight(),
		FrameWidth:   o.movie.FrameWidth(),
		FrameHeight:  o.movie.FrameHeight(),
	})
}

// handleLive turns a browser into a viewer: upgrade, then hand the
// connection to the session manager like any other client.
func (o *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess, err := o.sessions.Create(newWSTransport(conn))
	if err != nil {
		o.logger.Warn("viewer refused",
			"remote_addr", conn.RemoteAddr().String(),
			"error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "every seat is taken"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	sess.Start()
}

//go:embed watch.html
var watchPage []byte

var watchPageETag = func() string {
	sum := sha256.Sum256(watchPage)
	return fmt.Sprintf("%q", fmt.Sprintf("%x", sum[:]))
}()

func (o *Server) serveWatchPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", watchPageETag)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")

	if etagMatches(r.Header.Get("If-None-Match"), watchPageETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(watchPage)
}

func etagMatches(ifNoneMatchHeader, etag string) bool {
	if ifNoneMatchHeader == "" || etag == "" {
		return false
	}
	for _, part := range strings.Split(ifNoneMatchHeader, ",") {
		candidate := strings.TrimSpace(part)
		if candidate == etag {
			return true
		}
		if strings.HasPrefix(candidate, "W/") && strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
