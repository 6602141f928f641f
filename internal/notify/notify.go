// Package notify tells the operator when somebody tunes in. Backends
// are optional and best-effort: a failed or slow notification is logged
// and never touches the session that triggered it.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrMisconfigured marks a backend whose required settings are missing.
var ErrMisconfigured = errors.New("notify: misconfigured")

// DefaultTimeout bounds a single notification attempt.
const DefaultTimeout = 10 * time.Second

// Event describes one viewer arriving.
type Event struct {
	SessionID  string    `json:"session_id"`
	RemoteAddr string    `json:"remote_addr"`
	Transport  string    `json:"transport"`
	Movie      string    `json:"movie,omitempty"`
	Time       time.Time `json:"time"`
}

// Notifier delivers an event to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to every configured backend. Deliveries run
// on their own goroutines under a timeout; Notify never blocks and never
// fails the caller.
type Dispatcher struct {
	notifiers []Notifier
	logger    *slog.Logger
	timeout   time.Duration

	wg sync.WaitGroup
}

// NewDispatcher builds a dispatcher over zero or more backends. With
// none it is an inert no-op.
func NewDispatcher(logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger,
		timeout:   DefaultTimeout,
	}
}

// Len reports the number of configured backends.
func (d *Dispatcher) Len() int { return len(d.notifiers) }

// Notify sends ev to every backend and returns immediately.
func (d *Dispatcher) Notify(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := n.Notify(ctx, ev); err != nil {
				d.logger.Warn("notification failed",
					"notifier", n.Name(),
					"remote_addr", ev.RemoteAddr,
					"error", err)
				return
			}
			d.logger.Debug("notification sent",
				"notifier", n.Name(),
				"remote_addr", ev.RemoteAddr)
		}()
	}
}

// Wait blocks until every in-flight delivery finishes. For shutdown and
// tests.
func (d *Dispatcher) Wait() { d.wg.Wait() }
