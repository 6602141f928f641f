package server

import "time"

// Default configuration values.
const (
	// DefaultAddress is the classic movie port.
	DefaultAddress = ":9001"

	// DefaultNegotiateTimeout bounds the wait for Telnet option answers.
	DefaultNegotiateTimeout = 2 * time.Second

	// DefaultWriteTimeout bounds each frame write. A client that accepts
	// no bytes for this long is dropped; nothing is buffered on its
	// behalf in the meantime.
	DefaultWriteTimeout = 30 * time.Second

	// DefaultDrainTimeout bounds the goodbye write during drain.
	DefaultDrainTimeout = 5 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// SessionConfig holds per-session settings.
type SessionConfig struct {
	// NegotiateTimeout is how long the session waits for Telnet option
	// answers before playing fail-open.
	NegotiateTimeout time.Duration

	// WriteTimeout is the deadline applied to each frame write.
	// Zero means wait forever for slow clients.
	WriteTimeout time.Duration

	// DrainTimeout is the deadline for the drain write.
	DrainTimeout time.Duration
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		NegotiateTimeout: DefaultNegotiateTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		DrainTimeout:     DefaultDrainTimeout,
	}
}

// ServerConfig holds server-wide settings.
type ServerConfig struct {
	// Address is the TCP listen address.
	Address string

	// MaxSessions caps concurrent viewers. Zero means unlimited.
	MaxSessions int

	// ShutdownTimeout bounds how long Shutdown waits for sessions.
	ShutdownTimeout time.Duration

	// Session is the per-session configuration.
	Session *SessionConfig
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:         DefaultAddress,
		ShutdownTimeout: DefaultShutdownTimeout,
		Session:         DefaultSessionConfig(),
	}
}

// withDefaults fills unset fields, so callers only set what they care about.
func (c *ServerConfig) withDefaults() *ServerConfig {
	if c == nil {
		return DefaultServerConfig()
	}
	defaults := DefaultServerConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.Session == nil {
		c.Session = defaults.Session
	} else {
		if c.Session.NegotiateTimeout == 0 {
			c.Session.NegotiateTimeout = defaults.Session.NegotiateTimeout
		}
		if c.Session.WriteTimeout == 0 {
			c.Session.WriteTimeout = defaults.Session.WriteTimeout
		}
		if c.Session.DrainTimeout == 0 {
			c.Session.DrainTimeout = defaults.Session.DrainTimeout
		}
	}
	return c
}
