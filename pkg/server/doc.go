// Package server accepts Telnet viewers and plays them the movie.
//
// # Architecture
//
// One Server owns a TCP accept loop, a SessionManager, and a shared
// read-only movie. Every accepted connection becomes a Session with its own
// pair of goroutines and no shared mutable state with other sessions:
//
//	Server.Serve ── accept ──► SessionManager.Create ──► Session.Start
//	                                                       ├── playLoop:  negotiate → play → drain
//	                                                       └── drainLoop: discard input, detect disconnect
//
// The accept loop runs for the life of the process. Accept errors are
// logged, counted, and retried with backoff; a fault inside one session
// never reaches the loop or another session.
//
// # Sessions
//
// A session moves through negotiating → playing → draining → closed. Frame
// writes are synchronous: a client that stops reading stalls only its own
// playLoop, and a per-write deadline (SessionConfig.WriteTimeout) bounds how
// long a stalled client is carried before its session is closed. Close is
// idempotent and safe from any goroutine; the first closer wins and records
// the reason.
//
// # Transports
//
// Sessions are written against the Transport interface. The Telnet
// transport negotiates terminal options and frames the byte stream; the ops
// endpoint plugs browser viewers in through a WebSocket transport with the
// same playback semantics.
package server
