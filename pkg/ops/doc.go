// Package ops is the operational HTTP surface next to the Telnet
// listener: health and session introspection, Prometheus metrics, and a
// browser viewer.
//
// Endpoints:
//
//	GET /healthz   liveness plus a session count
//	GET /metrics   Prometheus exposition
//	GET /sessions  live session snapshots as JSON
//	GET /movie     the loaded movie's shape as JSON
//	GET /live      WebSocket: watch the movie in a browser
//	GET /          embedded watch page driving /live
//
// Viewers arriving over /live become ordinary sessions with a WebSocket
// transport; the movie, pacing, and backpressure rules are exactly those
// of the Telnet side.
package ops
