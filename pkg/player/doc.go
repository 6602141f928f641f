// Package player paces movie frames onto a terminal-like sink.
//
// A Player walks a movie front to back against a fixed schedule: frame i is
// due at the playback start time plus the summed durations of all earlier
// frames. Deadlines are absolute, so timing error never accumulates — a
// frame that took too long to write only shortens the wait before the next
// one. A player that falls behind shows every remaining frame as fast as the
// sink accepts them; frames are never skipped to catch up.
//
// The sink is a plain io.Writer. Writes are synchronous and unbuffered:
// a sink that stops accepting bytes stalls only its own player, which is
// how per-client backpressure is meant to work. Callers that need a bound
// on the stall put a write deadline on the sink.
package player
