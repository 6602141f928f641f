// Package movie holds ASCII-art animations as immutable frame sequences.
//
// A Movie is an ordered list of frames. Every frame pairs a block of text
// lines with the duration it should stay on screen. Movies are loaded once,
// normalized once, and then shared read-only between any number of playback
// sessions; nothing in this package mutates a Movie after its constructor
// returns.
//
// # Formats
//
// Two source formats are supported:
//
//   - Text (.txt): the classic asciimation encoding. Frames are blocks of
//     fourteen lines; the first line is the display time in ticks (fifteen
//     ticks per second), the remaining thirteen lines are the frame body.
//     See http://www.asciimation.co.nz/asciimation/ascii_faq.html.
//   - YAML (.yaml, .yml): a sequence of multi-line scalars, one scalar per
//     frame, each shown for the default tick count.
//
// # Geometry
//
// Frames are centered on a fixed-size screen (80x24 by default) with a one
// row time bar underneath. During loading every line is right-padded to the
// frame width and indented by the left margin, so that writing a frame over
// its predecessor leaves no stale characters behind. Line widths are measured
// by display width, not byte length: ANSI escape sequences are ignored and
// wide runes count double.
package movie
