package movie

import (
	"strings"
	"time"
)

// Time bar decorators.
const (
	timeBarLeft   = "<"
	timeBarRight  = ">"
	timeBarSpacer = " "
	timeBarMarker = "o"
)

// TimeBar renders the progress row shown under the movie frame, in the shape
// of "<    o      >". The marker moves with elapsed playback time.
type TimeBar struct {
	total  time.Duration
	length int
}

// NewTimeBar returns a time bar of the given on-screen length tracking a
// playback of the given total duration. Lengths too short for the decorators
// are widened to the minimum.
func NewTimeBar(total time.Duration, length int) TimeBar {
	if minLen := len(timeBarLeft) + len(timeBarRight) + len(timeBarMarker); length < minLen {
		length = minLen
	}
	return TimeBar{total: total, length: length}
}

// Render returns the bar for the given elapsed playback time.
func (tb TimeBar) Render(elapsed time.Duration) string {
	internal := tb.length - len(timeBarLeft) - len(timeBarRight)
	pos := tb.markerPosition(elapsed, internal)

	var b strings.Builder
	b.Grow(tb.length)
	b.WriteString(timeBarLeft)
	b.WriteString(strings.Repeat(timeBarSpacer, pos))
	b.WriteString(timeBarMarker)
	b.WriteString(strings.Repeat(timeBarSpacer, internal-pos-1))
	b.WriteString(timeBarRight)
	return b.String()
}

// markerPosition maps elapsed time onto [0, internal-1], never overwriting
// the end decorator.
func (tb TimeBar) markerPosition(elapsed time.Duration, internal int) int {
	if tb.total <= 0 || elapsed <= 0 {
		return 0
	}
	pos := int(float64(internal)*float64(elapsed)/float64(tb.total) + 0.5)
	if pos >= internal {
		pos = internal - 1
	}
	return pos
}
