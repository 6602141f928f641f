package movie

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// Default geometry, from the classic asciimation layout.
const (
	DefaultScreenWidth  = 80
	DefaultScreenHeight = 24
	DefaultFrameWidth   = 67
	DefaultFrameHeight  = 13

	// DefaultTickRate is the number of display-time ticks per second.
	DefaultTickRate = 15

	// TimeBarHeight is the number of screen rows reserved for the time bar.
	TimeBarHeight = 1
)

// Movie errors.
var (
	ErrNoFrames         = errors.New("movie: no frames")
	ErrNegativeDuration = errors.New("movie: negative frame duration")
)

// ansiEscape matches ANSI terminal escape sequences so they can be excluded
// from display-width measurement.
var ansiEscape = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// Frame is a single animation cell: a block of text lines and the duration
// it stays on screen.
type Frame struct {
	Lines    []string
	Duration time.Duration
}

// Options configure movie loading and geometry. Zero fields fall back to the
// defaults; see DefaultOptions.
type Options struct {
	ScreenWidth  int
	ScreenHeight int
	FrameWidth   int
	FrameHeight  int

	// TickRate converts text-format display times into durations
	// (ticks per second).
	TickRate int

	// DefaultTicks is the display time for frames that carry none of
	// their own, such as YAML frames.
	DefaultTicks int

	// Compress merges runs of identical consecutive frames into one frame
	// with the summed duration.
	Compress bool
}

// DefaultOptions returns the standard 80x24 screen with 67x13 frames at
// fifteen ticks per second, compression enabled.
func DefaultOptions() Options {
	return Options{
		ScreenWidth:  DefaultScreenWidth,
		ScreenHeight: DefaultScreenHeight,
		FrameWidth:   DefaultFrameWidth,
		FrameHeight:  DefaultFrameHeight,
		TickRate:     DefaultTickRate,
		DefaultTicks: 1,
		Compress:     true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ScreenWidth <= 0 {
		o.ScreenWidth = d.ScreenWidth
	}
	if o.ScreenHeight <= 0 {
		o.ScreenHeight = d.ScreenHeight
	}
	if o.FrameWidth <= 0 {
		o.FrameWidth = d.FrameWidth
	}
	if o.FrameHeight <= 0 {
		o.FrameHeight = d.FrameHeight
	}
	if o.TickRate <= 0 {
		o.TickRate = d.TickRate
	}
	if o.DefaultTicks <= 0 {
		o.DefaultTicks = d.DefaultTicks
	}
	return o
}

// Tick returns the duration of one display-time tick.
func (o Options) Tick() time.Duration {
	return time.Second / time.Duration(o.withDefaults().TickRate)
}

// Movie is an immutable, shareable sequence of frames plus the screen
// geometry they are centered on. All accessors are safe for concurrent use.
type Movie struct {
	frames []Frame
	total  time.Duration

	screenWidth  int
	screenHeight int
	frameWidth   int
	frameHeight  int
	leftMargin   int
	topMargin    int

	// sourceFrames is the frame count before compression.
	sourceFrames int
}

// New builds a Movie from raw frames. Frame lines are normalized in place on
// a private copy: trailing whitespace is stripped, every line is padded to
// the frame width and indented by the left margin, and short frames gain
// blank lines, so a frame written over its predecessor fully covers it.
//
// The frame area grows beyond opts if any frame needs more room. New returns
// ErrNoFrames for an empty sequence and ErrNegativeDuration if any frame
// duration is negative.
func New(frames []Frame, opts Options) (*Movie, error) {
	opts = opts.withDefaults()
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	for i := range frames {
		if frames[i].Duration < 0 {
			return nil, fmt.Errorf("%w: frame %d", ErrNegativeDuration, i)
		}
	}

	m := &Movie{
		frames:       cloneFrames(frames),
		sourceFrames: len(frames),
	}
	if opts.Compress {
		m.frames = compress(m.frames)
	}

	frameW, frameH := opts.FrameWidth, opts.FrameHeight
	for _, f := range m.frames {
		if h := len(f.Lines); h > frameH {
			frameH = h
		}
		for _, line := range f.Lines {
			if w := displayWidth(strings.TrimRight(line, " \t")); w > frameW {
				frameW = w
			}
		}
	}

	m.frameWidth = frameW
	m.frameHeight = frameH
	m.screenWidth = max(opts.ScreenWidth, frameW)
	m.screenHeight = max(opts.ScreenHeight, frameH+TimeBarHeight)
	m.leftMargin = (m.screenWidth - m.frameWidth) / 2
	m.topMargin = (m.screenHeight - m.frameHeight - TimeBarHeight) / 2

	for i := range m.frames {
		m.normalize(&m.frames[i])
		m.total += m.frames[i].Duration
	}
	return m, nil
}

// normalize pads every line of f to the frame width, indents it by the left
// margin, and fills missing rows with blanks.
func (m *Movie) normalize(f *Frame) {
	indent := strings.Repeat(" ", m.leftMargin)
	blank := strings.Repeat(" ", m.leftMargin+m.frameWidth)

	lines := make([]string, m.frameHeight)
	for i := range lines {
		if i >= len(f.Lines) {
			lines[i] = blank
			continue
		}
		line := strings.TrimRight(f.Lines[i], " \t")
		if pad := m.frameWidth - displayWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		lines[i] = indent + line
	}
	f.Lines = lines
}

// Len returns the number of frames.
func (m *Movie) Len() int { return len(m.frames) }

// Frame returns frame i. The returned value shares line storage with the
// movie; callers must treat it as read-only.
func (m *Movie) Frame(i int) Frame { return m.frames[i] }

// Duration returns the total running time of the movie.
func (m *Movie) Duration() time.Duration { return m.total }

// SourceFrames returns the frame count before compression, for reporting
// compression ratios.
func (m *Movie) SourceFrames() int { return m.sourceFrames }

// Screen geometry accessors.

func (m *Movie) ScreenWidth() int  { return m.screenWidth }
func (m *Movie) ScreenHeight() int { return m.screenHeight }
func (m *Movie) FrameWidth() int   { return m.frameWidth }
func (m *Movie) FrameHeight() int  { return m.frameHeight }
func (m *Movie) LeftMargin() int   { return m.leftMargin }
func (m *Movie) TopMargin() int    { return m.topMargin }

// compress merges runs of frames with identical lines, summing their
// durations. Frame order is preserved.
func compress(frames []Frame) []Frame {
	out := frames[:0]
	for _, f := range frames {
		if len(out) > 0 && sameLines(out[len(out)-1].Lines, f.Lines) {
			out[len(out)-1].Duration += f.Duration
			continue
		}
		out = append(out, f)
	}
	return out
}

func sameLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func cloneFrames(frames []Frame) []Frame {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = Frame{
			Lines:    append([]string(nil), f.Lines...),
			Duration: f.Duration,
		}
	}
	return out
}

// displayWidth measures the on-screen width of a line: ANSI escape sequences
// are invisible and wide runes count double.
func displayWidth(line string) int {
	return runewidth.StringWidth(ansiEscape.ReplaceAllString(line, ""))
}
