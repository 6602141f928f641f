package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/telcine/telcine/pkg/movie"
)

// VT100 control sequences.
const (
	escHome       = "\x1b[H"
	escClear      = "\x1b[2J"
	escHideCursor = "\x1b[?25l"
	escShowCursor = "\x1b[?25h"
	escReset      = "\x1b[0m"
)

// goodbye is written while draining, after the last frame has had its time
// on screen.
const goodbye = "Thanks for watching."

// Player plays one movie to one sink. A Player is single-use and not safe
// for concurrent use; every session builds its own.
type Player struct {
	// OnFrame, if set, is called after each frame hits the sink, with
	// the frame index. Used for metrics.
	OnFrame func(index int)

	movie *movie.Movie
	out   io.Writer
	bar   movie.TimeBar
	buf   bytes.Buffer

	// now is replaceable in tests.
	now func() time.Time
}

// New returns a player for m writing to out.
func New(m *movie.Movie, out io.Writer) *Player {
	return &Player{
		movie: m,
		out:   out,
		bar:   movie.NewTimeBar(m.Duration(), m.ScreenWidth()),
		now:   time.Now,
	}
}

// Play clears the screen and emits every frame at its scheduled time. Frame
// i is due at start + sum of the durations of frames 0..i-1; the last frame
// holds the screen for its own duration before Play returns. Play returns
// early only when ctx is canceled or the sink errors.
func (p *Player) Play(ctx context.Context) error {
	if err := p.writeString(escHideCursor + escClear); err != nil {
		return fmt.Errorf("player: clear screen: %w", err)
	}

	start := p.now()
	var elapsed time.Duration
	for i := 0; i < p.movie.Len(); i++ {
		if err := p.waitUntil(ctx, start.Add(elapsed)); err != nil {
			return err
		}
		if err := p.writeFrame(i, elapsed); err != nil {
			return fmt.Errorf("player: frame %d: %w", i, err)
		}
		if p.OnFrame != nil {
			p.OnFrame(i)
		}
		elapsed += p.movie.Frame(i).Duration
	}
	return p.waitUntil(ctx, start.Add(elapsed))
}

// Drain restores the terminal and says goodbye.
func (p *Player) Drain() error {
	if err := p.writeString(escReset + escShowCursor + "\r\n" + goodbye + "\r\n"); err != nil {
		return fmt.Errorf("player: drain: %w", err)
	}
	return nil
}

// waitUntil sleeps until the absolute deadline. A deadline already in the
// past returns immediately: late frames still go out, just without a wait.
func (p *Player) waitUntil(ctx context.Context, deadline time.Time) error {
	d := deadline.Sub(p.now())
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// writeFrame renders frame i into the reused buffer and writes it in one
// call: cursor home, top margin, frame rows, then the time bar on the
// bottom row. No trailing newline, or the terminal would scroll.
func (p *Player) writeFrame(i int, elapsed time.Duration) error {
	f := p.movie.Frame(i)

	p.buf.Reset()
	p.buf.WriteString(escHome)
	for r := 0; r < p.movie.TopMargin(); r++ {
		p.buf.WriteString("\r\n")
	}
	for _, line := range f.Lines {
		p.buf.WriteString(line)
		p.buf.WriteString("\r\n")
	}
	gap := p.movie.ScreenHeight() - p.movie.TopMargin() - p.movie.FrameHeight() - movie.TimeBarHeight
	for r := 0; r < gap; r++ {
		p.buf.WriteString("\r\n")
	}
	p.buf.WriteString(p.bar.Render(elapsed))

	_, err := p.out.Write(p.buf.Bytes())
	return err
}

func (p *Player) writeString(s string) error {
	_, err := io.WriteString(p.out, s)
	return err
}
