package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/telcine/telcine/internal/config"
	"github.com/telcine/telcine/pkg/movie"
	"github.com/telcine/telcine/pkg/player"
)

func playCmd() *cobra.Command {
	var noCompress bool

	cmd := &cobra.Command{
		Use:   "play MOVIE",
		Short: "Play a movie in this terminal",
		Long: `Play a movie straight to the current terminal, no server involved.

Useful for previewing a movie file before serving it. Ctrl-C
stops playback and restores the cursor.

Examples:
  telcine play movies/demo.txt
  telcine play s3://reels/sw1.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(args[0], noCompress)
		},
	}

	cmd.Flags().BoolVar(&noCompress, "no-compress", false, "Keep runs of identical frames as-is")

	return cmd
}

func runPlay(location string, noCompress bool) error {
	logger := config.LogConfig{Level: "warn"}.NewLogger(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := movie.DefaultOptions()
	opts.Compress = !noCompress
	m, err := loadMovie(ctx, logger, location, opts)
	if err != nil {
		return err
	}

	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		if w < m.ScreenWidth() || h < m.ScreenHeight() {
			warn("terminal is %dx%d, the movie wants %dx%d",
				w, h, m.ScreenWidth(), m.ScreenHeight())
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	p := player.New(m, os.Stdout)
	if err := p.Play(ctx); err != nil {
		// put the cursor back even when interrupted mid-frame
		fmt.Print("\x1b[0m\x1b[?25h\r\n")
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return p.Drain()
}
