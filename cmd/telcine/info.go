package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telcine/telcine/internal/config"
	"github.com/telcine/telcine/pkg/movie"
)

func infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info MOVIE",
		Short: "Print movie statistics",
		Long: `Load a movie and print what the server would see: frame count,
running time, and geometry.

Examples:
  telcine info movies/demo.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}

	return cmd
}

func runInfo(location string) error {
	logger := config.LogConfig{Level: "warn"}.NewLogger(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := loadMovie(ctx, logger, location, movie.DefaultOptions())
	if err != nil {
		return err
	}
	format, err := movie.FormatForPath(location)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  Source:    %s\n", location)
	fmt.Printf("  Format:    %s\n", format)
	fmt.Printf("  Frames:    %d (%d before compression)\n", m.Len(), m.SourceFrames())
	fmt.Printf("  Duration:  %s\n", m.Duration().Round(time.Millisecond))
	fmt.Printf("  Screen:    %dx%d\n", m.ScreenWidth(), m.ScreenHeight())
	fmt.Printf("  Frame:     %dx%d\n", m.FrameWidth(), m.FrameHeight())
	fmt.Println()

	return nil
}
