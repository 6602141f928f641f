package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔╦╗╔═╗╦  ╔═╗╦╔╗╔╔═╗
   ║ ║╣ ║  ║  ║║║║║╣
   ╩ ╚═╝╩═╝╚═╝╩╝╚╝╚═╝
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "telcine",
		Short: "An ASCII-art movie theater for Telnet clients",
		Long: `Telcine plays ASCII-art movies to anyone who telnets in.

Point it at a movie file and it runs a theater on port 9001:

  • VT100 playback with per-frame scheduling
  • Telnet option negotiation (character mode, no local echo)
  • One goroutine per viewer, stalled clients cannot stall the show
  • HTTP ops endpoint with health, metrics, and a browser viewer

Try it:
  telcine serve --movie movies/demo.txt
  telnet localhost 9001`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		playCmd(),
		infoCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the telcine ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
