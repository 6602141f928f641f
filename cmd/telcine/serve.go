package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/telcine/telcine/internal/config"
	"github.com/telcine/telcine/internal/metrics"
	"github.com/telcine/telcine/internal/notify"
	"github.com/telcine/telcine/internal/source"
	"github.com/telcine/telcine/pkg/movie"
	"github.com/telcine/telcine/pkg/ops"
	"github.com/telcine/telcine/pkg/server"
)

type serveOptions struct {
	config      string
	listen      string
	movie       string
	maxSessions int
	opsAddress  string
	logLevel    string
}

func serveCmd() *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the movie theater",
		Long: `Run the Telnet movie server.

The movie location may be a local file or an s3:// URI, in the
classic text format or YAML. Someone connecting with a Telnet
client gets the movie from the top; every viewer has their own
showing.

An HTTP ops endpoint runs alongside with /healthz, /metrics,
session listings, and a browser viewer on /.

Examples:
  telcine serve --movie movies/demo.txt
  telcine serve --movie s3://reels/sw1.txt --listen :2323
  telcine serve --config /etc/telcine/telcine.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(o)
		},
	}

	cmd.Flags().StringVarP(&o.config, "config", "c", "", "Config file (default searches ., ~/.telcine, /etc/telcine)")
	cmd.Flags().StringVarP(&o.listen, "listen", "l", "", "Telnet listen address (default \":9001\")")
	cmd.Flags().StringVarP(&o.movie, "movie", "m", "", "Movie file path or s3:// URI")
	cmd.Flags().IntVar(&o.maxSessions, "max-sessions", 0, "Cap on concurrent viewers (0 = unlimited)")
	cmd.Flags().StringVar(&o.opsAddress, "ops-address", "", "HTTP ops listen address (default \":9090\")")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return cmd
}

func runServe(o serveOptions) error {
	cfg, err := config.Load(o.config)
	if err != nil {
		return err
	}
	if o.listen != "" {
		cfg.Listen = o.listen
	}
	if o.movie != "" {
		cfg.Movie = o.movie
	}
	if o.maxSessions > 0 {
		cfg.MaxSessions = o.maxSessions
	}
	if o.opsAddress != "" {
		cfg.Ops.Address = o.opsAddress
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if cfg.Movie == "" {
		return fmt.Errorf("no movie configured: pass --movie or set movie in telcine.yaml")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := movie.DefaultOptions()
	opts.Compress = cfg.Compress
	m, err := loadMovie(ctx, logger, cfg.Movie, opts)
	if err != nil {
		return err
	}

	metrics.Enable()

	srv, err := server.New(cfg.ServerConfig(), m, logger)
	if err != nil {
		return err
	}

	dispatcher, closeNotify, err := buildNotifiers(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotify()
	if dispatcher.Len() > 0 {
		movieName := filepath.Base(cfg.Movie)
		srv.Sessions().OnSessionCreate(func(s *server.Session) {
			dispatcher.Notify(notify.Event{
				SessionID:  s.ID,
				RemoteAddr: s.RemoteAddr,
				Transport:  s.Transport(),
				Movie:      movieName,
			})
		})
	}

	var opsSrv *ops.Server
	if cfg.Ops.Enabled {
		opsSrv = ops.New(cfg.OpsServerConfig(), srv.Sessions(), m, logger)
	}

	printBanner()
	info("movie    %s (%d frames, %s)", cfg.Movie, m.Len(), m.Duration().Round(time.Second))
	info("telnet   %s", cfg.Listen)
	if opsSrv != nil {
		info("ops      %s", cfg.Ops.Address)
	}
	if dispatcher.Len() > 0 {
		info("notify   %d backend(s)", dispatcher.Len())
	}
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println()
		info("shutting down...")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		return err
	})
	if opsSrv != nil {
		g.Go(opsSrv.ListenAndServe)
	}
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancelShut := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancelShut()
		var first error
		if opsSrv != nil {
			first = opsSrv.Shutdown(shutCtx)
		}
		if err := srv.Shutdown(shutCtx); err != nil && first == nil {
			first = err
		}
		return first
	})

	err = g.Wait()
	dispatcher.Wait()
	if err != nil {
		return err
	}
	success("goodnight")
	return nil
}

// loadMovie resolves the location (local path or s3:// URI) and parses it
// in the format its extension names.
func loadMovie(ctx context.Context, logger *slog.Logger, location string, opts movie.Options) (*movie.Movie, error) {
	format, err := movie.FormatForPath(location)
	if err != nil {
		return nil, err
	}
	rc, err := source.New(logger).Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return movie.Load(rc, format, opts)
}

// buildNotifiers assembles the configured notification backends. A backend
// counts as configured when its reach-me field is set; it must then
// validate, so typos fail at startup instead of at first viewer.
func buildNotifiers(cfg *config.Config, logger *slog.Logger) (*notify.Dispatcher, func(), error) {
	var backends []notify.Notifier
	closeAll := func() {}

	if cfg.Notify.SMTP.Host != "" {
		n, err := notify.NewSMTP(cfg.Notify.SMTP)
		if err != nil {
			return nil, nil, err
		}
		backends = append(backends, n)
	}
	if cfg.Notify.MQTT.BrokerURL != "" {
		n, err := notify.NewMQTT(cfg.Notify.MQTT)
		if err != nil {
			return nil, nil, err
		}
		if err := n.Connect(); err != nil {
			return nil, nil, err
		}
		backends = append(backends, n)
		closeAll = n.Close
	}

	return notify.NewDispatcher(logger, backends...), closeAll, nil
}
