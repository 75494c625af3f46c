// Command viewer serves the lion sweep board over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/lionsweep/catalog"
	"github.com/brensch/lionsweep/config"
	"github.com/brensch/lionsweep/logging"
	"github.com/brensch/lionsweep/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "Path to the YAML configuration file (defaults are used when empty)")
	listen := fs.String("listen", "", "HTTP listen address, overrides server.listen_addr")
	staticDir := fs.String("static-dir", "", "Optional directory to serve as the browser front end")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "viewer: %v\n", err)
			return 1
		}
	}
	if strings.TrimSpace(*listen) != "" {
		cfg.Server.ListenAddr = *listen
	}

	logger, err := logging.New(os.Stderr, string(cfg.Server.LogLevel), string(cfg.Server.LogFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewer: %v\n", err)
		return 1
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observe.Metrics
	if cfg.Metrics.Enabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "lionsweep-viewer"})
		if err != nil {
			logger.Error("init metrics provider", "err", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
		if metrics, err = observe.NewMetrics(otel.GetMeterProvider()); err != nil {
			logger.Error("create metrics", "err", err)
			return 1
		}
	}

	cat := catalog.Default()
	if cfg.GraphDir != "" {
		if cat, err = catalog.FromDir(cfg.GraphDir); err != nil {
			logger.Error("load graph catalog", "dir", cfg.GraphDir, "err", err)
			return 1
		}
	}

	var archive *ArchiveOptions
	if cfg.Archive.Enabled {
		archive = &ArchiveOptions{Dir: cfg.Archive.Dir, FlushTurns: cfg.Archive.FlushTurns}
	}

	server := NewServer(logger, cat, cfg.Render.Style(), metrics, archive, cfg.Server.AllowedOrigins)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, observe.Handler())
	}
	if strings.TrimSpace(*staticDir) != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(*staticDir)))
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           withCORS(cfg.Server.AllowedOrigins, observe.Middleware(metrics, logger)(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("viewer listening",
			"addr", cfg.Server.ListenAddr,
			"archive", cfg.Archive.Enabled,
			"metrics", cfg.Metrics.Enabled,
			"graphs", len(cat.List()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.Server.ShutdownTimeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		server.Shutdown()
		logger.Info("viewer stopped")
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("viewer failed", "err", err)
		return 1
	}
	return 0
}
