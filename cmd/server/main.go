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
	"syscall"
	"time"

	"github.com/hazyhaar/playerdex/pkg/api"
	"github.com/hazyhaar/playerdex/pkg/chassis"
	"github.com/hazyhaar/playerdex/pkg/importer"
	"github.com/mark3labs/mcp-go/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = cmdServe(os.Args[2:])
	case "import":
		err = cmdImport(os.Args[2:])
	case "search":
		err = cmdSearch(os.Args[2:])
	case "mcp":
		err = cmdMCP(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "playerdex %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: playerdex <command> [flags]

Commands:
  serve    Start the HTTP API (and MCP endpoint)
  import   Import a player export into the catalog and bundle dir
  search   Run one search from the command line
  mcp      Serve the MCP tools over stdio
`)
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (cfgPath *string, debug *bool) {
	cfgPath = fs.String("config", "config.yaml", "path to config file")
	debug = fs.Bool("debug", false, "enable debug logging")
	return cfgPath, debug
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath, debug := commonFlags(fs)
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	logger := newLogger(*debug)
	cfg, err := loadConfig(*cfgPath, logger)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	st, err := openStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var mcpSrv *server.MCPServer
	if cfg.MCP {
		mcpSrv = api.NewMCPServer(st.svc, version)
	}
	router := api.NewRouter(st.svc, mcpSrv)

	// SIGHUP: warm the default version again, retrying a failed load.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WarmOnStart {
		st.cache.Warm(cfg.Version)
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, warming directory", "version", cfg.Version)
			st.cache.Warm(cfg.Version)
		}
	}()

	if st.catalog != nil && cfg.CheckInterval > 0 {
		go importer.NewChecker(st.catalog, logger, cfg.CheckInterval).Start(ctx)
	}

	if cfg.TLS.Enabled {
		return serveTLS(ctx, cfg, router, logger)
	}
	return servePlain(ctx, cfg, router, logger)
}

func servePlain(ctx context.Context, cfg config, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("playerdex listening", "addr", cfg.Addr, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveTLS(ctx context.Context, cfg config, handler http.Handler, logger *slog.Logger) error {
	srv, err := chassis.New(chassis.Config{
		Addr:     cfg.Addr,
		CertFile: cfg.TLS.Cert,
		KeyFile:  cfg.TLS.Key,
		Hosts:    cfg.TLS.Hosts,
		Handler:  handler,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	runErr := srv.Start(ctx)

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(runErr, srv.Stop(shutdownCtx))
}

func cmdMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfgPath, debug := commonFlags(fs)
	fs.Parse(args)

	// stdout carries the protocol; logs stay on stderr.
	logger := newLogger(*debug)
	cfg, err := loadConfig(*cfgPath, logger)
	if err != nil {
		return err
	}
	st, err := openStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.WarmOnStart {
		st.cache.Warm(cfg.Version)
	}
	return server.ServeStdio(api.NewMCPServer(st.svc, version))
}
