package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/nestmatch/internal/adapters/http/api"
	"github.com/okian/nestmatch/internal/adapters/http/site"
	"github.com/okian/nestmatch/internal/adapters/http/swagger"
	service "github.com/okian/nestmatch/internal/app"
	"github.com/okian/nestmatch/internal/config"
	"github.com/okian/nestmatch/pkg/logger"
	"github.com/urfave/cli/v2"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Stderr.WriteString("nestmatch: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "nestmatch",
		Usage: "Rank properties for every user by description similarity and numeric fit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{config.EnvConfigPath},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override log_level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run one batch and write the Top-K table",
				Action: runCommand,
			},
			{
				Name:   "serve",
				Usage:  "Run one batch, then serve the table over HTTP until interrupted",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Override the listen address",
					},
				},
			},
		},
	}
}

// setup loads configuration, initializes logging and builds the service.
func setup(c *cli.Context) (*config.Config, *service.Service, error) {
	cfg, err := config.LoadFile(c.Context, c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := logger.InitWithWriter(os.Stderr, cfg.LogFormat); err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(c.Context, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		cfg.LogLevel = "info"
		_ = logger.SetLevelString(cfg.LogLevel)
	}
	svc, err := service.New(c.Context, cfg, service.WithLogger(logger.Get()))
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

func runCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, svc, err := setup(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	rep, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	logger.Get().Info(ctx, "done",
		logger.String("run_id", rep.Summary.RunID),
		logger.Int("rows", rep.Summary.Rows))
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, svc, err := setup(c)
	if err != nil {
		return err
	}
	defer svc.Close()
	log := logger.Get()

	if _, err := svc.Run(ctx); err != nil {
		return err
	}

	addr := cfg.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newRouter mounts the landing page, API docs and the business API.
func newRouter(svc *service.Service, log logger.Logger) http.Handler {
	apiServer := api.NewServer(svc.Store(), svc, svc, log.Named("http"))
	r := apiServer.Router()
	swagger.Register(r)
	site.Register(r)
	return r
}
