package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sheetsync/internal/hub"
	"sheetsync/internal/identity"
	"sheetsync/internal/store"
)

const (
	ExitCodeMainError = 1

	shutdownTimeout = 10 * time.Second
)

func main() {
	os.Exit(HandleExitError(os.Stderr, run(os.Args[1:])))
}

func run(args []string) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	users := identity.NewDirectory(
		identity.WithStore(docs),
		identity.WithSessionTimeout(cfg.SessionTimeout),
	)
	if err := users.Load(ctx); err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	access := identity.AllowAll{}
	h := hub.New(
		hub.WithLogger(log.With().Str("component", "hub").Logger()),
		hub.WithStore(docs),
		hub.WithAccessChecker(access),
		hub.WithDimensions(cfg.Rows, cfg.Cols),
	)
	sweeper := hub.NewSweeper(h, cfg.SweepInterval, cfg.IdleTimeout, log)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           SetupRouter(NewServer(cfg, log, h, users, access)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Run(ctx) })
	g.Go(func() error { return sweeper.Run(ctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Msg("server started")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(cfg Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
	}
	var out io.Writer = os.Stderr
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// openStore picks the bbolt store when a database path is configured.
func openStore(cfg Config) (store.Store, func(), error) {
	if cfg.DBPath == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	db, err := store.OpenBolt(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

func HandleExitError(errStream io.Writer, err error) int {
	if err != nil {
		_, _ = fmt.Fprintln(errStream, err)
		return ExitCodeMainError
	}
	return 0
}
