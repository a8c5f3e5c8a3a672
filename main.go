package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mailsieve/config"
	"mailsieve/internal/bootstrap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	mode := flag.String("mode", "all", "Run mode: api, engine, all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		fatal("failed to initialize app: %v", err)
	}
	defer app.Close()

	switch *mode {
	case "api":
		runAPI(ctx, app)
	case "engine":
		runEngine(ctx, app)
	case "all":
		go runEngine(ctx, app)
		runAPI(ctx, app)
	default:
		fatal("unknown mode: %s", *mode)
	}
}

// runAPI and runEngine both derive their shutdown trigger from ctx rather
// than a shared os.Signal channel: a channel receive is consumed by
// whichever goroutine reads it first, so in "all" mode the other side would
// never observe the signal and the process would hang on shutdown.
func runAPI(ctx context.Context, app *bootstrap.App) {
	go func() {
		<-ctx.Done()
		app.Log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down API server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- app.Fiber.Shutdown() }()

		select {
		case err := <-done:
			if err != nil {
				app.Log.Error().Err(err).Msg("error shutting down API server")
			} else {
				app.Log.Info().Msg("API server shut down gracefully")
			}
		case <-shutdownCtx.Done():
			app.Log.Warn().Msg("API shutdown timed out, forcing exit")
		}
	}()

	app.Log.Info().Str("addr", app.Config.ListenAddr).Msg("starting API server")
	if err := app.Fiber.Listen(app.Config.ListenAddr); err != nil {
		fatal("failed to start server: %v", err)
	}
}

func runEngine(ctx context.Context, app *bootstrap.App) {
	app.Log.Info().Msg("starting engine scheduler")
	app.Scheduler.Run(ctx)
	app.Log.Info().Msg("engine scheduler stopped")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
