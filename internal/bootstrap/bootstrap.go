// Package bootstrap is the single dependency-wiring hub (spec §9's "engine
// value" design note): every collaborator — journal, gateway, classifier,
// extractor, permit — is constructed exactly once here and threaded
// explicitly into the engine, rather than referenced through package-level
// globals, generalizing the teacher's NewAPI/NewWorker constructor idiom.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpadapter "mailsieve/adapter/in/http"
	"mailsieve/adapter/out/mailgateway"
	"mailsieve/adapter/out/persistence"
	"mailsieve/config"
	"mailsieve/core/service/classify"
	"mailsieve/infra/database"
	"mailsieve/infra/middleware"
	"mailsieve/internal/engine"
)

// App bundles everything main.go needs to run the process.
type App struct {
	Fiber     *fiber.App
	Scheduler *engine.Scheduler
	Config    *config.Config
	Log       zerolog.Logger

	closers []func() error
}

// New wires the full application from config.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := newLogger()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	journal, err := persistence.NewJournal(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}

	extractor := classify.NewExtractor(cfg.MyEmails)
	classifier := classify.NewHeuristic()

	var redisClient *redis.Client
	var permit engine.Permit = engine.NewLocalPermit()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		permit = engine.NewRedisPermit(redisClient, "mailsieve:job-permit", cfg.IngestInterval())
	}

	gateway := mailgateway.NewGateway(newDialer(cfg), log)

	training, err := engine.NewTrainingEmitter(cfg.TrainingDataDir, log)
	if err != nil {
		return nil, fmt.Errorf("init training emitter: %w", err)
	}

	eng := engine.New(engine.Deps{
		Journal:           journal,
		Gateway:           gateway,
		Classifier:        classifier,
		Extractor:         extractor,
		Permit:            permit,
		Training:          training,
		VerificationLabel: cfg.VerificationLabel,
		Log:               log,
	})

	scheduler := engine.NewScheduler(eng, engine.SchedulerConfig{
		IngestInterval:  cfg.IngestInterval(),
		RecheckInterval: cfg.RecheckInterval(),
		IngestEnabled:   cfg.EnableAutoClassification,
		RecheckEnabled:  cfg.EnableRecheckJob,
		IngestLimit:     cfg.IngestLimit,
	}, log)

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(log),
	})

	httpadapter.NewHealthHandler(db, redisClient).Register(fiberApp)

	issuer := middleware.NewTokenIssuer(cfg.AdminAPIKey, cfg.JWTSecret)
	fiberApp.Post("/v1/auth/token", issuer.IssueToken)

	httpadapter.NewControlHandler(eng).Register(fiberApp, middleware.RequireAuth(cfg.JWTSecret))

	app := &App{
		Fiber:     fiberApp,
		Scheduler: scheduler,
		Config:    cfg,
		Log:       log,
	}
	app.closers = append(app.closers, func() error { training.Close(); return nil }, db.Close)
	if redisClient != nil {
		app.closers = append(app.closers, redisClient.Close)
	}

	return app, nil
}

// Close releases every resource wired by New, in reverse order.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newDialer(cfg *config.Config) mailgateway.Dialer {
	// The IMAP wire protocol is an external collaborator's concern (spec
	// §1: out of scope for the core). Without a concrete transport wired
	// in, the in-memory fake backs standalone operation; a production
	// deployment replaces this with a real IMAP-backed Dialer satisfying
	// the same mailgateway.Conn seam.
	_ = cfg
	return mailgateway.NewFakeDialer()
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}
