package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/backend"
	"github.com/persistorai/spacestore/internal/config"
	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/merge"
	"github.com/persistorai/spacestore/internal/service"
)

// app is the configuration, logger and opened backend shared by commands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	backend *backend.Backend
}

// openApp loads the configuration and opens the configured backend.
func openApp(ctx context.Context, migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg)

	b, err := backend.Open(ctx, cfg.StorageBackend, backend.Options{
		DatabaseURL:    cfg.DatabaseURL.Value(),
		MaxConns:       cfg.DBMaxConns,
		BadgerPath:     cfg.BadgerPath,
		BadgerInMemory: cfg.BadgerInMemory,
		Migrate:        migrate,
	}, log)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: log, backend: b}, nil
}

func (a *app) Close() {
	a.backend.Close()
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}

func (a *app) engine() *engine.Store {
	return engine.New(a.backend.Engine, a.log, engine.Options{
		MaxAttempts: a.cfg.WriteAttempts,
		Merger:      merge.New(a.cfg.PatchMaxDepth),
	})
}

// features runs fn with a FeatureService. With the in-process activity
// source, a worker records the activity of fn's writes and is drained
// before features returns.
func (a *app) features(ctx context.Context, fn func(svc *service.FeatureService) error) error {
	if a.cfg.ActivitySource != config.ActivityInProcess {
		return fn(service.NewFeatureService(a.engine(), a.backend.Reader, nil, a.log))
	}

	worker := service.NewActivityWorker(a.backend.Activity, a.backend.Reader, a.log, a.cfg.ActivityQueueSize)

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		worker.Run(workerCtx)
		close(done)
	}()

	err := fn(service.NewFeatureService(a.engine(), a.backend.Reader, worker, a.log))

	cancel()
	<-done

	return err
}
