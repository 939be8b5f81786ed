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

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/spacestore/internal/api"
	"github.com/persistorai/spacestore/internal/config"
	"github.com/persistorai/spacestore/internal/db"
	"github.com/persistorai/spacestore/internal/service"
)

const (
	retentionInterval = 24 * time.Hour
	shutdownTimeout   = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the activity pipeline and the ops HTTP server",
		Long: "Opens the storage backend (applying postgres migrations), purges the activity log by " +
			"retention, follows feature changes of other processes when ACTIVITY_SOURCE=notify, and " +
			"serves /api/health, /api/ready and /metrics until SIGINT or SIGTERM.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	g, ctx := errgroup.WithContext(ctx)

	activity := service.NewActivityService(a.backend.Activity, a.log)
	g.Go(func() error {
		activity.RunRetention(ctx, a.cfg.ActivityRetentionDays, retentionInterval)
		return nil
	})

	if a.cfg.ActivitySource == config.ActivityNotify {
		worker := service.NewActivityWorker(a.backend.Activity, a.backend.Reader, a.log, a.cfg.ActivityQueueSize)
		bridge := db.NewNotifyBridge(a.log, a.backend.Pool, worker)

		g.Go(func() error {
			worker.Run(ctx)
			return nil
		})
		g.Go(func() error {
			return bridge.Run(ctx)
		})
	}

	srv := &http.Server{
		Addr: a.cfg.Addr(),
		Handler: api.NewRouter(&api.RouterDeps{
			Log:           a.log,
			Checker:       a.backend,
			Backend:       a.backend.Name,
			Version:       config.Version,
			SchemaVersion: db.SchemaVersion(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		a.log.WithFields(logrus.Fields{
			"addr":            srv.Addr,
			"backend":         a.backend.Name,
			"activity_source": a.cfg.ActivitySource,
		}).Info("spacestore serving")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.log.Info("shutdown complete")

	return err
}
