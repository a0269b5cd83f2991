package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/api"
	"github.com/Harshitk-cp/adaptive-planner/internal/bootstrap"
	"github.com/Harshitk-cp/adaptive-planner/internal/buildconfig"
	"github.com/Harshitk-cp/adaptive-planner/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger, err := bootstrap.NewLogger(config.LogLevel())
	if err != nil {
		logger = zap.Must(zap.NewProduction())
		logger.Warn("invalid LOG_LEVEL, using info", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.New(ctx, bootstrap.SettingsFromEnv(), logger)
	if err != nil {
		logger.Fatal("failed to build planner", zap.Error(err))
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error("failed to close planner resources", zap.Error(err))
		}
	}()

	app := api.NewApp(components, api.OptionsFromEnv(), logger)

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		app.RateLimiter.RunCleanup(gctx, 10*time.Minute)
		return nil
	})

	if app.Indexer != nil {
		app.Indexer.Start()
		defer app.Indexer.Stop()
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
