package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unifeed-dev/unifeed/internal/config"
	"github.com/unifeed-dev/unifeed/internal/logger"
	"github.com/unifeed-dev/unifeed/internal/router"
	"github.com/unifeed-dev/unifeed/internal/setup"
)

func main() {
	var configFolder string
	flag.StringVar(&configFolder, "config_folder", "config", "path to folder with configs")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.LogLevel, cfg.Public.LogJSON)

	deps, err := setup.SetupDependencies(cfg)
	if err != nil {
		logger.Log.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer deps.Storage.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Queue.Start(ctx, cfg.Public.QueueWorkers)
	deps.Queue.StartDepthGauge(ctx, 15*time.Second)

	server := &http.Server{
		Addr:    cfg.Public.ListenAddr,
		Handler: router.New(deps),
	}

	go func() {
		logger.Log.Info("server started", "addr", cfg.Public.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("shutdown error", "error", err)
	}

	// Let in-flight tasks finish before the process exits.
	deps.Queue.Wait()
}
