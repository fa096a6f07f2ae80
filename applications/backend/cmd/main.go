package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/donmikel/mediaupload/applications/backend"
	"github.com/donmikel/mediaupload/applications/backend/adapters/inmemory"
	"github.com/donmikel/mediaupload/applications/backend/adapters/prometheus"
	"github.com/donmikel/mediaupload/applications/backend/adapters/s3"
	"github.com/donmikel/mediaupload/applications/backend/config"
	httphandlers "github.com/donmikel/mediaupload/applications/backend/handlers/http"
	"github.com/donmikel/mediaupload/applications/backend/interfaces"
	"github.com/donmikel/mediaupload/applications/backend/services"
)

// exitCode is a process termination code.
type exitCode int

// Possible process termination codes are listed below.
const (
	// exitSuccess is code for successful program termination.
	exitSuccess exitCode = 0
	// exitFailure is code for unsuccessful program termination.
	exitFailure exitCode = 1
)

// preStopWait keeps the server in rotation after SIGTERM so uploads in flight can finish their PUT.
const preStopWait = 5 * time.Second

// shutdownTimeout covers both the HTTP server and the processing workers.
const shutdownTimeout = 10 * time.Second

var (
	// version is the service version from git tag.
	version = ""
)

func main() {
	os.Exit(int(gracefulMain()))
}

// gracefulMain releases resources gracefully upon termination.
// When we call os.Exit defer statements do not run resulting in unclean process shutdown.
// nolint
func gracefulMain() exitCode {
	var logger log.Logger
	{
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")
	v := fs.Bool("v", false, "Show version")

	err := fs.Parse(os.Args[1:])
	if err == flag.ErrHelp {
		return exitSuccess
	}
	if err != nil {
		logger.Log("msg", "parsing cli flags failed", "err", err)
		return exitFailure
	}

	if *v {
		if version == "" {
			level.Error(logger).Log("msg", "version not set")
		} else {
			level.Info(logger).Log("version", version)
		}

		return exitSuccess
	}

	level.Info(logger).Log("msg", "starting backend", "config", *configPath, "version", version)

	cfg, err := config.Parse(*configPath)
	if err != nil {
		logger.Log("msg", "cannot parse service config", "err", err)
		return exitFailure
	}

	err = cfg.Validate()
	if err != nil {
		logger.Log("msg", "config validation failed", "err", err)
		return exitFailure
	}

	defer monitorPanic(logger)
	ctx := context.Background()

	rules, err := cfg.Rules()
	if err != nil {
		logger.Log("msg", "invalid purposes", "err", err)
		return exitFailure
	}

	registry := promclient.NewRegistry()
	observer, err := prometheus.NewObserver("media_uploads", registry)
	if err != nil {
		level.Error(logger).Log("msg", "can't register metrics", "err", err)
		return exitFailure
	}

	var assetStorage interfaces.AssetStorage
	{
		assetStorage = inmemory.NewAssetStorage()
	}

	var storageManager interfaces.StorageManager
	{
		storageManager = inmemory.NewStorageManager(logger)
	}

	if err = addStorages(ctx, cfg.Storage, storageManager, logger); err != nil {
		level.Error(logger).Log("msg", "error adding storage",
			"err", err,
		)

		return exitFailure
	}

	processor := services.NewProcessor(assetStorage, storageManager, services.ProcessorConfig{
		Workers:   cfg.Processing.Workers,
		QueueSize: cfg.Processing.QueueSize,
		Delay:     cfg.Processing.Delay,
		PublicURL: cfg.API.PublicURL,
		Rules:     rules,
		Observer:  observer,
		Logger:    logger,
	})
	processor.Start()

	var uploadService backend.UploadService
	{
		uploadService = services.NewService(assetStorage, storageManager, processor, services.Config{
			PublicURL: cfg.API.PublicURL,
			Rules:     rules,
		}, observer, logger)
	}

	metrics := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	hServer := httphandlers.NewHTTPServer(cfg.API, uploadService, metrics, logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sig:
			level.Info(logger).Log("msg", fmt.Sprintf("signal received (waiting %v before terminating): %v", preStopWait, s))
			time.Sleep(preStopWait)
			level.Info(logger).Log("msg", "terminating...")

			return fmt.Errorf("signal received: %s", s)
		}
	})

	group.Go(func() error {
		level.Info(logger).Log("msg", "listening", "addr", cfg.API.HTTPAddr)
		if err := hServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen and server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		level.Info(logger).Log("msg", "graceful shutdown of backend")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		if err := processor.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("processor shutdown error: %w", err)
		}

		return ctx.Err()
	})

	if err = group.Wait(); err != nil {
		level.Error(logger).Log("msg", fmt.Sprintf("actors stopped with err: %v", err))
		return exitFailure
	}

	level.Info(logger).Log("msg", "actors stopped without errors")

	return exitSuccess
}

func addStorages(ctx context.Context, cfg config.Storage, storageManager interfaces.StorageManager, logger log.Logger) error {
	if cfg.Driver == config.DriverS3 {
		st, err := s3.NewStorage(ctx, s3.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		}, logger)
		if err != nil {
			return err
		}
		return storageManager.AddStorage(ctx, st.GetStorageURL(), st)
	}

	capacity, err := cfg.ShardCapacityBytes()
	if err != nil {
		return err
	}
	for i := 0; i < cfg.Shards; i++ {
		storageURL := fmt.Sprintf("storage_%d", i)
		if err = storageManager.AddStorage(ctx, storageURL, inmemory.NewStorage(storageURL, capacity, logger)); err != nil {
			return err
		}
	}

	return nil
}

// monitorPanic monitors panics and reports them somewhere (e.g. logs, ...).
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
