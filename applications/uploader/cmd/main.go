package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/donmikel/mediaupload/applications/uploader"
	"github.com/donmikel/mediaupload/applications/uploader/adapters/rest"
	"github.com/donmikel/mediaupload/applications/uploader/config"
	"github.com/donmikel/mediaupload/applications/uploader/domain"
	"github.com/donmikel/mediaupload/applications/uploader/services"
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

// parallelUploads caps the number of files uploaded at once.
const parallelUploads = 4

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
	purpose := fs.String("purpose", string(domain.PurposeProductImage), "upload purpose")
	contentType := fs.String("content-type", "", "content type of every file, detected when empty")
	maxSize := fs.String("max-size", "", "reject files larger than this size, e.g. 50MB")
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

	paths := fs.Args()
	if len(paths) == 0 {
		level.Error(logger).Log("msg", "no files given")
		return exitFailure
	}

	var sizeLimit uint64
	if *maxSize != "" {
		if sizeLimit, err = humanize.ParseBytes(*maxSize); err != nil {
			level.Error(logger).Log("msg", "invalid max-size", "err", err)
			return exitFailure
		}
	}

	cfg, err := config.Parse(*configPath)
	if err != nil {
		logger.Log("msg", "cannot parse uploader config", "err", err)
		return exitFailure
	}

	err = cfg.Validate()
	if err != nil {
		logger.Log("msg", "config validation failed", "err", err)
		return exitFailure
	}

	defer monitorPanic(logger)

	var coordinator uploader.Coordinator
	{
		headers := http.Header{}
		for name, value := range cfg.Backend.Headers {
			headers.Set(name, value)
		}
		purposes := make(map[domain.Purpose]string, len(cfg.Purposes))
		for name, path := range cfg.Purposes {
			purposes[domain.Purpose(name)] = path
		}

		client, err := rest.NewClient(
			&http.Client{Timeout: cfg.Backend.Timeout},
			cfg.Backend.BaseURL,
			rest.WithHeaders(headers),
			rest.WithPurposePaths(purposes),
			rest.WithLogger(logger),
		)
		if err != nil {
			level.Error(logger).Log("msg", "can't create backend client", "err", err)
			return exitFailure
		}

		// Storage writes may be large, so they are bounded by cancellation only.
		writer := rest.NewWriter(&http.Client{}, logger)
		poller := services.NewPoller(client, services.PollerConfig{
			Interval:    cfg.Poll.Interval,
			MaxWait:     cfg.Poll.MaxWait,
			MaxAttempts: cfg.Poll.MaxAttempts,
		}, logger)

		coordinator = services.NewCoordinator(client, writer, poller, logger)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)
		select {
		case <-ctx.Done():
			return nil
		case s := <-sig:
			level.Info(logger).Log("msg", "signal received, cancelling uploads", "signal", s)
			return fmt.Errorf("signal received: %s", s)
		}
	})

	group.Go(func() error {
		defer stop()
		return uploadAll(ctx, coordinator, paths, domain.Purpose(*purpose), *contentType, sizeLimit, logger)
	})

	if err = group.Wait(); err != nil {
		level.Error(logger).Log("msg", "uploads stopped with error", "err", err)
		return exitFailure
	}

	return exitSuccess
}

// uploadAll uploads every path independently. A failed file does not stop the others.
func uploadAll(ctx context.Context, coordinator uploader.Coordinator, paths []string, purpose domain.Purpose, contentType string, sizeLimit uint64, logger log.Logger) error {
	var failed int32

	var group errgroup.Group
	group.SetLimit(parallelUploads)
	for _, path := range paths {
		path := path
		group.Go(func() error {
			url, err := uploadFile(ctx, coordinator, path, purpose, contentType, sizeLimit)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				level.Error(logger).Log("msg", "upload failed",
					"file", path,
					"kind", domain.KindOf(err),
					"err", err,
				)
				return nil
			}
			fmt.Printf("%s\t%s\n", path, url)
			return nil
		})
	}
	_ = group.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}

	return nil
}

func uploadFile(ctx context.Context, coordinator uploader.Coordinator, path string, purpose domain.Purpose, contentType string, sizeLimit uint64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("can't open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("can't stat file: %w", err)
	}
	if info.IsDir() {
		return "", errors.New("is a directory")
	}
	if sizeLimit > 0 && uint64(info.Size()) > sizeLimit {
		return "", fmt.Errorf("file is %s, limit is %s", humanize.Bytes(uint64(info.Size())), humanize.Bytes(sizeLimit))
	}

	if contentType == "" {
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			return "", fmt.Errorf("can't detect content type: %w", err)
		}
		contentType = mtype.String()
	}

	return coordinator.Upload(ctx, domain.File{
		Meta: domain.FileMeta{
			Name:          filepath.Base(path),
			ContentType:   contentType,
			ContentLength: info.Size(),
		},
		Body: f,
	}, purpose)
}

// monitorPanic monitors panics and reports them somewhere (e.g. logs, ...).
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
