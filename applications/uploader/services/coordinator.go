package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediaupload/applications/uploader"
	"github.com/donmikel/mediaupload/applications/uploader/domain"
	"github.com/donmikel/mediaupload/applications/uploader/interfaces"
)

type coordinator struct {
	requester interfaces.IntentRequester
	writer    interfaces.DirectUploader
	poller    interfaces.ValidationPoller
	logger    log.Logger
}

func NewCoordinator(
	requester interfaces.IntentRequester,
	writer interfaces.DirectUploader,
	poller interfaces.ValidationPoller,
	logger log.Logger,
) uploader.Coordinator {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &coordinator{
		requester: requester,
		writer:    writer,
		poller:    poller,
		logger:    logger,
	}
}

// Upload runs intent -> direct write -> validation poll for one file.
// Nothing is rolled back on failure; storage cleanup is the backend's job.
func (c *coordinator) Upload(ctx context.Context, file domain.File, purpose domain.Purpose) (string, error) {
	if file.Body == nil {
		return "", domain.NewError(domain.KindIntentRejected, "upload", "", errors.New("file has no body"))
	}
	if err := ctx.Err(); err != nil {
		return "", domain.NewError(domain.KindCanceled, "upload", "", err)
	}

	intent, err := c.requester.RequestIntent(ctx, purpose, file.Meta.ContentType)
	if err != nil {
		level.Error(c.logger).Log("msg", "upload intent failed",
			"file", file.Meta.Name,
			"purpose", purpose,
			"err", err,
		)
		return "", fmt.Errorf("can't get upload intent: %w", ensureKind(err, domain.KindIntentRejected, "request intent", ""))
	}

	size := file.Meta.ContentLength
	if size <= 0 {
		size = -1
	}

	if err = c.writer.Write(ctx, intent, file.Body, size); err != nil {
		level.Error(c.logger).Log("msg", "direct write failed",
			"file", file.Meta.Name,
			"key", intent.Key,
			"err", err,
		)
		return "", fmt.Errorf("can't upload file: %w", ensureKind(err, domain.KindTransport, "direct write", intent.Key))
	}

	url, err := c.poller.Poll(ctx, intent.Key)
	if err != nil {
		level.Error(c.logger).Log("msg", "upload validation failed",
			"file", file.Meta.Name,
			"key", intent.Key,
			"err", err,
		)
		return "", fmt.Errorf("can't validate upload: %w", ensureKind(err, domain.KindTransport, "poll status", intent.Key))
	}

	level.Info(c.logger).Log("msg", "file uploaded",
		"file", file.Meta.Name,
		"purpose", purpose,
		"key", intent.Key,
		"size", humanize.Bytes(uint64(max64(file.Meta.ContentLength, 0))),
		"url", url,
	)

	return url, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
