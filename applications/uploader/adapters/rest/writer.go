package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediaupload/applications/uploader/domain"
	"github.com/donmikel/mediaupload/applications/uploader/interfaces"
)

// Writer transfers file bytes straight to the storage destination of an intent.
type Writer struct {
	doer   interfaces.Doer
	logger log.Logger
}

func NewWriter(doer interfaces.Doer, logger log.Logger) *Writer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Writer{doer: doer, logger: logger}
}

// Write performs one PUT carrying exactly the intent headers. size < 0 means unknown length.
func (w *Writer) Write(ctx context.Context, intent domain.UploadIntent, body io.Reader, size int64) error {
	const op = "direct write"

	if intent.Destination == "" {
		return domain.NewError(domain.KindTransport, op, intent.Key, errors.New("empty destination"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, intent.Destination, body)
	if err != nil {
		return domain.NewError(domain.KindTransport, op, intent.Key, fmt.Errorf("can't create request: %w", err))
	}
	req.Header = intent.Headers.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if size >= 0 {
		req.ContentLength = size
	}

	resp, err := w.doer.Do(req)
	if err != nil {
		return domain.NewError(classify(ctx, domain.KindTransport), op, intent.Key, fmt.Errorf("PUT: %w", err))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewError(domain.KindTransport, op, intent.Key, errors.New(responseError(resp)))
	}

	sizeLabel := "unknown"
	if size >= 0 {
		sizeLabel = humanize.Bytes(uint64(size))
	}
	level.Debug(w.logger).Log("msg", "bytes written",
		"key", intent.Key,
		"size", sizeLabel,
	)

	return nil
}
