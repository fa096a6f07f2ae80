package interfaces

import (
	"context"
	"io"
	"net/http"

	"github.com/donmikel/mediaupload/applications/uploader/domain"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type IntentRequester interface {
	RequestIntent(ctx context.Context, purpose domain.Purpose, contentType string) (domain.UploadIntent, error)
}

type DirectUploader interface {
	Write(ctx context.Context, intent domain.UploadIntent, body io.Reader, size int64) error
}

type StatusChecker interface {
	GetStatus(ctx context.Context, key string) (domain.StatusResult, error)
}

type ValidationPoller interface {
	Poll(ctx context.Context, key string) (string, error)
}
