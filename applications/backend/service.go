package backend

import (
	"context"
	"io"

	"github.com/donmikel/mediaupload/applications/backend/domain"
)

type UploadService interface {
	IssueIntent(ctx context.Context, purpose, contentType string) (domain.Intent, error)
	Store(ctx context.Context, key, token, contentType string, body io.Reader) error
	Status(ctx context.Context, key string) (domain.Asset, error)
	Open(ctx context.Context, key string) (io.ReadCloser, domain.Asset, error)
}
