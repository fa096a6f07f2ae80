package uploader

import (
	"context"

	"github.com/donmikel/mediaupload/applications/uploader/domain"
)

// Coordinator uploads one file and returns the public URL of the validated asset.
type Coordinator interface {
	Upload(ctx context.Context, file domain.File, purpose domain.Purpose) (string, error)
}
