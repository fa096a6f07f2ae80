package interfaces

import (
	"context"

	"github.com/donmikel/mediaupload/applications/backend/domain"
)

// AssetStorage keeps upload bookkeeping. A resolved status never changes.
type AssetStorage interface {
	CreateAsset(ctx context.Context, asset domain.Asset) error
	ClaimUpload(ctx context.Context, key, token string) (domain.Asset, error)
	CompleteUpload(ctx context.Context, key, storageURL string, size int64) error
	Resolve(ctx context.Context, key string, status domain.Status, publicURL, reason string) error
	GetAsset(ctx context.Context, key string) (domain.Asset, error)
}
