package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/donmikel/mediaupload/applications/backend/domain"
	"github.com/donmikel/mediaupload/applications/backend/interfaces"
)

type inMemoryAssetStorage struct {
	assets map[string]domain.Asset
	mutex  sync.RWMutex
	now    func() time.Time
}

func NewAssetStorage() interfaces.AssetStorage {
	return &inMemoryAssetStorage{
		assets: map[string]domain.Asset{},
		now:    time.Now,
	}
}

func (i *inMemoryAssetStorage) CreateAsset(ctx context.Context, asset domain.Asset) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if _, ok := i.assets[asset.Key]; ok {
		return fmt.Errorf("asset with key = %s already exists", asset.Key)
	}

	asset.Status = domain.StatusWaiting
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = i.now()
	}
	i.assets[asset.Key] = asset

	return nil
}

func (i *inMemoryAssetStorage) ClaimUpload(ctx context.Context, key, token string) (domain.Asset, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	a, ok := i.assets[key]
	if !ok {
		return domain.Asset{}, fmt.Errorf("asset with key = %s: %w", key, domain.ErrNotFound)
	}
	if token == "" || a.Token != token {
		return domain.Asset{}, domain.ErrInvalidToken
	}
	if a.Claimed || a.Status.Terminal() {
		return domain.Asset{}, domain.ErrIntentUsed
	}

	a.Claimed = true
	i.assets[key] = a

	return a, nil
}

func (i *inMemoryAssetStorage) CompleteUpload(ctx context.Context, key, storageURL string, size int64) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	a, ok := i.assets[key]
	if !ok {
		return fmt.Errorf("asset with key = %s: %w", key, domain.ErrNotFound)
	}
	if !a.Claimed || a.Uploaded {
		return fmt.Errorf("asset with key = %s is not being uploaded", key)
	}

	a.Uploaded = true
	a.StorageURL = storageURL
	a.ContentLength = size
	i.assets[key] = a

	return nil
}

func (i *inMemoryAssetStorage) Resolve(ctx context.Context, key string, status domain.Status, publicURL, reason string) error {
	if !status.Terminal() {
		return fmt.Errorf("can't resolve asset with non-terminal status %s", status)
	}

	i.mutex.Lock()
	defer i.mutex.Unlock()

	a, ok := i.assets[key]
	if !ok {
		return fmt.Errorf("asset with key = %s: %w", key, domain.ErrNotFound)
	}
	if a.Status.Terminal() {
		return fmt.Errorf("asset with key = %s is %s: %w", key, a.Status, domain.ErrAlreadyResolved)
	}

	a.Status = status
	a.Reason = reason
	if status == domain.StatusSucceeded {
		a.PublicURL = publicURL
	}
	a.ResolvedAt = i.now()
	i.assets[key] = a

	return nil
}

func (i *inMemoryAssetStorage) GetAsset(ctx context.Context, key string) (domain.Asset, error) {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	a, ok := i.assets[key]
	if !ok {
		return domain.Asset{}, fmt.Errorf("asset with key = %s: %w", key, domain.ErrNotFound)
	}

	return a, nil
}
