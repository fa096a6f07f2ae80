package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/mediaupload/applications/backend/domain"
)

func newTestAsset(t *testing.T) (context.Context, *inMemoryAssetStorage) {
	ctx := context.Background()
	s := NewAssetStorage().(*inMemoryAssetStorage)
	require.NoError(t, s.CreateAsset(ctx, domain.Asset{
		Key:         "images/k1",
		Purpose:     "product-image",
		ContentType: "image/png",
		Token:       "t1",
	}))
	return ctx, s
}

func TestAssetStorageLifecycle(t *testing.T) {
	ctx, s := newTestAsset(t)

	a, err := s.GetAsset(ctx, "images/k1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, a.Status)
	assert.False(t, a.CreatedAt.IsZero())

	_, err = s.ClaimUpload(ctx, "images/k1", "t1")
	require.NoError(t, err)
	require.NoError(t, s.CompleteUpload(ctx, "images/k1", "storage_0", 42))
	require.NoError(t, s.Resolve(ctx, "images/k1", domain.StatusSucceeded, "https://cdn/images/k1", ""))

	a, err = s.GetAsset(ctx, "images/k1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, a.Status)
	assert.Equal(t, "https://cdn/images/k1", a.PublicURL)
	assert.Equal(t, "storage_0", a.StorageURL)
	assert.Equal(t, int64(42), a.ContentLength)
}

func TestAssetStorageClaimIsSingleUse(t *testing.T) {
	ctx, s := newTestAsset(t)

	_, err := s.ClaimUpload(ctx, "images/k1", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = s.ClaimUpload(ctx, "images/k1", "t1")
	require.NoError(t, err)

	_, err = s.ClaimUpload(ctx, "images/k1", "t1")
	assert.ErrorIs(t, err, domain.ErrIntentUsed)

	_, err = s.ClaimUpload(ctx, "images/missing", "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssetStorageTerminalStatusIsFinal(t *testing.T) {
	ctx, s := newTestAsset(t)

	require.NoError(t, s.Resolve(ctx, "images/k1", domain.StatusFailed, "", "bad content"))

	err := s.Resolve(ctx, "images/k1", domain.StatusSucceeded, "https://cdn/images/k1", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	assert.Error(t, s.Resolve(ctx, "images/k1", domain.StatusWaiting, "", ""))

	a, err := s.GetAsset(ctx, "images/k1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, a.Status)
	assert.Empty(t, a.PublicURL)
	assert.Equal(t, "bad content", a.Reason)
}

func TestAssetStorageCompleteRequiresClaim(t *testing.T) {
	ctx, s := newTestAsset(t)

	assert.Error(t, s.CompleteUpload(ctx, "images/k1", "storage_0", 1))
	assert.Error(t, s.CreateAsset(ctx, domain.Asset{Key: "images/k1"}))
}
