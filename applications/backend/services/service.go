package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/donmikel/mediaupload/applications/backend"
	"github.com/donmikel/mediaupload/applications/backend/domain"
	"github.com/donmikel/mediaupload/applications/backend/interfaces"
	"github.com/donmikel/mediaupload/pkg/uploadapi"
)

type Config struct {
	// PublicURL is the externally reachable base URL of this backend.
	PublicURL string
	Rules     map[string]domain.PurposeRule
}

type service struct {
	assets         interfaces.AssetStorage
	storageManager interfaces.StorageManager
	queue          interfaces.ProcessingQueue
	rules          map[string]domain.PurposeRule
	publicURL      string
	observer       interfaces.Observer
	logger         log.Logger
}

func NewService(
	assets interfaces.AssetStorage,
	storageManager interfaces.StorageManager,
	queue interfaces.ProcessingQueue,
	cfg Config,
	observer interfaces.Observer,
	logger log.Logger,
) backend.UploadService {
	if observer == nil {
		observer = interfaces.NopObserver{}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &service{
		assets:         assets,
		storageManager: storageManager,
		queue:          queue,
		rules:          cfg.Rules,
		publicURL:      strings.TrimRight(cfg.PublicURL, "/"),
		observer:       observer,
		logger:         logger,
	}
}

func (s *service) IssueIntent(ctx context.Context, purpose, contentType string) (domain.Intent, error) {
	rule, ok := s.rules[purpose]
	if !ok {
		s.observer.IntentRejected(purpose)
		return domain.Intent{}, fmt.Errorf("%w: unknown purpose %q", domain.ErrRejected, purpose)
	}
	if !rule.Allows(contentType) {
		s.observer.IntentRejected(purpose)
		return domain.Intent{}, fmt.Errorf("%w: content type %s is not allowed for %s", domain.ErrRejected, contentType, purpose)
	}

	asset := domain.Asset{
		Key:         path.Join(rule.Prefix, uuid.NewString()),
		Purpose:     purpose,
		ContentType: contentType,
		Token:       uuid.NewString(),
	}
	if err := s.assets.CreateAsset(ctx, asset); err != nil {
		return domain.Intent{}, fmt.Errorf("can't create asset: %w", err)
	}
	s.observer.IntentIssued(purpose)

	level.Debug(s.logger).Log("msg", "intent issued",
		"key", asset.Key,
		"purpose", purpose,
		"content_type", contentType,
	)

	return domain.Intent{
		Key: asset.Key,
		URL: s.publicURL + "/storage/" + asset.Key,
		Headers: http.Header{
			"Content-Type":              []string{contentType},
			uploadapi.UploadTokenHeader: []string{asset.Token},
		},
	}, nil
}

func (s *service) Store(ctx context.Context, key, token, contentType string, body io.Reader) error {
	asset, err := s.assets.GetAsset(ctx, key)
	if err != nil {
		return err
	}

	declared, _ := domain.MediaType(asset.ContentType)
	sent, err := domain.MediaType(contentType)
	if err != nil || sent != declared {
		return fmt.Errorf("%w: content type %q does not match intent %q", domain.ErrRejected, contentType, asset.ContentType)
	}

	if asset, err = s.assets.ClaimUpload(ctx, key, token); err != nil {
		return err
	}

	storages, err := s.storageManager.GetStorages(ctx, 1)
	if err != nil {
		s.abort(ctx, asset, err)
		return fmt.Errorf("can't get storages error: %w", err)
	}
	storage := storages[0]

	if rule, ok := s.rules[asset.Purpose]; ok && rule.MaxSize > 0 {
		// One byte over the limit is enough for validation to reject the object.
		body = io.LimitReader(body, rule.MaxSize+1)
	}

	size, err := storage.UploadObject(ctx, key, asset.ContentType, body)
	if err != nil {
		s.abort(ctx, asset, err)
		return fmt.Errorf("can't upload object: %w", err)
	}

	if err = s.assets.CompleteUpload(ctx, key, storage.GetStorageURL(), size); err != nil {
		return fmt.Errorf("can't complete upload: %w", err)
	}
	s.observer.ObjectStored(asset.Purpose, size)

	s.queue.Enqueue(key)

	return nil
}

// abort fails an upload whose write never completed. The intent is spent either way.
func (s *service) abort(ctx context.Context, asset domain.Asset, cause error) {
	if err := s.assets.Resolve(ctx, asset.Key, domain.StatusFailed, "", "storage write failed"); err != nil {
		level.Error(s.logger).Log("msg", "can't mark upload failed", "key", asset.Key, "err", err)
		return
	}
	s.observer.Resolved(asset.Purpose, domain.StatusFailed)
	level.Error(s.logger).Log("msg", "storage write failed", "key", asset.Key, "err", cause)
}

func (s *service) Status(ctx context.Context, key string) (domain.Asset, error) {
	asset, err := s.assets.GetAsset(ctx, key)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("can't get asset: %w", err)
	}
	return asset, nil
}

func (s *service) Open(ctx context.Context, key string) (io.ReadCloser, domain.Asset, error) {
	asset, err := s.assets.GetAsset(ctx, key)
	if err != nil {
		return nil, domain.Asset{}, fmt.Errorf("can't get asset: %w", err)
	}
	if asset.Status != domain.StatusSucceeded {
		return nil, domain.Asset{}, fmt.Errorf("asset %s is %s: %w", key, asset.Status, domain.ErrNotReady)
	}

	storage, err := s.storageManager.GetStorage(ctx, asset.StorageURL)
	if err != nil {
		return nil, domain.Asset{}, fmt.Errorf("can't get storage error: %w", err)
	}

	body, err := storage.ReadObject(ctx, key)
	if err != nil {
		return nil, domain.Asset{}, fmt.Errorf("can't read object: %w", err)
	}

	return body, asset, nil
}
