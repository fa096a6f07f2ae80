package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/donmikel/mediaupload/applications/backend/domain"
	"github.com/donmikel/mediaupload/applications/backend/interfaces"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type s3Storage struct {
	client *minio.Client
	bucket string
	url    string
	log    log.Logger
}

// NewStorage connects to an S3 compatible bucket. The bucket must exist.
func NewStorage(ctx context.Context, cfg Config, logger log.Logger) (interfaces.Storage, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	if endpoint == "" || bucket == "" {
		return nil, errors.New("s3 endpoint and bucket are required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", bucket)
	}

	return &s3Storage{
		client: client,
		bucket: bucket,
		url:    fmt.Sprintf("s3://%s/%s", endpoint, bucket),
		log:    logger,
	}, nil
}

func (s *s3Storage) GetStorageURL() string {
	return s.url
}

func (s *s3Storage) UploadObject(ctx context.Context, key, contentType string, body io.Reader) (int64, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, body); err != nil {
		return 0, fmt.Errorf("read object body: %w", err)
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"uploaded-at": time.Now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return 0, fmt.Errorf("put object %s: %w", key, err)
	}

	level.Info(s.log).Log("msg", "object stored",
		"key", key,
		"storage", s.url,
		"size", humanize.Bytes(uint64(info.Size)),
	)

	return info.Size, nil
}

func (s *s3Storage) ReadObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s in %s: %w", key, s.url, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	return obj, nil
}

func (s *s3Storage) DeleteObject(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// GetFreeSpace reports buckets as unbounded.
func (s *s3Storage) GetFreeSpace() (int64, error) {
	return math.MaxInt64, nil
}
