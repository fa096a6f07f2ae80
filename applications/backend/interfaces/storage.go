package interfaces

import (
	"context"
	"io"
)

type Storage interface {
	UploadObject(ctx context.Context, key, contentType string, body io.Reader) (int64, error)
	ReadObject(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, key string) error
	GetFreeSpace() (int64, error)
	GetStorageURL() string
}

type StorageManager interface {
	GetStorages(ctx context.Context, count int) ([]Storage, error)
	GetStorage(ctx context.Context, storageURL string) (Storage, error)
	AddStorage(ctx context.Context, storageURL string, storage Storage) error
}
