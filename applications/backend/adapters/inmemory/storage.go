package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediaupload/applications/backend/domain"
	"github.com/donmikel/mediaupload/applications/backend/interfaces"
)

const DefaultCapacityInBytes = 100 * 1024 * 1024 // 100 Mb

type inMemoryStorage struct {
	dataByKey map[string][]byte
	freeSpace int64
	url       string
	log       log.Logger
	mutex     sync.RWMutex
}

func NewStorage(url string, capacity int64, logger log.Logger) interfaces.Storage {
	if capacity <= 0 {
		capacity = DefaultCapacityInBytes
	}
	return &inMemoryStorage{
		url:       url,
		log:       logger,
		dataByKey: map[string][]byte{},
		freeSpace: capacity,
	}
}

func (m *inMemoryStorage) GetStorageURL() string {
	return m.url
}

func (m *inMemoryStorage) UploadObject(ctx context.Context, key, contentType string, body io.Reader) (int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	dataLen := int64(len(data))
	freeSpace := m.freeSpace + int64(len(m.dataByKey[key]))
	if dataLen > freeSpace {
		return 0, fmt.Errorf("not enough free space")
	}

	m.dataByKey[key] = data
	m.freeSpace = freeSpace - dataLen

	level.Info(m.log).Log("msg", "object stored",
		"key", key,
		"storage", m.url,
		"size", humanize.Bytes(uint64(dataLen)),
		"free_space", humanize.Bytes(uint64(m.freeSpace)),
	)

	return dataLen, nil
}

func (m *inMemoryStorage) ReadObject(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	data, ok := m.dataByKey[key]
	if !ok {
		return nil, fmt.Errorf("object %s in %s: %w", key, m.url, domain.ErrNotFound)
	}

	level.Debug(m.log).Log("msg", "object read",
		"key", key,
		"storage", m.url,
	)

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *inMemoryStorage) DeleteObject(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	dataLen := len(m.dataByKey[key])
	delete(m.dataByKey, key)
	m.freeSpace += int64(dataLen)

	return nil
}

func (m *inMemoryStorage) GetFreeSpace() (int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.freeSpace, nil
}
