package inmemory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediaupload/applications/backend/interfaces"
)

// shard is a storage with its free space sampled at selection time.
type shard struct {
	storage interfaces.Storage
	free    int64
}

type storageManager struct {
	byURL  map[string]interfaces.Storage
	order  []string
	mutex  sync.RWMutex
	logger log.Logger
}

func NewStorageManager(logger log.Logger) interfaces.StorageManager {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &storageManager{
		byURL:  map[string]interfaces.Storage{},
		logger: logger,
	}
}

// GetStorages returns count storages, the ones with the most free space first.
// Storages that can't report their free space are skipped.
func (s *storageManager) GetStorages(ctx context.Context, count int) ([]interfaces.Storage, error) {
	s.mutex.RLock()
	shards := make([]shard, 0, len(s.order))
	for _, url := range s.order {
		st := s.byURL[url]
		free, err := st.GetFreeSpace()
		if err != nil {
			level.Warn(s.logger).Log("msg", "storage skipped", "storage", url, "err", err)
			continue
		}
		shards = append(shards, shard{storage: st, free: free})
	}
	s.mutex.RUnlock()

	if count <= 0 || count > len(shards) {
		return nil, fmt.Errorf("can't select %d of %d available storages", count, len(shards))
	}

	slices.SortStableFunc(shards, func(a, b shard) int {
		return cmp.Compare(b.free, a.free)
	})

	result := make([]interfaces.Storage, 0, count)
	for _, sh := range shards[:count] {
		result = append(result, sh.storage)
		level.Debug(s.logger).Log("msg", "storage selected",
			"storage", sh.storage.GetStorageURL(),
			"free_space", humanize.Bytes(uint64(sh.free)),
		)
	}

	return result, nil
}

func (s *storageManager) GetStorage(ctx context.Context, storageURL string) (interfaces.Storage, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	st, ok := s.byURL[storageURL]
	if !ok {
		return nil, fmt.Errorf("storage with URL = %s not found", storageURL)
	}

	return st, nil
}

func (s *storageManager) AddStorage(ctx context.Context, storageURL string, st interfaces.Storage) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.byURL[storageURL]; ok {
		return fmt.Errorf("storage with URL = %s already added", storageURL)
	}

	s.byURL[storageURL] = st
	s.order = append(s.order, storageURL)

	level.Info(s.logger).Log("msg", "storage added", "storage", storageURL)

	return nil
}
