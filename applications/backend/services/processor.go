package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediaupload/applications/backend/domain"
	"github.com/donmikel/mediaupload/applications/backend/interfaces"
)

const (
	defaultProcessingWorkers   = 2
	defaultProcessingQueueSize = 64
)

type ProcessorConfig struct {
	Workers   int
	QueueSize int
	// Delay is waited before validating an object, mimicking slow post-processing.
	Delay     time.Duration
	PublicURL string
	Rules     map[string]domain.PurposeRule
	Observer  interfaces.Observer
	Logger    log.Logger
}

// Processor validates stored uploads in the background and resolves their status.
type Processor struct {
	assets         interfaces.AssetStorage
	storageManager interfaces.StorageManager
	rules          map[string]domain.PurposeRule
	publicURL      string
	delay          time.Duration
	workers        int
	observer       interfaces.Observer
	logger         log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	queue chan string
	wg    sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
	started  bool
}

func NewProcessor(assets interfaces.AssetStorage, storageManager interfaces.StorageManager, cfg ProcessorConfig) *Processor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultProcessingWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultProcessingQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = interfaces.NopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		assets:         assets,
		storageManager: storageManager,
		rules:          cfg.Rules,
		publicURL:      strings.TrimRight(cfg.PublicURL, "/"),
		delay:          cfg.Delay,
		workers:        workers,
		observer:       observer,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		queue:          make(chan string, queueSize),
		inFlight:       make(map[string]struct{}),
	}
}

func (p *Processor) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Processor) Shutdown(ctx context.Context) error {
	p.cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue blocks while the queue is full, until the processor shuts down.
func (p *Processor) Enqueue(key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	select {
	case <-p.ctx.Done():
		return
	default:
	}
	select {
	case p.queue <- key:
	case <-p.ctx.Done():
	}
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case key := <-p.queue:
			if !p.beginWork(key) {
				continue
			}
			p.process(key)
			p.finishWork(key)
		}
	}
}

func (p *Processor) beginWork(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.inFlight[key]; exists {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *Processor) finishWork(key string) {
	p.mu.Lock()
	delete(p.inFlight, key)
	p.mu.Unlock()
}

func (p *Processor) process(key string) {
	asset, err := p.assets.GetAsset(p.ctx, key)
	if err != nil {
		level.Error(p.logger).Log("msg", "can't load asset", "key", key, "err", err)
		return
	}
	if asset.Status.Terminal() || !asset.Uploaded {
		return
	}

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-p.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	if err = p.validate(asset); err != nil {
		p.fail(asset, err)
		return
	}

	publicURL := p.publicURL + "/assets/" + asset.Key
	if err = p.assets.Resolve(p.ctx, key, domain.StatusSucceeded, publicURL, ""); err != nil {
		level.Error(p.logger).Log("msg", "can't mark upload succeeded", "key", key, "err", err)
		return
	}
	p.observer.Resolved(asset.Purpose, domain.StatusSucceeded)

	level.Info(p.logger).Log("msg", "upload validated",
		"key", key,
		"purpose", asset.Purpose,
		"url", publicURL,
	)
}

func (p *Processor) validate(asset domain.Asset) error {
	rule, ok := p.rules[asset.Purpose]
	if !ok {
		return errors.New("purpose is no longer configured")
	}

	storage, err := p.storageManager.GetStorage(p.ctx, asset.StorageURL)
	if err != nil {
		return err
	}
	body, err := storage.ReadObject(p.ctx, asset.Key)
	if err != nil {
		return err
	}
	defer body.Close()

	return validateObject(rule, asset, body)
}

// fail resolves the asset as FAILED and drops its bytes.
func (p *Processor) fail(asset domain.Asset, cause error) {
	if err := p.assets.Resolve(p.ctx, asset.Key, domain.StatusFailed, "", cause.Error()); err != nil {
		level.Error(p.logger).Log("msg", "can't mark upload failed", "key", asset.Key, "err", err, "failure", cause)
		return
	}
	p.observer.Resolved(asset.Purpose, domain.StatusFailed)

	if storage, err := p.storageManager.GetStorage(p.ctx, asset.StorageURL); err == nil {
		if err = storage.DeleteObject(p.ctx, asset.Key); err != nil {
			level.Error(p.logger).Log("msg", "can't delete rejected object", "key", asset.Key, "err", err)
		}
	}

	level.Info(p.logger).Log("msg", "upload rejected",
		"key", asset.Key,
		"purpose", asset.Purpose,
		"reason", cause,
	)
}
