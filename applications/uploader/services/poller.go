package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediaupload/applications/uploader/domain"
	"github.com/donmikel/mediaupload/applications/uploader/interfaces"
)

const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultPollMaxWait  = 2 * time.Minute
)

type PollerConfig struct {
	// Interval is the pause after each WAITING answer.
	Interval time.Duration
	// MaxWait bounds the whole poll loop.
	MaxWait time.Duration
	// MaxAttempts bounds the number of status queries. Zero leaves only MaxWait.
	MaxAttempts int
}

type poller struct {
	checker     interfaces.StatusChecker
	interval    time.Duration
	maxWait     time.Duration
	maxAttempts int
	logger      log.Logger
}

func NewPoller(checker interfaces.StatusChecker, cfg PollerConfig, logger log.Logger) interfaces.ValidationPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultPollMaxWait
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &poller{
		checker:     checker,
		interval:    cfg.Interval,
		maxWait:     cfg.MaxWait,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
	}
}

// Poll queries the status of key until it is terminal or a bound is exceeded.
// WAITING -> SUCCEEDED returns the public URL, WAITING -> FAILED returns a validation error.
func (p *poller) Poll(ctx context.Context, key string) (string, error) {
	const op = "poll status"

	waitCtx, cancel := context.WithTimeout(ctx, p.maxWait)
	defer cancel()

	for attempt := 1; ; attempt++ {
		result, err := p.checker.GetStatus(waitCtx, key)
		if err != nil {
			if stop := p.interruption(ctx, waitCtx, key, attempt); stop != nil {
				return "", stop
			}
			return "", ensureKind(err, domain.KindTransport, op, key)
		}

		level.Debug(p.logger).Log("msg", "upload status",
			"key", key,
			"status", result.Status,
			"attempt", attempt,
		)

		switch result.Status {
		case domain.StatusSucceeded:
			return result.URL, nil
		case domain.StatusFailed:
			return "", domain.NewError(domain.KindValidationFailed, op, key, errors.New("upload failed"))
		case domain.StatusWaiting:
		default:
			return "", domain.NewError(domain.KindTransport, op, key, fmt.Errorf("unknown status %q", result.Status))
		}

		if p.maxAttempts > 0 && attempt >= p.maxAttempts {
			return "", domain.NewError(domain.KindTimeout, op, key, fmt.Errorf("still waiting after %d attempts", attempt))
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return "", p.interruption(ctx, waitCtx, key, attempt)
		case <-timer.C:
		}
	}
}

// interruption returns the error for a poll loop stopped by its context, or nil when still running.
func (p *poller) interruption(ctx, waitCtx context.Context, key string, attempt int) error {
	const op = "poll status"

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.NewError(domain.KindCanceled, op, key, err)
		}
		return domain.NewError(domain.KindTimeout, op, key, err)
	}
	if waitCtx.Err() != nil {
		return domain.NewError(domain.KindTimeout, op, key, fmt.Errorf("still waiting after %s (%d attempts)", p.maxWait, attempt))
	}

	return nil
}

// ensureKind wraps err into a *domain.Error of kind unless it already carries one.
func ensureKind(err error, kind domain.Kind, op, key string) error {
	if domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	return domain.NewError(kind, op, key, err)
}
