package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultBackendTimeout = 30 * time.Second
	defaultPollInterval   = 200 * time.Millisecond
	defaultPollMaxWait    = 2 * time.Minute
)

type Uploader struct {
	Backend  Backend           `yaml:"backend"`
	Poll     Poll              `yaml:"poll"`
	Purposes map[string]string `yaml:"purposes"`
}

type Backend struct {
	BaseURL string `yaml:"base_url"`
	// Headers are sent with every API request. Values are expanded from the environment.
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

type Poll struct {
	Interval    time.Duration `yaml:"interval"`
	MaxWait     time.Duration `yaml:"max_wait"`
	MaxAttempts int           `yaml:"max_attempts"`
}

func Parse(path string) (Uploader, error) {
	var cfg Uploader

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("can't read config file: %w", err)
	}

	if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("can't parse config file: %w", err)
	}

	cfg.applyDefaults()

	for name, value := range cfg.Backend.Headers {
		cfg.Backend.Headers[name] = os.ExpandEnv(value)
	}

	return cfg, nil
}

func (c *Uploader) applyDefaults() {
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = defaultBackendTimeout
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = defaultPollInterval
	}
	if c.Poll.MaxWait == 0 {
		c.Poll.MaxWait = defaultPollMaxWait
	}
}

func (c Uploader) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url %q must be an absolute URL", c.Backend.BaseURL)
	}
	if c.Backend.Timeout < 0 {
		return errors.New("backend.timeout must not be negative")
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}
	if c.Poll.MaxWait < c.Poll.Interval {
		return errors.New("poll.max_wait must not be shorter than poll.interval")
	}
	if c.Poll.MaxAttempts < 0 {
		return errors.New("poll.max_attempts must not be negative")
	}
	for purpose, path := range c.Purposes {
		if purpose == "" || path == "" {
			return fmt.Errorf("purpose %q has an empty name or path", purpose)
		}
	}

	return nil
}
