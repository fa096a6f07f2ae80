package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v2"

	"github.com/donmikel/mediaupload/applications/backend/domain"
)

const (
	DriverMemory = "memory"
	DriverS3     = "s3"
)

const (
	defaultShards        = 3
	defaultShardCapacity = "100MB"
)

type Server struct {
	API        Api        `yaml:"api"`
	Storage    Storage    `yaml:"storage"`
	Processing Processing `yaml:"processing"`
	Purposes   []Purpose  `yaml:"purposes"`
}

type Api struct {
	HTTPAddr string `yaml:"http_addr"`
	// PublicURL prefixes storage destinations and asset URLs handed to clients.
	PublicURL string `yaml:"public_url"`
	// Token enables bearer authentication of the /v1 API when set.
	Token string `yaml:"token"`
}

type Storage struct {
	Driver        string `yaml:"driver"`
	Shards        int    `yaml:"shards"`
	ShardCapacity string `yaml:"shard_capacity"`
	S3            S3     `yaml:"s3"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type Processing struct {
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Delay     time.Duration `yaml:"delay"`
}

type Purpose struct {
	Name         string   `yaml:"name"`
	Prefix       string   `yaml:"prefix"`
	AllowedTypes []string `yaml:"allowed_types"`
	MaxSize      string   `yaml:"max_size"`
}

func Parse(path string) (Server, error) {
	var cfg Server

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("can't read config file: %w", err)
	}

	if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("can't parse config file: %w", err)
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
	}
	if cfg.Storage.Driver == DriverMemory {
		if cfg.Storage.Shards == 0 {
			cfg.Storage.Shards = defaultShards
		}
		if cfg.Storage.ShardCapacity == "" {
			cfg.Storage.ShardCapacity = defaultShardCapacity
		}
	}
	cfg.Storage.S3.AccessKey = os.ExpandEnv(cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = os.ExpandEnv(cfg.Storage.S3.SecretKey)
	cfg.API.Token = os.ExpandEnv(cfg.API.Token)

	return cfg, nil
}

func (s Server) Validate() error {
	if s.API.HTTPAddr == "" {
		return errors.New("api.http_addr is required")
	}
	u, err := url.Parse(s.API.PublicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.public_url %q must be an absolute URL", s.API.PublicURL)
	}

	switch s.Storage.Driver {
	case DriverMemory:
		if s.Storage.Shards <= 0 {
			return errors.New("storage.shards must be positive")
		}
		if _, err = s.Storage.ShardCapacityBytes(); err != nil {
			return err
		}
	case DriverS3:
		if s.Storage.S3.Endpoint == "" || s.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.endpoint and storage.s3.bucket are required")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", s.Storage.Driver)
	}

	if s.Processing.Workers < 0 || s.Processing.QueueSize < 0 || s.Processing.Delay < 0 {
		return errors.New("processing settings must not be negative")
	}

	if len(s.Purposes) == 0 {
		return errors.New("at least one purpose is required")
	}
	if _, err = s.Rules(); err != nil {
		return err
	}

	return nil
}

func (s Storage) ShardCapacityBytes() (int64, error) {
	n, err := humanize.ParseBytes(s.ShardCapacity)
	if err != nil {
		return 0, fmt.Errorf("invalid storage.shard_capacity: %w", err)
	}
	return int64(n), nil
}

// Rules converts the configured purposes, keyed by name.
func (s Server) Rules() (map[string]domain.PurposeRule, error) {
	rules := make(map[string]domain.PurposeRule, len(s.Purposes))
	for _, p := range s.Purposes {
		if p.Name == "" || p.Prefix == "" {
			return nil, fmt.Errorf("purpose %q needs a name and a prefix", p.Name)
		}
		if _, ok := rules[p.Name]; ok {
			return nil, fmt.Errorf("purpose %q is defined twice", p.Name)
		}

		var maxSize uint64
		if p.MaxSize != "" {
			var err error
			if maxSize, err = humanize.ParseBytes(p.MaxSize); err != nil {
				return nil, fmt.Errorf("invalid max_size of purpose %q: %w", p.Name, err)
			}
		}

		rules[p.Name] = domain.PurposeRule{
			Name:         p.Name,
			Prefix:       p.Prefix,
			AllowedTypes: p.AllowedTypes,
			MaxSize:      int64(maxSize),
		}
	}
	return rules, nil
}
