package msredis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/msredis/msredis/storage"
	"github.com/msredis/msredis/storage/policy"
)

// FileConfig is the YAML configuration file layout
type FileConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password,omitempty"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
	Databases   int           `yaml:"databases"`
	Shards      int           `yaml:"shards"`
	MaxMemory   int64         `yaml:"maxMemory"`
	Eviction    string        `yaml:"maxMemoryPolicy"`
	Cleanup     CleanupConfig `yaml:"cleanup"`
}

// CleanupConfig is the cleanup section of a config file. Zero fields keep
// the defaults.
type CleanupConfig struct {
	Preset           string        `yaml:"preset"`
	Interval         time.Duration `yaml:"interval"`
	SampleSize       int           `yaml:"sampleSize"`
	MaxRounds        int           `yaml:"maxRounds"`
	BatchSize        int           `yaml:"batchSize"`
	ExpiredThreshold float64       `yaml:"expiredThreshold"`
}

// LoadConfig reads a YAML config file
func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML config data. Unknown fields are rejected and
// empty input yields an empty config.
func ParseConfig(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Options converts the file into functional options. Fields left at their
// zero value are not turned into options.
func (fc *FileConfig) Options() ([]Option, error) {
	var opts []Option
	if fc.Addr != "" {
		opts = append(opts, WithAddr(fc.Addr))
	}
	if fc.Password != "" {
		opts = append(opts, WithPassword(fc.Password))
	}
	if fc.ReadTimeout != 0 {
		opts = append(opts, WithReadTimeout(fc.ReadTimeout))
	}
	if fc.Databases != 0 {
		opts = append(opts, WithDatabases(fc.Databases))
	}
	if fc.Shards != 0 {
		opts = append(opts, WithShardCount(fc.Shards))
	}
	if fc.MaxMemory != 0 || fc.Eviction != "" {
		p, err := policy.Parse(fc.Eviction)
		if err != nil {
			return nil, &ConfigError{Option: "maxMemoryPolicy", Value: fc.Eviction, Err: err}
		}
		opts = append(opts, WithMaxMemory(fc.MaxMemory, p))
	}
	if fc.Cleanup != (CleanupConfig{}) {
		cfg, err := fc.Cleanup.resolve()
		if err != nil {
			return nil, err
		}
		interval := fc.Cleanup.Interval
		if interval == 0 {
			interval = defaultConfig().cleanupInterval
		}
		opts = append(opts, WithCleanupConfig(cfg, interval))
	}
	return opts, nil
}

func (c CleanupConfig) resolve() (storage.CleanupConfig, error) {
	var cfg storage.CleanupConfig
	switch c.Preset {
	case "", "default":
		cfg = storage.CleanupConfigDefault
	case "low-latency":
		cfg = storage.CleanupConfigLowLatency
	case "aggressive":
		cfg = storage.CleanupConfigAggressive
	default:
		return cfg, configErr("cleanup preset", c.Preset)
	}
	if c.SampleSize != 0 {
		cfg.SampleSize = c.SampleSize
	}
	if c.MaxRounds != 0 {
		cfg.MaxRounds = c.MaxRounds
	}
	if c.BatchSize != 0 {
		cfg.BatchSize = c.BatchSize
	}
	if c.ExpiredThreshold != 0 {
		cfg.ExpiredThreshold = c.ExpiredThreshold
	}
	return cfg, nil
}
