// Package config loads daemon configuration: built-in defaults, then an
// optional YAML file, then RECLAIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override, e.g.
// RECLAIM_SERVER_GRPC_ADDR.
const EnvPrefix = "RECLAIM"

// Config holds all daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LogConfig     `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Jobs    JobsConfig    `yaml:"jobs"`
}

// ServerConfig holds listener addresses.
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" envconfig:"GRPC_ADDR"`
	HTTPAddr string `yaml:"http_addr" envconfig:"HTTP_ADDR"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEV"`
}

// StorageConfig places the journal, outbox and snapshot file.
type StorageConfig struct {
	DataDir         string        `yaml:"data_dir" envconfig:"DATA_DIR"`
	SegmentSize     int64         `yaml:"segment_size" envconfig:"SEGMENT_SIZE"`
	SegmentDuration time.Duration `yaml:"segment_duration" envconfig:"SEGMENT_DURATION"`
	SyncEveryWrite  bool          `yaml:"sync_every_write" envconfig:"SYNC_EVERY_WRITE"`
}

// MetricsConfig shapes every series aggregate.
type MetricsConfig struct {
	Namespace string    `yaml:"namespace" envconfig:"NAMESPACE"`
	Buckets   []float64 `yaml:"buckets" envconfig:"BUCKETS"`
	Window    int       `yaml:"window" envconfig:"WINDOW"`
	Quantiles []float64 `yaml:"quantiles" envconfig:"QUANTILES"`
}

// KafkaConfig covers both ingest and snapshot publication.
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers" envconfig:"BROKERS"`
	IngestEnabled  bool     `yaml:"ingest_enabled" envconfig:"INGEST_ENABLED"`
	IngestTopic    string   `yaml:"ingest_topic" envconfig:"INGEST_TOPIC"`
	GroupID        string   `yaml:"group_id" envconfig:"GROUP_ID"`
	PublishEnabled bool     `yaml:"publish_enabled" envconfig:"PUBLISH_ENABLED"`
	SnapshotTopic  string   `yaml:"snapshot_topic" envconfig:"SNAPSHOT_TOPIC"`
}

// JobsConfig schedules the background jobs.
type JobsConfig struct {
	SnapshotInterval  time.Duration `yaml:"snapshot_interval" envconfig:"SNAPSHOT_INTERVAL"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval" envconfig:"BROADCAST_INTERVAL"`
	MaxRetries        uint32        `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	// RetentionSchedule is a cron spec, e.g. "@every 5m".
	RetentionSchedule string `yaml:"retention_schedule" envconfig:"RETENTION_SCHEDULE"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCAddr: ":50051",
			HTTPAddr: ":9090",
		},
		Logging: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			DataDir:     "data",
			SegmentSize: 16 << 20,
		},
		Metrics: MetricsConfig{
			Namespace: "reclaim",
			Window:    4096,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			IngestTopic:   "reclaim.samples",
			GroupID:       "reclaimd",
			SnapshotTopic: "reclaim.snapshots",
		},
		Jobs: JobsConfig{
			SnapshotInterval:  10 * time.Second,
			BroadcastInterval: time.Second,
			MaxRetries:        5,
			RetentionSchedule: "@every 1m",
		},
	}
}

// Load builds configuration from defaults, the YAML file at path (skipped
// when path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

var ErrInvalid = errors.New("invalid configuration")

func (c *Config) Validate() error {
	var errs []error
	if c.Storage.DataDir == "" {
		errs = append(errs, fmt.Errorf("%w: storage.data_dir is empty", ErrInvalid))
	}
	if c.Storage.SegmentSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: storage.segment_size must be positive", ErrInvalid))
	}
	if c.Jobs.SnapshotInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: jobs.snapshot_interval must be positive", ErrInvalid))
	}
	if c.Jobs.BroadcastInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: jobs.broadcast_interval must be positive", ErrInvalid))
	}
	for _, q := range c.Metrics.Quantiles {
		if q < 0 || q > 1 {
			errs = append(errs, fmt.Errorf("%w: quantile %v outside [0,1]", ErrInvalid, q))
		}
	}
	if (c.Kafka.IngestEnabled || c.Kafka.PublishEnabled) && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("%w: kafka enabled without brokers", ErrInvalid))
	}
	return errors.Join(errs...)
}

func (s StorageConfig) JournalDir() string  { return filepath.Join(s.DataDir, "journal") }
func (s StorageConfig) OutboxDir() string   { return filepath.Join(s.DataDir, "outbox") }
func (s StorageConfig) SnapshotDir() string { return filepath.Join(s.DataDir, "snapshot") }
