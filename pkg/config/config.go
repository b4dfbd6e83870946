// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Postgres, Kafka, Redis, Indexer, RPC, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	RPC      RPCConfig      `yaml:"rpc"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PostgresConfig holds PostgreSQL connection parameters for the apply
// journal. An empty Host disables the journal.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	Topic         string        `yaml:"topic"`
	MaxRetries    int           `yaml:"maxRetries"`
	RetryBackoff  time.Duration `yaml:"retryBackoff"`
}

// RedisConfig holds Redis connection and distributed-lock parameters. An
// empty Addr disables the cross-process lock.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"poolSize"`
	LockPrefix   string        `yaml:"lockPrefix"`
	LockTTL      time.Duration `yaml:"lockTTL"`
	LockPollWait time.Duration `yaml:"lockPollWait"`
}

// IndexerConfig controls the index engine's buffers, segment layout and
// post-write maintenance policy.
type IndexerConfig struct {
	DataDir                string        `yaml:"dataDir"`
	NumShards              int           `yaml:"numShards"`
	SegmentMaxSize         int64         `yaml:"segmentMaxSize"`
	BulkSegmentFactor      int64         `yaml:"bulkSegmentFactor"`
	FlushInterval          time.Duration `yaml:"flushInterval"`
	MaxSegmentsBeforeMerge int           `yaml:"maxSegmentsBeforeMerge"`
	OptimizeOperationLimit int           `yaml:"optimizeOperationLimit"`
}

// RPCConfig controls the binary TCP transport. An empty ListenAddr disables
// the server.
type RPCConfig struct {
	ListenAddr   string        `yaml:"listenAddr"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxFrameSize int           `yaml:"maxFrameSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the index node cannot run with.
func (c *Config) Validate() error {
	if c.Indexer.DataDir == "" {
		return fmt.Errorf("indexer.dataDir must be set")
	}
	if c.Indexer.NumShards < 1 {
		return fmt.Errorf("indexer.numShards must be at least 1, got %d", c.Indexer.NumShards)
	}
	if c.Indexer.SegmentMaxSize <= 0 {
		return fmt.Errorf("indexer.segmentMaxSize must be positive, got %d", c.Indexer.SegmentMaxSize)
	}
	if c.Indexer.BulkSegmentFactor < 1 {
		return fmt.Errorf("indexer.bulkSegmentFactor must be at least 1, got %d", c.Indexer.BulkSegmentFactor)
	}
	if c.RPC.MaxFrameSize < 0 {
		return fmt.Errorf("rpc.maxFrameSize must not be negative")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "indexrelay",
			User:            "indexrelay",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "indexrelay-nodes",
			Topic:         "index-operations",
			MaxRetries:    3,
			RetryBackoff:  200 * time.Millisecond,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			LockPrefix:   "indexrelay:lock:",
			LockTTL:      30 * time.Second,
			LockPollWait: 50 * time.Millisecond,
		},
		Indexer: IndexerConfig{
			DataDir:                "./data/index",
			NumShards:              1,
			SegmentMaxSize:         4 << 20,
			BulkSegmentFactor:      8,
			FlushInterval:          0,
			MaxSegmentsBeforeMerge: 10,
			OptimizeOperationLimit: 1000,
		},
		RPC: RPCConfig{
			Timeout:      10 * time.Second,
			MaxFrameSize: 16 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads IR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("IR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("IR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("IR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("IR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("IR_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("IR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("IR_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("IR_KAFKA_CONSUMER_GROUP"); v != "" {
		cfg.Kafka.ConsumerGroup = v
	}
	if v := os.Getenv("IR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("IR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("IR_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("IR_INDEXER_NUM_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.NumShards = n
		}
	}
	if v := os.Getenv("IR_RPC_LISTEN_ADDR"); v != "" {
		cfg.RPC.ListenAddr = v
	}
	if v := os.Getenv("IR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("IR_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
