// Package config loads and validates the retrieval service configuration from
// YAML files with environment-variable overrides.
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
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// IndexConfig points at the directory holding manifest.yaml and the segment
// files of every index part.
type IndexConfig struct {
	Dir string `yaml:"dir"`
}

// RetrievalConfig holds the default query parameters and the concurrency
// bound for federated batches.
type RetrievalConfig struct {
	Requested            int    `yaml:"requested"`
	QueryType            string `yaml:"querytype"`
	Dialect              string `yaml:"queryType"`
	IndexID              string `yaml:"indexId"`
	RetrievalGroup       string `yaml:"retrievalGroup"`
	Stemming             bool   `yaml:"stemming"`
	MaxConcurrentQueries int    `yaml:"maxConcurrentQueries"`
	MaxRequested         int    `yaml:"maxRequested"`
}

// Parameters returns the defaults as a string-keyed parameter bag.
func (r RetrievalConfig) Parameters() map[string]string {
	return map[string]string{
		"requested":      strconv.Itoa(r.Requested),
		"querytype":      r.QueryType,
		"queryType":      r.Dialect,
		"indexId":        r.IndexID,
		"retrievalGroup": r.RetrievalGroup,
		"stemming":       strconv.FormatBool(r.Stemming),
	}
}

// RedisConfig controls the ranked-result cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`

	// BreakerThreshold consecutive Redis failures bypass the cache for
	// BreakerReset.
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// KafkaConfig controls query-event publishing, and consumption by the
// analytics command.
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	BufferSize    int      `yaml:"bufferSize"`
	ConsumerGroup string   `yaml:"consumerGroup"`
}

// PostgresConfig holds the connection for the Postgres key/value store. When
// enabled, the part named NamesPart is served from Table instead of a
// segment file.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ConnectAttempts int           `yaml:"connectAttempts"`
	Table           string        `yaml:"table"`
	NamesPart       string        `yaml:"namesPart"`
	PageSize        int           `yaml:"pageSize"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
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
// overrides on top of the defaults.
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

// Validate rejects settings the retrieval engine cannot run with.
func (c *Config) Validate() error {
	if c.Retrieval.Requested <= 0 {
		return fmt.Errorf("retrieval.requested must be positive, got %d", c.Retrieval.Requested)
	}
	switch c.Retrieval.QueryType {
	case "boolean", "ranked":
	default:
		return fmt.Errorf("retrieval.querytype must be boolean or ranked, got %q", c.Retrieval.QueryType)
	}
	switch c.Retrieval.Dialect {
	case "simple", "complex":
	default:
		return fmt.Errorf("retrieval.queryType must be simple or complex, got %q", c.Retrieval.Dialect)
	}
	if c.Retrieval.MaxConcurrentQueries < 0 {
		return fmt.Errorf("retrieval.maxConcurrentQueries must not be negative")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			Dir: "data/index",
		},
		Retrieval: RetrievalConfig{
			Requested:            1000,
			QueryType:            "ranked",
			Dialect:              "complex",
			IndexID:              "0",
			RetrievalGroup:       "all",
			MaxConcurrentQueries: 8,
			MaxRequested:         10000,
		},
		Redis: RedisConfig{
			Addr:             "localhost:6379",
			PoolSize:         10,
			CacheTTL:         60 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			Topic:         "retrieval-events",
			BufferSize:    10000,
			ConsumerGroup: "retrieval-analytics",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "retrieval",
			User:            "retrieval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectAttempts: 5,
			Table:           "kv_entries",
			NamesPart:       "names",
			PageSize:        256,
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

// applyEnvOverrides reads RETR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RETR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RETR_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("RETR_REQUESTED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.Requested = n
		}
	}
	if v := os.Getenv("RETR_QUERYTYPE"); v != "" {
		cfg.Retrieval.QueryType = v
	}
	if v := os.Getenv("RETR_INDEX_ID"); v != "" {
		cfg.Retrieval.IndexID = v
	}
	if v := os.Getenv("RETR_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("RETR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RETR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RETR_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("RETR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RETR_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("RETR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RETR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RETR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RETR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
