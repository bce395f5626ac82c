package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rzpsarthak13/modstore/internal/core"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable read by LoadFromEnv.
const EnvPrefix = "MODSTORE_"

// Cache and event transport types.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheBolt   = "bolt"
	CacheDynamo = "dynamodb"

	EventsNone   = "none"
	EventsMemory = "memory"
	EventsKafka  = "kafka"
)

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *Config
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultConfig(),
	}
}

// DefaultConfig returns a configuration with sensible defaults: an embedded
// SQLite store next to the process and an in-memory cache.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:         string(core.DriverRelationalEmbedded),
			Endpoint:       "modstore.db",
			ConnectTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Type:      CacheMemory,
			Namespace: "modstore",
			TTL:       5 * time.Minute,
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				DB:           0,
				PoolSize:     10,
				MinIdleConns: 5,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			Bolt: BoltConfig{
				Path:    "modstore-cache.db",
				Bucket:  "cache",
				Timeout: time.Second,
			},
			Dynamo: DynamoConfig{
				Endpoint: "dynamodb://us-east-1",
				Table:    "modstore-cache",
			},
		},
		Events: EventsConfig{
			Type:       EventsNone,
			Rate:       50,
			Burst:      10,
			BufferSize: 1000,
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "modstore-events",
				GroupID:         "modstore",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,
				MaxMessageBytes: 1000000,
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024,
				MaxWait:         100 * time.Millisecond,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data on top of the defaults.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromJSON loads configuration from JSON data on top of the defaults.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromEnv overrides the current configuration with environment
// variables. Variables follow the pattern MODSTORE_<SECTION>_<KEY>:
//   - MODSTORE_STORE_DRIVER=mysql
//   - MODSTORE_STORE_ENDPOINT=localhost:3306/moderation
//   - MODSTORE_CACHE_TYPE=redis
//   - MODSTORE_CACHE_REDIS_ENDPOINTS=localhost:6379,localhost:6380
//   - MODSTORE_EVENTS_KAFKA_BROKERS=localhost:9092
//
// Unset variables keep their current value, so a file can be loaded first.
func (cm *ConfigManager) LoadFromEnv() error {
	return cm.loadEnv(nil)
}

func (cm *ConfigManager) loadEnv(environment map[string]string) error {
	config := cm.config.clone()
	opts := env.Options{Prefix: EnvPrefix, Environment: environment}
	if err := env.ParseWithOptions(config, opts); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return cm.apply(config)
}

// GetConfig returns the current configuration.
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

func (cm *ConfigManager) apply(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

func (c *Config) clone() *Config {
	out := *c
	out.Cache.Redis.Endpoints = append([]string(nil), c.Cache.Redis.Endpoints...)
	out.Events.Kafka.Brokers = append([]string(nil), c.Events.Kafka.Brokers...)
	return &out
}

// DriverType resolves the configured driver name.
func (s StoreConfig) DriverType() (core.DriverType, error) {
	return core.ParseDriverType(s.Driver)
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	return c.Events.validate()
}

func (s StoreConfig) validate() error {
	if s.Driver == "" {
		return fmt.Errorf("store.driver is required")
	}
	if _, err := s.DriverType(); err != nil {
		return fmt.Errorf("store.driver: %w", err)
	}
	if strings.TrimSpace(s.Endpoint) == "" {
		return fmt.Errorf("store.endpoint is required")
	}
	if s.ConnectTimeout < 0 {
		return fmt.Errorf("store.connect_timeout must be non-negative")
	}
	return nil
}

func (c CacheConfig) validate() error {
	switch c.Type {
	case CacheNone, "":
		return nil
	case CacheMemory:
	case CacheRedis:
		if err := c.Redis.validate(); err != nil {
			return fmt.Errorf("cache.redis_config: %w", err)
		}
	case CacheBolt:
		if c.Bolt.Path == "" {
			return fmt.Errorf("cache.bolt_config.path is required when cache.type is 'bolt'")
		}
		if c.Bolt.Bucket == "" {
			return fmt.Errorf("cache.bolt_config.bucket is required when cache.type is 'bolt'")
		}
	case CacheDynamo:
		if c.Dynamo.Endpoint == "" {
			return fmt.Errorf("cache.dynamodb_config.endpoint is required when cache.type is 'dynamodb'")
		}
		if c.Dynamo.Table == "" {
			return fmt.Errorf("cache.dynamodb_config.table is required when cache.type is 'dynamodb'")
		}
	default:
		return fmt.Errorf("cache.type must be 'none', 'memory', 'redis', 'bolt' or 'dynamodb'")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than 0")
	}
	if c.Namespace == "" {
		return fmt.Errorf("cache.namespace is required")
	}
	return nil
}

func (r RedisConfig) validate() error {
	if len(r.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if r.DB < 0 || r.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", r.DB)
	}
	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", r.PoolSize)
	}
	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", r.MinIdleConns)
	}
	if r.DialTimeout <= 0 || r.ReadTimeout <= 0 || r.WriteTimeout <= 0 {
		return fmt.Errorf("dial, read and write timeouts must be greater than 0")
	}
	return nil
}

func (e EventsConfig) validate() error {
	switch e.Type {
	case EventsNone, "":
		return nil
	case EventsMemory:
	case EventsKafka:
		if len(e.Kafka.Brokers) == 0 {
			return fmt.Errorf("events.kafka_config.brokers is required when events.type is 'kafka'")
		}
		if e.Kafka.Topic == "" {
			return fmt.Errorf("events.kafka_config.topic is required when events.type is 'kafka'")
		}
		if e.Kafka.GroupID == "" {
			return fmt.Errorf("events.kafka_config.group_id is required when events.type is 'kafka'")
		}
	default:
		return fmt.Errorf("events.type must be 'none', 'memory', or 'kafka'")
	}
	if e.Rate <= 0 {
		return fmt.Errorf("events.rate must be greater than 0")
	}
	if e.Burst <= 0 {
		return fmt.Errorf("events.burst must be greater than 0")
	}
	if e.BufferSize <= 0 {
		return fmt.Errorf("events.buffer_size must be greater than 0")
	}
	return nil
}
