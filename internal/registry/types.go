package registry

import (
	"time"
)

// Config is the complete modstore configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" json:"store" envPrefix:"STORE_"`
	Cache  CacheConfig  `yaml:"cache" json:"cache" envPrefix:"CACHE_"`
	Events EventsConfig `yaml:"events" json:"events" envPrefix:"EVENTS_"`
}

// StoreConfig selects and addresses the DataStore backend. These are the
// values handed to DataStore.Connect.
type StoreConfig struct {
	// Driver is a driver type or alias: mysql, sqlite, dynamodb.
	Driver   string `yaml:"driver" json:"driver" env:"DRIVER"`
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	Username string `yaml:"username,omitempty" json:"username,omitempty" env:"USERNAME"`
	Password string `yaml:"password,omitempty" json:"password,omitempty" env:"PASSWORD"`

	// Tracing wraps the store with OpenTelemetry spans.
	Tracing bool `yaml:"tracing,omitempty" json:"tracing,omitempty" env:"TRACING"`

	// TraceEndpoint is an OTLP/HTTP collector URL. Empty keeps whatever
	// tracer provider is registered globally.
	TraceEndpoint string `yaml:"trace_endpoint,omitempty" json:"trace_endpoint,omitempty" env:"TRACE_ENDPOINT"`

	// ConnectTimeout bounds Connect.
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty" env:"CONNECT_TIMEOUT"`
}

// CacheConfig configures the local read cache of the moderation layer.
type CacheConfig struct {
	// Type is one of none, memory, redis, bolt, dynamodb.
	Type      string        `yaml:"type" json:"type" env:"TYPE"`
	Namespace string        `yaml:"namespace" json:"namespace" env:"NAMESPACE"`
	TTL       time.Duration `yaml:"ttl" json:"ttl" env:"TTL"`

	Redis  RedisConfig  `yaml:"redis_config,omitempty" json:"redis_config,omitempty" envPrefix:"REDIS_"`
	Bolt   BoltConfig   `yaml:"bolt_config,omitempty" json:"bolt_config,omitempty" envPrefix:"BOLT_"`
	Dynamo DynamoConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty" envPrefix:"DYNAMODB_"`
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	Endpoints    []string      `yaml:"endpoints" json:"endpoints" env:"ENDPOINTS" envSeparator:","`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty" env:"PASSWORD"`
	DB           int           `yaml:"db" json:"db" env:"DB"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" json:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT"`
}

// BoltConfig contains configuration for the on-disk bbolt cache.
type BoltConfig struct {
	Path    string        `yaml:"path" json:"path" env:"PATH"`
	Bucket  string        `yaml:"bucket" json:"bucket" env:"BUCKET"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
}

// DynamoConfig contains configuration for a DynamoDB table used as a shared
// cache. The table must exist with a string partition key named "key";
// enabling DynamoDB TTL on the "ttl" attribute lets AWS reap stale entries.
type DynamoConfig struct {
	// Endpoint takes the same forms as the document driver endpoint.
	Endpoint        string `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	Table           string `yaml:"table" json:"table" env:"TABLE"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty" env:"SECRET_ACCESS_KEY"`
}

// EventsConfig configures cross-server invalidation events.
type EventsConfig struct {
	// Type is one of none, memory, kafka.
	Type string `yaml:"type" json:"type" env:"TYPE"`

	// ServerID identifies this process; events it published are ignored
	// when they come back. Empty means a random id per process.
	ServerID string `yaml:"server_id,omitempty" json:"server_id,omitempty" env:"SERVER_ID"`

	// Rate is the number of events per second the listener applies.
	Rate       int `yaml:"rate" json:"rate" env:"RATE"`
	Burst      int `yaml:"burst" json:"burst" env:"BURST"`
	BufferSize int `yaml:"buffer_size" json:"buffer_size" env:"BUFFER_SIZE"`

	Kafka KafkaConfig `yaml:"kafka_config,omitempty" json:"kafka_config,omitempty" envPrefix:"KAFKA_"`
}

// KafkaConfig contains Kafka-specific configuration.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers" env:"BROKERS" envSeparator:","`
	Topic           string        `yaml:"topic" json:"topic" env:"TOPIC"`
	GroupID         string        `yaml:"group_id" json:"group_id" env:"GROUP_ID"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size" env:"BATCH_SIZE"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout" env:"BATCH_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks" env:"REQUIRED_ACKS"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes" env:"MAX_MESSAGE_BYTES"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes" env:"MIN_BYTES"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes" env:"MAX_BYTES"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait" env:"MAX_WAIT"`
}
