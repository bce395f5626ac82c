package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	dt, err := cfg.Store.DriverType()
	require.NoError(t, err)
	assert.Equal(t, core.DriverRelationalEmbedded, dt)
}

func TestLoadFromYAML(t *testing.T) {
	cm := NewConfigManager()
	err := cm.LoadFromYAML([]byte(`
store:
  driver: mysql
  endpoint: db.local:3306/moderation
  username: mod
  password: secret
cache:
  type: redis
  ttl: 30s
  redis_config:
    endpoints: ["cache-1:6379", "cache-2:6379"]
    pool_size: 4
    dial_timeout: 1s
    read_timeout: 1s
    write_timeout: 1s
`))
	require.NoError(t, err)

	cfg := cm.GetConfig()
	assert.Equal(t, "mysql", cfg.Store.Driver)
	assert.Equal(t, "mod", cfg.Store.Username)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"cache-1:6379", "cache-2:6379"}, cfg.Cache.Redis.Endpoints)
	assert.Equal(t, 4, cfg.Cache.Redis.PoolSize)
	// untouched sections keep their defaults
	assert.Equal(t, "modstore", cfg.Cache.Namespace)
	assert.Equal(t, EventsNone, cfg.Events.Type)
}

func TestLoadFromJSON(t *testing.T) {
	cm := NewConfigManager()
	err := cm.LoadFromJSON([]byte(`{"store":{"driver":"dynamodb","endpoint":"dynamodb://eu-west-1"},"cache":{"type":"none"}}`))
	require.NoError(t, err)

	dt, err := cm.GetConfig().Store.DriverType()
	require.NoError(t, err)
	assert.Equal(t, core.DriverDocument, dt)
	assert.Equal(t, CacheNone, cm.GetConfig().Cache.Type)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "modstore.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("store:\n  driver: sqlite\n  endpoint: /var/lib/mod.db\n"), 0o600))
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromFile(yamlPath))
	assert.Equal(t, "/var/lib/mod.db", cm.GetConfig().Store.Endpoint)

	tomlPath := filepath.Join(dir, "modstore.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(""), 0o600))
	assert.Error(t, cm.LoadFromFile(tomlPath))

	assert.Error(t, cm.LoadFromFile(filepath.Join(dir, "missing.yaml")))
}

func TestLoadFromEnvOverridesCurrent(t *testing.T) {
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromYAML([]byte("store:\n  driver: sqlite\n  endpoint: file.db\n  username: keep\n")))

	err := cm.loadEnv(map[string]string{
		"MODSTORE_STORE_DRIVER":         "mysql",
		"MODSTORE_STORE_ENDPOINT":       "db:3306/mod",
		"MODSTORE_EVENTS_TYPE":          "kafka",
		"MODSTORE_EVENTS_KAFKA_BROKERS": "k1:9092,k2:9092",
		"MODSTORE_CACHE_TTL":            "90s",
	})
	require.NoError(t, err)

	cfg := cm.GetConfig()
	assert.Equal(t, "mysql", cfg.Store.Driver)
	assert.Equal(t, "db:3306/mod", cfg.Store.Endpoint)
	assert.Equal(t, "keep", cfg.Store.Username)
	assert.Equal(t, EventsKafka, cfg.Events.Type)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
}

func TestLoadFromEnvInvalidKeepsPrevious(t *testing.T) {
	cm := NewConfigManager()
	err := cm.loadEnv(map[string]string{"MODSTORE_STORE_DRIVER": "oracle"})
	require.Error(t, err)
	assert.Equal(t, string(core.DriverRelationalEmbedded), cm.GetConfig().Store.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing driver", func(c *Config) { c.Store.Driver = "" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"missing endpoint", func(c *Config) { c.Store.Endpoint = " " }},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"redis without endpoints", func(c *Config) { c.Cache.Type = CacheRedis; c.Cache.Redis.Endpoints = nil }},
		{"redis bad db", func(c *Config) { c.Cache.Type = CacheRedis; c.Cache.Redis.DB = 16 }},
		{"bolt without path", func(c *Config) { c.Cache.Type = CacheBolt; c.Cache.Bolt.Path = "" }},
		{"dynamodb without table", func(c *Config) { c.Cache.Type = CacheDynamo; c.Cache.Dynamo.Table = "" }},
		{"unknown events", func(c *Config) { c.Events.Type = "nats" }},
		{"kafka without topic", func(c *Config) { c.Events.Type = EventsKafka; c.Events.Kafka.Topic = "" }},
		{"memory events zero rate", func(c *Config) { c.Events.Type = EventsMemory; c.Events.Rate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Cache.Type = CacheDynamo
	assert.NoError(t, cfg.Validate())
}
