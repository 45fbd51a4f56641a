package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.True(t, c.Server.CORS)
	assert.Equal(t, 4, c.Engine.Workers)
	assert.Equal(t, 2*time.Minute, c.Engine.TrainTimeout)
	assert.Equal(t, time.Hour, c.Cache.TTL)
	assert.Equal(t, 256, c.Cache.Capacity)
	assert.Equal(t, "static", c.MarketData.Source)
	assert.Equal(t, ".NS", c.MarketData.Yahoo.Suffix)
	assert.Equal(t, 0.05, c.Policy.BuyThreshold)
	assert.Equal(t, 0.05, c.Policy.SellThreshold)
	assert.Equal(t, 70.0, c.Policy.HighConfidence)
	assert.Equal(t, "info", c.Log.Level)
	assert.False(t, c.Kafka.Enabled)
	assert.False(t, c.Cache.Redis.Enabled)
}

func TestParse_ExplicitValuesBeatDefaults(t *testing.T) {
	raw := []byte(`
environment: production
server:
  port: 9090
  cors: false
engine:
  train_timeout: 45s
policy:
  buy_threshold: 0.08
targets:
  1Y:
    conservative: 0.1
    moderate: 0.2
    aggressive: 0.3
market_data:
  source: yahoo
`)
	c, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.False(t, c.Server.CORS)
	assert.Equal(t, 45*time.Second, c.Engine.TrainTimeout)
	assert.Equal(t, 0.08, c.Policy.BuyThreshold)
	assert.Equal(t, 0.05, c.Policy.SellThreshold)
	assert.Equal(t, Targets{Conservative: 0.1, Moderate: 0.2, Aggressive: 0.3}, c.Targets["1Y"])
	assert.Equal(t, "yahoo", c.MarketData.Source)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"source":        "market_data:\n  source: csv\n",
		"port":          "server:\n  port: 70000\n",
		"workers":       "engine:\n  workers: 0\n",
		"target key":    "targets:\n  2W:\n    conservative: 0.1\n    moderate: 0.2\n    aggressive: 0.3\n",
		"target order":  "targets:\n  1M:\n    conservative: 0.3\n    moderate: 0.2\n    aggressive: 0.4\n",
		"kafka brokers": "kafka:\n  enabled: true\n",
		"log level":     "log:\n  level: verbose\n",
		"yaml":          "server: [",
		"warmup redis":  "warmup:\n  enabled: true\n",
		"warmup tf":     "warmup:\n  timeframes: [2W]\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	err = c.applyEnv(env(map[string]string{
		"FINCAST_PORT":        "8181",
		"FINCAST_DATA_SOURCE": "clickhouse",
		"REDIS_ADDR":          "cache.internal:6380",
		"KAFKA_BROKERS":       "k1:9092, k2:9092,",
		"FINCAST_WORKERS":     "",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8181, c.Server.Port)
	assert.Equal(t, "clickhouse", c.MarketData.Source)
	assert.True(t, c.Cache.Redis.Enabled)
	assert.Equal(t, "cache.internal", c.Cache.Redis.Host)
	assert.Equal(t, 6380, c.Cache.Redis.Port)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 4, c.Engine.Workers)
	require.NoError(t, c.Validate())
}

func TestApplyEnv_BadNumber(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Error(t, c.applyEnv(env(map[string]string{"FINCAST_PORT": "http"})))
	assert.Error(t, c.applyEnv(env(map[string]string{"REDIS_ADDR": "host:port"})))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
