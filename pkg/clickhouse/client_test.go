package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:        "ch.internal",
		Port:        9000,
		Database:    "fincast",
		User:        "svc",
		Password:    "p@ss/word",
		DialTimeout: 5 * time.Second,
		MaxExecTime: 90 * time.Second,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.internal:9000", u.Host)
	assert.Equal(t, "/fincast", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", pw)
	assert.Equal(t, "5s", u.Query().Get("dial_timeout"))
	assert.Equal(t, "90", u.Query().Get("max_execution_time"))
	assert.False(t, u.Query().Has("read_timeout"))
}

func TestBuildDSN_HTTP(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "localhost", Port: 8123, Database: "default", UseHTTP: true})
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Empty(t, u.RawQuery)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}

func TestValidate_DefaultsAndBounds(t *testing.T) {
	cfg := defaultClientConfig()
	cfg.Host = "localhost"
	require.NoError(t, cfg.validate())
	assert.Equal(t, 9000, cfg.Port)

	cfg = defaultClientConfig()
	cfg.Host = "localhost"
	cfg.UseHTTP = true
	cfg.MaxIdleConns = 50
	require.NoError(t, cfg.validate())
	assert.Equal(t, 8123, cfg.Port)
	assert.Equal(t, cfg.MaxOpenConns, cfg.MaxIdleConns)

	cfg = defaultClientConfig()
	cfg.Host = "localhost"
	cfg.MaxOpenConns = 0
	assert.Error(t, cfg.validate())
}
