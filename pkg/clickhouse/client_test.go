package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig_DSN(t *testing.T) {
	dsn := (ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		Database:     "defiguard",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		AsyncInsert:  true,
		MaxExecTime:  time.Minute,
	}).DSN()

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/defiguard", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)

	q := u.Query()
	assert.Equal(t, "5s", q.Get("dial_timeout"))
	assert.Equal(t, "30s", q.Get("read_timeout"))
	assert.Equal(t, "60", q.Get("max_execution_time"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Empty(t, q.Get("wait_for_async_insert"))
	assert.Empty(t, q.Get("write_timeout"))
}

func TestClientConfig_DSNOverHTTP(t *testing.T) {
	dsn := (ClientConfig{Host: "ch", Port: 8123, Database: "db", UseHTTP: true}).DSN()
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Empty(t, u.RawQuery)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.ErrorContains(t, err, "host is required")
}

func TestClientConfig_Options(t *testing.T) {
	cfg := DefaultClientConfig()
	for _, opt := range []ClientOption{
		WithAddr("ch.local", 0),
		WithDatabase(""),
		WithPool(8, 0),
		WithTimeouts(0, time.Minute, 0),
		WithAsyncInsert(false, true),
	} {
		opt(&cfg)
	}

	assert.Equal(t, "ch.local", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "defiguard", cfg.Database)
	assert.Equal(t, 8, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, time.Minute, cfg.ReadTimeout)
	assert.False(t, cfg.AsyncInsert)
	assert.False(t, cfg.WaitForAsync, "waiting only applies to async inserts")
	assert.NoError(t, cfg.validate())
}

func TestClientConfig_Validate(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.Host = "ch"
	cfg.Port = 70000
	cfg.MaxIdleConns = 10

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port out of range")
	assert.Contains(t, err.Error(), "max idle conns")
}
