package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBase(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE", "memory")
}

func TestDefaults(t *testing.T) {
	setBase(t)
	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.AccessTTLMin)
	assert.Equal(t, 7, cfg.RefreshTTLDays)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "strict", cfg.OrderTransitions)
	assert.Equal(t, []string{"*"}, cfg.WSAllowedOrigins)
	assert.True(t, cfg.EventsEnabled)
	assert.Equal(t, DefaultAMQPURL, cfg.AMQPURL)
	assert.Equal(t, "restaurant.events", cfg.EventsQueue)
	assert.False(t, cfg.Prod())

	assert.True(t, cfg.Cache.Methods["GET"])
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 60, cfg.RateLimit.Capacity)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.TTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestEnvOverrides(t *testing.T) {
	setBase(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("AMQP_URL", "amqp://mq:5672/")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)
	assert.True(t, cfg.Prod())
	assert.Equal(t, "amqp://mq:5672/", cfg.AMQPURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WSAllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.TTL, "at least five refill intervals")
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestMySQLRequiresDatabaseSettings(t *testing.T) {
	setBase(t)
	t.Setenv("STORAGE", "mysql")
	t.Setenv("DB_USER", "app")

	_, err := FromViper(newViper())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST")
	assert.Contains(t, err.Error(), "DB_NAME")
	assert.NotContains(t, err.Error(), "DB_USER")
}

func TestInvalidStorage(t *testing.T) {
	setBase(t)
	t.Setenv("STORAGE", "sqlite")
	_, err := FromViper(newViper())
	assert.Error(t, err)
}
