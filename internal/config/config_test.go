package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "checkin:events", cfg.Redis.EventStream)
	assert.Equal(t, 10*time.Second, cfg.Location.High.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Location.High.MaximumAge)
	assert.Equal(t, 15*time.Second, cfg.Location.Low.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Location.Low.MaximumAge)
	assert.Equal(t, time.Minute, cfg.Location.MonitorMaximumAge)
	assert.Equal(t, 10*time.Minute, cfg.Location.MonitorIdle)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
db_enabled: false
database:
  host: db.internal
  port: 6543
redis:
  addr: redis.internal:6379
  projects_ttl: 30s
mqtt:
  enabled: true
  broker: tcp://broker:1883
  position_topic: field/positions/+
location:
  high:
    timeout: 3s
  monitor_interval: 0s
  http_source_url: http://geo.internal
timezone: UTC
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_PORT", "7654")
	t.Setenv("LOCATION_HIGH_TIMEOUT", "4s")
	t.Setenv("LOCATION_LOW_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 7654, cfg.Database.Port, "env wins over file")
	assert.Equal(t, "postgres", cfg.Database.User, "unset keys keep defaults")
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Redis.ProjectsTTL)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "field/positions/+", cfg.MQTT.PositionTopic)
	assert.Equal(t, 4*time.Second, cfg.Location.High.Timeout)
	assert.True(t, cfg.Location.High.HighAccuracy)
	assert.Equal(t, 15*time.Second, cfg.Location.Low.Timeout)
	assert.Zero(t, cfg.Location.MonitorInterval)
	assert.Equal(t, "http://geo.internal", cfg.Location.HTTPSourceURL)

	loc, err := cfg.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadTimezone(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err := Load()
	assert.Error(t, err)
}
