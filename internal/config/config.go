package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	commoncfg "github.com/GreaLake/checkIn/common/config"
	"github.com/GreaLake/checkIn/internal/location"

	"gopkg.in/yaml.v3"
)

// Config checkin-data（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	DBEnabled bool                     `yaml:"db_enabled"`
	Database  commoncfg.DatabaseConfig `yaml:"database"`
	Redis     RedisConfig              `yaml:"redis"`
	Log       struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Location LocationConfig `yaml:"location"`
	Timezone string         `yaml:"timezone"` // 按天/按月统计使用的时区
}

// RedisConfig Redis 配置（缓存 + 事件 stream）
type RedisConfig struct {
	commoncfg.RedisConfig `yaml:",inline"`
	Enabled               bool          `yaml:"enabled"`
	OpenEntriesTTL        time.Duration `yaml:"open_entries_ttl"`
	ProjectsTTL           time.Duration `yaml:"projects_ttl"`
	EventStream           string        `yaml:"event_stream"`
	EventStreamMaxLen     int64         `yaml:"event_stream_max_len"`
}

// MQTTConfig MQTT 配置：订阅设备上报的位置，发布打卡事件
type MQTTConfig struct {
	commoncfg.MQTTConfig `yaml:",inline"`
	Enabled              bool   `yaml:"enabled"`
	PositionTopic        string `yaml:"position_topic"` // 如 "checkin/positions/+"
	EventPrefix          string `yaml:"event_prefix"`
}

// LocationConfig 定位配置
type LocationConfig struct {
	location.Config `yaml:",inline"`
	// 外部定位服务地址；为空时使用 MQTT 位置上报
	HTTPSourceURL      string  `yaml:"http_source_url"`
	FeedAccuracyMeters float64 `yaml:"feed_accuracy_meters"`
}

// Default 默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"

	// 默认尝试连接数据库，连接失败时退回内存存储
	cfg.DBEnabled = true
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "checkin",
		SSLMode:  "disable",
		MaxConns: 25,
		MaxIdle:  5,
	}

	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.OpenEntriesTTL = 5 * time.Minute
	cfg.Redis.ProjectsTTL = 10 * time.Minute
	cfg.Redis.EventStream = "checkin:events"
	cfg.Redis.EventStreamMaxLen = 10000

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "checkin-data"
	cfg.MQTT.QoS = 1
	cfg.MQTT.PositionTopic = "checkin/positions/+"
	cfg.MQTT.EventPrefix = "checkin/events"

	cfg.Location.Config = location.DefaultConfig()
	cfg.Location.FeedAccuracyMeters = location.DefaultHighAccuracyMeters

	cfg.Timezone = "Asia/Shanghai"
	return cfg
}

// Load 默认值 → CONFIG_FILE 指定的 YAML → 环境变量，后者覆盖前者
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.LoadFromEnv()
	if _, err := cfg.TimeLocation(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile 读取 YAML 配置文件，文件中未出现的字段保持原值
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv 环境变量覆盖
func (c *Config) LoadFromEnv() {
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setBool(&c.DBEnabled, "DB_ENABLED")
	c.Database.LoadFromEnv("DB")

	c.Redis.RedisConfig.LoadFromEnv("REDIS")
	setBool(&c.Redis.Enabled, "REDIS_ENABLED")
	setDuration(&c.Redis.OpenEntriesTTL, "REDIS_OPEN_ENTRIES_TTL")
	setDuration(&c.Redis.ProjectsTTL, "REDIS_PROJECTS_TTL")
	setString(&c.Redis.EventStream, "REDIS_EVENT_STREAM")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	c.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	setBool(&c.MQTT.Enabled, "MQTT_ENABLED")
	setString(&c.MQTT.PositionTopic, "MQTT_POSITION_TOPIC")
	setString(&c.MQTT.EventPrefix, "MQTT_EVENT_PREFIX")

	setDuration(&c.Location.High.Timeout, "LOCATION_HIGH_TIMEOUT")
	setDuration(&c.Location.High.MaximumAge, "LOCATION_HIGH_MAXIMUM_AGE")
	setDuration(&c.Location.Low.Timeout, "LOCATION_LOW_TIMEOUT")
	setDuration(&c.Location.Low.MaximumAge, "LOCATION_LOW_MAXIMUM_AGE")
	setDuration(&c.Location.MonitorInterval, "LOCATION_MONITOR_INTERVAL")
	setDuration(&c.Location.MonitorMaximumAge, "LOCATION_MONITOR_MAXIMUM_AGE")
	setDuration(&c.Location.MonitorIdle, "LOCATION_MONITOR_IDLE")
	setString(&c.Location.HTTPSourceURL, "LOCATION_HTTP_SOURCE_URL")
	if v := os.Getenv("LOCATION_FEED_ACCURACY_METERS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Location.FeedAccuracyMeters = f
		}
	}

	setString(&c.Timezone, "TIMEZONE")
}

// TimeLocation 统计时区
func (c *Config) TimeLocation() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// 非法时长保持原值
func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
