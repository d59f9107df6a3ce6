package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"ipal-monitor/common/config"
	"ipal-monitor/internal/cache"
	"ipal-monitor/internal/counter"
	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/livestore"
)

// Live change feeds.
const (
	FeedPostgres = "postgres"
	FeedRedis    = "redis"
	FeedMQTT     = "mqtt"
	// FeedMemory runs without a database; documents live in process.
	FeedMemory = "memory"
)

// DefaultStatusAddr serves /status and /metrics.
const DefaultStatusAddr = ":9102"

// ErrInvalidConfig is returned by Load for a malformed variable.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the ipal-monitor configuration.
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig
	API      config.APIConfig

	// Token is the initial session token; empty means log in first.
	Token string

	Monitor struct {
		// IPALID preselects a facility; 0 means the first active one.
		IPALID   int
		LiveFeed string

		Stream struct {
			Name     string
			Group    string
			Consumer string
		}
		MQTTTopic string

		Alerts        livequery.Options
		CountInterval time.Duration
	}

	Cache struct {
		Prefix string
		TTL    time.Duration
	}

	// StatusAddr is the listen address of the status server; empty disables it.
	StatusAddr string

	// ExportPath, when set, makes the daemon write one alert workbook and exit.
	ExportPath string

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "ipal"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "ipal-monitor"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.API.BaseURL = "http://localhost:5000"
	cfg.API.Timeout = 10 * time.Second
	cfg.API.RetryCount = 2
	cfg.API.LoadFromEnv("API")

	cfg.Token = getEnv("API_TOKEN", "")

	var err error
	if cfg.Monitor.IPALID, err = getInt("IPAL_ID", 0); err != nil {
		return nil, err
	}
	cfg.Monitor.LiveFeed = getEnv("LIVE_FEED", FeedPostgres)
	switch cfg.Monitor.LiveFeed {
	case FeedPostgres, FeedRedis, FeedMQTT, FeedMemory:
	default:
		return nil, fmt.Errorf("%w: LIVE_FEED %q", ErrInvalidConfig, cfg.Monitor.LiveFeed)
	}

	cfg.Monitor.Stream.Name = getEnv("LIVE_STREAM", livestore.DefaultChangeStream)
	// every monitor needs every change, so the group is per host
	hostname, _ := os.Hostname()
	cfg.Monitor.Stream.Group = getEnv("LIVE_STREAM_GROUP", "ipal-monitor-"+hostname)
	cfg.Monitor.Stream.Consumer = getEnv("LIVE_STREAM_CONSUMER", "monitor")
	cfg.Monitor.MQTTTopic = getEnv("LIVE_MQTT_TOPIC", livestore.DefaultChangeTopic)

	opts := livequery.DefaultOptions()
	if opts.MaxResults, err = getInt("ALERT_MAX_RESULTS", opts.MaxResults); err != nil {
		return nil, err
	}
	opts.StatusFilter = getEnv("ALERT_STATUS_FILTER", opts.StatusFilter)
	opts.SeverityFilter = getEnv("ALERT_SEVERITY_FILTER", opts.SeverityFilter)
	if opts.PriorityOnly, err = getBool("ALERT_PRIORITY_ONLY", opts.PriorityOnly); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.Monitor.Alerts = opts

	if cfg.Monitor.CountInterval, err = getDuration("COUNT_POLL_INTERVAL", counter.DefaultInterval); err != nil {
		return nil, err
	}

	cfg.Cache.Prefix = getEnv("SUMMARY_CACHE_PREFIX", cache.DefaultPrefix)
	if cfg.Cache.TTL, err = getDuration("SUMMARY_CACHE_TTL", cache.DefaultTTL); err != nil {
		return nil, err
	}

	cfg.StatusAddr = getEnv("STATUS_ADDR", DefaultStatusAddr)
	if cfg.StatusAddr == "off" {
		cfg.StatusAddr = ""
	}

	cfg.ExportPath = getEnv("ALERT_EXPORT_PATH", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return v, nil
}

// getDuration accepts Go durations ("90s") or plain seconds ("90").
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidConfig, key, value)
	}
	return d, nil
}
