package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

// Limits accepted by the analysis backend.
const (
	MinLimit = 10
	MaxLimit = 500
)

type Config struct {
	Env      string
	LogLevel string

	BackendURL     string
	RequestTimeout time.Duration

	PollInterval time.Duration
	ResultsLimit int

	SubmitLimit      int
	IncludeReddit    bool
	IncludeTwitter   bool
	SubmitMaxRetries int

	ListenAddr          string
	GinMode             string
	HealthcheckInterval time.Duration

	ValkeyAddress    string
	ValkeyPassword   string
	ValkeyTLS        bool
	SnapshotCacheTTL time.Duration

	KafkaBroker         string
	KafkaJobEventsTopic string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("poll_interval", 3*time.Second)
	v.SetDefault("results_limit", 100)
	v.SetDefault("submit_limit", 100)
	v.SetDefault("include_reddit", true)
	v.SetDefault("include_twitter", true)
	v.SetDefault("submit_max_retries", 2)
	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("healthcheck_interval", 15*time.Second)
	v.SetDefault("valkey_init_address", "")
	v.SetDefault("valkey_password", "")
	v.SetDefault("valkey_tls", false)
	v.SetDefault("snapshot_cache_ttl", 2*time.Second)
	v.SetDefault("kafka_broker", "")
	v.SetDefault("kafka_job_events_topic", "brand-jobs")
}

// Load reads the configuration from the process environment. Call LoadEnv
// first so values from the env file are visible.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Env:                 v.GetString("app_env"),
		LogLevel:            v.GetString("log_level"),
		BackendURL:          strings.TrimRight(v.GetString("backend_url"), "/"),
		RequestTimeout:      v.GetDuration("request_timeout"),
		PollInterval:        v.GetDuration("poll_interval"),
		ResultsLimit:        v.GetInt("results_limit"),
		SubmitLimit:         v.GetInt("submit_limit"),
		IncludeReddit:       v.GetBool("include_reddit"),
		IncludeTwitter:      v.GetBool("include_twitter"),
		SubmitMaxRetries:    v.GetInt("submit_max_retries"),
		ListenAddr:          v.GetString("listen_addr"),
		GinMode:             v.GetString("gin_mode"),
		HealthcheckInterval: v.GetDuration("healthcheck_interval"),
		ValkeyAddress:       v.GetString("valkey_init_address"),
		ValkeyPassword:      v.GetString("valkey_password"),
		ValkeyTLS:           v.GetBool("valkey_tls"),
		SnapshotCacheTTL:    v.GetDuration("snapshot_cache_ttl"),
		KafkaBroker:         v.GetString("kafka_broker"),
		KafkaJobEventsTopic: v.GetString("kafka_job_events_topic"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: BACKEND_URL must be an absolute http(s) URL, got %q", ErrInvalidConfig, c.BackendURL)
	}
	if c.ResultsLimit < MinLimit || c.ResultsLimit > MaxLimit {
		return fmt.Errorf("%w: RESULTS_LIMIT must be between %d and %d", ErrInvalidConfig, MinLimit, MaxLimit)
	}
	if c.SubmitLimit < MinLimit || c.SubmitLimit > MaxLimit {
		return fmt.Errorf("%w: SUBMIT_LIMIT must be between %d and %d", ErrInvalidConfig, MinLimit, MaxLimit)
	}
	if !c.IncludeReddit && !c.IncludeTwitter {
		return fmt.Errorf("%w: enable at least one of INCLUDE_REDDIT, INCLUDE_TWITTER", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 || c.PollInterval <= 0 || c.HealthcheckInterval <= 0 {
		return fmt.Errorf("%w: timeouts and intervals must be positive", ErrInvalidConfig)
	}
	if c.SubmitMaxRetries < 0 {
		return fmt.Errorf("%w: SUBMIT_MAX_RETRIES must not be negative", ErrInvalidConfig)
	}
	if c.ValkeyAddress != "" && c.SnapshotCacheTTL <= 0 {
		return fmt.Errorf("%w: SNAPSHOT_CACHE_TTL must be positive when the cache is enabled", ErrInvalidConfig)
	}
	return nil
}
