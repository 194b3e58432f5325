// Package config loads and validates harvester configuration via Viper.
//
// Sources, lowest precedence first: built-in defaults, the config file and
// HARVESTER_-prefixed environment variables (HARVESTER_YOUTUBE_API_KEY for
// youtube.api_key). The file may be INI, YAML, TOML or JSON, chosen by its
// extension. The INI layout of the legacy config0.ini works unchanged:
//
//	[youtube]
//	api_service_name = youtube
//	api_version = v3
//	API_KEY = ...
//
//	[proxy]
//	host = 127.0.0.1
//	port = 1080
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"github.com/Sternrassler/catalog-harvester/pkg/client"
	"github.com/Sternrassler/catalog-harvester/pkg/runner"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HARVESTER"

// Output backends.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
	BackendGCS   = "gcs"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config captures all harvester configuration knobs.
type Config struct {
	YouTube YouTubeConfig `mapstructure:"youtube"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	API     APIConfig     `mapstructure:"api"`
	Input   InputConfig   `mapstructure:"input"`
	Run     RunConfig     `mapstructure:"run"`
	Output  OutputConfig  `mapstructure:"output"`
	Redis   RedisConfig   `mapstructure:"redis"`
	GCS     GCSConfig     `mapstructure:"gcs"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// YouTubeConfig identifies the catalog API and its credential.
type YouTubeConfig struct {
	APIServiceName string   `mapstructure:"api_service_name"`
	APIVersion     string   `mapstructure:"api_version"`
	APIKey         string   `mapstructure:"api_key"`
	BaseURL        string   `mapstructure:"base_url"`
	Parts          []string `mapstructure:"parts"`
}

// ProxyConfig routes API calls through an HTTP proxy. An empty host disables it.
type ProxyConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// APIConfig bounds individual API calls.
type APIConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// InputConfig locates the identifier list.
type InputConfig struct {
	Path   string `mapstructure:"path"`
	Column string `mapstructure:"column"`
}

// RunConfig holds the batching and checkpoint policy.
type RunConfig struct {
	GroupSize         int           `mapstructure:"group_size"`
	FlushInterval     int           `mapstructure:"flush_interval"`
	TimeoutRetryDelay time.Duration `mapstructure:"timeout_retry_delay"`
	TimeoutRetryMax   time.Duration `mapstructure:"timeout_retry_max"`
}

// OutputConfig selects where record dumps are written.
type OutputConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Prefix  string `mapstructure:"prefix"`
}

// RedisConfig configures the redis output backend.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// GCSConfig configures the gcs output backend.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// MetricsConfig enables the /metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from defaults, the file at path (optional) and the
// environment, then validates it.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		if err := readFile(v, path); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func readFile(v *viper.Viper, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".ini") {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	values, err := readINI(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return nil
}

// readINI flattens an INI file into section -> key -> value. Keys of the
// unnamed default section land at the top level.
func readINI(path string) (map[string]any, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any)
	for _, section := range file.Sections() {
		keys := section.Keys()
		if len(keys) == 0 {
			continue
		}
		if section.Name() == ini.DefaultSection {
			for _, key := range keys {
				values[strings.ToLower(key.Name())] = key.Value()
			}
			continue
		}
		entries := make(map[string]any, len(keys))
		for _, key := range keys {
			entries[strings.ToLower(key.Name())] = key.Value()
		}
		values[strings.ToLower(section.Name())] = entries
	}
	return values, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("youtube.api_service_name", "youtube")
	v.SetDefault("youtube.api_version", "v3")
	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com")
	v.SetDefault("youtube.parts", []string{"snippet", "status", "statistics"})
	v.SetDefault("proxy.host", "")
	v.SetDefault("proxy.port", 0)
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.user_agent", "catalog-harvester/0.1.0")
	v.SetDefault("input.path", "0.csv")
	v.SetDefault("input.column", "video_id")
	v.SetDefault("run.group_size", 50)
	v.SetDefault("run.flush_interval", runner.DefaultFlushInterval)
	v.SetDefault("run.timeout_retry_delay", "0s")
	v.SetDefault("run.timeout_retry_max", "0s")
	v.SetDefault("output.backend", BackendLocal)
	v.SetDefault("output.dir", "./json_files")
	v.SetDefault("output.prefix", "all_video_info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "harvester")
	v.SetDefault("redis.ttl", "0s")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.prefix", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
	v.SetDefault("metrics.addr", "")
}

// normalize trims list entries so "snippet, status, statistics" works.
func (c *Config) normalize() {
	parts := make([]string, 0, len(c.YouTube.Parts))
	for _, p := range c.YouTube.Parts {
		for _, item := range strings.Split(p, ",") {
			if item = strings.TrimSpace(item); item != "" {
				parts = append(parts, item)
			}
		}
	}
	c.YouTube.Parts = parts
	c.Output.Backend = strings.ToLower(strings.TrimSpace(c.Output.Backend))
	c.Proxy.Host = strings.TrimSpace(c.Proxy.Host)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("%w: youtube.api_key must be set", ErrInvalid)
	}
	if c.YouTube.APIServiceName == "" || c.YouTube.APIVersion == "" {
		return fmt.Errorf("%w: youtube.api_service_name and youtube.api_version must be set", ErrInvalid)
	}
	if len(c.YouTube.Parts) == 0 {
		return fmt.Errorf("%w: youtube.parts must not be empty", ErrInvalid)
	}
	if c.Proxy.Host != "" && (c.Proxy.Port <= 0 || c.Proxy.Port > 65535) {
		return fmt.Errorf("%w: proxy.port must be in 1..65535 when proxy.host is set", ErrInvalid)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: api.timeout must be > 0", ErrInvalid)
	}
	if c.Input.Path == "" || c.Input.Column == "" {
		return fmt.Errorf("%w: input.path and input.column must be set", ErrInvalid)
	}
	if c.Run.GroupSize <= 0 {
		return fmt.Errorf("%w: run.group_size must be > 0", ErrInvalid)
	}
	if c.Run.FlushInterval <= 0 {
		return fmt.Errorf("%w: run.flush_interval must be > 0", ErrInvalid)
	}
	if c.Run.TimeoutRetryDelay < 0 || c.Run.TimeoutRetryMax < 0 {
		return fmt.Errorf("%w: run.timeout_retry_delay must be >= 0", ErrInvalid)
	}
	switch c.Output.Backend {
	case BackendLocal:
		if c.Output.Dir == "" {
			return fmt.Errorf("%w: output.dir must be set for the local backend", ErrInvalid)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr must be set for the redis backend", ErrInvalid)
		}
	case BackendGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("%w: gcs.bucket must be set for the gcs backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown output.backend %q", ErrInvalid, c.Output.Backend)
	}
	return nil
}

// ClientConfig maps the settings onto the API client configuration.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		ServiceName: c.YouTube.APIServiceName,
		APIVersion:  c.YouTube.APIVersion,
		APIKey:      c.YouTube.APIKey,
		BaseURL:     c.YouTube.BaseURL,
		Parts:       append([]string(nil), c.YouTube.Parts...),
		ProxyHost:   c.Proxy.Host,
		ProxyPort:   c.Proxy.Port,
		Timeout:     c.API.Timeout,
		UserAgent:   c.API.UserAgent,
	}
}

// RunnerConfig maps the run policy onto the controller configuration.
func (c Config) RunnerConfig() runner.Config {
	cfg := runner.DefaultConfig()
	cfg.FlushInterval = c.Run.FlushInterval
	cfg.Retry.Delay = c.Run.TimeoutRetryDelay
	if c.Run.TimeoutRetryMax > c.Run.TimeoutRetryDelay {
		cfg.Retry.MaxDelay = c.Run.TimeoutRetryMax
		cfg.Retry.Multiplier = 2
	}
	return cfg
}
