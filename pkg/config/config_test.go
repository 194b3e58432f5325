package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadLegacyINI(t *testing.T) {
	path := writeFile(t, "config0.ini", `
[youtube]
api_service_name = youtube
api_version = v3
API_KEY = legacy-key

[proxy]
host = 127.0.0.1
port = 1080
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "youtube", cfg.YouTube.APIServiceName)
	assert.Equal(t, "v3", cfg.YouTube.APIVersion)
	assert.Equal(t, "legacy-key", cfg.YouTube.APIKey)
	assert.Equal(t, "127.0.0.1", cfg.Proxy.Host)
	assert.Equal(t, 1080, cfg.Proxy.Port)

	// Everything else keeps its default.
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 50, cfg.Run.GroupSize)
	assert.Equal(t, 199, cfg.Run.FlushInterval)
	assert.Equal(t, time.Duration(0), cfg.Run.TimeoutRetryDelay)
	assert.Equal(t, "0.csv", cfg.Input.Path)
	assert.Equal(t, "video_id", cfg.Input.Column)
	assert.Equal(t, BackendLocal, cfg.Output.Backend)
	assert.Equal(t, "./json_files", cfg.Output.Dir)
	assert.Equal(t, []string{"snippet", "status", "statistics"}, cfg.YouTube.Parts)
}

func TestLoadINIWithExtendedSections(t *testing.T) {
	path := writeFile(t, "harvester.ini", `
[youtube]
API_KEY = k
parts = snippet, statistics

[run]
group_size = 25
flush_interval = 10
timeout_retry_delay = 500ms

[output]
backend = redis

[redis]
addr = redis:6379
ttl = 24h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"snippet", "statistics"}, cfg.YouTube.Parts)
	assert.Equal(t, 25, cfg.Run.GroupSize)
	assert.Equal(t, 10, cfg.Run.FlushInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Run.TimeoutRetryDelay)
	assert.Equal(t, BackendRedis, cfg.Output.Backend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "harvester.yaml", `
youtube:
  api_key: yaml-key
  base_url: http://localhost:9999
api:
  timeout: 3s
input:
  path: ids.csv
  column: videoId
output:
  backend: gcs
gcs:
  bucket: dumps
  prefix: runs/2024
logging:
  level: debug
  pretty: true
metrics:
  addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-key", cfg.YouTube.APIKey)
	assert.Equal(t, "http://localhost:9999", cfg.YouTube.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "videoId", cfg.Input.Column)
	assert.Equal(t, BackendGCS, cfg.Output.Backend)
	assert.Equal(t, "dumps", cfg.GCS.Bucket)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARVESTER_YOUTUBE_API_KEY", "env-key")
	t.Setenv("HARVESTER_RUN_GROUP_SIZE", "10")
	t.Setenv("HARVESTER_OUTPUT_DIR", "/tmp/dumps")

	path := writeFile(t, "config0.ini", "[youtube]\nAPI_KEY = file-key\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.YouTube.APIKey)
	assert.Equal(t, 10, cfg.Run.GroupSize)
	assert.Equal(t, "/tmp/dumps", cfg.Output.Dir)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("HARVESTER_YOUTUBE_API_KEY", "only-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "only-env", cfg.YouTube.APIKey)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("missing ini file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
		assert.Error(t, err)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := Load(writeFile(t, "c.ini", "[proxy]\nhost =\n"))
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			YouTube: YouTubeConfig{APIServiceName: "youtube", APIVersion: "v3", APIKey: "k", Parts: []string{"snippet"}},
			API:     APIConfig{Timeout: time.Second},
			Input:   InputConfig{Path: "0.csv", Column: "video_id"},
			Run:     RunConfig{GroupSize: 50, FlushInterval: 199},
			Output:  OutputConfig{Backend: BackendLocal, Dir: "out"},
			Redis:   RedisConfig{Addr: "localhost:6379"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing api key", func(c *Config) { c.YouTube.APIKey = "" }, true},
		{"no parts", func(c *Config) { c.YouTube.Parts = nil }, true},
		{"proxy without port", func(c *Config) { c.Proxy.Host = "127.0.0.1" }, true},
		{"proxy with port", func(c *Config) { c.Proxy.Host = "127.0.0.1"; c.Proxy.Port = 1080 }, false},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, true},
		{"zero group size", func(c *Config) { c.Run.GroupSize = 0 }, true},
		{"negative flush interval", func(c *Config) { c.Run.FlushInterval = -1 }, true},
		{"negative retry delay", func(c *Config) { c.Run.TimeoutRetryDelay = -time.Second }, true},
		{"unknown backend", func(c *Config) { c.Output.Backend = "s3" }, true},
		{"redis backend", func(c *Config) { c.Output.Backend = BackendRedis }, false},
		{"gcs without bucket", func(c *Config) { c.Output.Backend = BackendGCS }, true},
		{"gcs with bucket", func(c *Config) { c.Output.Backend = BackendGCS; c.GCS.Bucket = "b" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientAndRunnerConfig(t *testing.T) {
	cfg := Config{
		YouTube: YouTubeConfig{APIServiceName: "youtube", APIVersion: "v3", APIKey: "k", BaseURL: "http://x", Parts: []string{"snippet"}},
		Proxy:   ProxyConfig{Host: "proxy", Port: 8118},
		API:     APIConfig{Timeout: 7 * time.Second, UserAgent: "ua"},
		Run:     RunConfig{FlushInterval: 5, TimeoutRetryDelay: time.Second, TimeoutRetryMax: 8 * time.Second},
	}

	cc := cfg.ClientConfig()
	assert.Equal(t, "k", cc.APIKey)
	assert.Equal(t, "proxy", cc.ProxyHost)
	assert.Equal(t, 8118, cc.ProxyPort)
	assert.Equal(t, 7*time.Second, cc.Timeout)
	assert.Equal(t, []string{"snippet"}, cc.Parts)

	rc := cfg.RunnerConfig()
	assert.Equal(t, 5, rc.FlushInterval)
	assert.Equal(t, time.Second, rc.Retry.Delay)
	assert.Equal(t, 8*time.Second, rc.Retry.MaxDelay)
	assert.Equal(t, 2.0, rc.Retry.Multiplier)
}
