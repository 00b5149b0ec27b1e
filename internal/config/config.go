package config

import (
	"fmt"
	"time"
)

// Default configuration values
const (
	DefaultSourceKind      = "rpc"
	DefaultRPCMethod       = "eth_blockNumber"
	DefaultPollInterval    = 5 * time.Second
	DefaultRestartDelay    = 10 * time.Second
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsInterval = 15 * time.Second
	DefaultAPIHost         = "0.0.0.0"
	DefaultAPIPort         = 8080
	DefaultTimeFormatLogs  = "kitchen"
	MinPollInterval        = 100 * time.Millisecond
)

// Config holds all configuration for blockfeed
type Config struct {
	Source  SourceConfig  `mapstructure:"source" toml:"source" yaml:"source"`
	Feed    FeedConfig    `mapstructure:"feed" toml:"feed" yaml:"feed"`
	Metrics MetricsConfig `mapstructure:"metrics" toml:"metrics" yaml:"metrics"`
	API     APIConfig     `mapstructure:"api" toml:"api" yaml:"api"`
	Log     LogConfig     `mapstructure:"log" toml:"log" yaml:"log"`
}

// SourceConfig selects and configures the chain source
type SourceConfig struct {
	// Kind is "eth" (go-ethereum client, subscription when the
	// endpoint supports it) or "rpc" (generic JSON-RPC poller).
	Kind     string `mapstructure:"kind" toml:"kind" yaml:"kind"`
	Endpoint string `mapstructure:"endpoint" toml:"endpoint" yaml:"endpoint"`

	// Method is the JSON-RPC method used by the "rpc" kind.
	Method string `mapstructure:"method" toml:"method" yaml:"method"`

	// PollInterval is the sampling cadence for poll-driven sources.
	// Pick shorter intervals for fast-finalizing chains.
	PollInterval time.Duration `mapstructure:"poll_interval" toml:"poll_interval" yaml:"poll_interval"`
}

// FeedConfig configures the sequencer pipeline
type FeedConfig struct {
	// StartHeight is the first height delivered to the consumer.
	StartHeight int64 `mapstructure:"start_height" toml:"start_height" yaml:"start_height"`

	// RestartDelay is how long the daemon waits before rebuilding the
	// pipeline after the watch stream terminates.
	RestartDelay time.Duration `mapstructure:"restart_delay" toml:"restart_delay" yaml:"restart_delay"`
}

// MetricsConfig configures the Prometheus exporter
type MetricsConfig struct {
	Enabled         bool          `mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	Port            int           `mapstructure:"port" toml:"port" yaml:"port"`
	Path            string        `mapstructure:"path" toml:"path" yaml:"path"`
	CollectInterval time.Duration `mapstructure:"collect_interval" toml:"collect_interval" yaml:"collect_interval"`
}

// APIConfig configures the status API server
type APIConfig struct {
	Enabled     bool     `mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	Host        string   `mapstructure:"host" toml:"host" yaml:"host"`
	Port        int      `mapstructure:"port" toml:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" toml:"cors_origins" yaml:"cors_origins"`
	Debug       bool     `mapstructure:"debug" toml:"debug" yaml:"debug"`

	// AuthEnabled gates /api/v1 behind JWT bearer tokens signed with
	// JWTSecret. /health and /ready are never gated.
	AuthEnabled bool   `mapstructure:"auth_enabled" toml:"auth_enabled" yaml:"auth_enabled"`
	JWTSecret   string `mapstructure:"jwt_secret" toml:"jwt_secret" yaml:"jwt_secret"`
}

// LogConfig configures logging output
type LogConfig struct {
	Level      string `mapstructure:"level" toml:"level" yaml:"level"`
	Color      bool   `mapstructure:"color" toml:"color" yaml:"color"`
	Disable    bool   `mapstructure:"disable" toml:"disable" yaml:"disable"`
	TimeFormat string `mapstructure:"time_format" toml:"time_format" yaml:"time_format"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:         DefaultSourceKind,
			Method:       DefaultRPCMethod,
			PollInterval: DefaultPollInterval,
		},
		Feed: FeedConfig{
			StartHeight:  0,
			RestartDelay: DefaultRestartDelay,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			Port:            DefaultMetricsPort,
			Path:            DefaultMetricsPath,
			CollectInterval: DefaultMetricsInterval,
		},
		API: APIConfig{
			Enabled:     true,
			Host:        DefaultAPIHost,
			Port:        DefaultAPIPort,
			CORSOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			Color:      true,
			TimeFormat: DefaultTimeFormatLogs,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "eth", "rpc":
	default:
		return fmt.Errorf("unknown source kind %q (want \"eth\" or \"rpc\")", c.Source.Kind)
	}

	if c.Source.Endpoint == "" {
		return fmt.Errorf("source endpoint must be set")
	}

	if c.Source.PollInterval < MinPollInterval {
		return fmt.Errorf("poll interval %s below minimum %s", c.Source.PollInterval, MinPollInterval)
	}

	if c.Feed.StartHeight < 0 {
		return fmt.Errorf("start height must not be negative, got %d", c.Feed.StartHeight)
	}

	if c.Feed.RestartDelay <= 0 {
		return fmt.Errorf("restart delay must be positive, got %s", c.Feed.RestartDelay)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port %d", c.Metrics.Port)
	}

	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("invalid api port %d", c.API.Port)
	}

	if c.API.Enabled && c.API.AuthEnabled && c.API.JWTSecret == "" {
		return fmt.Errorf("api auth enabled but jwt_secret is empty")
	}

	return nil
}
