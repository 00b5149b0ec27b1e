package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. BLOCKFEED_SOURCE_ENDPOINT overrides source.endpoint.
const EnvPrefix = "BLOCKFEED"

// Load reads configuration from the given file path, overlaying it on
// the defaults. Environment variables with the BLOCKFEED_ prefix
// override file values. An empty path loads defaults plus environment
// only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("source.kind", defaults.Source.Kind)
	v.SetDefault("source.endpoint", defaults.Source.Endpoint)
	v.SetDefault("source.method", defaults.Source.Method)
	v.SetDefault("source.poll_interval", defaults.Source.PollInterval)

	v.SetDefault("feed.start_height", defaults.Feed.StartHeight)
	v.SetDefault("feed.restart_delay", defaults.Feed.RestartDelay)

	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.port", defaults.Metrics.Port)
	v.SetDefault("metrics.path", defaults.Metrics.Path)
	v.SetDefault("metrics.collect_interval", defaults.Metrics.CollectInterval)

	v.SetDefault("api.enabled", defaults.API.Enabled)
	v.SetDefault("api.host", defaults.API.Host)
	v.SetDefault("api.port", defaults.API.Port)
	v.SetDefault("api.cors_origins", defaults.API.CORSOrigins)
	v.SetDefault("api.debug", defaults.API.Debug)
	v.SetDefault("api.auth_enabled", defaults.API.AuthEnabled)
	v.SetDefault("api.jwt_secret", defaults.API.JWTSecret)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.color", defaults.Log.Color)
	v.SetDefault("log.disable", defaults.Log.Disable)
	v.SetDefault("log.time_format", defaults.Log.TimeFormat)
}
