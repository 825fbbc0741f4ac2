package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries all runtime settings for the service. Every field can be
// set via TIMECLOCK_* environment variables or an optional YAML file.
type Config struct {
	Addr        string        `mapstructure:"addr"`
	PGDSN       string        `mapstructure:"pg_dsn"`
	AuthSecret  string        `mapstructure:"auth_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	RateBurst   int           `mapstructure:"rate_burst"`
	RatePerSec  int           `mapstructure:"rate_per_sec"`
	MaxBodySize int64         `mapstructure:"max_body_bytes"`

	// PresenceIdleWindow is how long after the last heartbeat a user with no
	// open session still counts as IDLE rather than OFFLINE.
	PresenceIdleWindow time.Duration `mapstructure:"presence_idle_window"`
}

// Load reads configuration from the environment and, when path is non-empty,
// from a YAML file. Environment values win.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TIMECLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("auth_secret", "")
	v.SetDefault("token_ttl", 15*time.Minute)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("rate_per_sec", 10)
	v.SetDefault("max_body_bytes", int64(1<<20))
	v.SetDefault("presence_idle_window", 120*time.Second)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.PresenceIdleWindow <= 0 {
		return Config{}, fmt.Errorf("presence_idle_window must be positive")
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("token_ttl must be positive")
	}
	return cfg, nil
}
