// Package config loads gateway configuration from an optional yaml file
// with ETHER_-prefixed environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string        `mapstructure:"environment"`
	Version     string        `mapstructure:"version"`
	Server      ServerConfig  `mapstructure:"server"`
	Gate        GateConfig    `mapstructure:"gate"`
	Ingest      IngestConfig  `mapstructure:"ingest"`
	Redis       RedisConfig   `mapstructure:"redis"`
	NATS        NATSConfig    `mapstructure:"nats"`
	Audit       AuditConfig   `mapstructure:"audit"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type GateConfig struct {
	// InternalToken is the shared secret. Empty means the gate fails closed
	// on every non-exempt path.
	InternalToken  string   `mapstructure:"internal_token"`
	AllowedSources []string `mapstructure:"allowed_sources"`
}

type IngestConfig struct {
	MaxBodyBytes         int64         `mapstructure:"max_body_bytes"`
	RateLimitEnabled     bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRPM         int           `mapstructure:"rate_limit_rpm"`
	ReplayTTL            time.Duration `mapstructure:"replay_ttl"`
	ReplaySweepThreshold int           `mapstructure:"replay_sweep_threshold"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type AuditConfig struct {
	SigningKey string `mapstructure:"signing_key"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "dev")
	v.SetDefault("version", "2.0.2-sealed")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("gate.internal_token", "")
	v.SetDefault("gate.allowed_sources", []string{"exclusivity", "admin"})
	v.SetDefault("ingest.max_body_bytes", 1048576)
	v.SetDefault("ingest.rate_limit_enabled", true)
	v.SetDefault("ingest.rate_limit_rpm", 120)
	v.SetDefault("ingest.replay_ttl", "600s")
	v.SetDefault("ingest.replay_sweep_threshold", 20000)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "ether.egress")
	v.SetDefault("audit.signing_key", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ether/gateway")
	}

	// Environment variables override, e.g. ETHER_GATE_INTERNAL_TOKEN
	v.SetEnvPrefix("ETHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
