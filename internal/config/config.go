// Package config provides configuration management for the blob storage client.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// EnvPrefix is the prefix of every environment variable the loader reads.
const EnvPrefix = "AZURE_STORAGE"

// Config represents the complete application configuration.
type Config struct {
	// AccountName is the storage account name.
	AccountName string `mapstructure:"account_name"`

	// AccountKey is the base64 account key.
	AccountKey string `mapstructure:"account_key"`

	// Container is the container every blob path is relative to.
	Container string `mapstructure:"container"`

	// URL is an optional public base URL used instead of the service URL
	// when handing out links.
	URL string `mapstructure:"url"`

	// Endpoint overrides the service URL with a path-style base that already
	// includes the account, e.g. http://127.0.0.1:10000/devaccount.
	Endpoint string `mapstructure:"endpoint"`

	// ServiceHost is the endpoint suffix for virtual-host style URLs.
	ServiceHost string `mapstructure:"service_host"`

	// APIVersion is sent in x-ms-version and signed into SAS tokens.
	APIVersion string `mapstructure:"api_version"`

	HTTP       HTTPConfig       `mapstructure:"http"`
	SAS        SASConfig        `mapstructure:"sas"`
	Visibility VisibilityConfig `mapstructure:"visibility"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Emulator   EmulatorConfig   `mapstructure:"emulator"`
}

// HTTPConfig holds transport timeouts.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// SASConfig holds defaults applied when a grant leaves them unset.
type SASConfig struct {
	DefaultExpiry               time.Duration `mapstructure:"default_expiry"`
	DefaultPermissions          string        `mapstructure:"default_permissions"`
	DefaultContainerPermissions string        `mapstructure:"default_container_permissions"`
	Protocol                    string        `mapstructure:"protocol"`
}

// VisibilityConfig controls how file visibility maps onto container access.
type VisibilityConfig struct {
	// Default is reported when nothing else is known: "public" or "private".
	Default string `mapstructure:"default"`

	// AllowSet permits changing the container access level.
	AllowSet bool `mapstructure:"allow_set"`
}

// CacheConfig selects the container access cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled serves the metrics endpoint on the emulator.
	Enabled bool `mapstructure:"enabled"`

	// Path is the URL path for the metrics endpoint on the emulator.
	Path string `mapstructure:"path"`

	// File receives the CLI's metrics in the Prometheus text format after
	// each command, for the node exporter textfile collector. Setting it
	// enables collection.
	File string `mapstructure:"file"`
}

// TracingConfig toggles OpenTelemetry instrumentation of the HTTP transport.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// EmulatorConfig holds settings for the local emulator server.
type EmulatorConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// Addr returns the listen address.
func (c EmulatorConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with AZURE_STORAGE_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := New()
	if err := ReadFile(v, configPath); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// ReadFile reads configPath into v, or searches the default locations for
// azblob.yaml when configPath is empty. A missing default file is not an error.
func ReadFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("azblob")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/azblob")
	}

	// Config file is optional; environment variables can be used instead.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("account_name", "")
	v.SetDefault("account_key", "")
	v.SetDefault("container", "default")
	v.SetDefault("url", "")
	v.SetDefault("endpoint", "")
	v.SetDefault("service_host", "blob.core.windows.net")
	v.SetDefault("api_version", "2023-08-03")

	// HTTP defaults
	v.SetDefault("http.timeout", 300*time.Second)
	v.SetDefault("http.connect_timeout", 30*time.Second)

	// SAS defaults
	v.SetDefault("sas.default_expiry", time.Hour)
	v.SetDefault("sas.default_permissions", "r")
	v.SetDefault("sas.default_container_permissions", "rl")
	v.SetDefault("sas.protocol", "https")

	// Visibility defaults
	v.SetDefault("visibility.default", "private")
	v.SetDefault("visibility.allow_set", false)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.file", "")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)

	// Emulator defaults
	v.SetDefault("emulator.host", "127.0.0.1")
	v.SetDefault("emulator.port", 10000)
	v.SetDefault("emulator.read_timeout", 30*time.Second)
	v.SetDefault("emulator.write_timeout", 60*time.Second)
	v.SetDefault("emulator.shutdown_timeout", 10*time.Second)
	v.SetDefault("emulator.max_body_size", 256*1024*1024)
}

// Validate checks the configuration for required values and valid ranges.
// Every failure wraps domain.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if c.AccountName == "" {
		return domain.ConfigError("account_name is required")
	}
	if c.AccountKey == "" {
		return domain.ConfigError("account_key is required")
	}
	if _, err := base64.StdEncoding.DecodeString(c.AccountKey); err != nil {
		return domain.ConfigError("account_key must be base64")
	}
	if c.Container == "" {
		return domain.ConfigError("container is required")
	}

	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return domain.ConfigError("endpoint must be an absolute URL")
		}
	}

	if c.SAS.DefaultExpiry <= 0 {
		return domain.ConfigError("sas.default_expiry must be positive")
	}

	switch c.Visibility.Default {
	case "public", "private":
	default:
		return domain.ConfigError("visibility.default must be 'public' or 'private'")
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return domain.ConfigError("cache.backend must be 'memory' or 'redis'")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return domain.ConfigError("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
