package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the console configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Platform    PlatformConfig `mapstructure:"platform"`
	Realtime    RealtimeConfig `mapstructure:"realtime"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Server      ServerConfig   `mapstructure:"server"`
	Alerts      AlertsConfig   `mapstructure:"alerts"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

// PlatformConfig points the console at the hotel platform's REST backend
type PlatformConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"`
}

// RealtimeConfig configures the push channel
type RealtimeConfig struct {
	Transport   string `mapstructure:"transport"`
	GatewayURL  string `mapstructure:"gateway_url"`
	BackoffBase int    `mapstructure:"backoff_base"`
	BackoffMax  int    `mapstructure:"backoff_max"`
}

// RedisConfig contains the redis fanout settings used when the transport is
// set to redis
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// ServerConfig contains the local console surface settings
type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// AlertsConfig contains alert subsystem tunables
type AlertsConfig struct {
	PageLimit    int `mapstructure:"page_limit"`
	ToastHistory int `mapstructure:"toast_history"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPTimeout returns the REST client timeout as a duration.
func (p PlatformConfig) HTTPTimeout() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// Backoff returns the reconnect backoff bounds as durations.
func (r RealtimeConfig) Backoff() (time.Duration, time.Duration) {
	return time.Duration(r.BackoffBase) * time.Second, time.Duration(r.BackoffMax) * time.Second
}

// Addr returns the redis host:port address.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("STAYOPS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the fields no sane default exists for.
func (c *Config) Validate() error {
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform base URL not configured")
	}
	switch c.Realtime.Transport {
	case "websocket":
		if c.Realtime.GatewayURL == "" {
			return fmt.Errorf("gateway URL required for websocket transport")
		}
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host required for redis transport")
		}
	default:
		return fmt.Errorf("unknown realtime transport %q", c.Realtime.Transport)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("platform.timeout", 15)

	v.SetDefault("realtime.transport", "websocket")
	v.SetDefault("realtime.backoff_base", 1)
	v.SetDefault("realtime.backoff_max", 30)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("alerts.page_limit", 50)
	v.SetDefault("alerts.toast_history", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// overrideWithEnvVars overrides configuration with environment variables
func overrideWithEnvVars(v *viper.Viper) {
	if token := os.Getenv("STAYOPS_API_TOKEN"); token != "" {
		v.Set("platform.token", token)
	}
	if baseURL := os.Getenv("STAYOPS_API_URL"); baseURL != "" {
		v.Set("platform.base_url", baseURL)
	}
	if gateway := os.Getenv("STAYOPS_GATEWAY_URL"); gateway != "" {
		v.Set("realtime.gateway_url", gateway)
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		v.Set("redis.password", password)
	}
}
