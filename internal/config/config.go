// Package config loads application configuration and initializes logging.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Upload  UploadConfig  `yaml:"upload" mapstructure:"upload"`
	Map     MapConfig     `yaml:"map" mapstructure:"map"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP server and its cookies.
type ServerConfig struct {
	Port          int    `yaml:"port" mapstructure:"port"`
	SessionSecret string `yaml:"session_secret" mapstructure:"session_secret"`
	SecureCookies bool   `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	MaxUploadMB   int    `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// StoreConfig selects the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeocodeConfig configures the forward geocoder.
type GeocodeConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`

	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Timeout returns the per-lookup timeout.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// UploadConfig selects where listing images are stored.
type UploadConfig struct {
	Driver    string   `yaml:"driver" mapstructure:"driver"`
	Dir       string   `yaml:"dir" mapstructure:"dir"`
	URLPrefix string   `yaml:"url_prefix" mapstructure:"url_prefix"`
	S3        S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config configures S3-compatible image storage.
type S3Config struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url" mapstructure:"public_base_url"`
}

// MapConfig is the map center used when a listing has no coordinates.
type MapConfig struct {
	DefaultLat   float64 `yaml:"default_lat" mapstructure:"default_lat"`
	DefaultLng   float64 `yaml:"default_lng" mapstructure:"default_lng"`
	DefaultZoom  int     `yaml:"default_zoom" mapstructure:"default_zoom"`
	DefaultLabel string  `yaml:"default_label" mapstructure:"default_label"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
// Environment variables use the LISTINGS_ prefix, e.g. LISTINGS_STORE_DRIVER.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LISTINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("geocode.api_key", "LISTINGS_GEOCODE_API_KEY", "GEOCODING_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind geocode key")
	}

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "listings.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("geocode.provider", "opencage")
	v.SetDefault("geocode.base_url", "")
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.breaker_threshold", 5)
	v.SetDefault("geocode.breaker_cooldown_secs", 30)
	v.SetDefault("upload.driver", "local")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.url_prefix", "/upload")
	v.SetDefault("upload.s3.bucket", "")
	v.SetDefault("upload.s3.region", "us-east-1")
	v.SetDefault("upload.s3.endpoint", "")
	v.SetDefault("upload.s3.access_key_id", "")
	v.SetDefault("upload.s3.secret_access_key", "")
	v.SetDefault("upload.s3.public_base_url", "")
	v.SetDefault("map.default_lat", 19.0760)
	v.SetDefault("map.default_lng", 72.8777)
	v.SetDefault("map.default_zoom", 13)
	v.SetDefault("map.default_label", "Default Marker in Mumbai")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode:
// "serve", "migrate", "seed" or "geocode". All problems are reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "seed":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateGeocode()...)
		errs = append(errs, c.validateUpload()...)
		if mode == "serve" {
			errs = append(errs, c.validateServer()...)
		}
	case "migrate":
		errs = append(errs, c.validateStore()...)
	case "geocode":
		errs = append(errs, c.validateGeocode()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateServer() []string {
	var errs []string
	if c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}
	if c.Server.SessionSecret == "" {
		errs = append(errs, "server.session_secret is required")
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, "server.max_upload_mb must be > 0")
	}
	return errs
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validateGeocode() []string {
	var errs []string
	switch c.Geocode.Provider {
	case "opencage", "google":
	default:
		errs = append(errs, fmt.Sprintf("unknown geocode.provider %q", c.Geocode.Provider))
	}
	if c.Geocode.TimeoutSecs <= 0 {
		errs = append(errs, "geocode.timeout_secs must be > 0")
	}
	return errs
}

func (c *Config) validateUpload() []string {
	switch c.Upload.Driver {
	case "local":
		if c.Upload.Dir == "" {
			return []string{"upload.dir is required for the local driver"}
		}
	case "s3":
		if c.Upload.S3.Bucket == "" {
			return []string{"upload.s3.bucket is required for the s3 driver"}
		}
	default:
		return []string{fmt.Sprintf("unknown upload.driver %q", c.Upload.Driver)}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
