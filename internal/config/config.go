// Package config loads growcore settings from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"growcore/internal/blob"
	"growcore/internal/core"
)

// EnvPrefix prefixes every environment override, e.g. GROWCORE_STORAGE_DRIVER.
const EnvPrefix = "GROWCORE"

type Config struct {
	HTTP struct {
		Addr      string  `mapstructure:"addr"`
		RateLimit float64 `mapstructure:"rate_limit"` // requests per second, 0 disables
		RateBurst int     `mapstructure:"rate_burst"`
	} `mapstructure:"http"`

	Log struct {
		Level  string `mapstructure:"level"`  // debug, info, warn, error
		Format string `mapstructure:"format"` // json, text
	} `mapstructure:"log"`

	Storage struct {
		Driver      string `mapstructure:"driver"`
		SQLitePath  string `mapstructure:"sqlite_path"`
		PostgresDSN string `mapstructure:"postgres_dsn"`
		BadgerPath  string `mapstructure:"badger_path"`
	} `mapstructure:"storage"`

	Blob struct {
		Driver string `mapstructure:"driver"`
		FSRoot string `mapstructure:"fs_root"`
		S3     struct {
			Bucket          string `mapstructure:"bucket"`
			Region          string `mapstructure:"region"`
			Endpoint        string `mapstructure:"endpoint"`
			AccessKeyID     string `mapstructure:"access_key_id"`
			SecretAccessKey string `mapstructure:"secret_access_key"`
			PathStyle       bool   `mapstructure:"path_style"`
		} `mapstructure:"s3"`
	} `mapstructure:"blob"`

	Events struct {
		Kafka struct {
			Enabled bool   `mapstructure:"enabled"`
			Brokers string `mapstructure:"brokers"` // comma separated
			Topic   string `mapstructure:"topic"`
		} `mapstructure:"kafka"`
	} `mapstructure:"events"`

	Tracing struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"tracing"`

	Cache struct {
		FloorViewTTL time.Duration `mapstructure:"floor_view_ttl"`
	} `mapstructure:"cache"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.rate_limit", 0.0)
	v.SetDefault("http.rate_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.driver", string(core.StorageSQLite))
	v.SetDefault("storage.sqlite_path", "growcore.db")
	v.SetDefault("storage.postgres_dsn", "postgres://localhost/growcore?sslmode=disable")
	v.SetDefault("storage.badger_path", "growcore-badger")
	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", "./blobdata")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.brokers", "localhost:9092")
	v.SetDefault("events.kafka.topic", "growcore.plant-events")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("cache.floor_view_ttl", core.DefaultFloorViewTTL)
}

// New returns a viper instance with defaults, env binding and the search
// path set. An explicit file replaces the search path.
func New(file string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("growcore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.growcore")
		v.AddConfigPath("/etc/growcore")
	}
	return v
}

// Load reads the config file if one exists and decodes the merged settings.
// A missing file in the search path is not an error; a missing explicit
// file is.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and levels.
func (c Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres, core.StorageBadger:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory, blob.DriverS3:
	default:
		return fmt.Errorf("blob.driver: unknown driver %q", c.Blob.Driver)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit: must not be negative, got %v", c.HTTP.RateLimit)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format: must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// StorageConfig converts the storage section for core.OpenPersistentStore.
func (c Config) StorageConfig(logger *slog.Logger) core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		BadgerPath:  c.Storage.BadgerPath,
		Logger:      logger,
	}
}

// BlobConfig converts the blob section for blob.Open.
func (c Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          c.Blob.S3.Bucket,
			Region:          c.Blob.S3.Region,
			Endpoint:        c.Blob.S3.Endpoint,
			AccessKeyID:     c.Blob.S3.AccessKeyID,
			SecretAccessKey: c.Blob.S3.SecretAccessKey,
			PathStyle:       c.Blob.S3.PathStyle,
		},
	}
}

// LogLevel returns the configured slog level.
func (c Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
