package config

import (
	"fmt"
	"os"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Gallery    GalleryConfig    `mapstructure:"gallery"`
	Likes      LikesConfig      `mapstructure:"likes"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr               string `mapstructure:"addr"`
	PublicBaseURL      string `mapstructure:"public_base_url"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec"`
	MaxUploadSizeMB    int    `mapstructure:"max_upload_size_mb"`
}

type DatabaseConfig struct {
	Driver               string  `mapstructure:"driver"`
	DSN                  string  `mapstructure:"dsn"`
	Slaves               string  `mapstructure:"slaves"`
	SQLitePath           string  `mapstructure:"sqlite_path"`
	MaxOpenConns         int     `mapstructure:"max_open_conns"`
	MaxIdleConns         int     `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec   int     `mapstructure:"conn_max_lifetime_sec"`
	ConnectRetries       int     `mapstructure:"connect_retries"`
	ConnectRetryDelaySec int     `mapstructure:"connect_retry_delay_sec"`
	RetryAttempts        int     `mapstructure:"retry_attempts"`
	RetryDelayMs         int     `mapstructure:"retry_delay_ms"`
	RetryBackoff         float64 `mapstructure:"retry_backoff"`
}

type MigrationsConfig struct {
	// Path overrides the embedded migrations when set.
	Path string `mapstructure:"path"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	LocalPath string `mapstructure:"local_path"`
	ImagesDir string `mapstructure:"images_dir"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
	S3PublicURL string `mapstructure:"s3_public_url"`
}

type ProcessingConfig struct {
	MaxDimension         int      `mapstructure:"max_dimension"`
	Quality              float64  `mapstructure:"quality"`
	MaxSourceMB          float64  `mapstructure:"max_source_mb"`
	CompressMaxDimension int      `mapstructure:"compress_max_dimension"`
	SupportedFormats     []string `mapstructure:"supported_formats"`
}

type GalleryConfig struct {
	PageSize    int `mapstructure:"page_size"`
	FilterCap   int `mapstructure:"filter_cap"`
	CacheTTLSec int `mapstructure:"cache_ttl_sec"`
}

type LikesConfig struct {
	RatePerMinute int `mapstructure:"rate_per_minute"`
	Burst         int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(path string) (*Config, error) {
	cfg := config.New()

	configPath := path
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		} else if _, err := os.Stat("/app/config.yaml"); err == nil {
			configPath = "/app/config.yaml"
		} else {
			return nil, fmt.Errorf("config.yaml not found")
		}
	}

	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = ""
	}

	if err := cfg.Load(configPath, envPath, "APP"); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appConfig := &Config{}
	if err := cfg.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(appConfig)

	if err := validateConfig(appConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	zlog.Logger.Info().
		Str("db_driver", appConfig.Database.Driver).
		Str("storage_type", appConfig.Storage.Type).
		Int("max_dimension", appConfig.Processing.MaxDimension).
		Float64("quality", appConfig.Processing.Quality).
		Int("page_size", appConfig.Gallery.PageSize).
		Bool("kafka_enabled", appConfig.Kafka.Enabled).
		Msg("config loaded")

	return appConfig, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.ConnectRetries == 0 {
		cfg.Database.ConnectRetries = 15
	}
	if cfg.Database.ConnectRetryDelaySec == 0 {
		cfg.Database.ConnectRetryDelaySec = 3
	}
	if cfg.Database.RetryAttempts == 0 {
		cfg.Database.RetryAttempts = 3
	}
	if cfg.Database.RetryDelayMs == 0 {
		cfg.Database.RetryDelayMs = 200
	}
	if cfg.Database.RetryBackoff == 0 {
		cfg.Database.RetryBackoff = 2
	}
	if cfg.Storage.ImagesDir == "" {
		cfg.Storage.ImagesDir = "images"
	}
	if cfg.Processing.MaxDimension == 0 {
		cfg.Processing.MaxDimension = 1600
	}
	if cfg.Processing.Quality == 0 {
		cfg.Processing.Quality = 0.9
	}
	if cfg.Processing.MaxSourceMB == 0 {
		cfg.Processing.MaxSourceMB = 1
	}
	if cfg.Processing.CompressMaxDimension == 0 {
		cfg.Processing.CompressMaxDimension = 1920
	}
	if cfg.Gallery.PageSize == 0 {
		cfg.Gallery.PageSize = 10
	}
	if cfg.Gallery.FilterCap == 0 {
		cfg.Gallery.FilterCap = 100
	}
	if cfg.Likes.RatePerMinute == 0 {
		cfg.Likes.RatePerMinute = 30
	}
	if cfg.Likes.Burst == 0 {
		cfg.Likes.Burst = 5
	}
}

func validateConfig(cfg *Config) error {
	// Server
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.PublicBaseURL == "" {
		return fmt.Errorf("server.public_base_url is required")
	}
	if cfg.Server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("server.shutdown_timeout_sec must be positive")
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("server.read_timeout_sec must be positive")
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		return fmt.Errorf("server.write_timeout_sec must be positive")
	}
	if cfg.Server.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("server.max_upload_size_mb must be positive")
	}

	// Database
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
		if cfg.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be positive")
		}
		if cfg.Database.MaxIdleConns < 0 {
			return fmt.Errorf("database.max_idle_conns must be non-negative")
		}
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}

	// Kafka
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must contain at least one broker")
		}
		if cfg.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required")
		}
		if cfg.Kafka.GroupID == "" {
			return fmt.Errorf("kafka.group_id is required")
		}
	}

	// Storage
	switch cfg.Storage.Type {
	case "local":
		if cfg.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required for local storage")
		}
	case "s3":
		if cfg.Storage.S3Endpoint == "" {
			return fmt.Errorf("storage.s3_endpoint is required for s3 storage")
		}
		if cfg.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required for s3 storage")
		}
		if cfg.Storage.S3AccessKey == "" || cfg.Storage.S3SecretKey == "" {
			return fmt.Errorf("storage.s3_access_key and storage.s3_secret_key are required for s3 storage")
		}
	case "":
		return fmt.Errorf("storage.type is required (local|s3)")
	default:
		return fmt.Errorf("storage.type must be 'local' or 's3'")
	}

	// Processing
	if cfg.Processing.MaxDimension <= 0 {
		return fmt.Errorf("processing.max_dimension must be positive")
	}
	if cfg.Processing.Quality <= 0 || cfg.Processing.Quality > 1 {
		return fmt.Errorf("processing.quality must be in (0, 1]")
	}
	if cfg.Processing.MaxSourceMB <= 0 {
		return fmt.Errorf("processing.max_source_mb must be positive")
	}
	if len(cfg.Processing.SupportedFormats) == 0 {
		return fmt.Errorf("processing.supported_formats must contain at least one format")
	}

	// Gallery
	if cfg.Gallery.PageSize <= 0 || cfg.Gallery.PageSize > 100 {
		return fmt.Errorf("gallery.page_size must be in [1, 100]")
	}
	if cfg.Gallery.FilterCap <= 0 {
		return fmt.Errorf("gallery.filter_cap must be positive")
	}
	if cfg.Gallery.CacheTTLSec < 0 {
		return fmt.Errorf("gallery.cache_ttl_sec must be non-negative")
	}

	if cfg.Logging.Level == "" {
		return fmt.Errorf("logging.level is required")
	}

	return nil
}
