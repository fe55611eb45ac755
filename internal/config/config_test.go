package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			PublicBaseURL:      "http://localhost:8080",
			ShutdownTimeoutSec: 10,
			ReadTimeoutSec:     30,
			WriteTimeoutSec:    30,
			MaxUploadSizeMB:    20,
		},
		Database: DatabaseConfig{Driver: "sqlite", SQLitePath: "data/nail.db"},
		Storage:  StorageConfig{Type: "local", LocalPath: "data/files"},
		Processing: ProcessingConfig{
			SupportedFormats: []string{"jpg", "png", "heic"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidateConfig_Valid(t *testing.T) {
	require.NoError(t, validateConfig(validConfig()))
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 10, cfg.Gallery.PageSize)
	assert.Equal(t, 100, cfg.Gallery.FilterCap)
	assert.InDelta(t, 0.9, cfg.Processing.Quality, 1e-9)
	assert.Equal(t, "images", cfg.Storage.ImagesDir)
}

func TestValidateConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"missing public url", func(c *Config) { c.Server.PublicBaseURL = "" }, "public_base_url"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"sqlite without path", func(c *Config) { c.Database.SQLitePath = "" }, "sqlite_path"},
		{"quality above one", func(c *Config) { c.Processing.Quality = 1.5 }, "processing.quality"},
		{"page size too large", func(c *Config) { c.Gallery.PageSize = 500 }, "gallery.page_size"},
		{"s3 without bucket", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.S3Endpoint = "localhost:9000"
		}, "s3_bucket"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, "kafka.brokers"},
		{"no formats", func(c *Config) { c.Processing.SupportedFormats = nil }, "supported_formats"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
