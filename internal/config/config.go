// Package config loads service configuration with viper from a config file
// (TOML by default), MEDIAMOSAIC_* environment variables and bound CLI flags.
//
// Environment variables follow MEDIAMOSAIC_<SECTION>_<KEY>, for example
// MEDIAMOSAIC_SERVER_PORT or MEDIAMOSAIC_STORAGE_ROOT.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonasrichard/mediamosaic/internal/logging"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "MEDIAMOSAIC"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// GalleryShell is the static HTML page served for synced directories.
	GalleryShell string `mapstructure:"gallery_shell"`
}

type StorageConfig struct {
	Root string `mapstructure:"root"`
	// Database is the sync history SQLite file. Empty disables history.
	Database string `mapstructure:"database"`
}

type SyncConfig struct {
	QueueCapacity   int    `mapstructure:"queue_capacity"`
	BundleCapacity  int    `mapstructure:"bundle_capacity"`
	ThumbnailWidth  int    `mapstructure:"thumbnail_width"`
	ThumbnailHeight int    `mapstructure:"thumbnail_height"`
	ImageExtension  string `mapstructure:"image_extension"`
	BundleExtension string `mapstructure:"bundle_extension"`
	JPEGQuality     int    `mapstructure:"jpeg_quality"`
	DecodeWorkers   int    `mapstructure:"decode_workers"`
	SkipUnreadable  bool   `mapstructure:"skip_unreadable"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.gallery_shell", "")

	v.SetDefault("storage.root", "")
	v.SetDefault("storage.database", "mediamosaic.db")

	v.SetDefault("sync.queue_capacity", 16)
	v.SetDefault("sync.bundle_capacity", 8)
	v.SetDefault("sync.thumbnail_width", 256)
	v.SetDefault("sync.thumbnail_height", 256)
	v.SetDefault("sync.image_extension", "jpg")
	v.SetDefault("sync.bundle_extension", "jpg")
	v.SetDefault("sync.jpeg_quality", 90)
	v.SetDefault("sync.decode_workers", runtime.NumCPU())
	v.SetDefault("sync.skip_unreadable", false)

	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.debounce", 2*time.Second)

	def := logging.DefaultConfig()
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", def.MaxSizeMB)
	v.SetDefault("log.max_backups", def.MaxBackups)
	v.SetDefault("log.max_age_days", def.MaxAgeDays)
	v.SetDefault("log.compress", def.Compress)
}

// NewViper returns a viper instance with defaults and env overrides wired.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (if any) into v and decodes the result. When
// file is empty, mediamosaic.toml is looked up in the working directory and
// its absence is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("mediamosaic")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Storage.Root != "" {
		root, err := filepath.Abs(cfg.Storage.Root)
		if err != nil {
			return nil, fmt.Errorf("resolve storage root: %w", err)
		}
		cfg.Storage.Root = filepath.Clean(root)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the decoded configuration.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	positive := map[string]int{
		"sync.queue_capacity":   c.Sync.QueueCapacity,
		"sync.bundle_capacity":  c.Sync.BundleCapacity,
		"sync.thumbnail_width":  c.Sync.ThumbnailWidth,
		"sync.thumbnail_height": c.Sync.ThumbnailHeight,
		"sync.decode_workers":   c.Sync.DecodeWorkers,
	}
	for key, val := range positive {
		if val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, val)
		}
	}

	if c.Sync.JPEGQuality < 1 || c.Sync.JPEGQuality > 100 {
		return fmt.Errorf("sync.jpeg_quality must be within 1..100, got %d", c.Sync.JPEGQuality)
	}
	if strings.TrimPrefix(c.Sync.ImageExtension, ".") == "" {
		return fmt.Errorf("sync.image_extension is required")
	}
	switch strings.ToLower(strings.TrimPrefix(c.Sync.BundleExtension, ".")) {
	case "jpg", "jpeg", "png":
	default:
		return fmt.Errorf("sync.bundle_extension %q is not an encodable format", c.Sync.BundleExtension)
	}
	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive when watching")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Logging converts the log section for the logging package.
func (c *Config) Logging() *logging.Config {
	return &logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
