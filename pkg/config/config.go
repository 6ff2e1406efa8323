package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PHOTOSYNC_"

// Config holds all configuration options for photosync
type Config struct {
	// Photo service client settings
	Photos PhotosConfig `yaml:"photos" json:"photos"`

	// What to sync and where
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Checkpoint persistence
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Retry behaviour for remote calls
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PhotosConfig holds the photo service client configuration
type PhotosConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	Account      string `yaml:"account" json:"account"`
	BaseURL      string `yaml:"base_url" json:"base_url"`
	PageSize     int    `yaml:"page_size" json:"page_size"`
}

// SyncConfig describes one sync target
type SyncConfig struct {
	Album     string `yaml:"album" json:"album"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	Limit     int    `yaml:"limit" json:"limit"`
	// Timezone is the canonical zone used to compare and persist timestamps.
	Timezone         string `yaml:"timezone" json:"timezone"`
	StopAtCheckpoint bool   `yaml:"stop_at_checkpoint" json:"stop_at_checkpoint"`
}

// CheckpointConfig selects the checkpoint backend
type CheckpointConfig struct {
	Backend string `yaml:"backend" json:"backend"` // file | bolt
	Path    string `yaml:"path" json:"path"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	SkipVideos          bool          `yaml:"skip_videos" json:"skip_videos"`
}

// RetryConfig holds retry configuration for listing and download requests
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" json:"burst_size"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Photos: PhotosConfig{
			BaseURL:  "https://photoslibrary.googleapis.com/",
			PageSize: 100,
		},
		Sync: SyncConfig{
			Album:     "All Photos",
			OutputDir: "./photos",
			Limit:     0,
			Timezone:  "UTC",
		},
		Checkpoint: CheckpointConfig{
			Backend: "file",
			Path:    "./last_download_time.txt",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 1,
			Timeout:             10 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         10,
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from PHOTOSYNC_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = n
	}
	setBool := func(name string, dst *bool) {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = b
	}

	setString("CLIENT_ID", &c.Photos.ClientID)
	setString("CLIENT_SECRET", &c.Photos.ClientSecret)
	setString("ACCOUNT", &c.Photos.Account)
	setString("ALBUM", &c.Sync.Album)
	setString("OUTPUT_DIR", &c.Sync.OutputDir)
	setInt("LIMIT", &c.Sync.Limit)
	setString("TIMEZONE", &c.Sync.Timezone)
	setString("CHECKPOINT_BACKEND", &c.Checkpoint.Backend)
	setString("CHECKPOINT_PATH", &c.Checkpoint.Path)
	setInt("CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)
	setBool("NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"photosync.yaml",
		".photosync.yaml",
		".photosync.yml",
		filepath.Join(home, ".config", "photosync", "config.yaml"),
		filepath.Join(home, ".config", "photosync", "config.yml"),
		filepath.Join(home, ".photosync.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Sync.Album == "" {
		errs = append(errs, errors.New("album is required"))
	}
	if c.Sync.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Sync.Limit < 0 {
		errs = append(errs, errors.New("limit cannot be negative"))
	}
	if c.Sync.Timezone != "" && c.Sync.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Sync.Timezone, err))
		}
	}

	switch strings.ToLower(c.Checkpoint.Backend) {
	case "file", "bolt":
	default:
		errs = append(errs, fmt.Errorf("invalid checkpoint backend %q", c.Checkpoint.Backend))
	}
	if c.Checkpoint.Path == "" {
		errs = append(errs, errors.New("checkpoint path is required"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests per second must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.Photos.PageSize <= 0 || c.Photos.PageSize > 100 {
		errs = append(errs, errors.New("page size must be between 1 and 100"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if album, ok := flags["album"].(string); ok && album != "" {
		c.Sync.Album = album
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Sync.OutputDir = outputDir
	}
	if limit, ok := flags["limit"].(int); ok && limit >= 0 {
		c.Sync.Limit = limit
	}
	if stop, ok := flags["stop-at-checkpoint"].(bool); ok {
		c.Sync.StopAtCheckpoint = stop
	}
	if tz, ok := flags["timezone"].(string); ok && tz != "" {
		c.Sync.Timezone = tz
	}
	if path, ok := flags["checkpoint"].(string); ok && path != "" {
		c.Checkpoint.Path = path
	}
	if backend, ok := flags["checkpoint-backend"].(string); ok && backend != "" {
		c.Checkpoint.Backend = backend
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Photos.Account = account
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if notify, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = notify
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".photosync.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
