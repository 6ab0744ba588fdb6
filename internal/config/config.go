package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Channel    ChannelConfig
	Spectrum   SpectrumConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Checkpoint CheckpointConfig
	AWS        AWSConfig
	Export     ExportConfig
	Log        LogConfig
}

// ChannelConfig holds the secure subscriber configuration
type ChannelConfig struct {
	Endpoint          string
	KeyDir            string
	ServerPublicKey   string // path to server.key, defaults to KeyDir/server.key
	PollTimeout       time.Duration
	ReconnectInterval time.Duration
	ReceiveHWM        int
}

// SpectrumConfig holds aggregation and rate settings
type SpectrumConfig struct {
	LowHz         int64
	HighHz        int64
	BinWidthHz    float64
	RateWindow    time.Duration
	RateRetention time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration. An empty URL disables
// checkpoints.
type DatabaseConfig struct {
	Driver string
	URL    string
}

// CheckpointConfig holds checkpoint scheduling
type CheckpointConfig struct {
	Interval time.Duration
	Restore  bool
}

// AWSConfig holds AWS/S3 configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

// ExportConfig selects the snapshot object encoding
type ExportConfig struct {
	Format      string
	Compression string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

var defaults = map[string]any{
	"ZMQ_ENDPOINT":          "tcp://127.0.0.1:5555",
	"KEY_DIR":               ".",
	"SERVER_PUBLIC_KEY":     "",
	"POLL_TIMEOUT":          "1s",
	"RECONNECT_INTERVAL":    "100ms",
	"RECEIVE_HWM":           1000,
	"SPECTRUM_LOW_HZ":       0,
	"SPECTRUM_HIGH_HZ":      6_000_000_000,
	"SPECTRUM_BIN_WIDTH_HZ": 1_000_000.0,
	"RATE_WINDOW":           "5s",
	"RATE_RETENTION":        "5m",
	"PORT":                  "8080",
	"ENVIRONMENT":           "dev",
	"ALLOWED_ORIGINS":       "http://localhost:5173,http://localhost:3000",
	"DATABASE_DRIVER":       "postgres",
	"DATABASE_URL":          "",
	"CHECKPOINT_INTERVAL":   "1m",
	"CHECKPOINT_RESTORE":    true,
	"AWS_REGION":            "us-east-1",
	"AWS_ACCESS_KEY_ID":     "",
	"AWS_SECRET_ACCESS_KEY": "",
	"S3_BUCKET":             "",
	"S3_ENDPOINT":           "",
	"EXPORT_FORMAT":         "json",
	"EXPORT_COMPRESSION":    "none",
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "",
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with the directory searched for .env.<ENVIRONMENT>
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	env := v.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev" // Use "dev" to match .env.dev filename
	}

	v.SetConfigName(".env." + env)
	v.SetConfigType("env")
	v.AddConfigPath(dir)

	// Read .env file (ignore error if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read .env.%s: %w", env, err)
		}
	}

	// Environment variables override .env file values
	v.AutomaticEnv()

	var config Config
	config.Channel.Endpoint = v.GetString("ZMQ_ENDPOINT")
	config.Channel.KeyDir = v.GetString("KEY_DIR")
	config.Channel.ServerPublicKey = v.GetString("SERVER_PUBLIC_KEY")
	config.Channel.PollTimeout = v.GetDuration("POLL_TIMEOUT")
	config.Channel.ReconnectInterval = v.GetDuration("RECONNECT_INTERVAL")
	config.Channel.ReceiveHWM = v.GetInt("RECEIVE_HWM")
	config.Spectrum.LowHz = v.GetInt64("SPECTRUM_LOW_HZ")
	config.Spectrum.HighHz = v.GetInt64("SPECTRUM_HIGH_HZ")
	config.Spectrum.BinWidthHz = v.GetFloat64("SPECTRUM_BIN_WIDTH_HZ")
	config.Spectrum.RateWindow = v.GetDuration("RATE_WINDOW")
	config.Spectrum.RateRetention = v.GetDuration("RATE_RETENTION")
	config.Server.Port = v.GetString("PORT")
	config.Server.Env = v.GetString("ENVIRONMENT")
	config.Server.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))
	config.Database.Driver = strings.ToLower(v.GetString("DATABASE_DRIVER"))
	config.Database.URL = v.GetString("DATABASE_URL")
	config.Checkpoint.Interval = v.GetDuration("CHECKPOINT_INTERVAL")
	config.Checkpoint.Restore = v.GetBool("CHECKPOINT_RESTORE")
	config.AWS.Region = v.GetString("AWS_REGION")
	config.AWS.AccessKeyID = v.GetString("AWS_ACCESS_KEY_ID")
	config.AWS.SecretAccessKey = v.GetString("AWS_SECRET_ACCESS_KEY")
	config.AWS.S3Bucket = v.GetString("S3_BUCKET")
	config.AWS.S3Endpoint = v.GetString("S3_ENDPOINT")
	config.Export.Format = strings.ToLower(v.GetString("EXPORT_FORMAT"))
	config.Export.Compression = strings.ToLower(v.GetString("EXPORT_COMPRESSION"))
	config.Log.Level = v.GetString("LOG_LEVEL")
	config.Log.Format = strings.ToLower(v.GetString("LOG_FORMAT"))

	if config.Log.Format == "" {
		config.Log.Format = "json"
		if config.Server.Env == "dev" {
			config.Log.Format = "console"
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate reports the first setting that cannot be used
func (c *Config) Validate() error {
	switch {
	case c.Channel.Endpoint == "":
		return errors.New("ZMQ_ENDPOINT is required")
	case c.Channel.PollTimeout <= 0:
		return fmt.Errorf("POLL_TIMEOUT must be positive, got %s", c.Channel.PollTimeout)
	case c.Spectrum.HighHz < c.Spectrum.LowHz:
		return fmt.Errorf("SPECTRUM_HIGH_HZ (%d) is below SPECTRUM_LOW_HZ (%d)", c.Spectrum.HighHz, c.Spectrum.LowHz)
	case c.Spectrum.BinWidthHz < 0:
		return fmt.Errorf("SPECTRUM_BIN_WIDTH_HZ must not be negative, got %g", c.Spectrum.BinWidthHz)
	case c.Spectrum.RateWindow <= 0:
		return fmt.Errorf("RATE_WINDOW must be positive, got %s", c.Spectrum.RateWindow)
	case c.Spectrum.RateRetention < c.Spectrum.RateWindow:
		return fmt.Errorf("RATE_RETENTION (%s) must be at least RATE_WINDOW (%s)", c.Spectrum.RateRetention, c.Spectrum.RateWindow)
	case c.Database.Driver != "postgres" && c.Database.Driver != "sqlite":
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	case c.Database.URL != "" && c.Checkpoint.Interval <= 0:
		return fmt.Errorf("CHECKPOINT_INTERVAL must be positive, got %s", c.Checkpoint.Interval)
	case c.Export.Format != "json" && c.Export.Format != "cbor":
		return fmt.Errorf("EXPORT_FORMAT must be json or cbor, got %q", c.Export.Format)
	case c.Export.Compression != "none" && c.Export.Compression != "zstd":
		return fmt.Errorf("EXPORT_COMPRESSION must be none or zstd, got %q", c.Export.Compression)
	case c.Log.Format != "json" && c.Log.Format != "console":
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// CheckpointsEnabled reports whether a database is configured
func (c *Config) CheckpointsEnabled() bool {
	return c.Database.URL != ""
}

// ExportEnabled reports whether snapshot objects should be written
func (c *Config) ExportEnabled() bool {
	return c.AWS.S3Bucket != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
