package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aevon-lab/trackpipe/internal/codec"
)

const envPrefix = "TRACKPIPE_"

// Config is the top-level process configuration.
type Config struct {
	Pipeline     PipelineConfig     `koanf:"pipeline"`
	Storage      StorageConfig      `koanf:"storage"`
	RemoteConfig RemoteConfigConfig `koanf:"remote_config"`
	Bridge       BridgeConfig       `koanf:"bridge"`
	Logging      LoggingConfig      `koanf:"logging"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
}

type PipelineConfig struct {
	LibraryName       string `koanf:"library_name"`
	LibraryVersion    string `koanf:"library_version"`
	CollectionEnabled bool   `koanf:"collection_enabled"`
	SessionGap        string `koanf:"session_gap"` // parsed and validated on startup
	MaxValueLength    int    `koanf:"max_value_length"`
	ReferrerTitle     bool   `koanf:"referrer_title"`
	Timezone          string `koanf:"timezone"`

	// Device holds the static device facts merged into every track record.
	Device map[string]string `koanf:"device"`
}

type StorageConfig struct {
	Type               string `koanf:"type"` // memory | postgres
	DSN                string `koanf:"dsn"`
	MaxOpenConns       int    `koanf:"max_open_conns"`
	MaxIdleConns       int    `koanf:"max_idle_conns"`
	AutoMigrate        bool   `koanf:"auto_migrate"`
	PayloadEncoding    string `koanf:"payload_encoding"`    // json | cbor
	PayloadCompression string `koanf:"payload_compression"` // none | zstd
}

type RemoteConfigConfig struct {
	// Path is a YAML snapshot file; empty disables remote config.
	Path         string `koanf:"path"`
	PollInterval string `koanf:"poll_interval"`
}

type BridgeConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Host          string `koanf:"host"`
	Port          int    `koanf:"port"`
	Mode          string `koanf:"mode"` // debug | release
	MaxBodySizeKB int    `koanf:"max_body_size_kb"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

type TelemetryConfig struct {
	// OTLPEndpoint is host:port of an OTLP/gRPC collector; empty keeps
	// metrics in-process.
	OTLPEndpoint   string `koanf:"otlp_endpoint"`
	ServiceName    string `koanf:"service_name"`
	ExportInterval string `koanf:"export_interval"`
	Insecure       bool   `koanf:"insecure"`
}

func (c PipelineConfig) SessionGapDuration() time.Duration {
	d, _ := time.ParseDuration(c.SessionGap)
	return d
}

// Location resolves Timezone; "Local" or empty is the host zone.
func (c PipelineConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c RemoteConfigConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

func (c TelemetryConfig) ExportIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.ExportInterval)
	return d
}

// Codec returns the payload codec for the outbound queue.
func (c StorageConfig) Codec() (codec.Codec, error) {
	return codec.New(c.PayloadEncoding, c.PayloadCompression)
}

func (b BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pipeline.LibraryName) == "" {
		return fmt.Errorf("pipeline.library_name is required")
	}
	if err := positiveDuration("pipeline.session_gap", c.Pipeline.SessionGap, true); err != nil {
		return err
	}
	if c.Pipeline.MaxValueLength <= 0 {
		return fmt.Errorf("pipeline.max_value_length must be > 0")
	}
	if _, err := c.Pipeline.Location(); err != nil {
		return fmt.Errorf("invalid pipeline.timezone %q: %w", c.Pipeline.Timezone, err)
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
		if c.Storage.MaxOpenConns <= 0 {
			return fmt.Errorf("storage.max_open_conns must be > 0")
		}
		if c.Storage.MaxIdleConns <= 0 {
			return fmt.Errorf("storage.max_idle_conns must be > 0")
		}
	default:
		return fmt.Errorf("unsupported storage.type %q", c.Storage.Type)
	}
	if _, err := c.Storage.Codec(); err != nil {
		return fmt.Errorf("invalid storage payload format: %w", err)
	}

	if c.RemoteConfig.Path != "" {
		if err := positiveDuration("remote_config.poll_interval", c.RemoteConfig.PollInterval, false); err != nil {
			return err
		}
	}

	if c.Bridge.Enabled {
		if c.Bridge.Port <= 0 || c.Bridge.Port > 65535 {
			return fmt.Errorf("invalid bridge.port %d (must be 1-65535)", c.Bridge.Port)
		}
		if strings.TrimSpace(c.Bridge.Host) == "" {
			return fmt.Errorf("bridge.host is required")
		}
		if c.Bridge.Mode != "debug" && c.Bridge.Mode != "release" {
			return fmt.Errorf("invalid bridge.mode %q (must be debug or release)", c.Bridge.Mode)
		}
		if c.Bridge.MaxBodySizeKB <= 0 {
			return fmt.Errorf("bridge.max_body_size_kb must be > 0")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format %q (must be text or json)", c.Logging.Format)
	}

	if c.Telemetry.OTLPEndpoint != "" {
		if err := positiveDuration("telemetry.export_interval", c.Telemetry.ExportInterval, false); err != nil {
			return err
		}
	}
	return nil
}

func positiveDuration(key, value string, allowZero bool) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return fmt.Errorf("%s must be > 0", key)
	}
	return nil
}

// Load layers defaults, the optional YAML file and TRACKPIPE_ environment
// variables (TRACKPIPE_STORAGE__DSN sets storage.dsn), then validates.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"pipeline.library_name":       "Go",
		"pipeline.library_version":    "1.0.0",
		"pipeline.collection_enabled": false,
		"pipeline.session_gap":        "30s",
		"pipeline.max_value_length":   8191,
		"pipeline.referrer_title":     false,
		"pipeline.timezone":           "Local",
		"storage.type":                "memory",
		"storage.dsn":                 "",
		"storage.max_open_conns":      4,
		"storage.max_idle_conns":      4,
		"storage.auto_migrate":        true,
		"storage.payload_encoding":    "json",
		"storage.payload_compression": "none",
		"remote_config.path":          "",
		"remote_config.poll_interval": "5m",
		"bridge.enabled":              false,
		"bridge.host":                 "127.0.0.1",
		"bridge.port":                 8765,
		"bridge.mode":                 "release",
		"bridge.max_body_size_kb":     64,
		"logging.level":               "info",
		"logging.format":              "text",
		"telemetry.otlp_endpoint":     "",
		"telemetry.service_name":      "trackpipe",
		"telemetry.export_interval":   "30s",
		"telemetry.insecure":          false,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
