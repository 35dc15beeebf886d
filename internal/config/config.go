// Package config provides configuration types, defaults, and persistence for vhosts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/vhosts/internal/flags"
	"github.com/zjrosen/vhosts/internal/log"
)

// Config holds all vhosts configuration.
type Config struct {
	HostsFile    string          `mapstructure:"hosts_file"`
	SettingsFile string          `mapstructure:"settings_file"`
	Lock         LockConfig      `mapstructure:"lock"`
	Watch        WatchConfig     `mapstructure:"watch"`
	Serve        ServeConfig     `mapstructure:"serve"`
	Tracing      TracingConfig   `mapstructure:"tracing"`
	Flags        map[string]bool `mapstructure:"flags"`
}

// LockConfig tunes the cross-process lock around hosts.json.
type LockConfig struct {
	// Timeout bounds how long a mutation waits for the lock.
	// Default: 3s
	Timeout time.Duration `mapstructure:"timeout"`

	// PollInterval is the delay between lock attempts.
	// Default: 25ms
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// ReadRetryDelay is how long a read waits before retrying a half-written file.
	// Default: 100ms
	ReadRetryDelay time.Duration `mapstructure:"read_retry_delay"`
}

// WatchConfig configures `vhosts tray` change monitoring.
type WatchConfig struct {
	// Debounce coalesces bursts of filesystem events.
	// Default: 100ms
	Debounce time.Duration `mapstructure:"debounce"`
}

// ServeConfig configures the `vhosts serve` HTTP API.
type ServeConfig struct {
	Addr string `mapstructure:"addr"` // listen address, default 127.0.0.1:7878
}

// TracingConfig holds distributed tracing configuration for registry operations.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/vhosts/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Default values shared by Defaults and the config template.
const (
	DefaultLockTimeout      = 3 * time.Second
	DefaultLockPollInterval = 25 * time.Millisecond
	DefaultReadRetryDelay   = 100 * time.Millisecond
	DefaultWatchDebounce    = 100 * time.Millisecond
	DefaultServeAddr        = "127.0.0.1:7878"
)

// Defaults returns a Config with sensible default values.
// HostsFile and SettingsFile stay empty so paths resolution applies its own defaults.
func Defaults() Config {
	return Config{
		Lock: LockConfig{
			Timeout:        DefaultLockTimeout,
			PollInterval:   DefaultLockPollInterval,
			ReadRetryDelay: DefaultReadRetryDelay,
		},
		Watch: WatchConfig{
			Debounce: DefaultWatchDebounce,
		},
		Serve: ServeConfig{
			Addr: DefaultServeAddr,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Flags: map[string]bool{},
	}
}

// Validate checks the configuration for values the registry cannot work with.
func (c Config) Validate() error {
	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("lock.timeout must be positive, got %s", c.Lock.Timeout)
	}
	if c.Lock.PollInterval <= 0 {
		return fmt.Errorf("lock.poll_interval must be positive, got %s", c.Lock.PollInterval)
	}
	if c.Lock.PollInterval > c.Lock.Timeout {
		return fmt.Errorf("lock.poll_interval (%s) must not exceed lock.timeout (%s)", c.Lock.PollInterval, c.Lock.Timeout)
	}
	if c.Lock.ReadRetryDelay < 0 {
		return fmt.Errorf("lock.read_retry_delay must not be negative, got %s", c.Lock.ReadRetryDelay)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	if c.Serve.Addr == "" {
		return fmt.Errorf("serve.addr is required")
	}
	for name := range c.Flags {
		if _, ok := flags.Descriptions[name]; !ok {
			log.Warn(log.CatConfig, "Unknown feature flag in config", "flag", name)
		}
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0 || tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the template for the default config file.
func DefaultConfigTemplate() string {
	return `# vhosts configuration

# Path to the virtual-host registry. Empty uses ~/localhost-manager/conf/hosts.json.
# A directory is accepted and resolved to <dir>/hosts.json.
hosts_file: ""

# Path to the stack settings written by "vhosts init".
settings_file: ""

# Cross-process lock around hosts.json. The lock file is <hosts_file>.lock.
lock:
  timeout: 3s
  poll_interval: 25ms
  # Delay before a read retries a file that another process is rewriting.
  read_retry_delay: 100ms

# Change monitoring used by "vhosts tray".
watch:
  debounce: 100ms

# HTTP API started by "vhosts serve".
serve:
  addr: 127.0.0.1:7878

# Feature flags
# flags:
#   direct-write: true    # overwrite hosts.json in place (bind mounts)
#   strict-decode: true   # warn on skipped malformed entries

# Distributed tracing for registry operations
# tracing:
#   enabled: true
#   exporter: file        # none, file, stdout, otlp
#   file_path: ~/.config/vhosts/traces/traces.jsonl
#   sample_rate: 1.0
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
