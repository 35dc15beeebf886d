package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Empty(t, cfg.HostsFile, "hosts file resolves through paths when unset")
	require.Equal(t, 3*time.Second, cfg.Lock.Timeout)
	require.Equal(t, 25*time.Millisecond, cfg.Lock.PollInterval)
	require.Equal(t, 100*time.Millisecond, cfg.Lock.ReadRetryDelay)
	require.Equal(t, DefaultServeAddr, cfg.Serve.Addr)
	require.False(t, cfg.Tracing.Enabled)
	require.NotNil(t, cfg.Flags)
	require.NoError(t, cfg.Validate())
}

func TestValidate_LockTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Lock.Timeout = 0
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "lock.timeout")
}

func TestValidate_PollIntervalExceedsTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Lock.PollInterval = 5 * time.Second
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "poll_interval")
}

func TestValidate_NegativeDurations(t *testing.T) {
	cfg := Defaults()
	cfg.Lock.ReadRetryDelay = -time.Millisecond
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Watch.Debounce = -time.Millisecond
	require.Error(t, cfg.Validate())
}

func TestValidate_ServeAddrRequired(t *testing.T) {
	cfg := Defaults()
	cfg.Serve.Addr = ""
	require.ErrorContains(t, cfg.Validate(), "serve.addr")
}

func TestValidate_UnknownFlagIsNotAnError(t *testing.T) {
	cfg := Defaults()
	cfg.Flags = map[string]bool{"no-such-flag": true}
	require.NoError(t, cfg.Validate())
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		tracing TracingConfig
		wantErr string
	}{
		{name: "disabled defaults", tracing: Defaults().Tracing},
		{name: "sample rate too high", tracing: TracingConfig{SampleRate: 1.5}, wantErr: "sample_rate"},
		{name: "sample rate negative", tracing: TracingConfig{SampleRate: -0.1}, wantErr: "sample_rate"},
		{name: "bad exporter", tracing: TracingConfig{Exporter: "zipkin", SampleRate: 1}, wantErr: "exporter"},
		{name: "file without path", tracing: TracingConfig{Enabled: true, Exporter: "file", SampleRate: 1}, wantErr: "file_path"},
		{name: "otlp without endpoint", tracing: TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1}, wantErr: "otlp_endpoint"},
		{name: "disabled file without path", tracing: TracingConfig{Exporter: "file", SampleRate: 1}},
		{name: "stdout", tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(tt.tracing)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDefaultConfigTemplate_UnmarshalsToDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(DefaultConfigTemplate())))

	cfg := Defaults()
	require.NoError(t, v.Unmarshal(&cfg))

	want := Defaults()
	require.Equal(t, want.Lock, cfg.Lock)
	require.Equal(t, want.Watch, cfg.Watch)
	require.Equal(t, want.Serve, cfg.Serve)
	require.Empty(t, cfg.HostsFile)
	require.NoError(t, cfg.Validate())
}
