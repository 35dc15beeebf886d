package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestSetHostsFile_CreatesNewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SetHostsFile(configPath, "/srv/conf/hosts.json"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "hosts_file: /srv/conf/hosts.json")
}

func TestSetHostsFile_PreservesOtherConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# registry location
hosts_file: ""

# lock tuning
lock:
  timeout: 5s
flags:
  direct-write: true
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o644))

	require.NoError(t, SetHostsFile(configPath, "/tmp/hosts.json"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "# lock tuning")
	require.Contains(t, content, "timeout: 5s")
	require.Contains(t, content, "direct-write: true")
	require.Contains(t, content, "hosts_file: /tmp/hosts.json")
	require.NotContains(t, content, `hosts_file: ""`)
}

func TestSetValue_NestedKeyRoundTripsThroughViper(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))

	require.NoError(t, SetValue(configPath, "lock.timeout", "10s"))
	require.NoError(t, SetValue(configPath, "serve.addr", "0.0.0.0:9000"))
	require.NoError(t, SetValue(configPath, "watch.extra.depth", "2"))

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	cfg := Defaults()
	require.NoError(t, v.Unmarshal(&cfg))
	require.Equal(t, 10*time.Second, cfg.Lock.Timeout)
	require.Equal(t, 25*time.Millisecond, cfg.Lock.PollInterval, "siblings untouched")
	require.Equal(t, "0.0.0.0:9000", cfg.Serve.Addr)
	require.Equal(t, "2", v.GetString("watch.extra.depth"))
}

func TestSetValue_RejectsNonMappingDocument(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("- a\n- b\n"), 0o644))

	err := SetValue(configPath, "hosts_file", "x")
	require.ErrorContains(t, err, "not a mapping")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, "- a\n- b\n", string(data), "file untouched on error")
}

func TestSetValue_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, SetHostsFile(configPath, "a"))
	require.NoError(t, SetHostsFile(configPath, "b"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "config.yaml", entries[0].Name())
}
