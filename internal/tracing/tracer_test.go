package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.False(t, cfg.Enabled, "tracing should be disabled by default")
	require.Equal(t, "file", cfg.Exporter)
	require.Empty(t, cfg.FilePath)
	require.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	require.Equal(t, 1.0, cfg.SampleRate)
	require.Equal(t, "vhosts", cfg.ServiceName)
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, provider.Enabled())

	ctx, span := provider.Tracer().Start(context.Background(), "hosts.list")
	require.NotNil(t, ctx)
	require.False(t, span.SpanContext().IsValid(), "no-op spans carry no ids")
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_FileExporterWritesOnShutdown(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces", "traces.jsonl")

	provider, err := NewProvider(context.Background(), Config{
		Enabled:  true,
		Exporter: "file",
		FilePath: tracePath,
	})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	ctx, parent := provider.Tracer().Start(context.Background(), "hosts.toggle")
	_, child := provider.Tracer().Start(ctx, "hosts.save")
	require.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	child.End()
	parent.End()

	require.NoError(t, provider.Shutdown(context.Background()))

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"name":"hosts.toggle"`)
	require.Contains(t, string(data), `"name":"hosts.save"`)
}

func TestNewProvider_NoneAndStdoutExporters(t *testing.T) {
	for _, exporter := range []string{"none", "stdout"} {
		t.Run(exporter, func(t *testing.T) {
			provider, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: exporter})
			require.NoError(t, err)

			_, span := provider.Tracer().Start(context.Background(), "hosts.list")
			require.True(t, span.SpanContext().IsValid())
			span.End()

			require.NoError(t, provider.Shutdown(context.Background()))
		})
	}
}

func TestNewProvider_Errors(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: "file"})
	require.ErrorContains(t, err, "file_path required")

	_, err = NewProvider(context.Background(), Config{Enabled: true, Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported exporter")
}

func TestNewProvider_ResourceAttributes(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	provider, err := NewProvider(context.Background(), Config{
		Enabled:        true,
		Exporter:       ExporterFile,
		FilePath:       tracePath,
		ServiceVersion: "1.2.3",
		HostsFile:      "/srv/conf/hosts.json",
	})
	require.NoError(t, err)

	_, span := provider.Tracer().Start(context.Background(), "hosts.list")
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"service.name":"vhosts"`)
	require.Contains(t, string(data), `"service.version":"1.2.3"`)
	require.Contains(t, string(data), `"hosts.file":"/srv/conf/hosts.json"`)
}
