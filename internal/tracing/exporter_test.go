package tracing

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func readRecords(t *testing.T, path string) []SpanRecord {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []SpanRecord
	decoder := json.NewDecoder(file)
	for decoder.More() {
		var record SpanRecord
		require.NoError(t, decoder.Decode(&record))
		records = append(records, record)
	}
	return records
}

func TestNewFileExporter_AppendsToExistingFile(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	require.NoError(t, os.WriteFile(tracePath, []byte(`{"name":"earlier"}`+"\n"), 0o644))

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	stub := tracetest.SpanStub{Name: "hosts.list", StartTime: time.Now(), EndTime: time.Now()}
	require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exporter.Shutdown(context.Background()))

	records := readRecords(t, tracePath)
	require.Len(t, records, 2)
	require.Equal(t, "earlier", records[0].Name)
	require.Equal(t, "hosts.list", records[1].Name)
}

func TestFileExporter_WritesRecordFields(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	start := time.Now()
	stub := tracetest.SpanStub{
		Name:      "hosts.toggle",
		SpanKind:  trace.SpanKindInternal,
		StartTime: start,
		EndTime:   start.Add(40 * time.Millisecond),
		Status:    sdktrace.Status{Code: codes.Error, Description: "host not found"},
		Attributes: []attribute.KeyValue{
			attribute.String(AttrDomain, "app.test"),
			attribute.Int(AttrHostCount, 3),
		},
		Events: []sdktrace.Event{{
			Name:       EventLockAcquired,
			Time:       start,
			Attributes: []attribute.KeyValue{attribute.String(AttrHostsFile, "/tmp/hosts.json")},
		}},
	}
	require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exporter.Shutdown(context.Background()))

	records := readRecords(t, tracePath)
	require.Len(t, records, 1)
	record := records[0]
	require.Equal(t, "INTERNAL", record.Kind)
	require.Equal(t, "ERROR", record.Status)
	require.Equal(t, "host not found", record.StatusMsg)
	require.InDelta(t, 40.0, record.DurationMs, 0.001)
	require.Equal(t, "app.test", record.Attributes[AttrDomain])
	require.EqualValues(t, 3, record.Attributes[AttrHostCount])
	require.Len(t, record.Events, 1)
	require.Equal(t, "/tmp/hosts.json", record.Events[0].Attributes[AttrHostsFile])
}

func TestFileExporter_ConcurrentExports(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				stub := tracetest.SpanStub{Name: "hosts.toggle", StartTime: time.Now(), EndTime: time.Now()}
				_ = exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, exporter.Shutdown(context.Background()))

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	require.Equal(t, 400, strings.Count(string(data), "\n"))
	require.Len(t, readRecords(t, tracePath), 400)
}

func TestFileExporter_ShutdownIdempotentAndRejectsLateExports(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)

	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()))

	stub := tracetest.SpanStub{Name: "late"}
	require.Error(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exporter.ExportSpans(context.Background(), nil), "empty batches are ignored")
}

func TestFileExporter_KindAndResource(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	stub := tracetest.SpanStub{
		Name:     "http.GET /api/hosts",
		SpanKind: trace.SpanKindServer,
		Resource: resource.NewSchemaless(attribute.String("service.name", "vhosts")),
	}
	plain := tracetest.SpanStub{Name: "hosts.list"}
	require.NoError(t, exporter.ExportSpans(context.Background(),
		[]sdktrace.ReadOnlySpan{stub.Snapshot(), plain.Snapshot()}))
	require.NoError(t, exporter.Shutdown(context.Background()))

	records := readRecords(t, tracePath)
	require.Len(t, records, 2)
	require.Equal(t, "SERVER", records[0].Kind)
	require.Equal(t, "UNSET", records[0].Status)
	require.Equal(t, "vhosts", records[0].Resource["service.name"])
	require.Equal(t, "UNSPECIFIED", records[1].Kind)
	require.Empty(t, records[1].Resource)
}
