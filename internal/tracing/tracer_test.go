package tracing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.False(t, cfg.Enabled)
	require.Equal(t, ExporterFile, cfg.Exporter)
	require.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	require.Equal(t, 1.0, cfg.SampleRate)
	require.Equal(t, "bucket", cfg.ServiceName)
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{})
	require.NoError(t, err)
	require.False(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_FileExporterRequiresPath(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: ExporterFile})
	require.ErrorContains(t, err, "file_path required")
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported exporter type")
}

func TestNewProvider_FileExporterWritesSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "traces.jsonl")

	provider, err := NewProvider(Config{
		Enabled:  true,
		Exporter: ExporterFile,
		FilePath: path,
	})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), SpanPrefixRegistry+"resolve",
		trace.WithAttributes(
			attribute.String(AttrComponentID, "App"),
			attribute.String(AttrResolveID, "r-1"),
			attribute.Int(AttrManifestCount, 2),
		))
	require.True(t, span.SpanContext().IsValid())
	span.AddEvent(EventComponentCreated, trace.WithAttributes(attribute.String(AttrComponentID, "Leaf")))
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))

	records := readRecords(t, path)
	require.Len(t, records, 1)
	require.Equal(t, "registry.resolve", records[0].Name)
	require.Equal(t, "registry", records[0].Layer)
	require.Equal(t, "App", records[0].ComponentID)
	require.Equal(t, "r-1", records[0].ResolveID)
	require.Equal(t, map[string]any{AttrManifestCount: float64(2)}, records[0].Attributes)
	require.Len(t, records[0].Events, 1)
	require.Equal(t, EventComponentCreated, records[0].Events[0].Name)
	require.Equal(t, "Leaf", records[0].Events[0].ComponentID)
	require.Empty(t, records[0].Events[0].Attributes)
}

func TestFileExporter_ErrorStatusAndParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(path)
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "parent")
	_, child := tracer.Start(ctx, "child")
	child.SetStatus(codes.Error, "boom")
	child.End()
	parent.End()

	require.NoError(t, exporter.ExportSpans(context.Background(), recorder.Ended()))
	require.NoError(t, exporter.ExportSpans(context.Background(), nil))
	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()))

	records := readRecords(t, path)
	require.Len(t, records, 2)
	require.Equal(t, "child", records[0].Name)
	require.Equal(t, "ERROR", records[0].Status)
	require.Equal(t, "boom", records[0].StatusMsg)
	require.Equal(t, records[1].SpanID, records[0].ParentID)
	require.Equal(t, "UNSET", records[1].Status)
	require.Empty(t, records[1].Layer)

	require.Error(t, exporter.ExportSpans(context.Background(), recorder.Ended()))
}

func TestFileExporter_FlushesEachBatch(t *testing.T) {
	var buf bytes.Buffer
	exporter := newWriterExporter(&buf, nil)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), SpanPrefixLoader+"load")
	span.End()

	require.NoError(t, exporter.ExportSpans(context.Background(), recorder.Ended()))
	require.Contains(t, buf.String(), `"layer":"loader"`)
	require.Contains(t, buf.String(), `"name":"loader.load"`)

	require.NoError(t, exporter.Shutdown(context.Background()))
	require.ErrorIs(t, exporter.ExportSpans(context.Background(), nil), errExporterClosed)
}

func readRecords(t *testing.T, path string) []SpanRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []SpanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}
	require.NoError(t, scanner.Err())
	return records
}
