package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var errExporterClosed = errors.New("trace exporter closed")

// FileExporter writes finished spans as JSON lines. Each batch is flushed
// before ExportSpans returns so a crashed resolve still leaves its trace.
type FileExporter struct {
	mu     sync.Mutex
	out    *bufio.Writer
	closer io.Closer
}

var _ sdktrace.SpanExporter = (*FileExporter)(nil)

// NewFileExporter appends to the file at path, creating parent directories.
func NewFileExporter(path string) (*FileExporter, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- configured trace path
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return newWriterExporter(f, f), nil
}

func newWriterExporter(w io.Writer, closer io.Closer) *FileExporter {
	return &FileExporter{out: bufio.NewWriter(w), closer: closer}
}

// ExportSpans encodes one SpanRecord per span.
func (e *FileExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.out == nil {
		return errExporterClosed
	}
	enc := json.NewEncoder(e.out)
	for _, span := range spans {
		if err := enc.Encode(recordOf(span)); err != nil {
			return fmt.Errorf("encode span %s: %w", span.Name(), err)
		}
	}
	return e.out.Flush()
}

// Shutdown flushes and closes the destination. Later exports fail.
func (e *FileExporter) Shutdown(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.out == nil {
		return nil
	}
	err := e.out.Flush()
	e.out = nil
	if e.closer != nil {
		err = errors.Join(err, e.closer.Close())
	}
	return err
}

// SpanRecord is one line of the trace file. Component and resolve ids are
// lifted out of the attributes so a resolve can be followed with grep.
type SpanRecord struct {
	TraceID     string         `json:"trace_id"`
	SpanID      string         `json:"span_id"`
	ParentID    string         `json:"parent_span_id,omitempty"`
	Name        string         `json:"name"`
	Layer       string         `json:"layer,omitempty"`
	ComponentID string         `json:"component_id,omitempty"`
	ResolveID   string         `json:"resolve_id,omitempty"`
	Start       time.Time      `json:"start_time"`
	DurationMs  float64        `json:"duration_ms"`
	Status      string         `json:"status"`
	StatusMsg   string         `json:"status_message,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Events      []EventRecord  `json:"events,omitempty"`
}

// EventRecord is a span event inside a SpanRecord.
type EventRecord struct {
	Name        string         `json:"name"`
	At          time.Time      `json:"timestamp"`
	ComponentID string         `json:"component_id,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

func recordOf(span sdktrace.ReadOnlySpan) SpanRecord {
	sc := span.SpanContext()
	attrs := attributeMap(span.Attributes())
	record := SpanRecord{
		TraceID:     sc.TraceID().String(),
		SpanID:      sc.SpanID().String(),
		Name:        span.Name(),
		Layer:       layerOf(span.Name()),
		ComponentID: popString(attrs, AttrComponentID),
		ResolveID:   popString(attrs, AttrResolveID),
		Start:       span.StartTime(),
		DurationMs:  float64(span.EndTime().Sub(span.StartTime()).Microseconds()) / 1000,
		Status:      strings.ToUpper(span.Status().Code.String()),
		StatusMsg:   span.Status().Description,
		Attributes:  attrs,
	}
	if parent := span.Parent(); parent.IsValid() {
		record.ParentID = parent.SpanID().String()
	}
	for _, evt := range span.Events() {
		evtAttrs := attributeMap(evt.Attributes)
		record.Events = append(record.Events, EventRecord{
			Name:        evt.Name,
			At:          evt.Time,
			ComponentID: popString(evtAttrs, AttrComponentID),
			Attributes:  evtAttrs,
		})
	}
	return record
}

// layerOf maps a span name such as "loader.load" to "loader".
func layerOf(name string) string {
	for _, prefix := range []string{SpanPrefixRegistry, SpanPrefixLoader, SpanPrefixManifest} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimSuffix(prefix, ".")
		}
	}
	return ""
}

// popString removes key from attrs and returns its string value.
func popString(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok {
		return ""
	}
	delete(attrs, key)
	s, _ := v.(string)
	return s
}

func attributeMap(kvs []attribute.KeyValue) map[string]any {
	attrs := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	return attrs
}
