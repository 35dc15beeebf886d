package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrHostsFile  = "hosts.file"
	AttrHostCount  = "hosts.count"
	AttrChanged    = "hosts.changed"
	AttrDomain     = "host.domain"
	AttrNewDomain  = "host.new_domain"
	AttrGroup      = "host.group"
	AttrAliasID    = "alias.id"
	AttrActive     = "host.active"
	AttrFormat     = "io.format"
	AttrMerge      = "io.merge"
	AttrHTTPMethod = "http.method"
	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.status_code"
	AttrErrorType  = "error.type"
)

// Span name prefixes.
const (
	SpanPrefixHosts = "hosts."
	SpanPrefixHTTP  = "http."
)

// Event names for span events.
const (
	EventLockAcquired   = "lock.acquired"
	EventRegistryLoaded = "registry.loaded"
	EventRegistrySaved  = "registry.saved"
)

// StartOp starts a span named "hosts.<op>". A nil tracer yields a non-recording span.
func StartOp(ctx context.Context, tracer trace.Tracer, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return tracer.Start(ctx, SpanPrefixHosts+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records err (if any) on span, sets its status and ends it.
// errType classifies err for the error.type attribute; it may be nil.
func Finish(span trace.Span, err error, errType func(error) string) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errType != nil {
			span.SetAttributes(attribute.String(AttrErrorType, errType(err)))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the hex trace id of the span in ctx, or "" when ctx carries none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
