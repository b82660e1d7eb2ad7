// Package correlation carries the id that joins log lines and spans
// belonging to one API request or one reconciliation run.
package correlation

import (
	"context"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Header is the inbound and outbound HTTP header for the correlation id.
const Header = "X-Correlation-ID"

type key struct{}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(key{}).(string)
	return id
}

// ContextWithCorrelationID stores id on ctx. An empty id leaves ctx unchanged.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, key{}, id)
}

// EnsureCorrelationID returns ctx with a correlation id, minting a ULID
// when none is set yet.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := ExtractCorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return ContextWithCorrelationID(ctx, id), id
}

// FromHeader reads the correlation id a caller sent, or returns fallback.
func FromHeader(h http.Header, fallback string) string {
	if id := strings.TrimSpace(h.Get(Header)); id != "" {
		return id
	}
	return fallback
}

// Annotate sets the correlation_id attribute on span when ctx has one.
func Annotate(ctx context.Context, span trace.Span) {
	if span == nil {
		return
	}
	if id := ExtractCorrelationID(ctx); id != "" {
		span.SetAttributes(attribute.String("correlation_id", id))
	}
}
