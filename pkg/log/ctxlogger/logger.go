// Package ctxlogger turns tracing metadata carried on a context into zap
// fields.
package ctxlogger

import (
	"context"

	"github.com/smallbiznis/acquiring/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Fields returns the correlation and trace fields present on ctx. Missing
// identifiers are left out rather than logged empty.
func Fields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 3)
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	return append(fields, TraceFields(ctx)...)
}

// TraceFields returns trace_id and span_id for the span on ctx, if it is valid.
func TraceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
