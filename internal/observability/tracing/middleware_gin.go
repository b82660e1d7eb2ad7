package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/acquiring/internal/observability/context"
	"github.com/smallbiznis/acquiring/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request. Identifiers that later
// middleware put on the request context (payment id, actor, correlation id)
// are copied onto the span once the handler chain returns.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("acquiring/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		span.SetName(c.Request.Method + " " + route)

		status := c.Writer.Status()
		span.SetAttributes(SafeAttributes(append(scopeAttributes(c),
			attribute.String("http.request.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)...)...)
		correlation.Annotate(c.Request.Context(), span)

		if status < http.StatusInternalServerError {
			return
		}
		if last := c.Errors.Last(); last != nil {
			span.RecordError(SafeError(last.Err))
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

func scopeAttributes(c *gin.Context) []attribute.KeyValue {
	ctx := c.Request.Context()
	var attrs []attribute.KeyValue
	if id := obscontext.RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, attribute.String("request_id", id))
	}
	if id := obscontext.PaymentIDFromContext(ctx); id != "" {
		attrs = append(attrs, attribute.String("payment.id", id))
	}
	if actor := obscontext.ActorIDFromContext(ctx); actor != "" {
		attrs = append(attrs, attribute.String("payment.actor", actor))
	}
	return attrs
}
