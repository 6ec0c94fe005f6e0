package telemetry

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader is the response header carrying the trace ID
const TraceIDHeader = "X-Trace-ID"

// TracingMiddleware starts a server span per request, continuing any incoming W3C trace context
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(instrumentationName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(c.Request.Method),
				semconv.HTTPRoute(route),
				semconv.UserAgentOriginal(c.Request.UserAgent()),
				attribute.String("service", serviceName),
				attribute.String("http.client_ip", c.ClientIP()),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Header(TraceIDHeader, sc.TraceID().String())
			c.Set("trace_id", sc.TraceID().String())
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if userID := c.GetString("user_id"); userID != "" {
			span.SetAttributes(attribute.String("user_id", userID))
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("http %d", status))
		}
	}
}
