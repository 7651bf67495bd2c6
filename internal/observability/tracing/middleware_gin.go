package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/ordersync/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware instruments inbound HTTP requests. Job lookups carry the job id on the
// request context so service spans started by the handler are stamped with it.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("ordersync/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))

		requestID := obscontext.RequestIDFromContext(ctx)
		if requestID != "" {
			member, err := baggage.NewMember("request_id", requestID)
			if err == nil {
				bag, bagErr := baggage.New(member)
				if bagErr == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if jobID := strings.TrimSpace(c.Param("id")); jobID != "" {
			ctx = obscontext.WithJobID(ctx, jobID)
			span.SetAttributes(attribute.String("job.id", jobID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)
		span.SetAttributes(SafeAttributes(routeAttributes(c, route)...)...)

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

// routeAttributes adds route specific attributes for the API endpoints.
func routeAttributes(c *gin.Context, route string) []attribute.KeyValue {
	switch {
	case strings.HasSuffix(route, "/sync"):
		force := strings.EqualFold(strings.TrimSpace(c.Query("force")), "true")
		return []attribute.KeyValue{
			attribute.String("sync.trigger", "api"),
			attribute.Bool("sync.force", force),
		}
	case strings.HasSuffix(route, "/uploads"):
		return []attribute.KeyValue{
			attribute.Int64("upload.content_length", c.Request.ContentLength),
		}
	case strings.HasSuffix(route, "/jobs"):
		var attrs []attribute.KeyValue
		if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
			attrs = append(attrs, attribute.String("job.kind", kind))
		}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			attrs = append(attrs, attribute.String("job.status", status))
		}
		return attrs
	default:
		return nil
	}
}
