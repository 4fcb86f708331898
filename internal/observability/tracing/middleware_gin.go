package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/internal/actor"
	obscontext "github.com/smallbiznis/fieldops/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// resourceParams maps route params to the span attribute naming the entity
// a request touches.
var resourceParams = map[string]string{
	"id":       "fieldops.resource.id",
	"index":    "fieldops.media.index",
	"provider": "fieldops.payment.provider",
}

// GinMiddleware starts a server span per request. The span is renamed to the
// matched route once routing is done and tagged with the caller's role.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("fieldops/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		span.SetName(method + " " + route)

		status := c.Writer.Status()
		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		}
		if caller, ok := actor.FromContext(c.Request.Context()); ok {
			attrs = append(attrs, attribute.String("fieldops.actor.role", string(caller.Role)))
		}
		for _, p := range c.Params {
			if key, ok := resourceParams[p.Key]; ok {
				attrs = append(attrs, attribute.String(key, p.Value))
			}
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if last := c.Errors.Last(); last != nil {
				if err := SafeError(last.Err); err != nil {
					span.RecordError(err)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
