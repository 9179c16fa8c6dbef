// Package httpclient builds the resty clients shared by the outbound
// collectors, with one client span per request.
package httpclient

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/destination-etl/internal/observability"
)

// New returns a client rooted at baseURL. An empty userAgent keeps resty's
// default header.
func New(baseURL string, timeout time.Duration, userAgent string) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	if userAgent != "" {
		c.SetHeader("User-Agent", userAgent)
	}
	instrument(c)
	return c
}

func instrument(c *resty.Client) {
	tracer := observability.Tracer()

	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), "HTTP "+req.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.request.method", req.Method),
				attribute.String("url.path", req.URL),
			))
		req.SetContext(ctx)
		return nil
	})

	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		span := trace.SpanFromContext(resp.Request.Context())
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))
		if resp.StatusCode() >= http.StatusBadRequest {
			span.SetStatus(codes.Error, resp.Status())
		}
		span.End()
		return nil
	})

	c.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
	})
}
