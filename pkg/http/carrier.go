package http

import (
	"context"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

// restyHeaderCarrier adapts a resty request to the otel TextMapCarrier
// interface so W3C trace context propagates to the secrets endpoint.
type restyHeaderCarrier struct {
	request *resty.Request
}

func (c *restyHeaderCarrier) Get(key string) string {
	return c.request.Header.Get(key)
}

func (c *restyHeaderCarrier) Set(key, value string) {
	c.request.SetHeader(key, value)
}

func (c *restyHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.request.Header))
	for k := range c.request.Header {
		keys = append(keys, k)
	}
	return keys
}

func injectTracingHeaders(ctx context.Context, request *resty.Request) {
	if propagator := otel.GetTextMapPropagator(); propagator != nil {
		propagator.Inject(ctx, &restyHeaderCarrier{request: request})
	}
}
