package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/qp-cloud/edge-auth-gateway/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultRetry   = 2
)

var (
	//nolint:gochecknoglobals // Shared HTTP client for all outbound requests
	client *resty.Client
	//nolint:gochecknoglobals // Guards one-time client construction
	once sync.Once
)

func getClient() *resty.Client {
	once.Do(func() {
		client = resty.New().
			SetTimeout(DefaultTimeout).
			SetRetryCount(DefaultRetry).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
	})
	return client
}

type RequestOption func(*resty.Request)

func WithBearerToken(token string) RequestOption {
	return func(r *resty.Request) {
		if token != "" {
			r.SetAuthToken(token)
		}
	}
}

func WithBody(body any) RequestOption {
	return func(r *resty.Request) {
		r.SetBody(body)
	}
}

func WithResult(result any) RequestOption {
	return func(r *resty.Request) {
		if result != nil {
			r.SetResult(result)
		}
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetHeader(key, value)
	}
}

func Request(ctx context.Context, method, url string, opts ...RequestOption) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "http.Request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", url),
	))
	defer span.End()

	request := getClient().R().SetContext(ctx)
	for _, opt := range opts {
		opt(request)
	}

	injectTracingHeaders(ctx, request)

	resp, err := request.Execute(method, url)
	recordSpan(span, resp, err)
	return resp, err
}

func Get(ctx context.Context, url string, opts ...RequestOption) (*resty.Response, error) {
	return Request(ctx, http.MethodGet, url, opts...)
}

func Post(ctx context.Context, url string, opts ...RequestOption) (*resty.Response, error) {
	return Request(ctx, http.MethodPost, url, opts...)
}

func recordSpan(span trace.Span, resp *resty.Response, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Status())
		return
	}
	span.SetStatus(codes.Ok, "")
}
