package http

import (
	"context"
	"fmt"
	"net/http"

	appedge "github.com/qp-cloud/edge-auth-gateway/internal/app/edge"
	"github.com/qp-cloud/edge-auth-gateway/internal/config"
	domainedge "github.com/qp-cloud/edge-auth-gateway/internal/domain/edge"
	"github.com/qp-cloud/edge-auth-gateway/internal/domain/token"
	"github.com/qp-cloud/edge-auth-gateway/internal/infra/cache"
	"github.com/qp-cloud/edge-auth-gateway/internal/infra/secrets"
	"github.com/qp-cloud/edge-auth-gateway/pkg/logger"
	"github.com/qp-cloud/edge-auth-gateway/pkg/otel"
	"github.com/qp-cloud/edge-auth-gateway/pkg/tracer"
)

type Server struct {
	httpServer *http.Server
}

const (
	idleTimeoutMultiplier = 2
	serviceName           = "edge-auth-gateway"
)

func NewServer(cfg *config.Config) (*Server, error) {
	logger.Init(cfg.Observability.LogLevel, cfg.Observability.Format)

	if err := tracer.InitTracer(serviceName, newOtelConfig(cfg)); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	keys, err := newKeyProvider(cfg)
	if err != nil {
		return nil, err
	}

	validator := token.NewValidator()

	var domainService domainedge.Service
	if cfg.Auth.RequireSignature {
		var outcomes cache.OutcomeCache
		if cfg.Redis.URL != "" {
			redisClient, redisErr := cache.NewRedisClient(cfg.Redis.URL, cfg.Redis.PoolSize)
			if redisErr != nil {
				return nil, fmt.Errorf("failed to create redis client: %w", redisErr)
			}
			outcomes = cache.NewOutcomeCache(redisClient)
		}
		domainService = domainedge.NewServiceWithSignatureVerification(
			validator,
			token.NewHS256Verifier(),
			keys,
			outcomes,
		)
	} else {
		domainService = domainedge.NewService(validator)
	}

	appService := appedge.NewService(domainService)
	issuer := token.NewIssuer(cfg.Auth.Issuer, cfg.Auth.Audience)

	handler := NewHandler(appService, issuer, keys, cfg)
	router := NewRouter(handler, cfg)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * idleTimeoutMultiplier,
	}

	return &Server{httpServer: httpServer}, nil
}

func newOtelConfig(cfg *config.Config) otel.Config {
	return otel.Config{
		ServiceName:        serviceName,
		EndpointURL:        cfg.Observability.TracingEndpointURL,
		Enabled:            cfg.Observability.TraceEnabled,
		SampleRatio:        cfg.Observability.TraceSampleRatio,
		Insecure:           cfg.Observability.TraceInsecure,
		ResourceAttributes: make(map[string]string),
	}
}

func newKeyProvider(cfg *config.Config) (secrets.KeyProvider, error) {
	if cfg.Secrets.Endpoint != "" {
		provider := secrets.NewHTTPKeyProvider(cfg.Secrets.Endpoint, cfg.Secrets.AuthToken)
		return secrets.NewKeyCache(provider, cfg.Secrets.CacheTTL), nil
	}

	if cfg.Secrets.StaticKey != "" {
		return secrets.StaticKeyProvider(cfg.Secrets.StaticKey), nil
	}

	return nil, fmt.Errorf("no secrets endpoint or static key configured")
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
