package edge

import (
	"context"
	"time"

	"github.com/qp-cloud/edge-auth-gateway/internal/domain/edge"
	"github.com/qp-cloud/edge-auth-gateway/internal/domain/token"
	"github.com/qp-cloud/edge-auth-gateway/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

type Service interface {
	Filter(ctx context.Context, req *token.Request, cacheTTL time.Duration) (*edge.Decision, error)
}

type service struct {
	domainService edge.Service
}

func NewService(domainService edge.Service) Service {
	return &service{domainService: domainService}
}

func (s *service) Filter(
	ctx context.Context,
	req *token.Request,
	cacheTTL time.Duration,
) (*edge.Decision, error) {
	ctx, span := tracer.Start(ctx, "app.edge.Filter")
	defer span.End()

	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
	)

	decision, err := s.domainService.Filter(ctx, req, cacheTTL)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if decision.Allow {
		span.SetAttributes(
			attribute.Bool("edge.allowed", true),
			attribute.String("edge.subject", decision.Subject),
		)
	} else {
		span.SetAttributes(
			attribute.Bool("edge.allowed", false),
			attribute.String("edge.code", decision.Code),
		)
	}

	return decision, nil
}
