package edge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/qp-cloud/edge-auth-gateway/internal/domain/token"
	"github.com/qp-cloud/edge-auth-gateway/internal/infra/cache"
	"github.com/qp-cloud/edge-auth-gateway/internal/infra/secrets"
	"github.com/qp-cloud/edge-auth-gateway/pkg/logger"
)

type Service interface {
	Filter(ctx context.Context, req *token.Request, cacheTTL time.Duration) (*Decision, error)
}

type service struct {
	validator *token.Validator
	verifier  token.SignatureVerifier
	keys      secrets.KeyProvider
	outcomes  cache.OutcomeCache
	now       func() time.Time
}

type ServiceOption func(*service)

// WithClock overrides the time source used for cache TTL clamping.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		s.now = now
	}
}

// NewService builds a structural-only filter, matching the behavior of the
// original CloudFront edge function.
func NewService(validator *token.Validator, opts ...ServiceOption) Service {
	s := &service{validator: validator, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceWithSignatureVerification additionally verifies token signatures
// against the key from the secrets provider. The outcome cache is optional;
// pass nil to verify on every request.
func NewServiceWithSignatureVerification(
	validator *token.Validator,
	verifier token.SignatureVerifier,
	keys secrets.KeyProvider,
	outcomes cache.OutcomeCache,
	opts ...ServiceOption,
) Service {
	s := &service{
		validator: validator,
		verifier:  verifier,
		keys:      keys,
		outcomes:  outcomes,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Filter(
	ctx context.Context,
	req *token.Request,
	cacheTTL time.Duration,
) (*Decision, error) {
	raw, rejection := token.BearerToken(req)
	if rejection != nil {
		return s.deny(rejection), nil
	}

	outcome := s.validator.ValidateToken(raw)
	if !outcome.Allow {
		return s.deny(outcome), nil
	}

	if s.verifier == nil {
		return s.allow(outcome), nil
	}

	tokenHash := hashToken(raw)

	if s.outcomes != nil {
		cached, err := s.outcomes.Get(ctx, tokenHash)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			logger.WarnContext(ctx, "outcome cache read failed, re-verifying",
				slog.String("error", err.Error()))
		}
		if err == nil && cached != nil {
			return s.allow(&token.Outcome{
				Allow:       true,
				Subject:     cached.Subject,
				DisplayName: cached.DisplayName,
			}), nil
		}
	}

	key, err := s.keys.SigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("signing key unavailable: %w", err)
	}

	if err := s.verifier.Verify(raw, key); err != nil {
		return s.deny(&token.Outcome{
			Allow:   false,
			Status:  http.StatusUnauthorized,
			Code:    token.CodeInvalidSignature,
			Message: "JWT signature verification failed",
		}), nil
	}

	if s.outcomes != nil {
		ttl := clampTTL(cacheTTL, outcome.ExpiresAt, s.now())
		if ttl > 0 {
			identity := &cache.CachedIdentity{
				Subject:     outcome.Subject,
				DisplayName: outcome.DisplayName,
			}
			if setErr := s.outcomes.Set(ctx, tokenHash, identity, ttl); setErr != nil {
				logger.WarnContext(ctx, "outcome cache write failed",
					slog.String("error", setErr.Error()))
			}
		}
	}

	return s.allow(outcome), nil
}

func (s *service) allow(outcome *token.Outcome) *Decision {
	return &Decision{
		Allow:       true,
		Subject:     outcome.Subject,
		DisplayName: outcome.DisplayName,
		Headers:     s.validator.TrustHeaders(outcome),
	}
}

func (s *service) deny(outcome *token.Outcome) *Decision {
	return &Decision{
		Allow:     false,
		Code:      outcome.Code,
		Reason:    outcome.Message,
		Rejection: s.validator.Rejection(outcome),
	}
}

// clampTTL bounds the cache TTL by the token's remaining lifetime so a
// cached acceptance never outlives the token itself.
func clampTTL(ttl time.Duration, expiresAt, now time.Time) time.Duration {
	if expiresAt.IsZero() {
		return ttl
	}
	remaining := expiresAt.Sub(now)
	if remaining < ttl {
		return remaining
	}
	return ttl
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
