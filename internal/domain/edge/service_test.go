package edge_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/qp-cloud/edge-auth-gateway/internal/domain/edge"
	"github.com/qp-cloud/edge-auth-gateway/internal/domain/token"
	"github.com/qp-cloud/edge-auth-gateway/internal/infra/cache"
	"github.com/qp-cloud/edge-auth-gateway/internal/infra/secrets"
)

var signingKey = []byte("edge-test-key")

type mockOutcomeCache struct {
	identities map[string]*cache.CachedIdentity
	getErr     error
	sets       int
	lastTTL    time.Duration
}

func newMockOutcomeCache() *mockOutcomeCache {
	return &mockOutcomeCache{identities: make(map[string]*cache.CachedIdentity)}
}

func (m *mockOutcomeCache) Get(_ context.Context, tokenHash string) (*cache.CachedIdentity, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if identity, ok := m.identities[tokenHash]; ok {
		return identity, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *mockOutcomeCache) Set(_ context.Context, tokenHash string, value *cache.CachedIdentity, ttl time.Duration) error {
	m.sets++
	m.lastTTL = ttl
	m.identities[tokenHash] = value
	return nil
}

type countingKeyProvider struct {
	key   []byte
	calls int
}

func (p *countingKeyProvider) SigningKey(context.Context) ([]byte, error) {
	p.calls++
	return p.key, nil
}

func signedToken(t *testing.T, key []byte) string {
	t.Helper()
	raw, err := token.NewIssuer("edge-auth-gateway", "cdn-origin").Issue("demo-user", "Demo User", time.Hour, key)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return raw
}

func makeUnexpiringToken(t *testing.T) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "demo-user",
	}).SignedString(signingKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return raw
}

func requestWithToken(raw string) *token.Request {
	req := token.NewRequest("GET", "/edge/auth/api/data")
	req.SetHeader("authorization", "Bearer "+raw)
	return req
}

func hashForTest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func TestFilter_StructuralMode(t *testing.T) {
	svc := edge.NewService(token.NewValidator())

	missing, err := svc.Filter(context.Background(), token.NewRequest("GET", "/"), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing.Allow || missing.Code != token.CodeMissingHeader {
		t.Errorf("expected missing_header denial, got allow=%v code=%q", missing.Allow, missing.Code)
	}
	if missing.Rejection == nil || missing.Rejection.StatusCode != 401 {
		t.Error("expected a synthesized 401 rejection response")
	}

	// Structural mode accepts any well-formed token, signature unchecked.
	decision, err := svc.Filter(context.Background(), requestWithToken(signedToken(t, []byte("some-other-key"))), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("expected acceptance, got %q: %s", decision.Code, decision.Reason)
	}
	if decision.Headers[token.HeaderValidatedUser] != "demo-user" {
		t.Errorf("expected trust headers, got %v", decision.Headers)
	}
}

func TestFilter_SignatureVerification(t *testing.T) {
	keys := &countingKeyProvider{key: signingKey}
	svc := edge.NewServiceWithSignatureVerification(
		token.NewValidator(), token.NewHS256Verifier(), keys, nil)

	good, err := svc.Filter(context.Background(), requestWithToken(signedToken(t, signingKey)), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !good.Allow {
		t.Fatalf("expected acceptance, got %q: %s", good.Code, good.Reason)
	}

	forged, err := svc.Filter(context.Background(), requestWithToken(signedToken(t, []byte("attacker-key"))), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forged.Allow || forged.Code != token.CodeInvalidSignature {
		t.Errorf("expected invalid_signature denial, got allow=%v code=%q", forged.Allow, forged.Code)
	}
	if forged.Rejection.Headers[token.HeaderValidationState] != token.CodeInvalidSignature {
		t.Errorf("expected x-jwt-validation header, got %v", forged.Rejection.Headers)
	}
}

func TestFilter_CacheHitSkipsVerification(t *testing.T) {
	raw := signedToken(t, signingKey)
	outcomes := newMockOutcomeCache()
	outcomes.identities[hashForTest(raw)] = &cache.CachedIdentity{
		Subject:     "demo-user",
		DisplayName: "Demo User",
	}

	keys := &countingKeyProvider{key: signingKey}
	svc := edge.NewServiceWithSignatureVerification(
		token.NewValidator(), token.NewHS256Verifier(), keys, outcomes)

	decision, err := svc.Filter(context.Background(), requestWithToken(raw), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allow || decision.Subject != "demo-user" {
		t.Fatalf("expected cached acceptance, got %+v", decision)
	}
	if keys.calls != 0 {
		t.Errorf("cache hit should not fetch the signing key, got %d fetches", keys.calls)
	}
}

func TestFilter_CacheMissVerifiesAndStores(t *testing.T) {
	raw := signedToken(t, signingKey)
	outcomes := newMockOutcomeCache()
	keys := &countingKeyProvider{key: signingKey}
	svc := edge.NewServiceWithSignatureVerification(
		token.NewValidator(), token.NewHS256Verifier(), keys, outcomes)

	decision, err := svc.Filter(context.Background(), requestWithToken(raw), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("expected acceptance, got %q", decision.Code)
	}
	if keys.calls != 1 {
		t.Errorf("expected one key fetch, got %d", keys.calls)
	}
	if outcomes.sets != 1 {
		t.Errorf("expected outcome to be cached, got %d writes", outcomes.sets)
	}
	if cached := outcomes.identities[hashForTest(raw)]; cached == nil || cached.Subject != "demo-user" {
		t.Errorf("unexpected cached identity %+v", cached)
	}
}

func TestFilter_CacheTTLClampedToTokenLifetime(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }

	issuer := token.NewIssuer("edge-auth-gateway", "cdn-origin", token.WithIssuerClock(clock))
	raw, err := issuer.Issue("demo-user", "", 10*time.Second, signingKey)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	outcomes := newMockOutcomeCache()
	svc := edge.NewServiceWithSignatureVerification(
		token.NewValidator(token.WithClock(clock)),
		token.NewHS256Verifier(),
		&countingKeyProvider{key: signingKey},
		outcomes,
		edge.WithClock(clock),
	)

	decision, err := svc.Filter(context.Background(), requestWithToken(raw), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("expected acceptance, got %q", decision.Code)
	}
	if outcomes.sets != 1 {
		t.Fatalf("expected outcome to be cached, got %d writes", outcomes.sets)
	}
	if outcomes.lastTTL != 10*time.Second {
		t.Errorf("expected TTL clamped to the token's 10s lifetime, got %v", outcomes.lastTTL)
	}
}

func TestFilter_CacheTTLUnclampedWithoutExpiry(t *testing.T) {
	raw := makeUnexpiringToken(t)

	outcomes := newMockOutcomeCache()
	svc := edge.NewServiceWithSignatureVerification(
		token.NewValidator(),
		token.NewHS256Verifier(),
		&countingKeyProvider{key: signingKey},
		outcomes,
	)

	decision, err := svc.Filter(context.Background(), requestWithToken(raw), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("expected acceptance, got %q", decision.Code)
	}
	if outcomes.lastTTL != time.Minute {
		t.Errorf("expected the configured TTL for a token without exp, got %v", outcomes.lastTTL)
	}
}

func TestFilter_CacheErrorDegradesToVerification(t *testing.T) {
	outcomes := newMockOutcomeCache()
	outcomes.getErr = errors.New("redis down")
	keys := &countingKeyProvider{key: signingKey}
	svc := edge.NewServiceWithSignatureVerification(
		token.NewValidator(), token.NewHS256Verifier(), keys, outcomes)

	decision, err := svc.Filter(context.Background(), requestWithToken(signedToken(t, signingKey)), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("expected acceptance despite cache failure, got %q", decision.Code)
	}
	if keys.calls != 1 {
		t.Errorf("expected verification path, got %d key fetches", keys.calls)
	}
}

func TestFilter_SecretsFailureIsAnError(t *testing.T) {
	svc := edge.NewServiceWithSignatureVerification(
		token.NewValidator(), token.NewHS256Verifier(), secrets.StaticKeyProvider(nil), nil)

	if _, err := svc.Filter(context.Background(), requestWithToken(signedToken(t, signingKey)), time.Minute); err == nil {
		t.Fatal("expected error when the signing key is unavailable")
	}
}
