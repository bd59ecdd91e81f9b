package secrets

import (
	"context"
	"fmt"
	"net/http"

	httpclient "github.com/qp-cloud/edge-auth-gateway/pkg/http"
)

// KeyProvider supplies the JWT signing key. Implementations own retrieval
// and caching; the validator host just asks.
type KeyProvider interface {
	SigningKey(ctx context.Context) ([]byte, error)
}

// secretDocument is the payload served by the secrets endpoint, matching the
// Secrets Manager document shape {"jwt_secret_key": "..."}.
type secretDocument struct {
	JWTSecretKey string `json:"jwt_secret_key"`
}

type httpKeyProvider struct {
	endpoint  string
	authToken string
}

// NewHTTPKeyProvider fetches the signing key from an HTTPS secrets endpoint.
// Wrap it in a KeyCache to bound fetch frequency.
func NewHTTPKeyProvider(endpoint, authToken string) KeyProvider {
	return &httpKeyProvider{
		endpoint:  endpoint,
		authToken: authToken,
	}
}

func (p *httpKeyProvider) SigningKey(ctx context.Context) ([]byte, error) {
	var doc secretDocument
	resp, err := httpclient.Get(ctx, p.endpoint,
		httpclient.WithBearerToken(p.authToken),
		httpclient.WithResult(&doc),
	)
	if err != nil {
		return nil, fmt.Errorf("secrets endpoint request failed: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("secrets endpoint returned status %d: %s",
			resp.StatusCode(), string(resp.Body()))
	}

	if doc.JWTSecretKey == "" {
		return nil, fmt.Errorf("secrets document has no jwt_secret_key")
	}

	return []byte(doc.JWTSecretKey), nil
}

// StaticKeyProvider returns a fixed key, for development and tests.
type StaticKeyProvider []byte

func (k StaticKeyProvider) SigningKey(context.Context) ([]byte, error) {
	if len(k) == 0 {
		return nil, fmt.Errorf("no signing key configured")
	}
	return []byte(k), nil
}
