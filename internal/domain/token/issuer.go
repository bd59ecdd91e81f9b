package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer mints HS256-signed tokens accepted by the edge filter and by any
// origin that independently re-verifies signatures with the same key.
type Issuer struct {
	issuer   string
	audience string
	now      func() time.Time
}

type IssuerOption func(*Issuer)

func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(issuer, audience string, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue signs a token for the given subject. The display name is carried in
// the `name` claim and surfaces as x-validated-name at the edge.
func (i *Issuer) Issue(subject, displayName string, ttl time.Duration, key []byte) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}

	now := i.now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": i.issuer,
		"aud": i.audience,
	}
	if displayName != "" {
		claims["name"] = displayName
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
