package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	bearerPrefix = "Bearer "
	segmentCount = 3
)

// Validator performs structural validation of bearer JWTs: segment count,
// base64url/JSON decoding, required header fields, subject presence and
// expiry. It does not verify signatures; hosts that need cryptographic
// verification run it as a separate step after structural acceptance.
//
// A Validator is stateless and safe for concurrent use.
type Validator struct {
	now func() time.Time
}

type Option func(*Validator)

// WithClock overrides the time source used for expiry checks and the
// timestamps written into responses.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// BearerToken extracts the raw token from the request's Authorization header.
// The second return value is non-nil when the header is absent or does not
// carry a bearer credential.
func BearerToken(req *Request) (string, *Outcome) {
	auth, ok := req.Header("authorization")
	if !ok || auth == "" {
		return "", reject(CodeMissingHeader, "Authorization header required", nil)
	}

	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", reject(CodeInvalidFormat, "Bearer token required", map[string]string{
			"expected": "Authorization: Bearer <jwt-token>",
		})
	}

	return strings.TrimPrefix(auth, bearerPrefix), nil
}

// Validate inspects the request's bearer credential and returns a terminal
// outcome. Every failure is a 401 rejection; no path errors or panics.
func (v *Validator) Validate(req *Request) *Outcome {
	raw, rejection := BearerToken(req)
	if rejection != nil {
		return rejection
	}
	return v.ValidateToken(raw)
}

// ValidateToken validates a raw compact-serialized JWT.
func (v *Validator) ValidateToken(raw string) *Outcome {
	parts := strings.Split(raw, ".")
	if len(parts) != segmentCount {
		return reject(CodeInvalidStructure, "JWT must have 3 parts", map[string]string{
			"received_parts": strconv.Itoa(len(parts)),
		})
	}

	header, err := decodeSegment(parts[0])
	if err != nil {
		return reject(CodeParsingError, fmt.Sprintf("JWT parsing failed: %v", err), nil)
	}

	claims, err := decodeSegment(parts[1])
	if err != nil {
		return reject(CodeParsingError, fmt.Sprintf("JWT parsing failed: %v", err), nil)
	}

	if stringClaim(header, "alg") == "" || stringClaim(header, "typ") == "" {
		return reject(CodeInvalidStructure, "invalid header", nil)
	}

	subject := firstClaim(claims, "sub", "user", "username")
	if subject == "" {
		return reject(CodeInvalidStructure, "missing subject", nil)
	}

	now := v.now()
	var expiresAt time.Time
	if exp, ok := numericClaim(claims, "exp"); ok {
		expiresAt = time.Unix(int64(exp), 0).UTC()
		if exp < float64(now.Unix()) {
			return reject(CodeExpired,
				fmt.Sprintf("JWT expired at %s", expiresAt.Format(time.RFC3339)),
				map[string]string{
					"expired_at":   expiresAt.Format(time.RFC3339),
					"current_time": now.UTC().Format(time.RFC3339),
				})
		}
	}

	displayName := firstClaim(claims, "name", "username")
	if displayName == "" {
		displayName = subject
	}

	return &Outcome{
		Allow:       true,
		Subject:     subject,
		DisplayName: displayName,
		ExpiresAt:   expiresAt,
	}
}

// TrustHeaders returns the identity headers asserted for an accepted outcome.
func (v *Validator) TrustHeaders(o *Outcome) map[string]string {
	if !o.Allow {
		return nil
	}
	return map[string]string{
		HeaderValidatedUser:  o.Subject,
		HeaderValidatedName:  o.DisplayName,
		HeaderAuthMethod:     AuthMethodEdgeFilter,
		HeaderJWTValidated:   "true",
		HeaderValidationTime: v.now().UTC().Format(time.RFC3339),
	}
}

// Annotate mutates the request with the trust headers for forwarding to the
// origin. The request is returned unchanged for a rejected outcome.
func (v *Validator) Annotate(req *Request, o *Outcome) *Request {
	for k, val := range v.TrustHeaders(o) {
		req.SetHeader(k, val)
	}
	return req
}

// Rejection synthesizes the terminal response for a rejected outcome: a 401
// with a JSON error body and a no-cache directive so the CDN never stores it.
func (v *Validator) Rejection(o *Outcome) *Response {
	body := map[string]string{
		"error":     o.Code,
		"message":   o.Message,
		"timestamp": v.now().UTC().Format(time.RFC3339),
	}
	for k, val := range o.Detail {
		body[k] = val
	}

	data, err := json.Marshal(body)
	if err != nil {
		data = []byte(`{"error":"` + o.Code + `"}`)
	}

	return &Response{
		StatusCode:        http.StatusUnauthorized,
		StatusDescription: "Unauthorized",
		Headers: map[string]string{
			"content-type":        "application/json",
			"cache-control":       "no-cache",
			HeaderValidationState: o.Code,
		},
		Body: string(data),
	}
}

func reject(code, message string, detail map[string]string) *Outcome {
	return &Outcome{
		Allow:   false,
		Status:  http.StatusUnauthorized,
		Code:    code,
		Message: message,
		Detail:  detail,
	}
}

// decodeSegment decodes one base64url JWT segment into a JSON object.
// Unpadded encoding is the norm but padded segments are tolerated.
func decodeSegment(segment string) (map[string]any, error) {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(segment)
		if err != nil {
			return nil, fmt.Errorf("invalid base64url segment: %w", err)
		}
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("segment is not valid JSON: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("segment is not a JSON object")
	}

	return obj, nil
}

func stringClaim(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}

func firstClaim(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringClaim(obj, key); s != "" {
			return s
		}
	}
	return ""
}

func numericClaim(obj map[string]any, key string) (float64, bool) {
	switch n := obj[key].(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
