package token

import (
	"strings"
	"time"
)

// Rejection codes surfaced in the error body and the x-jwt-validation header.
const (
	CodeMissingHeader    = "missing_header"
	CodeInvalidFormat    = "invalid_format"
	CodeInvalidStructure = "invalid_structure"
	CodeParsingError     = "parsing_error"
	CodeExpired          = "expired"
	CodeInvalidSignature = "invalid_signature"
)

// Trust headers added to an accepted request.
const (
	HeaderValidatedUser   = "x-validated-user"
	HeaderValidatedName   = "x-validated-name"
	HeaderAuthMethod      = "x-auth-method"
	HeaderJWTValidated    = "x-jwt-validated"
	HeaderValidationTime  = "x-jwt-validation-time"
	HeaderValidationState = "x-jwt-validation"

	AuthMethodEdgeFilter = "jwt-edge-filter"
)

// Request is the validator's view of an inbound HTTP request. Header keys are
// case-insensitive; duplicate writes are last-write-wins.
type Request struct {
	Method  string
	Path    string
	headers map[string]string
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[strings.ToLower(key)] = value
}

func (r *Request) Header(key string) (string, bool) {
	v, ok := r.headers[strings.ToLower(key)]
	return v, ok
}

// Headers returns a copy of the header map with lower-cased keys.
func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// Outcome is the terminal result of validating one request. Allow carries the
// verified identity; a rejection carries the HTTP status, machine-readable code
// and human-readable message, plus optional per-code detail fields that are
// folded into the JSON error body.
type Outcome struct {
	Allow       bool
	Subject     string
	DisplayName string
	// ExpiresAt is the token's exp claim when present; zero otherwise.
	ExpiresAt time.Time

	Status  int
	Code    string
	Message string
	Detail  map[string]string
}

// Response is a synthesized terminal HTTP response for a rejected request.
type Response struct {
	StatusCode        int
	StatusDescription string
	Headers           map[string]string
	Body              string
}
