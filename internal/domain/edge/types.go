package edge

import "github.com/qp-cloud/edge-auth-gateway/internal/domain/token"

// Decision is the gateway's terminal answer for one request. An allowed
// decision carries the trust headers for the forwarded request; a denied one
// carries the synthesized rejection response.
type Decision struct {
	Allow       bool
	Subject     string
	DisplayName string
	Headers     map[string]string

	Code      string
	Reason    string
	Rejection *token.Response
}
