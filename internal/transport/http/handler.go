package http

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	appedge "github.com/qp-cloud/edge-auth-gateway/internal/app/edge"
	"github.com/qp-cloud/edge-auth-gateway/internal/config"
	"github.com/qp-cloud/edge-auth-gateway/internal/domain/token"
	"github.com/qp-cloud/edge-auth-gateway/internal/infra/secrets"
	"github.com/qp-cloud/edge-auth-gateway/pkg/logger"
	"github.com/qp-cloud/edge-auth-gateway/pkg/tracer"
)

type Handler struct {
	appService appedge.Service
	issuer     *token.Issuer
	keys       secrets.KeyProvider
	cfg        *config.Config
}

func NewHandler(
	appService appedge.Service,
	issuer *token.Issuer,
	keys secrets.KeyProvider,
	cfg *config.Config,
) *Handler {
	return &Handler{
		appService: appService,
		issuer:     issuer,
		keys:       keys,
		cfg:        cfg,
	}
}

// Filter is the auth-subrequest endpoint the load balancer calls before
// forwarding to the origin. On acceptance the trust headers are returned on
// the response for the balancer to copy onto the origin request; on
// rejection the synthesized 401 is returned as-is.
func (h *Handler) Filter(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.Filter")
	defer span.End()

	req := token.NewRequest(c.Request.Method, c.Request.URL.Path)
	for name, values := range c.Request.Header {
		if len(values) > 0 {
			req.SetHeader(name, values[len(values)-1])
		}
	}

	decision, err := h.appService.Filter(ctx, req, h.cfg.Auth.CacheTTL)
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "edge filter failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if !decision.Allow {
		logger.WarnContext(ctx, "request rejected",
			slog.String("code", decision.Code),
			slog.String("reason", decision.Reason),
		)
		writeRejection(c, decision.Rejection)
		return
	}

	for k, v := range decision.Headers {
		c.Header(k, v)
	}
	c.Status(http.StatusOK)
}

func writeRejection(c *gin.Context, rejection *token.Response) {
	contentType := rejection.Headers["content-type"]
	for k, v := range rejection.Headers {
		if k == "content-type" {
			continue
		}
		c.Header(k, v)
	}
	c.Data(rejection.StatusCode, contentType, []byte(rejection.Body))
}

type issueTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// IssueToken mints a signed demo token for the configured credentials.
func (h *Handler) IssueToken(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.IssueToken")
	defer span.End()

	var body issueTokenRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body required"})
		return
	}

	if body.Username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password required"})
		return
	}

	creds := h.cfg.Auth.Credentials
	if creds.Password == "" || body.Username != creds.Username || body.Password != creds.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	key, err := h.keys.SigningKey(ctx)
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "signing key unavailable", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	signed, err := h.issuer.Issue(body.Username, body.Name, h.cfg.Auth.TokenTTL, key)
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "failed to issue token", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      signed,
		"expires_in": int64(h.cfg.Auth.TokenTTL.Seconds()),
		"token_type": "Bearer",
	})
}
