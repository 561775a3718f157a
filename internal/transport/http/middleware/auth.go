package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/infra/security"
)

const bearerScheme = "Bearer"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// abortUnauthorized rejects the request with a bearer challenge.
func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", bearerScheme)
	c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, msg))
}

// RequireToken demands an Authorization header of the exact form
// "Bearer <token>" carrying a valid token of the expected kind. The token is
// never handed to the validator unless the header shape is right. On success
// the identity ID and claims are stored on the request context.
func RequireToken(issuer *security.TokenIssuer, expected domain.TokenKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || scheme != bearerScheme {
			abortUnauthorized(c, "invalid authorization format: expected 'Bearer <token>'")
			return
		}

		token = strings.TrimSpace(token)
		if token == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims, err := issuer.Validate(token, expected)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrTokenExpired):
				abortUnauthorized(c, "token expired")
			case errors.Is(err, security.ErrWrongTokenKind):
				abortUnauthorized(c, "wrong token kind")
			default:
				abortUnauthorized(c, "invalid token")
			}
			return
		}

		identityID, err := uuid.Parse(claims.IdentityID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				newErrorResponse(c, "token carries malformed identity id"))
			return
		}

		c.Set(IdentityIDKey, identityID.String())
		c.Set("claims", claims)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.IdentityID = identityID.String()
		}

		c.Next()
	}
}

// GetAuthenticatedIdentityID retrieves the identity ID from context (helper for handlers)
func GetAuthenticatedIdentityID(c *gin.Context) (string, bool) {
	identityID, exists := c.Get(IdentityIDKey)
	if !exists {
		return "", false
	}

	if id, ok := identityID.(string); ok {
		return id, true
	}

	return "", false
}
