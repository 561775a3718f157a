package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avolkov/identity-auth/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// RegisterResponse contains registration results and next steps.
type RegisterResponse struct {
	ID                   string `json:"id"`
	Email                string `json:"email"`
	RequiresVerification bool   `json:"requires_verification"`
	Message              string `json:"message,omitempty"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the outcome of a login step. When the second factor
// is still pending only PartialToken is populated; otherwise the terminal
// token pair is returned.
type LoginResponse struct {
	RequiresTwoFactor bool   `json:"requires_2fa"`
	PartialToken      string `json:"partial_token,omitempty"`
	AccessToken       string `json:"access_token,omitempty"`
	RefreshToken      string `json:"refresh_token,omitempty"`
	TokenType         string `json:"token_type,omitempty"`
	ExpiresIn         int    `json:"expires_in,omitempty"`
}

// TwoFactorConfirmRequest carries the partial token plus the delivered code.
type TwoFactorConfirmRequest struct {
	PartialToken string `json:"partial_token" binding:"required"`
	Code         string `json:"code" binding:"required"`
}

// TokenRefreshResponse contains the access token issued by the refresh endpoint.
type TokenRefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// VerifyEmailResponse is returned after an email verification attempt.
type VerifyEmailResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// ProfileResponse describes the authenticated identity and its profile.
type ProfileResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Verified         bool      `json:"verified"`
	RequireTwoFactor bool      `json:"require_2fa"`
	CreatedAt        time.Time `json:"created_at"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func newProfileResponse(identity *domain.Identity, profile *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:               identity.ID,
		Email:            identity.Email,
		Name:             profile.Name,
		Verified:         identity.Verified,
		RequireTwoFactor: identity.RequireTwoFactor,
		CreatedAt:        identity.CreatedAt,
	}
}
