package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/infra/security"
	"github.com/avolkov/identity-auth/internal/usecase"
)

const tokenTypeBearer = "bearer"

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	auth         *usecase.AuthService
	registration *usecase.RegistrationService
	issuer       *security.TokenIssuer
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, registration *usecase.RegistrationService, issuer *security.TokenIssuer) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		registration: registration,
		issuer:       issuer,
	}
}

// RegisterRoutes binds authentication routes onto the group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.POST("/login/2fa", h.confirmSecondFactor)
	r.POST("/refresh", h.refresh)
	r.GET("/verify-email", h.verifyEmail)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	identity, err := h.registration.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailAlreadyRegistered, Status: http.StatusConflict, Message: "email already registered"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	resp := RegisterResponse{
		ID:                   identity.ID,
		Email:                identity.Email,
		RequiresVerification: !identity.Verified,
	}
	if resp.RequiresVerification {
		resp.Message = "verification email sent"
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
			{Err: usecase.ErrInvalidPassword, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrEmailNotVerified, Status: http.StatusUnauthorized, Message: "email not verified"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, h.newLoginResponse(result))
}

func (h *AuthHandler) confirmSecondFactor(c *gin.Context) {
	var req TwoFactorConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid confirmation payload"))
		return
	}

	result, err := h.auth.ConfirmSecondFactor(c.Request.Context(), req.PartialToken, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPartialTokenInvalid, Status: http.StatusUnauthorized, Message: "invalid partial token"},
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
			{Err: usecase.ErrCodeNotFound, Status: http.StatusUnauthorized, Message: "no code found"},
			{Err: usecase.ErrCodeMismatch, Status: http.StatusUnauthorized, Message: "invalid code"},
			{Err: usecase.ErrCodeExpired, Status: http.StatusUnauthorized, Message: "code expired"},
		}, http.StatusInternalServerError, "confirmation failed")
		return
	}

	c.JSON(http.StatusOK, h.newLoginResponse(result))
}

// refresh reads the refresh token from the Authorization header rather than
// a body, so the endpoint carries the same bearer contract as protected
// routes.
func (h *AuthHandler) refresh(c *gin.Context) {
	refreshToken, ok := bearerToken(c)
	if !ok {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "missing bearer token"))
		return
	}

	access, err := h.auth.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRefreshTokenInvalid, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, TokenRefreshResponse{
		AccessToken: access,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   h.accessExpiresIn(),
	})
}

func (h *AuthHandler) verifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token query parameter is required"))
		return
	}

	result, err := h.registration.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrVerifyTokenInvalid, Status: http.StatusBadRequest, Message: "invalid verification token"},
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	message := "email verified"
	if result.AlreadyVerified {
		message = "email already verified"
	}

	c.JSON(http.StatusOK, VerifyEmailResponse{Message: message, Email: result.Email})
}

func (h *AuthHandler) newLoginResponse(result usecase.LoginResult) LoginResponse {
	if result.RequiresTwoFactor {
		return LoginResponse{
			RequiresTwoFactor: true,
			PartialToken:      result.PartialToken,
		}
	}

	return LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    h.accessExpiresIn(),
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme match is exact and case-sensitive.
func bearerToken(c *gin.Context) (string, bool) {
	scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
	if !found || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

func (h *AuthHandler) accessExpiresIn() int {
	ttl, err := h.issuer.TTL(domain.TokenKindAccess)
	if err != nil {
		return 0
	}
	return int(ttl.Seconds())
}
