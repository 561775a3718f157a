package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avolkov/identity-auth/internal/transport/http/middleware"
	"github.com/avolkov/identity-auth/internal/usecase"
)

// ProfileHandler serves the authenticated identity's own data.
type ProfileHandler struct {
	auth *usecase.AuthService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(auth *usecase.AuthService) *ProfileHandler {
	return &ProfileHandler{auth: auth}
}

// Me returns the identity and profile behind the presented access token.
func (h *ProfileHandler) Me(c *gin.Context) {
	identityID, ok := middleware.GetAuthenticatedIdentityID(c)
	if !ok {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	identity, profile, err := h.auth.GetProfile(c.Request.Context(), identityID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "profile lookup failed")
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(identity, profile))
}
