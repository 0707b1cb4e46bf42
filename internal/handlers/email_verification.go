package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/services"
	"github.com/charlesng35/adpulse/pkg/response"
)

// EmailVerificationHandler confirms account email addresses.
type EmailVerificationHandler struct {
	verifier *services.EmailVerificationService
}

func NewEmailVerificationHandler(verifier *services.EmailVerificationService) *EmailVerificationHandler {
	return &EmailVerificationHandler{verifier: verifier}
}

// POST /api/auth/email/verify
func (h *EmailVerificationHandler) Verify(c *gin.Context) {
	var req tokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.verifier.Verify(requestContext(c), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": toUserDTO(user)})
}

// POST /api/auth/email/resend
func (h *EmailVerificationHandler) Resend(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.verifier.Resend(requestContext(c), actor); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Verification email sent")
}
