package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/services"
	"github.com/charlesng35/adpulse/pkg/response"
)

const forgotPasswordMessage = "If the email is registered, you will receive password reset instructions."

// PasswordHandler exposes the password reset and change flows.
type PasswordHandler struct {
	credentials *services.CredentialService
}

func NewPasswordHandler(credentials *services.CredentialService) *PasswordHandler {
	return &PasswordHandler{credentials: credentials}
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128"`
}

// POST /api/auth/password/forgot
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.credentials.RequestReset(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, forgotPasswordMessage)
}

// POST /api/auth/password/reset
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.credentials.ResetWithToken(requestContext(c), req.Token, req.Password); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Password has been reset")
}

// POST /api/auth/password/validate
func (h *PasswordHandler) Validate(c *gin.Context) {
	var req tokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	valid, err := h.credentials.ValidateResetToken(requestContext(c), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !valid {
		response.Error(c, services.ErrInvalidOrExpiredToken)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"valid": true})
}

// POST /api/auth/password/change
func (h *PasswordHandler) Change(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.credentials.ChangePassword(requestContext(c), actor, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Password updated")
}
