package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/adpulse/internal/auth"
	"github.com/charlesng35/adpulse/internal/services"
	"github.com/charlesng35/adpulse/pkg/crypto"
	"github.com/charlesng35/adpulse/pkg/logger"
)

// SSOHandler runs "Sign in with Google": an OIDC authorization code flow with
// PKCE whose state is sealed by a StateCodec rather than kept server side.
type SSOHandler struct {
	provider iauth.IdentityProvider
	codec    *iauth.StateCodec
	users    *services.UserService
	sessions *iauth.SessionService
	baseURL  string
}

func NewSSOHandler(provider iauth.IdentityProvider, codec *iauth.StateCodec, users *services.UserService, sessions *iauth.SessionService, baseURL string) *SSOHandler {
	return &SSOHandler{
		provider: provider,
		codec:    codec,
		users:    users,
		sessions: sessions,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// GET /api/auth/google/login
func (h *SSOHandler) Begin(c *gin.Context) {
	pkce, err := iauth.GeneratePKCE()
	if err != nil {
		h.fail(c, "pkce", err)
		return
	}

	nonce, err := crypto.GenerateToken(32)
	if err != nil {
		h.fail(c, "nonce", err)
		return
	}

	state, err := h.codec.Encode(iauth.StatePayload{
		Nonce:    nonce,
		PKCE:     pkce.Verifier,
		ReturnTo: sanitizeRedirect(c.Query("redirect"), "/"),
	})
	if err != nil {
		h.fail(c, "state", err)
		return
	}

	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state, nonce, pkce.Challenge))
}

// GET /api/auth/google/callback
func (h *SSOHandler) Callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		h.fail(c, "provider", nil, zap.String("reason", reason))
		return
	}

	payload, err := h.codec.Decode(c.Query("state"))
	if err != nil {
		h.fail(c, "state", err)
		return
	}

	identity, err := h.provider.Exchange(requestContext(c), c.Query("code"), payload.PKCE, payload.Nonce)
	if err != nil {
		h.fail(c, "exchange", err)
		return
	}

	user, created, err := h.users.FindOrCreateFromIdentity(requestContext(c), services.ExternalIdentity{
		Subject:       identity.Subject,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Name:          identity.Name,
		Picture:       identity.Picture,
	})
	if err != nil {
		h.fail(c, "resolve", err)
		return
	}

	tokens, _, err := h.sessions.CreateSession(requestContext(c), user, sessionMetadata(c))
	if err != nil {
		h.fail(c, "session", err)
		return
	}

	logger.WithModule("sso").Info("google sign-in",
		zap.String("user_id", user.ID),
		zap.Bool("created", created),
	)
	c.Redirect(http.StatusSeeOther, h.callbackURL(tokens, payload.ReturnTo))
}

// callbackURL hands the tokens to the web app in the fragment so they never
// reach server logs or Referer headers.
func (h *SSOHandler) callbackURL(tokens iauth.TokenPair, returnTo string) string {
	fragment := url.Values{}
	fragment.Set("access_token", tokens.AccessToken)
	fragment.Set("refresh_token", tokens.RefreshToken)
	if returnTo != "" && returnTo != "/" {
		fragment.Set("next", returnTo)
	}
	return h.baseURL + "/auth/callback#" + fragment.Encode()
}

func (h *SSOHandler) fail(c *gin.Context, stage string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("stage", stage))
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.WithModule("sso").Warn("google sign-in failed", fields...)
	c.Redirect(http.StatusSeeOther, h.baseURL+"/login?error=sso_failed")
}

func sanitizeRedirect(input, fallback string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fallback
	}
	if strings.ContainsAny(trimmed, "\r\n") {
		return fallback
	}
	// Relative paths only; "//host" would leave the app.
	if strings.HasPrefix(trimmed, "/") && !strings.HasPrefix(trimmed, "//") {
		return trimmed
	}
	return fallback
}
