package middleware

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/adpulse/internal/auth"
	"github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxEmailKey     = "userEmail"
	CtxSessionIDKey = "sessionID"
)

// ErrTokenExpired tells the client to use its refresh token rather than sign in again.
var ErrTokenExpired = errors.New("TOKEN_EXPIRED", "Access token expired", http.StatusUnauthorized)

// Auth resolves the bearer access token into the request identity. Requests
// without a valid token stop here with 401 and an RFC 6750 challenge.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			reject(c, errors.ErrUnauthorized, `Bearer`)
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		switch {
		case stderrors.Is(err, iauth.ErrTokenExpired):
			reject(c, ErrTokenExpired, `Bearer error="invalid_token", error_description="token expired"`)
			return
		case err != nil:
			reject(c, errors.ErrUnauthorized, `Bearer error="invalid_token"`)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxEmailKey, claims.Email)
		if claims.SessionID != "" {
			c.Set(CtxSessionIDKey, claims.SessionID)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func reject(c *gin.Context, appErr *errors.AppError, challenge string) {
	c.Header("WWW-Authenticate", challenge)
	response.Error(c, appErr)
	c.Abort()
}
