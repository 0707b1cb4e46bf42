package app

import (
	"strings"
	"time"

	"github.com/charlesng35/adpulse/internal/auth"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:          c.JWT.Secret,
		PreviousSecrets: c.JWT.PreviousSecrets,
		Issuer:          c.JWT.Issuer,
		AccessTokenTTL:  ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.RefreshTTL
	if ttl <= 0 {
		ttl = auth.DefaultRefreshTokenTTL
	}

	length := c.Session.RefreshLength
	if length <= 0 {
		length = 48
	}

	return auth.SessionConfig{
		RefreshTokenTTL: ttl,
		RefreshLength:   length,
	}
}

// LocalAuthenticatorConfig converts AuthConfig into LocalAuthenticator parameters.
func (c AuthConfig) LocalAuthenticatorConfig() auth.LocalConfig {
	duration := c.Local.LockoutDuration
	if duration <= 0 {
		duration = defaultLockoutDuration
	}

	threshold := c.Local.LockoutThreshold
	if threshold <= 0 {
		threshold = defaultLockoutThreshold
	}

	return auth.LocalConfig{
		LockoutThreshold: threshold,
		LockoutDuration:  duration,
	}
}

// GoogleProviderConfig converts the google section into provider settings.
func (c AuthConfig) GoogleProviderConfig() auth.GoogleConfig {
	issuer := strings.TrimSpace(c.Google.Issuer)
	if issuer == "" {
		issuer = auth.DefaultGoogleIssuer
	}
	return auth.GoogleConfig{
		Issuer:       issuer,
		ClientID:     strings.TrimSpace(c.Google.ClientID),
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  strings.TrimSpace(c.Google.RedirectURL),
	}
}
