package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adpulse/internal/testutil"
)

func TestJWTServiceRoundTrip(t *testing.T) {
	clock := testutil.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	svc, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "adpulse", Clock: clock.Now})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "u1", Email: " Ana@Example.com ", SessionID: "s1"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "ana@example.com", claims.Email)
	require.Equal(t, "s1", claims.SessionID)
	require.Equal(t, "adpulse", claims.Issuer)
	require.WithinDuration(t, clock.Now().Add(DefaultAccessTokenTTL), claims.ExpiresAt.Time, time.Second)
}

func TestJWTServiceExpiredTokenIsDistinguishable(t *testing.T) {
	clock := testutil.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	svc, err := NewJWTService(JWTConfig{Secret: "secret", AccessTokenTTL: time.Minute, Clock: clock.Now})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "u1"})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTServiceRejectsForeignSignatureAndIssuer(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "adpulse"})
	require.NoError(t, err)
	other, err := NewJWTService(JWTConfig{Secret: "other", Issuer: "adpulse"})
	require.NoError(t, err)
	wrongIssuer, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "someone-else"})
	require.NoError(t, err)

	token, err := other.GenerateAccessToken(AccessTokenInput{UserID: "u1"})
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrTokenInvalid)

	token, err = wrongIssuer.GenerateAccessToken(AccessTokenInput{UserID: "u1"})
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(token)
	require.ErrorContains(t, err, "invalid issuer")

	_, err = svc.ValidateAccessToken("")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTServiceAcceptsPreviousSecrets(t *testing.T) {
	old, err := NewJWTService(JWTConfig{Secret: "2023-secret"})
	require.NoError(t, err)
	rotated, err := NewJWTService(JWTConfig{Secret: "2024-secret", PreviousSecrets: []string{"2023-secret", ""}})
	require.NoError(t, err)

	legacy, err := old.GenerateAccessToken(AccessTokenInput{UserID: "u1"})
	require.NoError(t, err)
	claims, err := rotated.ValidateAccessToken(legacy)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)

	fresh, err := rotated.GenerateAccessToken(AccessTokenInput{UserID: "u1"})
	require.NoError(t, err)
	_, err = old.ValidateAccessToken(fresh)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTServiceRejectsUnsignedAlgorithms(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(unsigned)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)

	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)
	require.Equal(t, DefaultAccessTokenTTL, svc.TTL())
}
