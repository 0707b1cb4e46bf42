package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/adpulse/internal/auth"
	"github.com/charlesng35/adpulse/internal/handlers/testutil"
	"github.com/charlesng35/adpulse/internal/models"
)

type fakeIdentityProvider struct {
	identity  *iauth.Identity
	err       error
	nonce     string
	challenge string
	verifier  string
}

func (f *fakeIdentityProvider) AuthCodeURL(state, nonce, challenge string) string {
	f.nonce = nonce
	f.challenge = challenge
	return "https://idp.test/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeIdentityProvider) Exchange(_ context.Context, code, verifier, nonce string) (*iauth.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if code != "good-code" || nonce != f.nonce {
		return nil, errors.New("exchange rejected")
	}
	f.verifier = verifier
	return f.identity, nil
}

func beginSSO(t *testing.T, env *testutil.Env, query string) string {
	t.Helper()
	resp := env.Request(http.MethodGet, "/api/auth/google/login"+query, nil, "")
	require.Equal(t, http.StatusFound, resp.Code, resp.Body.String())

	location, err := url.Parse(resp.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.test", location.Host)
	return location.Query().Get("state")
}

func TestSSOHandler_CallbackCreatesUserAndSession(t *testing.T) {
	provider := &fakeIdentityProvider{identity: &iauth.Identity{
		Subject: "g-123", Email: "Gus@Acme.com", EmailVerified: true, Name: "Gus",
	}}
	env := testutil.NewEnv(t, testutil.WithIdentityProvider(provider))

	state := beginSSO(t, env, "?redirect=/teams")
	require.NotEmpty(t, state)
	require.NotEmpty(t, provider.challenge)

	resp := env.Request(http.MethodGet, "/api/auth/google/callback?code=good-code&state="+url.QueryEscape(state), nil, "")
	require.Equal(t, http.StatusSeeOther, resp.Code, resp.Body.String())
	require.NotEmpty(t, provider.verifier)

	location := resp.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, testutil.BaseURL+"/auth/callback#"), location)
	fragment, err := url.ParseQuery(location[strings.Index(location, "#")+1:])
	require.NoError(t, err)
	require.Equal(t, "/teams", fragment.Get("next"))

	access := fragment.Get("access_token")
	require.NotEmpty(t, access)
	me := env.Request(http.MethodGet, "/api/auth/me", nil, access)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())

	var user models.User
	require.NoError(t, env.DB.Take(&user, "email = ?", "gus@acme.com").Error)
	require.NotNil(t, user.EmailVerified)
	require.False(t, user.HasPassword())
}

func TestSSOHandler_FailuresRedirectToLogin(t *testing.T) {
	provider := &fakeIdentityProvider{identity: &iauth.Identity{Email: "gus@acme.com"}}
	env := testutil.NewEnv(t, testutil.WithIdentityProvider(provider))
	failure := testutil.BaseURL + "/login?error=sso_failed"

	denied := env.Request(http.MethodGet, "/api/auth/google/callback?error=access_denied", nil, "")
	require.Equal(t, http.StatusSeeOther, denied.Code)
	require.Equal(t, failure, denied.Header().Get("Location"))

	tampered := env.Request(http.MethodGet, "/api/auth/google/callback?code=good-code&state=forged", nil, "")
	require.Equal(t, failure, tampered.Header().Get("Location"))

	// Unverified emails are refused.
	state := beginSSO(t, env, "")
	unverified := env.Request(http.MethodGet, "/api/auth/google/callback?code=good-code&state="+url.QueryEscape(state), nil, "")
	require.Equal(t, failure, unverified.Header().Get("Location"))

	var count int64
	require.NoError(t, env.DB.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSSOHandler_RejectsOpenRedirects(t *testing.T) {
	provider := &fakeIdentityProvider{identity: &iauth.Identity{Email: "gus@acme.com", EmailVerified: true, Name: "Gus"}}
	env := testutil.NewEnv(t, testutil.WithIdentityProvider(provider))

	state := beginSSO(t, env, "?redirect="+url.QueryEscape("//evil.test"))
	resp := env.Request(http.MethodGet, "/api/auth/google/callback?code=good-code&state="+url.QueryEscape(state), nil, "")
	location := resp.Header().Get("Location")
	require.NotContains(t, location, "evil.test")
}

func TestSSORoutesAbsentWithoutProvider(t *testing.T) {
	env := testutil.NewEnv(t)
	resp := env.Request(http.MethodGet, "/api/auth/google/login", nil, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}
