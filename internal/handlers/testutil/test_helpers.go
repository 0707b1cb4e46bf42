package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/api"
	"github.com/charlesng35/adpulse/internal/app"
	iauth "github.com/charlesng35/adpulse/internal/auth"
	"github.com/charlesng35/adpulse/internal/cache"
	sharedtestutil "github.com/charlesng35/adpulse/internal/database/testutil"
	"github.com/charlesng35/adpulse/internal/middleware"
	"github.com/charlesng35/adpulse/internal/monitoring"
	"github.com/charlesng35/adpulse/internal/monitoring/checks"
	"github.com/charlesng35/adpulse/pkg/crypto"
	"github.com/charlesng35/adpulse/pkg/mail"
	"github.com/charlesng35/adpulse/pkg/response"
)

// BaseURL is the public origin links in captured emails point at.
const BaseURL = "https://app.adpulse.test"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Services *api.Services
	Mailer   *CaptureMailer
	Config   *app.Config
}

// EnvOption adjusts the dependencies handed to the router.
type EnvOption func(*api.Dependencies)

// WithIdentityProvider enables the Google sign-in routes backed by provider.
func WithIdentityProvider(provider iauth.IdentityProvider) EnvOption {
	return func(deps *api.Dependencies) {
		codec, err := iauth.NewStateCodec([]byte("0123456789abcdef0123456789abcdef"), 10*time.Minute, nil)
		if err != nil {
			panic(err)
		}
		deps.Identity = provider
		deps.StateCodec = codec
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t)

	cfg := &app.Config{
		Server: app.ServerConfig{BaseURL: BaseURL},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Session: app.SessionSettings{
				RefreshTTL:    24 * time.Hour,
				RefreshLength: 48,
			},
		},
		Credentials: app.CredentialsConfig{
			ResetTTL:        time.Hour,
			VerificationTTL: 24 * time.Hour,
			BcryptCost:      crypto.MinPasswordCost,
		},
		Invites: app.InvitesConfig{TTL: 7 * 24 * time.Hour},
		Email:   app.EmailConfig{Transport: app.TransportDisabled},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	store := cache.NewDatabaseStore(db)
	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Cache = iauth.NewSessionCache(store)
	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, sessionCfg)
	require.NoError(t, err)

	mailer := &CaptureMailer{}
	svc, err := api.NewServices(db, cfg, sessionSvc, mailer, store)
	require.NoError(t, err)

	mon, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	mon.Health().RegisterReadiness(checks.Database(db, time.Second))
	mon.Health().RegisterReadiness(checks.Cache(store, "database", time.Second))

	deps := api.Dependencies{
		Config:     cfg,
		JWT:        jwtSvc,
		Services:   svc,
		RateStore:  middleware.NewMemoryRateStore(),
		Monitoring: mon,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	router, err := api.NewRouter(deps)
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Services: svc,
		Mailer:   mailer,
		Config:   cfg,
	}
}

// CaptureMailer records outbound messages so tests can follow emailed links.
type CaptureMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	Err      error
}

func (m *CaptureMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of every message captured so far.
func (m *CaptureMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

var linkToken = regexp.MustCompile(`\?token=([0-9a-f]{64})`)

// TokenFor extracts the token from the newest message sent to recipient whose
// link points at path (for example "/register" or "/reset-password").
func (m *CaptureMailer) TokenFor(t *testing.T, recipient, path string) string {
	t.Helper()
	messages := m.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if len(msg.To) == 0 || !strings.EqualFold(msg.To[0], recipient) {
			continue
		}
		idx := strings.Index(msg.HTMLBody, path+"?token=")
		if idx < 0 {
			continue
		}
		match := linkToken.FindStringSubmatch(msg.HTMLBody[idx:])
		require.Len(t, match, 2)
		return match[1]
	}
	t.Fatalf("no %s link mailed to %s", path, recipient)
	return ""
}

// TokenPair mirrors the token payload returned by auth endpoints.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// UserPayload captures the user fields returned from auth endpoints.
type UserPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	HasPassword   bool   `json:"has_password"`
}

// SessionResult bundles the JSON response from signup and login.
type SessionResult struct {
	Tokens TokenPair   `json:"tokens"`
	User   UserPayload `json:"user"`
}

// Signup registers a local account and returns the issued session.
func (e *Env) Signup(name, email, password string) SessionResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var result SessionResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.Tokens.AccessToken)
	return result
}

// Login authenticates using email and password and returns the issued session.
func (e *Env) Login(email, password string) SessionResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result SessionResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Tokens.AccessToken)
	require.NotEmpty(e.T, result.Tokens.RefreshToken)
	return result
}

// TeamPayload is the subset of team fields handler tests inspect.
type TeamPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PersonalTeam returns the team provisioned for a freshly signed-up user.
func (e *Env) PersonalTeam(token string) TeamPayload {
	e.T.Helper()

	w := e.Request(http.MethodGet, "/api/teams", nil, token)
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var teams []TeamPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &teams)
	require.NotEmpty(e.T, teams)
	return teams[0]
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	// httptest requests carry a RemoteAddr, so ClientIP resolves like it does in production.
	req := httptest.NewRequest(method, path, buf)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
