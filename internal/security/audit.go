package security

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/app"
	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/pkg/crypto"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed outright.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// Auditor evaluates the deployment's credential and tenancy controls at startup.
type Auditor struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewAuditor constructs the auditor. Both dependencies are optional; missing
// inputs degrade specific checks to warnings.
func NewAuditor(db *gorm.DB, cfg *app.Config) *Auditor {
	return &Auditor{db: db, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results (primarily for testing).
func (a *Auditor) WithClock(clock func() time.Time) {
	if clock != nil {
		a.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (a *Auditor) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		a.checkTeamOwners(ctx),
		a.checkJWTSecret(),
		a.checkPasswordCost(),
		a.checkSessionTTL(),
		a.checkBaseURL(),
		a.checkMailTransport(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: a.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

var configMissing = Check{
	Status:      StatusWarn,
	Message:     "Configuration not loaded.",
	Remediation: "Load configuration before running the security audit.",
}

func missingConfig(id string) Check {
	check := configMissing
	check.ID = id
	return check
}

// checkTeamOwners flags teams nobody can administer: every team must keep an ACTIVE OWNER.
func (a *Auditor) checkTeamOwners(ctx context.Context) Check {
	const id = "team_owner_coverage"
	if a.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable; unable to confirm team ownership.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var orphaned int64
	err := a.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("NOT EXISTS (SELECT 1 FROM team_members tm WHERE tm.team_id = teams.id AND tm.role = ? AND tm.status = ?)",
			models.TeamRoleOwner, models.MemberStatusActive).
		Count(&orphaned).Error
	if err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not verify team owners: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if orphaned > 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("%d team(s) have no active owner.", orphaned),
			Remediation: "Promote a member of each affected team to OWNER.",
			Details:     map[string]any{"teams": orphaned},
		}
	}

	return Check{ID: id, Status: StatusPass, Message: "Every team has an active owner."}
}

func (a *Auditor) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if a.cfg == nil {
		return missingConfig(id)
	}

	length := len(strings.TrimSpace(a.cfg.Auth.JWT.Secret))
	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide a cryptographically secure signing secret (>= 32 bytes).",
		}
	case length < 32:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < 48:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of ADPULSE_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (a *Auditor) checkPasswordCost() Check {
	const id = "password_hash_cost"
	if a.cfg == nil {
		return missingConfig(id)
	}

	cost := a.cfg.Credentials.BcryptCost
	switch {
	case cost < crypto.MinPasswordCost:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("bcrypt cost %d is below the minimum of %d.", cost, crypto.MinPasswordCost),
			Remediation: "Raise credentials.bcrypt_cost.",
		}
	case cost < crypto.DefaultPasswordCost:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("bcrypt cost %d is below the recommended %d.", cost, crypto.DefaultPasswordCost),
			Remediation: "Raise credentials.bcrypt_cost once login latency allows it.",
			Details:     map[string]any{"cost": cost},
		}
	default:
		return Check{ID: id, Status: StatusPass, Message: fmt.Sprintf("bcrypt cost is %d.", cost), Details: map[string]any{"cost": cost}}
	}
}

func (a *Auditor) checkSessionTTL() Check {
	const id = "session_refresh_ttl"
	if a.cfg == nil {
		return missingConfig(id)
	}

	ttl := a.cfg.Auth.Session.RefreshTTL
	if ttl <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Refresh token TTL is not configured; using default duration.",
			Remediation: "Set ADPULSE_AUTH_SESSION_REFRESH_TOKEN_TTL to control session lifetime.",
		}
	}

	const maxRecommended = 30 * 24 * time.Hour
	if ttl > maxRecommended {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Refresh token TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommended),
			Remediation: "Reduce refresh token TTL to 30 days or lower.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Refresh token TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

// checkBaseURL guards the emailed links: reset and invite tokens travel in the query string.
func (a *Auditor) checkBaseURL() Check {
	const id = "base_url_transport"
	if a.cfg == nil {
		return missingConfig(id)
	}

	parsed, err := url.Parse(strings.TrimSpace(a.cfg.Server.BaseURL))
	if err != nil || parsed.Host == "" {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "server.base_url is not an absolute URL.",
			Remediation: "Set server.base_url to the public origin of the web app.",
		}
	}

	switch {
	case parsed.Scheme == "https":
		return Check{ID: id, Status: StatusPass, Message: "Emailed links use HTTPS."}
	case isLoopback(parsed.Hostname()):
		return Check{
			ID:      id,
			Status:  StatusWarn,
			Message: "Emailed links use plain HTTP on a loopback host.",
			Details: map[string]any{"base_url": parsed.String()},
		}
	default:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Emailed links carry tokens over plain HTTP.",
			Remediation: "Serve the web app over HTTPS and update server.base_url.",
			Details:     map[string]any{"base_url": parsed.String()},
		}
	}
}

func (a *Auditor) checkMailTransport() Check {
	const id = "mail_transport"
	if a.cfg == nil {
		return missingConfig(id)
	}

	transport := a.cfg.Email.TransportName()
	if transport == app.TransportDisabled {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Email delivery is disabled; invitation and reset links are only logged.",
			Remediation: "Configure email.transport as smtp or kafka.",
		}
	}
	if transport == app.TransportSMTP && !a.cfg.Email.SMTP.UseTLS {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "SMTP transport does not use implicit TLS.",
			Remediation: "Enable email.smtp.use_tls or confirm the server enforces STARTTLS.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: fmt.Sprintf("Email delivery via %s.", transport)}
}

func isLoopback(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(strings.ToLower(host), ".localhost")
}
