package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names understood by Render.
const (
	TemplatePasswordReset = "password_reset"
	TemplateTeamInvite    = "team_invite"
	TemplateVerifyEmail   = "verify_email"
)

// PasswordResetData feeds the password reset template.
type PasswordResetData struct {
	Link      string
	ExpiresIn time.Duration
}

// TeamInviteData feeds the invitation template.
type TeamInviteData struct {
	TeamName    string
	InviterName string
	Role        string
	Link        string
	ExpiresIn   time.Duration
}

// VerifyEmailData feeds the address confirmation template.
type VerifyEmailData struct {
	Name      string
	Link      string
	ExpiresIn time.Duration
}

// TemplateData is implemented by the typed payloads above.
type TemplateData interface {
	templateName() string
	fields() map[string]any
}

func (d PasswordResetData) templateName() string { return TemplatePasswordReset }
func (d PasswordResetData) fields() map[string]any {
	return map[string]any{"Link": d.Link, "ExpiresIn": humanizeDuration(d.ExpiresIn)}
}

func (d TeamInviteData) templateName() string { return TemplateTeamInvite }
func (d TeamInviteData) fields() map[string]any {
	return map[string]any{
		"TeamName":    d.TeamName,
		"InviterName": d.InviterName,
		"Role":        d.Role,
		"Link":        d.Link,
		"ExpiresIn":   humanizeDuration(d.ExpiresIn),
	}
}

func (d VerifyEmailData) templateName() string { return TemplateVerifyEmail }
func (d VerifyEmailData) fields() map[string]any {
	return map[string]any{"Name": d.Name, "Link": d.Link, "ExpiresIn": humanizeDuration(d.ExpiresIn)}
}

var (
	templatesOnce sync.Once
	templates     map[string]*template.Template
	templatesErr  error
)

func loadTemplates() (map[string]*template.Template, error) {
	templatesOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, name := range []string{TemplatePasswordReset, TemplateTeamInvite, TemplateVerifyEmail} {
			tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
			if err != nil {
				templatesErr = fmt.Errorf("mail: parse template %s: %w", name, err)
				return
			}
			templates[name] = tmpl
		}
	})
	return templates, templatesErr
}

// Render executes the template matching data inside the shared layout.
func Render(subject string, data TemplateData) (string, error) {
	set, err := loadTemplates()
	if err != nil {
		return "", err
	}
	name := data.templateName()
	tmpl, ok := set[name]
	if !ok {
		return "", fmt.Errorf("mail: unknown template %q", name)
	}

	view := data.fields()
	view["Subject"] = subject

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", view); err != nil {
		return "", fmt.Errorf("mail: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Compose renders data and returns a ready to send message for a single recipient.
func Compose(to, subject string, data TemplateData) (Message, error) {
	body, err := Render(subject, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: subject, HTMLBody: body}, nil
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
