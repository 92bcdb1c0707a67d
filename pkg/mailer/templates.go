package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"strings"
	"time"

	"freezefit/pkg/locale"
)

const (
	TemplateWelcome              = "welcome"
	TemplateAppointmentBooked    = "appointment_booked"
	TemplateAppointmentConfirmed = "appointment_confirmed"
	TemplateAppointmentCancelled = "appointment_cancelled"
	TemplateAppointmentReminder  = "appointment_reminder"
	TemplateReviewReceived       = "review_received"
	TemplateWorkshopRegistered   = "workshop_registered"
	TemplateMessageReceived      = "message_received"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates renders the embedded e-mail templates. Every file defines a
// "subject" and a "body" template and shares the layout.
type Templates struct {
	sets    map[string]*template.Template
	baseURL string
}

func NewTemplates(baseURL string) (*Templates, error) {
	funcs := template.FuncMap{
		"localTime": formatLocal,
		"stars":     func(n int) string { return strings.Repeat("★", n) + strings.Repeat("☆", max(0, 5-n)) },
	}

	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, err
	}

	t := &Templates{sets: make(map[string]*template.Template), baseURL: strings.TrimSuffix(baseURL, "/")}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".html")
		if name == "layout" {
			continue
		}
		set, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", path.Join("templates", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to parse mail template %s: %w", name, err)
		}
		t.sets[name] = set
	}
	return t, nil
}

// Render returns subject and HTML body for the named template.
func (t *Templates) Render(name string, data map[string]any) (string, string, error) {
	set, ok := t.sets[name]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", name)
	}

	if data == nil {
		data = map[string]any{}
	}
	data["BaseURL"] = t.baseURL

	var subject, body bytes.Buffer
	if err := set.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("failed to render subject of %s: %w", name, err)
	}
	if err := set.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", "", fmt.Errorf("failed to render body of %s: %w", name, err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

// Names lists the available templates.
func (t *Templates) Names() []string {
	names := make([]string, 0, len(t.sets))
	for n := range t.sets {
		names = append(names, n)
	}
	return names
}

func formatLocal(ts time.Time, tz string) string {
	return ts.In(locale.LoadLocation(tz)).Format("02.01.2006 15:04")
}
