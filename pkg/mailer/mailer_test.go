package mailer

import (
	"context"
	"strings"
	"testing"
	"time"

	"freezefit/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates_RenderAll(t *testing.T) {
	tmpl, err := NewTemplates("https://freezefit.example/")
	require.NoError(t, err)

	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	data := map[string]any{
		"Name":          "Mia",
		"Role":          "provider",
		"RecipientName": "Mia",
		"InstituteName": "Kältekammer Mitte",
		"InstituteID":   "i-1",
		"ServiceName":   "Ganzkörper -110°C",
		"AppointmentID": "a-1",
		"StartTime":     start,
		"StartsAt":      start,
		"Timezone":      "Europe/Berlin",
		"Price":         "39.00",
		"Currency":      "EUR",
		"Reason":        "Krankheit",
		"CustomerName":  "Jonas",
		"Rating":        4,
		"Title":         "Super",
		"SenderName":    "Jonas",
		"Preview":       "Hallo!",
	}

	names := []string{
		TemplateWelcome,
		TemplateAppointmentBooked,
		TemplateAppointmentConfirmed,
		TemplateAppointmentCancelled,
		TemplateAppointmentReminder,
		TemplateReviewReceived,
		TemplateWorkshopRegistered,
		TemplateMessageReceived,
	}
	assert.ElementsMatch(t, names, tmpl.Names())

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			subject, body, err := tmpl.Render(name, data)
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.NotContains(t, subject, "\n")
			assert.Contains(t, body, "<!DOCTYPE html>")
			assert.Contains(t, body, "https://freezefit.example")
		})
	}
}

func TestTemplates_LocalTime(t *testing.T) {
	tmpl, err := NewTemplates("https://freezefit.example")
	require.NoError(t, err)

	subject, _, err := tmpl.Render(TemplateAppointmentReminder, map[string]any{
		"ServiceName": "Ganzkörper",
		"StartTime":   time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
		"Timezone":    "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.Equal(t, "Erinnerung: Ganzkörper am 10.01.2026 09:00", subject)
}

func TestTemplates_EscapesUserContent(t *testing.T) {
	tmpl, err := NewTemplates("https://freezefit.example")
	require.NoError(t, err)

	_, body, err := tmpl.Render(TemplateMessageReceived, map[string]any{
		"SenderName": "Eve",
		"Preview":    "<script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.False(t, strings.Contains(body, "<script>"))
}

func TestTemplates_Unknown(t *testing.T) {
	tmpl, err := NewTemplates("")
	require.NoError(t, err)

	_, _, err = tmpl.Render("does_not_exist", nil)
	assert.Error(t, err)
}

func TestSMTPMailer_BuildMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "noreply@freezefit.example"}, logger.Discard())

	_, err := m.buildMessage(Mail{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipient)

	msg, err := m.buildMessage(Mail{To: "mia@example.com", ToName: "Mia", Subject: "Hallo", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hallo"}, msg.GetGenHeader("Subject"))
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(logger.Discard())

	assert.NoError(t, m.Send(context.Background(), Mail{To: "a@b.de", Template: TemplateWelcome}))
	assert.ErrorIs(t, m.Send(context.Background(), Mail{}), ErrNoRecipient)
}
