package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"freezefit/pkg/events"
	"freezefit/pkg/kafka"
	"freezefit/pkg/logger"
	"freezefit/pkg/mailer"
	"freezefit/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Mail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, m mailer.Mail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func newNotifier(t *testing.T) (*Notifier, *fakeMailer) {
	t.Helper()
	tmpl, err := mailer.NewTemplates("https://freezefit.example")
	require.NoError(t, err)
	m := &fakeMailer{}
	return New(tmpl, m, logger.Discard()), m
}

func message(t *testing.T, eventType string, payload any) kafka.Message {
	t.Helper()
	evt, err := events.New(eventType, "agg-1", payload)
	require.NoError(t, err)
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return kafka.Message{Key: "agg-1", Value: raw, Headers: map[string]string{kafka.HeaderEventType: eventType}}
}

var (
	customer = events.Recipient{UserID: "c-1", Email: "jonas@example.com", Name: "Jonas"}
	owner    = events.Recipient{UserID: "o-1", Email: "mia@example.com", Name: "Mia"}
)

func appointment(status string) events.AppointmentPayload {
	return events.AppointmentPayload{
		AppointmentID: "a-1",
		Customer:      customer,
		Owner:         owner,
		InstituteID:   "i-1",
		InstituteName: "Kältekammer Mitte",
		ServiceName:   "Ganzkörper -110°C",
		StartTime:     time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Timezone:      "Europe/Berlin",
		Status:        status,
		Price:         "39.00",
		Currency:      "EUR",
	}
}

func TestHandle_Routing(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		payload   any
		want      map[string]string // recipient email -> template
	}{
		{
			name:      "welcome",
			eventType: events.TypeUserRegistered,
			payload:   events.UserRegistered{User: customer, Role: "customer"},
			want:      map[string]string{customer.Email: mailer.TemplateWelcome},
		},
		{
			name:      "booked goes to owner",
			eventType: events.TypeAppointmentBooked,
			payload:   appointment(model.StatusPending),
			want:      map[string]string{owner.Email: mailer.TemplateAppointmentBooked},
		},
		{
			name:      "confirmed goes to customer",
			eventType: events.TypeAppointmentStatusChanged,
			payload:   appointment(model.StatusConfirmed),
			want:      map[string]string{customer.Email: mailer.TemplateAppointmentConfirmed},
		},
		{
			name:      "cancelled goes to both",
			eventType: events.TypeAppointmentStatusChanged,
			payload:   appointment(model.StatusCancelled),
			want: map[string]string{
				customer.Email: mailer.TemplateAppointmentCancelled,
				owner.Email:    mailer.TemplateAppointmentCancelled,
			},
		},
		{
			name:      "completed sends nothing",
			eventType: events.TypeAppointmentStatusChanged,
			payload:   appointment(model.StatusCompleted),
			want:      map[string]string{},
		},
		{
			name:      "reminder goes to customer",
			eventType: events.TypeAppointmentReminder,
			payload:   appointment(model.StatusConfirmed),
			want:      map[string]string{customer.Email: mailer.TemplateAppointmentReminder},
		},
		{
			name:      "review goes to owner",
			eventType: events.TypeReviewCreated,
			payload:   events.ReviewCreated{ReviewID: "r-1", InstituteID: "i-1", InstituteName: "Kältekammer Mitte", Owner: owner, CustomerName: "Jonas", Rating: 5, Title: "Top"},
			want:      map[string]string{owner.Email: mailer.TemplateReviewReceived},
		},
		{
			name:      "workshop registration goes to customer",
			eventType: events.TypeWorkshopRegistered,
			payload:   events.WorkshopRegistered{WorkshopID: "w-1", Title: "Atemtechnik", InstituteName: "Kältekammer Mitte", StartsAt: time.Now().Add(48 * time.Hour), Timezone: "Europe/Berlin", Customer: customer},
			want:      map[string]string{customer.Email: mailer.TemplateWorkshopRegistered},
		},
		{
			name:      "message goes to recipient",
			eventType: events.TypeMessageSent,
			payload:   events.MessageSent{MessageID: "m-1", InstituteID: "i-1", InstituteName: "Kältekammer Mitte", CustomerID: "c-1", SenderName: "Jonas", Recipient: owner, Preview: "Hallo"},
			want:      map[string]string{owner.Email: mailer.TemplateMessageReceived},
		},
		{
			name:      "unknown type is ignored",
			eventType: "institute.renamed",
			payload:   map[string]string{"id": "i-1"},
			want:      map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, m := newNotifier(t)

			require.NoError(t, n.Handle(context.Background(), message(t, tt.eventType, tt.payload)))

			got := map[string]string{}
			for _, mail := range m.sent {
				got[mail.To] = mail.Template
				assert.NotEmpty(t, mail.Subject)
				assert.Contains(t, mail.HTML, "https://freezefit.example")
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandle_RecipientNameIsRendered(t *testing.T) {
	n, m := newNotifier(t)

	require.NoError(t, n.Handle(context.Background(), message(t, events.TypeAppointmentReminder, appointment(model.StatusConfirmed))))

	require.Len(t, m.sent, 1)
	assert.Equal(t, "Jonas", m.sent[0].ToName)
	assert.Contains(t, m.sent[0].HTML, "Jonas")
}

func TestHandle_MalformedEnvelopeIsPermanent(t *testing.T) {
	n, _ := newNotifier(t)

	err := n.Handle(context.Background(), kafka.Message{Value: []byte("{not json")})

	require.Error(t, err)
	assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
	assert.False(t, kafka.ShouldRetry(err, 0, 3))
}

func TestHandle_MalformedPayloadIsPermanent(t *testing.T) {
	n, _ := newNotifier(t)

	msg := message(t, events.TypeReviewCreated, map[string]any{"rating": "five"})
	err := n.Handle(context.Background(), msg)

	require.Error(t, err)
	assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
}

func TestHandle_MailerFailureIsTransient(t *testing.T) {
	n, m := newNotifier(t)
	m.err = errors.New("dial tcp: connection refused")

	err := n.Handle(context.Background(), message(t, events.TypeAppointmentBooked, appointment(model.StatusPending)))

	require.Error(t, err)
	assert.Equal(t, kafka.ErrorTypeTransient, kafka.ClassifyError(err))
	assert.True(t, kafka.ShouldRetry(err, 0, 3))
}

func TestHandle_MissingAddressIsSkipped(t *testing.T) {
	n, m := newNotifier(t)
	payload := appointment(model.StatusPending)
	payload.Owner.Email = ""

	require.NoError(t, n.Handle(context.Background(), message(t, events.TypeAppointmentBooked, payload)))
	assert.Empty(t, m.sent)
}
