package notifier

import (
	"context"
	"errors"
	"fmt"

	"freezefit/pkg/events"
	"freezefit/pkg/kafka"
	"freezefit/pkg/logger"
	"freezefit/pkg/mailer"
	"freezefit/pkg/model"
)

type renderer interface {
	Render(name string, data map[string]any) (string, string, error)
}

// delivery is one mail derived from an event.
type delivery struct {
	template  string
	recipient events.Recipient
	data      map[string]any
}

// Notifier turns domain events from the events topic into transactional
// mails.
type Notifier struct {
	templates renderer
	mailer    mailer.Mailer
	log       *logger.Logger
}

func New(templates renderer, m mailer.Mailer, log *logger.Logger) *Notifier {
	return &Notifier{templates: templates, mailer: m, log: log}
}

// Handle is a kafka.MessageHandler. Malformed events are permanent failures
// and go to the DLQ; mail transport failures are retried.
func (n *Notifier) Handle(ctx context.Context, msg kafka.Message) error {
	var evt events.Event
	if err := msg.Decode(&evt); err != nil {
		return kafka.NewPermanentError("malformed event envelope", err)
	}

	deliveries, err := n.deliveriesFor(evt)
	if err != nil {
		return kafka.NewPermanentError(fmt.Sprintf("malformed %s payload", evt.Type), err)
	}
	if len(deliveries) == 0 {
		n.log.Debug("No mail for event", "event_type", evt.Type, "event_id", evt.ID)
		return nil
	}

	for _, d := range deliveries {
		if err := n.send(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, d delivery) error {
	if d.recipient.Email == "" {
		n.log.Warn("Skipping mail without recipient address", "template", d.template, "user_id", d.recipient.UserID)
		return nil
	}

	d.data["RecipientName"] = d.recipient.Name
	subject, body, err := n.templates.Render(d.template, d.data)
	if err != nil {
		return kafka.NewPermanentError("failed to render mail", err).WithDetail("template", d.template)
	}

	err = n.mailer.Send(ctx, mailer.Mail{
		To:       d.recipient.Email,
		ToName:   d.recipient.Name,
		Subject:  subject,
		HTML:     body,
		Template: d.template,
	})
	if err != nil {
		if errors.Is(err, mailer.ErrNoRecipient) {
			return kafka.NewPermanentError("mail has no recipient", err)
		}
		return kafka.NewTransientError("failed to send mail", err).WithDetail("template", d.template)
	}
	return nil
}

func (n *Notifier) deliveriesFor(evt events.Event) ([]delivery, error) {
	switch evt.Type {
	case events.TypeUserRegistered:
		var p events.UserRegistered
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		return []delivery{{
			template:  mailer.TemplateWelcome,
			recipient: p.User,
			data:      map[string]any{"Name": p.User.Name, "Role": p.Role},
		}}, nil

	case events.TypeAppointmentBooked, events.TypeAppointmentStatusChanged, events.TypeAppointmentReminder:
		var p events.AppointmentPayload
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		return appointmentDeliveries(evt.Type, &p), nil

	case events.TypeReviewCreated:
		var p events.ReviewCreated
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		return []delivery{{
			template:  mailer.TemplateReviewReceived,
			recipient: p.Owner,
			data: map[string]any{
				"CustomerName":  p.CustomerName,
				"InstituteName": p.InstituteName,
				"InstituteID":   p.InstituteID,
				"Rating":        p.Rating,
				"Title":         p.Title,
			},
		}}, nil

	case events.TypeWorkshopRegistered:
		var p events.WorkshopRegistered
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		return []delivery{{
			template:  mailer.TemplateWorkshopRegistered,
			recipient: p.Customer,
			data: map[string]any{
				"Title":         p.Title,
				"InstituteName": p.InstituteName,
				"StartsAt":      p.StartsAt,
				"Timezone":      p.Timezone,
			},
		}}, nil

	case events.TypeMessageSent:
		var p events.MessageSent
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		return []delivery{{
			template:  mailer.TemplateMessageReceived,
			recipient: p.Recipient,
			data: map[string]any{
				"SenderName":    p.SenderName,
				"InstituteName": p.InstituteName,
				"InstituteID":   p.InstituteID,
				"CustomerID":    p.CustomerID,
				"Preview":       p.Preview,
			},
		}}, nil
	}
	return nil, nil
}

func appointmentDeliveries(eventType string, p *events.AppointmentPayload) []delivery {
	data := func() map[string]any {
		return map[string]any{
			"AppointmentID": p.AppointmentID,
			"InstituteID":   p.InstituteID,
			"InstituteName": p.InstituteName,
			"ServiceName":   p.ServiceName,
			"StartTime":     p.StartTime,
			"Timezone":      p.Timezone,
			"Price":         p.Price,
			"Currency":      p.Currency,
			"Reason":        p.Reason,
			"CustomerName":  p.Customer.Name,
		}
	}

	switch eventType {
	case events.TypeAppointmentBooked:
		return []delivery{{template: mailer.TemplateAppointmentBooked, recipient: p.Owner, data: data()}}
	case events.TypeAppointmentReminder:
		return []delivery{{template: mailer.TemplateAppointmentReminder, recipient: p.Customer, data: data()}}
	}

	switch p.Status {
	case model.StatusConfirmed:
		return []delivery{{template: mailer.TemplateAppointmentConfirmed, recipient: p.Customer, data: data()}}
	case model.StatusCancelled:
		return []delivery{
			{template: mailer.TemplateAppointmentCancelled, recipient: p.Customer, data: data()},
			{template: mailer.TemplateAppointmentCancelled, recipient: p.Owner, data: data()},
		}
	}
	return nil
}
