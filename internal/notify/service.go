// Package notify turns committed outbox events into notification rows and
// best-effort emails for the affected patient and doctor.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docktorek/docktorek-api/internal/events"
	"github.com/docktorek/docktorek-api/internal/profile"
	"github.com/docktorek/docktorek-api/pkg/logging"
)

var notifyTracer = otel.Tracer("docktorek.internal.notify")

// consumerName identifies this handler in the processed-events ledger.
const consumerName = "notify"

// Directory resolves recipient names and addresses.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*profile.Doctor, error)
}

// Deduper records event ids this consumer has handled, keeping redelivered
// outbox entries idempotent.
type Deduper interface {
	AlreadyProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

// Service consumes scheduling events. The notification row is the durable
// outcome: a failed insert fails the delivery so the outbox retries, while a
// failed email is only logged.
type Service struct {
	store     Store
	directory Directory
	email     EmailSender
	dedupe    Deduper
	logger    *logging.Logger
}

// NewService creates a notification service. Directory, email and dedupe are
// optional; without a directory emails are skipped entirely.
func NewService(store Store, logger *logging.Logger) *Service {
	if store == nil {
		panic("notify: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, logger: logger.WithComponent("notify")}
}

// WithDirectory attaches recipient lookups.
func (s *Service) WithDirectory(d Directory) *Service {
	s.directory = d
	return s
}

// WithEmail attaches the email sender.
func (s *Service) WithEmail(e EmailSender) *Service {
	s.email = e
	return s
}

// WithDeduper attaches the processed-events ledger.
func (s *Service) WithDeduper(d Deduper) *Service {
	s.dedupe = d
	return s
}

// Handle processes one outbox entry.
func (s *Service) Handle(ctx context.Context, entry events.Entry) error {
	ctx, span := notifyTracer.Start(ctx, "notify.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("docktorek.event_id", entry.ID.String()),
		attribute.String("docktorek.event_type", entry.Type),
	)

	if s.dedupe != nil {
		seen, err := s.dedupe.AlreadyProcessed(ctx, consumerName, entry.ID.String())
		if err != nil {
			span.RecordError(err)
			return err
		}
		if seen {
			s.logger.Debug("event already processed", "event_id", entry.ID)
			return nil
		}
	}

	var evt events.AppointmentEvent
	if err := json.Unmarshal(entry.Payload, &evt); err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: decode event %s: %w", entry.ID, err)
	}

	notifications, ok := s.compose(entry.Type, evt)
	if !ok {
		s.logger.Warn("unknown event type, skipping", "type", entry.Type, "event_id", entry.ID)
		return s.markProcessed(ctx, entry)
	}

	for _, n := range notifications {
		if err := s.store.Insert(ctx, n); err != nil {
			span.RecordError(err)
			return err
		}
		s.sendEmail(ctx, n)
	}

	return s.markProcessed(ctx, entry)
}

func (s *Service) markProcessed(ctx context.Context, entry events.Entry) error {
	if s.dedupe == nil {
		return nil
	}
	if _, err := s.dedupe.MarkProcessed(ctx, consumerName, entry.ID.String()); err != nil {
		return err
	}
	return nil
}

// compose builds the notification rows for one event: one for the patient and
// one for the doctor.
func (s *Service) compose(eventType string, evt events.AppointmentEvent) ([]*Notification, bool) {
	when := fmt.Sprintf("%s %s-%s", evt.Date, evt.Start, evt.End)

	var (
		kind                   string
		patientSub, patientMsg string
		doctorSub, doctorMsg   string
	)
	switch eventType {
	case events.TypeAppointmentCreated:
		kind = TypeAppointmentConfirmation
		patientSub = "Appointment booked"
		patientMsg = fmt.Sprintf("Your appointment on %s is booked.", when)
		doctorSub = "New appointment"
		doctorMsg = fmt.Sprintf("A patient booked %s.", when)
	case events.TypeAppointmentCancelled:
		kind = TypeAppointmentCancelled
		patientSub = "Appointment cancelled"
		patientMsg = fmt.Sprintf("Your appointment on %s was cancelled.", when)
		doctorSub = "Appointment cancelled"
		doctorMsg = fmt.Sprintf("The appointment on %s was cancelled.", when)
		if evt.Note != "" {
			patientMsg += " Reason: " + evt.Note
			doctorMsg += " Reason: " + evt.Note
		}
	case events.TypeAppointmentRescheduled:
		kind = TypeAppointmentConfirmation
		patientSub = "Appointment rescheduled"
		patientMsg = fmt.Sprintf("Your appointment was moved to %s.", when)
		doctorSub = "Appointment rescheduled"
		doctorMsg = fmt.Sprintf("An appointment was moved to %s.", when)
	case events.TypeAppointmentStatusChanged:
		kind = TypeSystemMessage
		patientSub = "Appointment update"
		patientMsg = fmt.Sprintf("Your appointment on %s is now %s.", when, evt.Status)
		doctorSub = "Appointment update"
		doctorMsg = fmt.Sprintf("The appointment on %s is now %s.", when, evt.Status)
	default:
		return nil, false
	}

	return []*Notification{
		{
			RecipientID:   evt.PatientID,
			AppointmentID: evt.AppointmentID,
			Type:          kind,
			Subject:       patientSub,
			Body:          patientMsg,
		},
		{
			RecipientID:   evt.DoctorID,
			AppointmentID: evt.AppointmentID,
			Type:          kind,
			Subject:       doctorSub,
			Body:          doctorMsg,
		},
	}, true
}

// sendEmail is best effort: a recipient without a resolvable address, or a
// sender failure, never fails the delivery.
func (s *Service) sendEmail(ctx context.Context, n *Notification) {
	if s.email == nil || s.directory == nil {
		return
	}
	recipient, err := s.directory.GetByID(ctx, n.RecipientID)
	if err != nil || recipient.Email == "" {
		return
	}
	msg := EmailMessage{
		To:      recipient.Email,
		ToName:  recipient.Name,
		Subject: n.Subject,
		Body:    n.Body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notification email failed", "error", err, "recipient_id", n.RecipientID, "type", n.Type)
	}
}

var _ events.DeliveryHandler = (*Service)(nil)
