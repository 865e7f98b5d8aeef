// Package notification delivers applicant-facing notifications for status
// changes. Email is the only built-in channel; delivery is best effort.
package notification

import (
	"context"
	"fmt"

	"admissions/internal/domain"
	"admissions/pkg/logger"
	"admissions/pkg/mailer"

	"github.com/google/uuid"
)

// RecipientResolver maps an application to a deliverable email address.
type RecipientResolver interface {
	EmailFor(ctx context.Context, applicationID uuid.UUID) (string, error)
}

// ApplicationReader is the application lookup the metadata resolver needs.
type ApplicationReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)
}

// MetadataRecipientResolver reads the contact email from application
// metadata. Applicant identity lives in an upstream system; the application
// record carries a contact_email snapshot taken at creation.
type MetadataRecipientResolver struct {
	apps ApplicationReader
}

func NewMetadataRecipientResolver(apps ApplicationReader) *MetadataRecipientResolver {
	return &MetadataRecipientResolver{apps: apps}
}

func (r *MetadataRecipientResolver) EmailFor(ctx context.Context, applicationID uuid.UUID) (string, error) {
	app, err := r.apps.FindByID(ctx, applicationID)
	if err != nil {
		return "", err
	}
	email, _ := app.Metadata["contact_email"].(string)
	if email == "" {
		return "", fmt.Errorf("application %s has no contact_email metadata", applicationID)
	}
	return email, nil
}

// AuditRecorder persists delivery attempts for the audit trail.
type AuditRecorder interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// Service sends status change emails. It satisfies the status package's
// Notifier interface.
type Service struct {
	mailer     *mailer.Mailer
	recipients RecipientResolver
	audit      AuditRecorder
	logger     logger.Logger
}

func NewService(m *mailer.Mailer, recipients RecipientResolver, audit AuditRecorder, log logger.Logger) *Service {
	return &Service{
		mailer:     m,
		recipients: recipients,
		audit:      audit,
		logger:     log,
	}
}

// NotifyStatusChanged sends the applicant an email about their new status.
// Failures are logged and audited, never propagated.
func (s *Service) NotifyStatusChanged(ctx context.Context, event domain.StatusChangedEvent) {
	email, err := s.recipients.EmailFor(ctx, event.ApplicationID)
	if err != nil {
		s.logger.Warn("Failed to resolve notification recipient", map[string]interface{}{
			"application_id": event.ApplicationID,
			"error":          err.Error(),
		})
		return
	}

	subject, body := renderStatusChanged(event)
	sendErr := s.mailer.Send(email, subject, body)
	if sendErr != nil {
		s.logger.Warn("Failed to send status change email", map[string]interface{}{
			"application_id": event.ApplicationID,
			"error":          sendErr.Error(),
		})
	}

	if s.audit != nil {
		outcome := "sent"
		if sendErr != nil {
			outcome = "failed"
		}
		if err := s.audit.Create(ctx, &domain.AuditLog{
			Action:     "notification_email",
			EntityType: "application",
			EntityID:   event.ApplicationID.String(),
			NewValues: domain.Metadata{
				"new_status": string(event.NewStatus),
				"outcome":    outcome,
			},
		}); err != nil {
			s.logger.Warn("Failed to write notification audit log", map[string]interface{}{
				"application_id": event.ApplicationID,
				"error":          err.Error(),
			})
		}
	}
}

func renderStatusChanged(event domain.StatusChangedEvent) (subject, body string) {
	switch event.NewStatus {
	case domain.StatusLabelSubmitted:
		subject = "We received your application"
		body = "Your application has been submitted and is now in our review queue."
	case domain.StatusLabelAccepted:
		subject = "Congratulations, you have been accepted"
		body = "We are pleased to inform you that your application has been accepted. Further instructions will follow."
	case domain.StatusLabelWaitlisted:
		subject = "Your application has been waitlisted"
		body = "Your application is on our waitlist. We will contact you as soon as a place becomes available."
	case domain.StatusLabelRejected:
		subject = "Update on your application"
		body = "After careful review we are unable to offer you a place at this time."
	default:
		subject = fmt.Sprintf("Your application status is now %s", event.NewStatus)
		body = fmt.Sprintf("The status of your application changed from %s to %s.", event.OldStatus, event.NewStatus)
	}
	return subject, body
}
