package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"course-commerce/internal/models"
	"course-commerce/internal/store"
	"course-commerce/internal/util"

	"go.uber.org/zap"
)

const enrollmentTemplateName = "enrollment_created"

// defaults used when no row exists in email_templates
const (
	defaultEnrollmentSubject = "You are enrolled: {{.CourseTitle}}"
	defaultEnrollmentBody    = "<p>Hi {{.FullName}},</p><p>Your enrollment in <b>{{.CourseTitle}}</b> is confirmed. Your course materials are available in your account.</p>"
)

// Notifier emails users about enrollment events and records every
// attempt in email_logs
type Notifier struct {
	store  *store.Store
	sender Sender
	logger *zap.Logger
}

// NewNotifier creates a notifier
func NewNotifier(store *store.Store, sender Sender) *Notifier {
	return &Notifier{
		store:  store,
		sender: sender,
		logger: util.GetLogger(),
	}
}

type enrollmentMailData struct {
	FullName    string
	CourseTitle string
}

// HandleEnrollmentCreated renders and sends the enrollment email, then
// advances the enrollment Paid -> Notified. A send failure is returned
// so the consumer redelivers; the dedupe check keeps a successful
// earlier delivery from emailing twice.
func (n *Notifier) HandleEnrollmentCreated(ctx context.Context, event *models.EnrollmentCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "Notifier.HandleEnrollmentCreated")
	defer span.End()

	processed, err := n.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		return nil
	}

	user, err := n.store.GetUserByID(ctx, event.UserID)
	if err != nil {
		return err
	}
	course, err := n.store.GetCourseByID(ctx, event.CourseID)
	if err != nil {
		return err
	}

	subject, body, err := n.render(ctx, enrollmentMailData{
		FullName:    user.FullName,
		CourseTitle: course.TitleEn,
	})
	if err != nil {
		return err
	}

	sendErr := n.sender.Send(ctx, user.Email, subject, body)

	logStatus := models.EmailStatusSent
	if sendErr != nil {
		logStatus = models.EmailStatusFailed
	}
	util.EmailsSentTotal.WithLabelValues(logStatus).Inc()

	logEntry := &models.EmailLog{
		UserID:    user.ID,
		Recipient: user.Email,
		Template:  enrollmentTemplateName,
		Subject:   subject,
		Status:    logStatus,
	}
	if err := n.store.CreateEmailLog(ctx, logEntry); err != nil {
		n.logger.Error("Failed to record email log", zap.Error(err))
	}

	if sendErr != nil {
		n.logger.Error("Failed to send enrollment email",
			zap.String("recipient", user.Email),
			zap.Error(sendErr))
		return sendErr
	}

	moved, err := n.store.AdvanceEnrollment(ctx, event.EnrollmentID,
		models.EnrollmentStatusPaid, models.EnrollmentStatusNotified)
	if err != nil {
		n.logger.Error("Failed to mark enrollment notified", zap.Error(err))
	} else if !moved {
		n.logger.Info("Enrollment no longer in Paid state, status left alone",
			zap.Int64("enrollment_id", event.EnrollmentID))
	}

	if err := n.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		n.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	n.logger.Info("Enrollment email sent",
		zap.Int64("enrollment_id", event.EnrollmentID),
		zap.String("recipient", user.Email))
	return nil
}

// SaveTemplate creates or replaces a named email template
func (n *Notifier) SaveTemplate(ctx context.Context, t *models.EmailTemplate) error {
	if _, err := renderTemplate("subject", t.Subject, enrollmentMailData{}); err != nil {
		return err
	}
	if _, err := renderTemplate("body", t.Body, enrollmentMailData{}); err != nil {
		return err
	}
	return n.store.UpsertEmailTemplate(ctx, t)
}

// History lists the notification emails sent to a user
func (n *Notifier) History(ctx context.Context, userID int64) ([]models.EmailLog, error) {
	return n.store.GetEmailLogsByUserID(ctx, userID)
}

// render loads the template from the database, falling back to the
// built-in default when none is configured
func (n *Notifier) render(ctx context.Context, data enrollmentMailData) (subject, body string, err error) {
	subjectTmpl := defaultEnrollmentSubject
	bodyTmpl := defaultEnrollmentBody

	tmpl, err := n.store.GetEmailTemplateByName(ctx, enrollmentTemplateName)
	if err == nil {
		subjectTmpl = tmpl.Subject
		bodyTmpl = tmpl.Body
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", "", err
	}

	subject, err = renderTemplate("subject", subjectTmpl, data)
	if err != nil {
		return "", "", err
	}
	body, err = renderTemplate("body", bodyTmpl, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func renderTemplate(name, text string, data interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}
