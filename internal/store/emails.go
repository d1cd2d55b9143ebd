package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"course-commerce/internal/models"
)

// GetEmailTemplateByName retrieves a template by name
func (s *Store) GetEmailTemplateByName(ctx context.Context, name string) (*models.EmailTemplate, error) {
	var t models.EmailTemplate
	err := s.db.GetContext(ctx, &t, "SELECT * FROM email_templates WHERE name = $1", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("email template %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertEmailTemplate creates or replaces a template
func (s *Store) UpsertEmailTemplate(ctx context.Context, t *models.EmailTemplate) error {
	query := `
		INSERT INTO email_templates (name, subject, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET subject = EXCLUDED.subject, body = EXCLUDED.body
		RETURNING id`

	return s.db.GetContext(ctx, &t.ID, query, t.Name, t.Subject, t.Body)
}

// CreateEmailLog records a send attempt
func (s *Store) CreateEmailLog(ctx context.Context, l *models.EmailLog) error {
	query := `
		INSERT INTO email_logs (user_id, recipient, template, subject, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sent_at`

	return s.db.GetContext(ctx, l, query,
		l.UserID, l.Recipient, l.Template, l.Subject, l.Status)
}

// GetEmailLogsByUserID lists a user's notification history
func (s *Store) GetEmailLogsByUserID(ctx context.Context, userID int64) ([]models.EmailLog, error) {
	var logs []models.EmailLog
	err := s.db.SelectContext(ctx, &logs,
		"SELECT * FROM email_logs WHERE user_id = $1 ORDER BY sent_at DESC", userID)
	return logs, err
}
