package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"course-commerce/internal/models"
)

// CreateEnrollment inserts an enrollment if none exists for the
// (user, course, session) tuple. The unique index makes retries and
// concurrent webhook deliveries no-ops; created reports whether this
// call inserted the row.
func (s *Store) CreateEnrollment(ctx context.Context, e *models.Enrollment) (created bool, err error) {
	query := `
		INSERT INTO enrollments (user_id, course_id, session_id, order_id, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, course_id, COALESCE(session_id, 0)) DO NOTHING
		RETURNING id, enrolled_at`

	err = s.db.GetContext(ctx, e, query,
		e.UserID, e.CourseID, e.SessionID, e.OrderID, e.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetEnrollmentByID retrieves an enrollment
func (s *Store) GetEnrollmentByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	var e models.Enrollment
	err := s.db.GetContext(ctx, &e, "SELECT * FROM enrollments WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("enrollment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEnrollmentsByUserID lists a user's enrollments
func (s *Store) GetEnrollmentsByUserID(ctx context.Context, userID int64) ([]models.Enrollment, error) {
	var list []models.Enrollment
	err := s.db.SelectContext(ctx, &list,
		"SELECT * FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at DESC", userID)
	return list, err
}

// GetEnrollmentsByOrderID lists enrollments created from an order
func (s *Store) GetEnrollmentsByOrderID(ctx context.Context, orderID int64) ([]models.Enrollment, error) {
	var list []models.Enrollment
	err := s.db.SelectContext(ctx, &list,
		"SELECT * FROM enrollments WHERE order_id = $1", orderID)
	return list, err
}

// UpdateEnrollmentStatus moves an enrollment between statuses
func (s *Store) UpdateEnrollmentStatus(ctx context.Context, enrollmentID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE enrollments SET status = $1 WHERE id = $2", status, enrollmentID)
	return err
}

// AdvanceEnrollment moves an enrollment between statuses with a
// compare-and-swap. Returns false when the enrollment was not in
// `from`, so a refund landing first keeps its Cancelled status.
func (s *Store) AdvanceEnrollment(ctx context.Context, enrollmentID int64, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE enrollments SET status = $1 WHERE id = $2 AND status = $3",
		to, enrollmentID, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// CreateSecureLink inserts a download token. The unique index on
// (enrollment_id, attachment_id) keeps reissue attempts from minting a
// second token; the existing row wins.
func (s *Store) CreateSecureLink(ctx context.Context, link *models.SecureLink) (created bool, err error) {
	query := `
		INSERT INTO secure_links (enrollment_id, attachment_id, token)
		VALUES ($1, $2, $3)
		ON CONFLICT (enrollment_id, attachment_id) DO NOTHING
		RETURNING id, created_at`

	err = s.db.GetContext(ctx, link, query,
		link.EnrollmentID, link.AttachmentID, link.Token)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetSecureLinkByToken retrieves a link by its opaque token
func (s *Store) GetSecureLinkByToken(ctx context.Context, token string) (*models.SecureLink, error) {
	var link models.SecureLink
	err := s.db.GetContext(ctx, &link, "SELECT * FROM secure_links WHERE token = $1", token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("secure link: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetSecureLinkByID retrieves a link by ID
func (s *Store) GetSecureLinkByID(ctx context.Context, id int64) (*models.SecureLink, error) {
	var link models.SecureLink
	err := s.db.GetContext(ctx, &link, "SELECT * FROM secure_links WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("secure link %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetSecureLinksByEnrollmentID lists links issued for an enrollment
func (s *Store) GetSecureLinksByEnrollmentID(ctx context.Context, enrollmentID int64) ([]models.SecureLink, error) {
	var links []models.SecureLink
	err := s.db.SelectContext(ctx, &links,
		"SELECT * FROM secure_links WHERE enrollment_id = $1 ORDER BY id", enrollmentID)
	return links, err
}

// RecordDownload increments the counter and stamps the download time.
// The guard on is_revoked closes the race between a download and a
// concurrent revoke; false means the link was revoked or gone.
func (s *Store) RecordDownload(ctx context.Context, linkID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE secure_links
		SET download_count = download_count + 1, last_downloaded_at = NOW()
		WHERE id = $1 AND is_revoked = false`,
		linkID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// RevokeSecureLink flips the revocation flag
func (s *Store) RevokeSecureLink(ctx context.Context, linkID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE secure_links SET is_revoked = true WHERE id = $1", linkID)
	return err
}

// RevokeLinksByOrderID revokes every link issued from an order's
// enrollments (refund path)
func (s *Store) RevokeLinksByOrderID(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE secure_links SET is_revoked = true
		WHERE enrollment_id IN (SELECT id FROM enrollments WHERE order_id = $1)`,
		orderID)
	return err
}
