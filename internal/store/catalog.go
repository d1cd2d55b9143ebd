package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"course-commerce/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateCourse inserts a course
func (s *Store) CreateCourse(ctx context.Context, c *models.Course) error {
	query := `
		INSERT INTO courses (category_id, instructor_id, title_en, title_ar, description, price, currency, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, c, query,
		c.CategoryID, c.InstructorID, c.TitleEn, c.TitleAr, c.Description, c.Price, c.Currency, c.Published)
}

// GetCourseByID retrieves a course by ID
func (s *Store) GetCourseByID(ctx context.Context, id int64) (*models.Course, error) {
	var course models.Course
	err := s.db.GetContext(ctx, &course, "SELECT * FROM courses WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetCoursesByIDs retrieves multiple courses by IDs
func (s *Store) GetCoursesByIDs(ctx context.Context, ids []int64) ([]models.Course, error) {
	if len(ids) == 0 {
		return []models.Course{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM courses WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var courses []models.Course
	err = s.db.SelectContext(ctx, &courses, query, args...)
	return courses, err
}

// ListPublishedCourses lists published courses with keyset pagination.
// afterID = 0 starts from the beginning.
func (s *Store) ListPublishedCourses(ctx context.Context, afterID int64, limit int) ([]models.Course, error) {
	var courses []models.Course
	err := s.db.SelectContext(ctx, &courses,
		"SELECT * FROM courses WHERE published = true AND id > $1 ORDER BY id LIMIT $2",
		afterID, limit)
	return courses, err
}

// UpdateCourse updates mutable catalog fields. Order item snapshots are
// never touched by catalog edits.
func (s *Store) UpdateCourse(ctx context.Context, c *models.Course) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE courses
		SET category_id = $1, instructor_id = $2, title_en = $3, title_ar = $4,
		    description = $5, price = $6, currency = $7, published = $8, updated_at = NOW()
		WHERE id = $9`,
		c.CategoryID, c.InstructorID, c.TitleEn, c.TitleAr, c.Description, c.Price, c.Currency, c.Published, c.ID)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("course %d: %w", c.ID, ErrNotFound)
	}
	return nil
}

// DeleteCourse removes a course
func (s *Store) DeleteCourse(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	return err
}

// CreateCategory inserts a category
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	return s.db.GetContext(ctx, &c.ID,
		"INSERT INTO categories (name_en, name_ar, slug, visible) VALUES ($1, $2, $3, $4) RETURNING id",
		c.NameEn, c.NameAr, c.Slug, c.Visible)
}

// GetCategories lists all categories
func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	err := s.db.SelectContext(ctx, &cats, "SELECT * FROM categories ORDER BY id")
	return cats, err
}

// DeleteCategory removes a category
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	return err
}

// CreateInstructor inserts an instructor
func (s *Store) CreateInstructor(ctx context.Context, in *models.Instructor) error {
	return s.db.GetContext(ctx, &in.ID,
		"INSERT INTO instructors (name_en, name_ar, bio, email) VALUES ($1, $2, $3, $4) RETURNING id",
		in.NameEn, in.NameAr, in.Bio, in.Email)
}

// GetInstructors lists all instructors
func (s *Store) GetInstructors(ctx context.Context) ([]models.Instructor, error) {
	var list []models.Instructor
	err := s.db.SelectContext(ctx, &list, "SELECT * FROM instructors ORDER BY id")
	return list, err
}

// DeleteInstructor removes an instructor
func (s *Store) DeleteInstructor(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM instructors WHERE id = $1", id)
	return err
}

// CreateSession inserts a session with its seat pool
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	query := `
		INSERT INTO sessions (course_id, starts_at, total_seats, available, reserved)
		VALUES ($1, $2, $3, $3, 0)
		RETURNING id, available, reserved, updated_at`

	return s.db.GetContext(ctx, sess, query, sess.CourseID, sess.StartsAt, sess.TotalSeats)
}

// GetSessionByID retrieves a session by ID
func (s *Store) GetSessionByID(ctx context.Context, id int64) (*models.Session, error) {
	var sess models.Session
	err := s.db.GetContext(ctx, &sess, "SELECT * FROM sessions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSessionsByCourseID lists sessions for a course
func (s *Store) GetSessionsByCourseID(ctx context.Context, courseID int64) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.SelectContext(ctx, &sessions,
		"SELECT * FROM sessions WHERE course_id = $1 ORDER BY starts_at", courseID)
	return sessions, err
}

// GetSessions lists all sessions
func (s *Store) GetSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.SelectContext(ctx, &sessions, "SELECT * FROM sessions ORDER BY id")
	return sessions, err
}

// ReserveSeatsTx reserves seats within a transaction (FOR UPDATE lock)
func (s *Store) ReserveSeatsTx(ctx context.Context, sessionID int64, count int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var available int
	err = tx.GetContext(ctx, &available,
		"SELECT available FROM sessions WHERE id = $1 FOR UPDATE", sessionID)
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}

	if available < count {
		return fmt.Errorf("session %d: %w", sessionID, ErrInsufficientSeats)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET available = available - $1, reserved = reserved + $1, updated_at = NOW() WHERE id = $2",
		count, sessionID)
	if err != nil {
		return fmt.Errorf("failed to reserve seats: %w", err)
	}

	return tx.Commit()
}

// ReleaseSeats returns reserved seats to the pool (compensation)
func (s *Store) ReleaseSeats(ctx context.Context, sessionID int64, count int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET available = available + $1, reserved = reserved - $1, updated_at = NOW() WHERE id = $2",
		count, sessionID)
	return err
}

// ReturnSeats puts committed seats back in the pool (refund). The
// enrollment already consumed the reservation, so only available moves.
func (s *Store) ReturnSeats(ctx context.Context, sessionID int64, count int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET available = available + $1, updated_at = NOW() WHERE id = $2",
		count, sessionID)
	return err
}

// CommitSeats finalizes reserved seats after enrollment
func (s *Store) CommitSeats(ctx context.Context, sessionID int64, count int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET reserved = reserved - $1, updated_at = NOW() WHERE id = $2",
		count, sessionID)
	return err
}

// CreateAttachment inserts an attachment
func (s *Store) CreateAttachment(ctx context.Context, a *models.Attachment) error {
	query := `
		INSERT INTO attachments (course_id, file_name, storage_path, content_type, deliverable)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, a, query,
		a.CourseID, a.FileName, a.StoragePath, a.ContentType, a.Deliverable)
}

// GetAttachmentByID retrieves an attachment
func (s *Store) GetAttachmentByID(ctx context.Context, id int64) (*models.Attachment, error) {
	var a models.Attachment
	err := s.db.GetContext(ctx, &a, "SELECT * FROM attachments WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attachment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetDeliverableAttachments lists deliverable attachments for a course
func (s *Store) GetDeliverableAttachments(ctx context.Context, courseID int64) ([]models.Attachment, error) {
	var atts []models.Attachment
	err := s.db.SelectContext(ctx, &atts,
		"SELECT * FROM attachments WHERE course_id = $1 AND deliverable = true ORDER BY id", courseID)
	return atts, err
}
