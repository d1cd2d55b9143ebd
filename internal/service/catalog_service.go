package service

import (
	"context"
	"io"

	"course-commerce/internal/models"
	"course-commerce/internal/storage"
	"course-commerce/internal/store"
	"course-commerce/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService handles admin CRUD over courses, categories,
// instructors, sessions, and attachments
type CatalogService struct {
	store      *store.Store
	seatClient *SeatClient
	storage    storage.Storage
	logger     *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, seatClient *SeatClient, fileStorage storage.Storage) *CatalogService {
	return &CatalogService{
		store:      store,
		seatClient: seatClient,
		storage:    fileStorage,
		logger:     util.GetLogger(),
	}
}

// CourseRequest is the admin payload for creating/updating a course
type CourseRequest struct {
	CategoryID   int64           `json:"category_id,omitempty"`
	InstructorID int64           `json:"instructor_id,omitempty"`
	TitleEn      string          `json:"title_en" binding:"required"`
	TitleAr      string          `json:"title_ar"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price" binding:"required"`
	Currency     string          `json:"currency"`
	Published    bool            `json:"published"`
}

// CourseView is a course with its sessions
type CourseView struct {
	Course   *models.Course   `json:"course"`
	Sessions []models.Session `json:"sessions"`
}

func (cs *CatalogService) courseFromRequest(req *CourseRequest) *models.Course {
	currency := req.Currency
	if currency == "" {
		currency = "SAR"
	}
	return &models.Course{
		CategoryID:   nullInt64(req.CategoryID),
		InstructorID: nullInt64(req.InstructorID),
		TitleEn:      req.TitleEn,
		TitleAr:      req.TitleAr,
		Description:  req.Description,
		Price:        req.Price,
		Currency:     currency,
		Published:    req.Published,
	}
}

// CreateCourse creates a catalog course
func (cs *CatalogService) CreateCourse(ctx context.Context, req *CourseRequest) (*models.Course, error) {
	course := cs.courseFromRequest(req)
	if err := cs.store.CreateCourse(ctx, course); err != nil {
		return nil, err
	}
	cs.logger.Info("Course created", zap.Int64("course_id", course.ID))
	return course, nil
}

// UpdateCourse updates a catalog course. Existing order item snapshots
// are unaffected.
func (cs *CatalogService) UpdateCourse(ctx context.Context, id int64, req *CourseRequest) (*models.Course, error) {
	course := cs.courseFromRequest(req)
	course.ID = id
	if err := cs.store.UpdateCourse(ctx, course); err != nil {
		return nil, err
	}
	return cs.store.GetCourseByID(ctx, id)
}

// DeleteCourse removes a course
func (cs *CatalogService) DeleteCourse(ctx context.Context, id int64) error {
	return cs.store.DeleteCourse(ctx, id)
}

// GetCourse returns a course with its sessions
func (cs *CatalogService) GetCourse(ctx context.Context, id int64) (*CourseView, error) {
	course, err := cs.store.GetCourseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := cs.store.GetSessionsByCourseID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CourseView{Course: course, Sessions: sessions}, nil
}

// ListCourses lists published courses, keyset-paginated
func (cs *CatalogService) ListCourses(ctx context.Context, afterID int64, limit int) ([]models.Course, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return cs.store.ListPublishedCourses(ctx, afterID, limit)
}

// CreateSession schedules a session and seeds its seat pool in Redis
func (cs *CatalogService) CreateSession(ctx context.Context, sess *models.Session) (*models.Session, error) {
	if _, err := cs.store.GetCourseByID(ctx, sess.CourseID); err != nil {
		return nil, err
	}
	if err := cs.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	if err := cs.seatClient.redis.InitSeats(ctx, sess.ID, sess.Available, sess.Reserved); err != nil {
		cs.logger.Error("Failed to seed session seats in Redis",
			zap.Int64("session_id", sess.ID),
			zap.Error(err))
	}
	return sess, nil
}

// CreateCategory creates a category
func (cs *CatalogService) CreateCategory(ctx context.Context, c *models.Category) error {
	return cs.store.CreateCategory(ctx, c)
}

// ListCategories lists categories
func (cs *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return cs.store.GetCategories(ctx)
}

// DeleteCategory deletes a category
func (cs *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	return cs.store.DeleteCategory(ctx, id)
}

// CreateInstructor creates an instructor
func (cs *CatalogService) CreateInstructor(ctx context.Context, in *models.Instructor) error {
	return cs.store.CreateInstructor(ctx, in)
}

// ListInstructors lists instructors
func (cs *CatalogService) ListInstructors(ctx context.Context) ([]models.Instructor, error) {
	return cs.store.GetInstructors(ctx)
}

// DeleteInstructor deletes an instructor
func (cs *CatalogService) DeleteInstructor(ctx context.Context, id int64) error {
	return cs.store.DeleteInstructor(ctx, id)
}

// CreateAttachment registers an attachment for a course
func (cs *CatalogService) CreateAttachment(ctx context.Context, a *models.Attachment) error {
	if _, err := cs.store.GetCourseByID(ctx, a.CourseID); err != nil {
		return err
	}
	return cs.store.CreateAttachment(ctx, a)
}

// SaveAttachmentFile writes the uploaded bytes to the attachment's
// storage path
func (cs *CatalogService) SaveAttachmentFile(ctx context.Context, attachmentID int64, r io.Reader) (*models.Attachment, error) {
	a, err := cs.store.GetAttachmentByID(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if err := cs.storage.Save(ctx, a.StoragePath, r); err != nil {
		return nil, err
	}
	cs.logger.Info("Attachment file stored",
		zap.Int64("attachment_id", a.ID),
		zap.String("file_name", a.FileName))
	return a, nil
}
