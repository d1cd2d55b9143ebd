package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"course-commerce/internal/models"
	"course-commerce/internal/storage"
	"course-commerce/internal/store"
	"course-commerce/internal/util"

	"go.uber.org/zap"
)

// LinkService issues and serves revocable download tokens for the
// deliverable attachments of enrolled courses
type LinkService struct {
	store   *store.Store
	storage storage.Storage
	logger  *zap.Logger
}

// NewLinkService creates a new link service
func NewLinkService(store *store.Store, storage storage.Storage) *LinkService {
	return &LinkService{
		store:   store,
		storage: storage,
		logger:  util.GetLogger(),
	}
}

// IssueLinks mints one token per deliverable attachment of the enrolled
// course. The (enrollment, attachment) unique index makes reissues
// no-ops.
func (ls *LinkService) IssueLinks(ctx context.Context, enrollment *models.Enrollment) error {
	ctx, span := util.StartSpan(ctx, "LinkService.IssueLinks")
	defer span.End()

	attachments, err := ls.store.GetDeliverableAttachments(ctx, enrollment.CourseID)
	if err != nil {
		return fmt.Errorf("failed to list attachments: %w", err)
	}

	for _, att := range attachments {
		token, err := newToken()
		if err != nil {
			return err
		}

		link := &models.SecureLink{
			EnrollmentID: enrollment.ID,
			AttachmentID: att.ID,
			Token:        token,
		}

		created, err := ls.store.CreateSecureLink(ctx, link)
		if err != nil {
			return fmt.Errorf("failed to create secure link: %w", err)
		}
		if created {
			ls.logger.Info("Secure link issued",
				zap.Int64("enrollment_id", enrollment.ID),
				zap.Int64("attachment_id", att.ID))
		}
	}

	return nil
}

// Download resolves a token and streams the attachment. The counter
// increment doubles as the revocation check; a revoked link never
// serves bytes.
func (ls *LinkService) Download(ctx context.Context, token string) (*models.Attachment, io.ReadCloser, error) {
	ctx, span := util.StartSpan(ctx, "LinkService.Download")
	defer span.End()

	link, err := ls.store.GetSecureLinkByToken(ctx, token)
	if err != nil {
		util.DownloadsDeniedTotal.WithLabelValues("unknown_token").Inc()
		return nil, nil, err
	}

	enrollment, err := ls.store.GetEnrollmentByID(ctx, link.EnrollmentID)
	if err != nil {
		return nil, nil, err
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		util.DownloadsDeniedTotal.WithLabelValues("enrollment_cancelled").Inc()
		return nil, nil, ErrEnrollmentInactive
	}

	counted, err := ls.store.RecordDownload(ctx, link.ID)
	if err != nil {
		return nil, nil, err
	}
	if !counted {
		util.DownloadsDeniedTotal.WithLabelValues("revoked").Inc()
		return nil, nil, ErrLinkRevoked
	}

	attachment, err := ls.store.GetAttachmentByID(ctx, link.AttachmentID)
	if err != nil {
		return nil, nil, err
	}

	reader, err := ls.storage.Open(ctx, attachment.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}

	util.DownloadsTotal.Inc()
	return attachment, reader, nil
}

// Revoke disables a link; in-flight tokens stop working immediately
func (ls *LinkService) Revoke(ctx context.Context, linkID int64) error {
	if _, err := ls.store.GetSecureLinkByID(ctx, linkID); err != nil {
		return err
	}
	return ls.store.RevokeSecureLink(ctx, linkID)
}

func newToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
