package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/entity"
)

// AttachmentService stores uploads and remembers who uploaded them
type AttachmentService interface {
	Upload(ctx context.Context, actor entity.Actor, filename, contentType string, body io.Reader) (*entity.Attachment, error)
}

type attachmentServiceImpl struct {
	uploads     port.UploadService
	attachments port.AttachmentRepository
	logger      Logger
	now         func() time.Time
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(
	uploads port.UploadService,
	attachments port.AttachmentRepository,
	logger Logger,
) AttachmentService {
	return &attachmentServiceImpl{
		uploads:     uploads,
		attachments: attachments,
		logger:      logger,
		now:         time.Now,
	}
}

// Upload stores the file and records the actor as its owner. The stored
// object is removed again when the ownership row cannot be written.
func (s *attachmentServiceImpl) Upload(ctx context.Context, actor entity.Actor, filename, contentType string, body io.Reader) (*entity.Attachment, error) {
	url, err := s.uploads.Upload(ctx, filename, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	a := &entity.Attachment{
		URL:         url,
		FileName:    filename,
		ContentType: contentType,
		UploadedBy:  actor.UserID,
		CreatedAt:   s.now(),
	}
	if err := s.attachments.Create(ctx, a); err != nil {
		if delErr := s.uploads.Delete(ctx, url); delErr != nil {
			s.logger.Error("Failed to remove unrecorded upload", "url", url, "error", delErr)
		}
		return nil, fmt.Errorf("record upload: %w", err)
	}

	s.logger.Info("Upload stored", "url", url, "uploaded_by", actor.UserID)
	return a, nil
}
