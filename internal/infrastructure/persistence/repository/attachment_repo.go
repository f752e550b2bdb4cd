package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/entity"
	"github.com/garyjia/site-qms/internal/infrastructure/persistence/sqlite"
)

// AttachmentRepository implements port.AttachmentRepository
type AttachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger) port.AttachmentRepository {
	return &AttachmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a freshly uploaded file
func (r *AttachmentRepository) Create(ctx context.Context, a *entity.Attachment) error {
	query := `
		INSERT INTO attachments (url, file_name, content_type, uploaded_by, record_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		a.URL,
		a.FileName,
		a.ContentType,
		a.UploadedBy,
		nullString(a.RecordID),
		a.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create attachment",
			zap.String("url", a.URL),
			zap.String("uploaded_by", a.UploadedBy),
			zap.Error(err))
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	return nil
}

// Claim binds the unclaimed uploads of uploadedBy among urls to recordID
func (r *AttachmentRepository) Claim(ctx context.Context, recordID, uploadedBy string, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	query := `
		UPDATE attachments SET record_id = ?
		WHERE uploaded_by = ? AND record_id IS NULL
		AND url IN (?` + strings.Repeat(", ?", len(urls)-1) + `)
	`
	args := make([]interface{}, 0, len(urls)+2)
	args = append(args, recordID, uploadedBy)
	for _, u := range urls {
		args = append(args, u)
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to claim attachments",
			zap.String("record_id", recordID),
			zap.String("uploaded_by", uploadedBy),
			zap.Error(err))
		return 0, fmt.Errorf("failed to claim attachments: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// ListByRecord returns the uploads owned by a record
func (r *AttachmentRepository) ListByRecord(ctx context.Context, recordID string) ([]*entity.Attachment, error) {
	query := `
		SELECT url, file_name, content_type, uploaded_by, record_id, created_at
		FROM attachments
		WHERE record_id = ?
		ORDER BY created_at ASC, url ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, recordID)
	if err != nil {
		r.logger.Error("Failed to list attachments", zap.String("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var out []*entity.Attachment
	for rows.Next() {
		var a entity.Attachment
		var owner sql.NullString
		if err := rows.Scan(&a.URL, &a.FileName, &a.ContentType, &a.UploadedBy, &owner, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		a.RecordID = owner.String
		out = append(out, &a)
	}

	return out, rows.Err()
}

// Delete forgets an upload
func (r *AttachmentRepository) Delete(ctx context.Context, url string) error {
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM attachments WHERE url = ?`, url)
	if err != nil {
		r.logger.Error("Failed to delete attachment", zap.String("url", url), zap.Error(err))
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.AttachmentRepository = (*AttachmentRepository)(nil)
