package port

import (
	"context"
	"io"
)

// UploadService stores photos and other attachments and hands back public URLs
type UploadService interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
	// Delete removes a previously uploaded file by its URL
	Delete(ctx context.Context, url string) error
}
