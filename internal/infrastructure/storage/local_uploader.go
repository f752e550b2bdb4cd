package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/application/port"
)

// LocalUploader implements port.UploadService on the local filesystem.
// Files are served from baseURL by the HTTP layer.
type LocalUploader struct {
	baseDir string
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewLocalUploader creates a new LocalUploader
func NewLocalUploader(baseDir, baseURL string, logger *zap.Logger) *LocalUploader {
	return &LocalUploader{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// Upload writes body under a generated key and returns its URL
func (s *LocalUploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	key := ObjectKey(s.now(), filename)
	fullPath := s.fullPath(key)

	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create upload directory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		s.logger.Error("Failed to write upload",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Upload saved",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int64("size", size))

	return s.baseURL + "/" + key, nil
}

// Delete removes the file behind url. Missing files are not an error.
func (s *LocalUploader) Delete(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, s.baseURL+"/") {
		return fmt.Errorf("url %s is not served by this storage", url)
	}
	fullPath := s.fullPath(strings.TrimPrefix(url, s.baseURL+"/"))

	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete upload",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.logger.Debug("Upload deleted", zap.String("path", fullPath))
	return nil
}

// Dir is the directory uploads are stored in
func (s *LocalUploader) Dir() string {
	return s.baseDir
}

func (s *LocalUploader) fullPath(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// validatePath checks that the path is within baseDir
func (s *LocalUploader) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

// Verify interface compliance
var _ port.UploadService = (*LocalUploader)(nil)
