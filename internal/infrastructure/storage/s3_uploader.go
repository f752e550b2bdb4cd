package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/application/port"
)

// S3Config holds the bucket settings of the S3 upload driver
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores
	AccessKeyID     string // optional, the default credential chain is used when empty
	SecretAccessKey string
	PublicBaseURL   string // optional CDN or bucket website URL
}

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Uploader implements port.UploadService on an S3 bucket
type S3Uploader struct {
	cfg      S3Config
	uploader objectUploader
	deleter  objectDeleter
	logger   *zap.Logger
	now      func() time.Time
}

// NewS3Uploader loads AWS configuration and creates an uploader for cfg.Bucket
func NewS3Uploader(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("S3 upload storage configured",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.Endpoint))

	return newS3Uploader(cfg, manager.NewUploader(client), client, logger), nil
}

func newS3Uploader(cfg S3Config, uploader objectUploader, deleter objectDeleter, logger *zap.Logger) *S3Uploader {
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")
	return &S3Uploader{
		cfg:      cfg,
		uploader: uploader,
		deleter:  deleter,
		logger:   logger,
		now:      time.Now,
	}
}

// Upload streams body to the bucket and returns the object URL
func (s *S3Uploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	key := ObjectKey(s.now(), filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		s.logger.Error("Failed to upload object",
			zap.String("bucket", s.cfg.Bucket),
			zap.String("key", key),
			zap.Error(err))
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	s.logger.Debug("Object uploaded", zap.String("key", key))

	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL + "/" + key, nil
	}
	return out.Location, nil
}

// Delete removes the object behind url
func (s *S3Uploader) Delete(ctx context.Context, rawURL string) error {
	key, err := s.keyFromURL(rawURL)
	if err != nil {
		return err
	}

	_, err = s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to delete object",
			zap.String("bucket", s.cfg.Bucket),
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	s.logger.Debug("Object deleted", zap.String("key", key))
	return nil
}

// keyFromURL recovers the object key from a public, virtual-host or path-style URL
func (s *S3Uploader) keyFromURL(rawURL string) (string, error) {
	if s.cfg.PublicBaseURL != "" && strings.HasPrefix(rawURL, s.cfg.PublicBaseURL+"/") {
		return strings.TrimPrefix(rawURL, s.cfg.PublicBaseURL+"/"), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid object url %q: %w", rawURL, err)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if !strings.HasPrefix(u.Host, s.cfg.Bucket+".") {
		if !strings.HasPrefix(key, s.cfg.Bucket+"/") {
			return "", fmt.Errorf("url %s is not in bucket %s", rawURL, s.cfg.Bucket)
		}
		key = strings.TrimPrefix(key, s.cfg.Bucket+"/")
	}
	if key == "" {
		return "", fmt.Errorf("url %s has no object key", rawURL)
	}
	return key, nil
}

// Verify interface compliance
var _ port.UploadService = (*S3Uploader)(nil)
