package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	key := ObjectKey(now, "../../Guard Rail (1).JPG")
	assert.True(t, strings.HasPrefix(key, "uploads/2026/03/"), key)
	assert.True(t, strings.HasSuffix(key, "-GuardRail1.jpg"), key)
	assert.NotContains(t, key, "..")

	assert.True(t, strings.HasSuffix(ObjectKey(now, "photo.<script>"), "-photo"))
	assert.True(t, strings.HasSuffix(ObjectKey(now, "   "), "-file"))
	assert.NotEqual(t, ObjectKey(now, "a.png"), ObjectKey(now, "a.png"))
}

func TestLocalUploader_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	u := NewLocalUploader(dir, "http://localhost:8080/files/", zap.NewNop())
	ctx := context.Background()

	url, err := u.Upload(ctx, "site.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8080/files/uploads/"), url)

	path := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(url, "http://localhost:8080/files/")))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(content))

	require.NoError(t, u.Delete(ctx, url))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, u.Delete(ctx, url))
}

func TestLocalUploader_DeleteRejectsForeignAndEscapingURLs(t *testing.T) {
	u := NewLocalUploader(t.TempDir(), "http://localhost:8080/files", zap.NewNop())
	ctx := context.Background()

	assert.Error(t, u.Delete(ctx, "https://elsewhere.example.com/uploads/a.png"))
	assert.Error(t, u.Delete(ctx, "http://localhost:8080/files/../../etc/passwd"))
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalUploader_UploadReadError(t *testing.T) {
	dir := t.TempDir()
	u := NewLocalUploader(dir, "http://localhost/files", zap.NewNop())

	_, err := u.Upload(context.Background(), "a.png", "image/png", failingReader{})
	require.Error(t, err)

	var files []string
	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	assert.Empty(t, files)
}

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	args := m.Called(ctx, input)
	if out := args.Get(0); out != nil {
		return out.(*manager.UploadOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockObjectStore) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

func TestS3Uploader_Upload(t *testing.T) {
	store := new(mockObjectStore)
	store.On("Upload", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "qms-photos" &&
			strings.HasPrefix(aws.ToString(in.Key), "uploads/") &&
			aws.ToString(in.ContentType) == "image/jpeg"
	})).Return(&manager.UploadOutput{Location: "https://qms-photos.s3.ap-southeast-1.amazonaws.com/uploads/x.jpg"}, nil)

	u := newS3Uploader(S3Config{Bucket: "qms-photos"}, store, store, zap.NewNop())
	url, err := u.Upload(context.Background(), "x.jpg", "image/jpeg", strings.NewReader("jpeg"))

	require.NoError(t, err)
	assert.Equal(t, "https://qms-photos.s3.ap-southeast-1.amazonaws.com/uploads/x.jpg", url)
	store.AssertExpectations(t)
}

func TestS3Uploader_UploadWithPublicBaseURL(t *testing.T) {
	store := new(mockObjectStore)
	store.On("Upload", mock.Anything, mock.Anything).Return(&manager.UploadOutput{Location: "ignored"}, nil)

	u := newS3Uploader(S3Config{Bucket: "qms-photos", PublicBaseURL: "https://cdn.example.com/"}, store, store, zap.NewNop())
	url, err := u.Upload(context.Background(), "x.jpg", "", strings.NewReader("jpeg"))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/uploads/"), url)
}

func TestS3Uploader_UploadError(t *testing.T) {
	store := new(mockObjectStore)
	store.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("AccessDenied"))

	u := newS3Uploader(S3Config{Bucket: "qms-photos"}, store, store, zap.NewNop())
	_, err := u.Upload(context.Background(), "x.jpg", "image/jpeg", io.LimitReader(strings.NewReader("jpeg"), 4))

	assert.ErrorContains(t, err, "AccessDenied")
}

func TestS3Uploader_Delete(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		url     string
		wantKey string
		wantErr bool
	}{
		{
			name:    "virtual host url",
			cfg:     S3Config{Bucket: "qms-photos"},
			url:     "https://qms-photos.s3.ap-southeast-1.amazonaws.com/uploads/2026/03/a.jpg",
			wantKey: "uploads/2026/03/a.jpg",
		},
		{
			name:    "path style url",
			cfg:     S3Config{Bucket: "qms-photos", Endpoint: "http://minio:9000"},
			url:     "http://minio:9000/qms-photos/uploads/a.jpg",
			wantKey: "uploads/a.jpg",
		},
		{
			name:    "public base url",
			cfg:     S3Config{Bucket: "qms-photos", PublicBaseURL: "https://cdn.example.com"},
			url:     "https://cdn.example.com/uploads/a.jpg",
			wantKey: "uploads/a.jpg",
		},
		{
			name:    "other bucket",
			cfg:     S3Config{Bucket: "qms-photos"},
			url:     "https://other.s3.amazonaws.com/uploads/a.jpg",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockObjectStore)
			if !tt.wantErr {
				store.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
					return aws.ToString(in.Bucket) == "qms-photos" && aws.ToString(in.Key) == tt.wantKey
				})).Return(nil)
			}

			u := newS3Uploader(tt.cfg, store, store, zap.NewNop())
			err := u.Delete(context.Background(), tt.url)

			if tt.wantErr {
				assert.Error(t, err)
				store.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			store.AssertExpectations(t)
		})
	}
}
