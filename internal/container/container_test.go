package container

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/domain/entity"
	httpserver "github.com/garyjia/site-qms/internal/interfaces/http"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "qms.db")
	cfg.Storage.LocalDir = filepath.Join(dir, "uploads")
	cfg.Server.Mode = "test"
	cfg.Auth.JWTSecret = "container-secret"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults with secret", func(c *Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret"},
		{"lark without secret", func(c *Config) { c.Lark.AppID = "cli_x" }, "lark.app_secret"},
		{"s3 without bucket", func(c *Config) { c.Storage.Driver = StorageDriverS3 }, "storage.bucket"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "ftp" }, "storage.driver"},
		{"numbering prefix", func(c *Config) {
			s := c.Numbering["noi"]
			s.Prefix = ""
			c.Numbering["noi"] = s
		}, "numbering.noi.prefix"},
		{"numbering module", func(c *Config) { c.Numbering["permit"] = c.Numbering["noi"] }, "invalid module"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStaticPath(t *testing.T) {
	assert.Equal(t, "/files", staticPath("http://localhost:8080/files/"))
	assert.Equal(t, "/media/photos", staticPath("https://qms.example.com/media/photos"))
	assert.Equal(t, "/files", staticPath("http://localhost:8080"))
}

func TestContainer_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx))

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.Equal(t, "disabled", health.Components["notifications"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}

func TestContainer_NOIOverHTTP(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Close() })

	personnel := c.Repositories().Personnel
	require.NoError(t, personnel.Upsert(ctx, &entity.Personnel{UserID: "u1", ProjectID: "p1", Name: "Site Engineer"}))
	require.NoError(t, personnel.Upsert(ctx, &entity.Personnel{UserID: "a1", ProjectID: "p1", Name: "QA Lead", IsNOIApprover: true}))

	auth := httpserver.NewAuthenticator(httpserver.AuthConfig{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer})
	router := c.HTTPServer().Router()

	call := func(method, path, userID string, body interface{}) (int, map[string]interface{}) {
		token, err := auth.IssueToken(userID, "", time.Hour)
		require.NoError(t, err)

		data, err := json.Marshal(body)
		require.NoError(t, err)

		req := httptest.NewRequest(method, path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
		return w.Code, resp
	}

	status, resp := call(http.MethodPost, "/api/v1/projects/p1/noi/records", "u1", map[string]interface{}{
		"location":   "Tower B level 4",
		"event_date": "2026-03-05",
		"event_time": "10:00",
		"payload":    map[string]interface{}{"activity": "Rebar inspection"},
	})
	require.Equal(t, http.StatusCreated, status, resp)

	record := resp["data"].(map[string]interface{})
	assert.Equal(t, "NOI-001", record["sequence_number"])
	assert.Equal(t, "pending_approval", record["status"])
	id := record["id"].(string)

	status, _ = call(http.MethodPost, "/api/v1/records/"+id+"/approve", "u1", map[string]interface{}{})
	assert.Equal(t, http.StatusForbidden, status)

	status, resp = call(http.MethodPost, "/api/v1/records/"+id+"/approve", "a1", map[string]interface{}{})
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "approved", resp["data"].(map[string]interface{})["status"])

	status, resp = call(http.MethodGet, "/api/v1/records/"+id+"/history", "u1", nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Len(t, resp["data"], 2)
}

func TestContainer_UploadIsClaimedByItsRecord(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Close() })

	repos := c.Repositories()
	require.NoError(t, repos.Personnel.Upsert(ctx, &entity.Personnel{UserID: "u1", ProjectID: "p1", Name: "Site Engineer"}))
	require.NoError(t, repos.Personnel.Upsert(ctx, &entity.Personnel{UserID: "u2", ProjectID: "p1", Name: "Foreman"}))

	auth := httpserver.NewAuthenticator(httpserver.AuthConfig{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer})
	router := c.HTTPServer().Router()
	bearer := func(userID string) string {
		token, err := auth.IssueToken(userID, "", time.Hour)
		require.NoError(t, err)
		return "Bearer " + token
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "rail.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer("u1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var uploaded struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	url := uploaded.Data.URL
	require.NotEmpty(t, url)

	create := func(userID string) string {
		data, err := json.Marshal(map[string]interface{}{
			"location":            "Block B, level 3",
			"responsible_parties": []string{"u1"},
			"payload": map[string]interface{}{
				"description": "Missing guard rail",
				"severity":    "high",
				"photos":      []string{url},
			},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/p1/observation/records", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", bearer(userID))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Data.ID
	}

	// another user referencing the URL does not take it over
	foreign := create("u2")
	owned, err := repos.Attachment.ListByRecord(ctx, foreign)
	require.NoError(t, err)
	assert.Empty(t, owned)

	id := create("u1")
	owned, err = repos.Attachment.ListByRecord(ctx, id)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, url, owned[0].URL)
	assert.Equal(t, "u1", owned[0].UploadedBy)
	assert.Equal(t, "rail.jpg", owned[0].FileName)
}
