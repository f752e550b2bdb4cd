package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/site-qms/internal/application/workflow"
	"github.com/garyjia/site-qms/internal/domain/entity"
	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
	"github.com/garyjia/site-qms/pkg/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Uploader stores a file on behalf of the actor
type Uploader interface {
	Upload(ctx context.Context, actor entity.Actor, filename, contentType string, body io.Reader) (*entity.Attachment, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine         workflow.Engine
	uploads        Uploader
	health         HealthChecker
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine workflow.Engine,
	uploads Uploader,
	health HealthChecker,
	maxUploadBytes int64,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:         engine,
		uploads:        uploads,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateRecordRequest is the stage-1 form of a new record
type CreateRecordRequest struct {
	Location           string                 `json:"location"`
	EventDate          string                 `json:"event_date"`
	EventTime          string                 `json:"event_time"`
	ResponsibleParties []string               `json:"responsible_parties"`
	Payload            map[string]interface{} `json:"payload"`
}

// StageSubmitRequest is the form of a data-entry, closure or training submission
type StageSubmitRequest struct {
	Stage            int                    `json:"stage"`
	Payload          map[string]interface{} `json:"payload"`
	PlannedCloseDate string                 `json:"planned_close_date"`
	ClosingDate      string                 `json:"closing_date"`
	Note             string                 `json:"note"`
}

// ApproveRecordRequest approves the current approval stage
type ApproveRecordRequest struct {
	Stage int    `json:"stage"`
	Note  string `json:"note"`
}

// ReasonRecordRequest carries the reason of a reject or cancel
type ReasonRecordRequest struct {
	Stage  int    `json:"stage"`
	Reason string `json:"reason"`
}

// ResubmitRecordRequest revises a rejected NOI
type ResubmitRecordRequest struct {
	Location     string                 `json:"location"`
	EventDate    string                 `json:"event_date"`
	EventTime    string                 `json:"event_time"`
	KeepSchedule bool                   `json:"keep_schedule"`
	Payload      map[string]interface{} `json:"payload"`
	Note         string                 `json:"note"`
}

// AdminEditRecordRequest overwrites the provided fields
type AdminEditRecordRequest struct {
	Location           *string                `json:"location"`
	EventDate          *string                `json:"event_date"`
	EventTime          *string                `json:"event_time"`
	PlannedCloseDate   *string                `json:"planned_close_date"`
	ClosingDate        *string                `json:"closing_date"`
	ResponsibleParties []string               `json:"responsible_parties"`
	Payload            map[string]interface{} `json:"payload"`
	Note               string                 `json:"note"`
}

// ListRecordsRequest represents query parameters for listing records
type ListRecordsRequest struct {
	Status     []string `form:"status"`
	Actionable bool     `form:"actionable"`
	Limit      int      `form:"limit"`
	Offset     int      `form:"offset"`
}

// UploadResponse is returned by the upload endpoint
type UploadResponse struct {
	URL string `json:"url"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Database:  "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	status := http.StatusOK
	if h.health != nil {
		if err := h.health.Health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			response.Database = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// CreateRecord handles POST /api/v1/projects/:project_id/:module/records
func (h *Handlers) CreateRecord(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	module, err := domainwf.ParseModule(c.Param("module"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var req CreateRecordRequest
	if !h.bind(c, &req) {
		return
	}

	eventDate, err := parseDateField("event_date", req.EventDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := validateClockField("event_time", req.EventTime); err != nil {
		h.fail(c, err)
		return
	}

	record, err := h.engine.Create(c.Request.Context(), actor, workflow.CreateRequest{
		ProjectID:          c.Param("project_id"),
		Module:             module,
		Location:           utils.SanitizeString(req.Location),
		EventDate:          eventDate,
		EventTime:          strings.TrimSpace(req.EventTime),
		ResponsibleParties: req.ResponsibleParties,
		Payload:            req.Payload,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Record created",
		"id", record.ID,
		"sequence_number", record.SequenceNumber,
		"actor", actor.UserID)

	c.JSON(http.StatusCreated, Response{Success: true, Data: record})
}

// ListRecords handles GET /api/v1/projects/:project_id/:module/records
func (h *Handlers) ListRecords(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	module, err := domainwf.ParseModule(c.Param("module"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var req ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	// Set defaults
	if req.Limit <= 0 || req.Limit > maxListLimit {
		req.Limit = defaultListLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	var statuses []domainwf.Status
	for _, raw := range req.Status {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, domainwf.Status(s))
			}
		}
	}

	records, err := h.engine.List(c.Request.Context(), actor, workflow.ListRequest{
		ProjectID:  c.Param("project_id"),
		Module:     module,
		Statuses:   statuses,
		Actionable: req.Actionable,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []*entity.Record{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// GetRecord handles GET /api/v1/records/:id
func (h *Handlers) GetRecord(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	view, err := h.engine.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// GetHistory handles GET /api/v1/records/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	entries, err := h.engine.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []*entity.HistoryEntry{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ApproveRecord handles POST /api/v1/records/:id/approve
func (h *Handlers) ApproveRecord(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req ApproveRecordRequest
	if !h.bind(c, &req) {
		return
	}

	record, err := h.engine.Approve(c.Request.Context(), actor, workflow.ApproveRequest{
		RecordID: c.Param("id"),
		Stage:    req.Stage,
		Note:     utils.SanitizeString(req.Note),
	})
	h.respond(c, record, err)
}

// SubmitDataEntry handles POST /api/v1/records/:id/data-entry
func (h *Handlers) SubmitDataEntry(c *gin.Context) {
	h.stageSubmit(c, h.engine.SubmitDataEntry)
}

// SubmitClosure handles POST /api/v1/records/:id/closure
func (h *Handlers) SubmitClosure(c *gin.Context) {
	h.stageSubmit(c, h.engine.SubmitClosure)
}

// SubmitForApproval handles POST /api/v1/records/:id/submit
func (h *Handlers) SubmitForApproval(c *gin.Context) {
	h.stageSubmit(c, h.engine.SubmitForApproval)
}

type stageFunc func(ctx context.Context, actor entity.Actor, req workflow.StageRequest) (*entity.Record, error)

func (h *Handlers) stageSubmit(c *gin.Context, submit stageFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req StageSubmitRequest
	if !h.bind(c, &req) {
		return
	}

	plannedClose, err := parseDateField("planned_close_date", req.PlannedCloseDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	closing, err := parseDateField("closing_date", req.ClosingDate)
	if err != nil {
		h.fail(c, err)
		return
	}

	record, err := submit(c.Request.Context(), actor, workflow.StageRequest{
		RecordID:         c.Param("id"),
		Stage:            req.Stage,
		Payload:          req.Payload,
		PlannedCloseDate: plannedClose,
		ClosingDate:      closing,
		Note:             utils.SanitizeString(req.Note),
	})
	h.respond(c, record, err)
}

// RejectRecord handles POST /api/v1/records/:id/reject
func (h *Handlers) RejectRecord(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req ReasonRecordRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.engine.Reject(c.Request.Context(), actor, workflow.ReasonRequest{
		RecordID: c.Param("id"),
		Stage:    req.Stage,
		Reason:   utils.SanitizeString(req.Reason),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// CancelRecord handles POST /api/v1/records/:id/cancel
func (h *Handlers) CancelRecord(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req ReasonRecordRequest
	if !h.bind(c, &req) {
		return
	}

	record, err := h.engine.Cancel(c.Request.Context(), actor, workflow.ReasonRequest{
		RecordID: c.Param("id"),
		Stage:    req.Stage,
		Reason:   utils.SanitizeString(req.Reason),
	})
	h.respond(c, record, err)
}

// ResubmitRecord handles POST /api/v1/records/:id/resubmit
func (h *Handlers) ResubmitRecord(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req ResubmitRecordRequest
	if !h.bind(c, &req) {
		return
	}

	eventDate, err := parseDateField("event_date", req.EventDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := validateClockField("event_time", req.EventTime); err != nil {
		h.fail(c, err)
		return
	}

	record, err := h.engine.Resubmit(c.Request.Context(), actor, workflow.ResubmitRequest{
		RecordID:     c.Param("id"),
		Location:     utils.SanitizeString(req.Location),
		EventDate:    eventDate,
		EventTime:    strings.TrimSpace(req.EventTime),
		KeepSchedule: req.KeepSchedule,
		Payload:      req.Payload,
		Note:         utils.SanitizeString(req.Note),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: record})
}

// AdminEditRecord handles PATCH /api/v1/records/:id
func (h *Handlers) AdminEditRecord(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req AdminEditRecordRequest
	if !h.bind(c, &req) {
		return
	}

	edit := workflow.AdminEditRequest{
		RecordID:           c.Param("id"),
		ResponsibleParties: req.ResponsibleParties,
		Payload:            req.Payload,
		Note:               utils.SanitizeString(req.Note),
	}
	if req.Location != nil {
		location := utils.SanitizeString(*req.Location)
		edit.Location = &location
	}
	if req.EventTime != nil {
		if err := validateClockField("event_time", *req.EventTime); err != nil {
			h.fail(c, err)
			return
		}
		eventTime := strings.TrimSpace(*req.EventTime)
		edit.EventTime = &eventTime
	}

	dates := []struct {
		field string
		raw   *string
		dst   **time.Time
	}{
		{"event_date", req.EventDate, &edit.EventDate},
		{"planned_close_date", req.PlannedCloseDate, &edit.PlannedCloseDate},
		{"closing_date", req.ClosingDate, &edit.ClosingDate},
	}
	for _, d := range dates {
		if d.raw == nil {
			continue
		}
		parsed, err := parseDateField(d.field, *d.raw)
		if err != nil {
			h.fail(c, err)
			return
		}
		*d.dst = parsed
	}

	record, err := h.engine.AdminEdit(c.Request.Context(), actor, edit)
	h.respond(c, record, err)
}

// Upload handles POST /api/v1/uploads
func (h *Handlers) Upload(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Error("Invalid upload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "multipart field \"file\" is required",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", "filename", fileHeader.Filename, "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "failed to read upload"})
		return
	}
	defer file.Close()

	attachment, err := h.uploads.Upload(c.Request.Context(), actor, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		h.logger.Error("Upload failed", "filename", fileHeader.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "upload failed"})
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: UploadResponse{URL: attachment.URL}})
}

func (h *Handlers) actor(c *gin.Context) (entity.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "unauthenticated"})
		return entity.Actor{}, false
	}
	return actor, true
}

func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Error("Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return false
	}
	return true
}

func (h *Handlers) respond(c *gin.Context, record *entity.Record, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	} else {
		h.logger.Info("Request rejected", "path", c.FullPath(), "status", status, "error", err.Error())
	}

	c.JSON(status, Response{
		Success: false,
		Error:   errorMessage(status, err),
	})
}

func parseDateField(field, raw string) (*time.Time, error) {
	t, err := utils.ParseDate(raw)
	if err != nil {
		return nil, domainwf.NewValidationError(field, err.Error())
	}
	return t, nil
}

func validateClockField(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := utils.ValidateClock(raw); err != nil {
		return domainwf.NewValidationError(field, err.Error())
	}
	return nil
}
