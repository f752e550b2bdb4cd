package workflow

import (
	"context"
	"time"

	"github.com/garyjia/site-qms/internal/domain/entity"
	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
)

// Engine executes named transitions against workflow records
type Engine interface {
	// Create validates stage-1 fields, allocates a sequence number and stores the record
	Create(ctx context.Context, actor entity.Actor, req CreateRequest) (*entity.Record, error)

	// Approve advances the record past its approval stage
	Approve(ctx context.Context, actor entity.Actor, req ApproveRequest) (*entity.Record, error)

	// SubmitDataEntry records root cause and corrective action on an observation
	SubmitDataEntry(ctx context.Context, actor entity.Actor, req StageRequest) (*entity.Record, error)

	// SubmitClosure sends an observation to final approval
	SubmitClosure(ctx context.Context, actor entity.Actor, req StageRequest) (*entity.Record, error)

	// SubmitForApproval sends a planned training to its planner
	SubmitForApproval(ctx context.Context, actor entity.Actor, req StageRequest) (*entity.Record, error)

	// Reject returns the record to its previous stage. An observation rejected
	// at pre-approval is deleted instead.
	Reject(ctx context.Context, actor entity.Actor, req ReasonRequest) (*RejectResult, error)

	// Cancel moves a training or NOI to cancelled
	Cancel(ctx context.Context, actor entity.Actor, req ReasonRequest) (*entity.Record, error)

	// Resubmit supersedes a rejected NOI with a new revision
	Resubmit(ctx context.Context, actor entity.Actor, req ResubmitRequest) (*entity.Record, error)

	// AdminEdit overwrites fields of a non-terminal record without a status change
	AdminEdit(ctx context.Context, actor entity.Actor, req AdminEditRequest) (*entity.Record, error)

	// Get returns a record with its progress and the caller's edit permission
	Get(ctx context.Context, actor entity.Actor, id string) (*RecordView, error)

	// List returns records of one project and module
	List(ctx context.Context, actor entity.Actor, req ListRequest) ([]*entity.Record, error)

	// History returns the audit trail of a record
	History(ctx context.Context, actor entity.Actor, id string) ([]*entity.HistoryEntry, error)
}

// CreateRequest carries the stage-1 form of a new record
type CreateRequest struct {
	ProjectID          string
	Module             domainwf.Module
	Location           string
	EventDate          *time.Time
	EventTime          string
	ResponsibleParties []string
	Payload            map[string]interface{}
}

// StageRequest carries the form of a stage submission. Stage 0 means the
// record's current stage.
type StageRequest struct {
	RecordID         string
	Stage            int
	Payload          map[string]interface{}
	PlannedCloseDate *time.Time
	ClosingDate      *time.Time
	Note             string
}

// ApproveRequest approves the record's current approval stage
type ApproveRequest struct {
	RecordID string
	Stage    int
	Note     string
}

// ReasonRequest carries a mandatory reason for reject and cancel
type ReasonRequest struct {
	RecordID string
	Stage    int
	Reason   string
}

// ResubmitRequest revises a rejected NOI. Location is cleared unless given.
// Date and time are refreshed to the submission time unless given or kept.
type ResubmitRequest struct {
	RecordID     string
	Location     string
	EventDate    *time.Time
	EventTime    string
	KeepSchedule bool
	Payload      map[string]interface{}
	Note         string
}

// AdminEditRequest overwrites any provided field
type AdminEditRequest struct {
	RecordID           string
	Location           *string
	EventDate          *time.Time
	EventTime          *string
	PlannedCloseDate   *time.Time
	ClosingDate        *time.Time
	ResponsibleParties []string
	Payload            map[string]interface{}
	Note               string
}

// ListRequest filters a project's records
type ListRequest struct {
	ProjectID  string
	Module     domainwf.Module
	Statuses   []domainwf.Status
	Actionable bool
	Limit      int
	Offset     int
}

// RejectResult reports the outcome of a reject. Record is nil when the record was deleted.
type RejectResult struct {
	Record  *entity.Record `json:"record,omitempty"`
	Deleted bool           `json:"deleted"`
}

// RecordView is a record with its derived workflow position
type RecordView struct {
	Record   *entity.Record     `json:"record"`
	Progress domainwf.Progress  `json:"progress"`
	Roles    domainwf.RoleFlags `json:"roles"`
	CanEdit  bool               `json:"can_edit"`
}
