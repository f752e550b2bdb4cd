package port

import (
	"context"

	"github.com/garyjia/site-qms/internal/domain/entity"
	"github.com/garyjia/site-qms/internal/domain/workflow"
)

// RecordFilter selects records for listing
type RecordFilter struct {
	ProjectID       string
	Module          workflow.Module
	Statuses        []workflow.Status
	ExcludeStatuses []workflow.Status
	CreatedBy       string
	Limit           int
	Offset          int
}

// RecordRepository defines persistence operations for workflow records
type RecordRepository interface {
	Create(ctx context.Context, record *entity.Record) error
	// GetByID returns workflow.ErrNotFound when no row exists
	GetByID(ctx context.Context, id string) (*entity.Record, error)
	List(ctx context.Context, filter RecordFilter) ([]*entity.Record, error)
	// Update writes the record only if its stored status still equals expected.
	// It returns workflow.ErrConflict on a status mismatch and workflow.ErrNotFound
	// when the row is gone.
	Update(ctx context.Context, record *entity.Record, expected workflow.Status) error
	// Delete removes the row only if its stored status still equals expected
	Delete(ctx context.Context, id string, expected workflow.Status) error
}

// HistoryRepository defines persistence operations for the audit trail
type HistoryRepository interface {
	Create(ctx context.Context, entry *entity.HistoryEntry) error
	GetByRecordID(ctx context.Context, recordID string) ([]*entity.HistoryEntry, error)
}

// SequenceCounter allocates per-project sequence numbers
type SequenceCounter interface {
	// Next increments and returns the counter for the project and module
	Next(ctx context.Context, projectID string, module workflow.Module) (int, error)
}

// PersonnelRepository is the identity and permission store
type PersonnelRepository interface {
	// GetByUserAndProject returns nil without error when the user has no row in the project
	GetByUserAndProject(ctx context.Context, userID, projectID string) (*entity.Personnel, error)
	ListByProject(ctx context.Context, projectID string) ([]*entity.Personnel, error)
	Upsert(ctx context.Context, p *entity.Personnel) error
}

// AttachmentRepository tracks upload ownership
type AttachmentRepository interface {
	Create(ctx context.Context, a *entity.Attachment) error
	// Claim binds the unclaimed uploads of uploadedBy among urls to recordID
	// and returns how many were bound. Other URLs are left untouched.
	Claim(ctx context.Context, recordID, uploadedBy string, urls []string) (int, error)
	ListByRecord(ctx context.Context, recordID string) ([]*entity.Attachment, error)
	Delete(ctx context.Context, url string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
