package entity

import (
	"time"

	"github.com/garyjia/site-qms/internal/domain/workflow"
)

// HistoryEntry is one line of a record's audit trail
type HistoryEntry struct {
	ID        string          `json:"id"`
	RecordID  string          `json:"record_id"`
	Module    workflow.Module `json:"module"`
	ActorID   string          `json:"actor_id"`
	Action    string          `json:"action"`
	OldStatus workflow.Status `json:"old_status,omitempty"`
	NewStatus workflow.Status `json:"new_status,omitempty"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
