package entity

import (
	"strings"
	"time"

	"github.com/garyjia/site-qms/internal/domain/workflow"
)

// Record is a workflow record of any module. Module-specific form fields that
// carry no workflow meaning live in Payload.
type Record struct {
	ID                 string                 `json:"id"`
	Module             workflow.Module        `json:"module"`
	ProjectID          string                 `json:"project_id"`
	SequenceNumber     string                 `json:"sequence_number"`
	RevisionNumber     int                    `json:"revision_number"`
	ParentID           string                 `json:"parent_id,omitempty"`
	Status             workflow.Status        `json:"status"`
	CreatedBy          string                 `json:"created_by"`
	ResponsibleParties []string               `json:"responsible_parties"`
	Location           string                 `json:"location"`
	EventDate          *time.Time             `json:"event_date,omitempty"`
	EventTime          string                 `json:"event_time,omitempty"`
	PlannedCloseDate   *time.Time             `json:"planned_close_date,omitempty"`
	ClosingDate        *time.Time             `json:"closing_date,omitempty"`
	ApprovedBy         string                 `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time             `json:"approved_at,omitempty"`
	DataEntryAt        *time.Time             `json:"data_entry_at,omitempty"`
	ClosureSubmittedAt *time.Time             `json:"closure_submitted_at,omitempty"`
	ClosedAt           *time.Time             `json:"closed_at,omitempty"`
	RejectionReason    string                 `json:"rejection_reason,omitempty"`
	CancelledBy        string                 `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time             `json:"cancelled_at,omitempty"`
	CancelReason       string                 `json:"cancel_reason,omitempty"`
	Payload            map[string]interface{} `json:"payload"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	c := *r
	c.ResponsibleParties = append([]string(nil), r.ResponsibleParties...)
	c.Payload = make(map[string]interface{}, len(r.Payload))
	for k, v := range r.Payload {
		c.Payload[k] = v
	}
	c.EventDate = copyTime(r.EventDate)
	c.PlannedCloseDate = copyTime(r.PlannedCloseDate)
	c.ClosingDate = copyTime(r.ClosingDate)
	c.ApprovedAt = copyTime(r.ApprovedAt)
	c.DataEntryAt = copyTime(r.DataEntryAt)
	c.ClosureSubmittedAt = copyTime(r.ClosureSubmittedAt)
	c.ClosedAt = copyTime(r.ClosedAt)
	c.CancelledAt = copyTime(r.CancelledAt)
	return &c
}

// HasResponsible returns true if any of ids occupies a responsible-party slot
func (r *Record) HasResponsible(ids ...string) bool {
	for _, slot := range r.ResponsibleParties {
		for _, id := range ids {
			if id != "" && slot == id {
				return true
			}
		}
	}
	return false
}

// PayloadString returns a payload value as a trimmed string
func (r *Record) PayloadString(key string) string {
	if v, ok := r.Payload[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// PayloadStrings returns a payload list of strings, such as photo URLs
func (r *Record) PayloadStrings(key string) []string {
	switch v := r.Payload[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// PhotoURLs lists the photo URLs of every stage, first stage first
func (r *Record) PhotoURLs() []string {
	var urls []string
	for _, key := range []string{FieldPhotos, FieldCorrectivePhotos, FieldClosurePhotos} {
		urls = append(urls, r.PayloadStrings(key)...)
	}
	return urls
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
