package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys set by the workflow engine
const (
	KeyAction         = "action"
	KeyActorID        = "actor_id"
	KeyOldStatus      = "old_status"
	KeyNewStatus      = "new_status"
	KeySequenceNumber = "sequence_number"
	KeyCreatedBy      = "created_by"
	KeyReason         = "reason"
	KeyResponsible    = "responsible_parties"
	KeyParentID       = "parent_id"
)

// Event represents a domain event about one workflow record
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RecordID      string                 `json:"record_id"`
	ProjectID     string                 `json:"project_id"`
	Module        string                 `json:"module"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with generated ID and timestamp
func NewEvent(eventType Type, recordID, projectID, module string, payload map[string]interface{}) *Event {
	e := NewEventWithCorrelation(eventType, recordID, projectID, module, payload, "")
	e.CorrelationID = e.ID
	return e
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, recordID, projectID, module string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RecordID:      recordID,
		ProjectID:     projectID,
		Module:        module,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	c := *e
	c.Payload = newPayload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadStrings retrieves a string slice from the payload
func (e *Event) GetPayloadStrings(key string) []string {
	switch v := e.Payload[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
