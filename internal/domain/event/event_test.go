package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{name: "record created", eventType: TypeRecordCreated, want: true},
		{name: "status changed", eventType: TypeStatusChanged, want: true},
		{name: "record deleted", eventType: TypeRecordDeleted, want: true},
		{name: "record revised", eventType: TypeRecordRevised, want: true},
		{name: "record edited", eventType: TypeRecordEdited, want: true},
		{name: "unknown type", eventType: Type("unknown.type"), want: false},
		{name: "empty string", eventType: Type(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		KeyNewStatus: "open",
	}

	event := NewEvent(TypeStatusChanged, "rec-1", "proj-1", "observation", payload)

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TypeStatusChanged {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeStatusChanged)
	}
	if event.RecordID != "rec-1" || event.ProjectID != "proj-1" || event.Module != "observation" {
		t.Errorf("Event identity = %s/%s/%s", event.RecordID, event.ProjectID, event.Module)
	}
	if event.GetPayloadString(KeyNewStatus) != "open" {
		t.Errorf("Event Payload[new_status] = %v, want open", event.Payload[KeyNewStatus])
	}
	if event.CorrelationID != event.ID {
		t.Errorf("CorrelationID = %v, want the event ID %v", event.CorrelationID, event.ID)
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	event := NewEvent(TypeRecordDeleted, "rec-1", "proj-1", "observation", nil)
	if event.Payload == nil {
		t.Fatal("Event Payload should not be nil")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	event := NewEventWithCorrelation(TypeRecordRevised, "rec-2", "proj-1", "noi", nil, "corr-1")

	if event.CorrelationID != "corr-1" {
		t.Errorf("Event CorrelationID = %v, want corr-1", event.CorrelationID)
	}
	if event.ID == "corr-1" {
		t.Error("Event ID should be freshly generated")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeRecordCreated, "rec-1", "proj-1", "training", map[string]interface{}{
		"key1": "value1",
	})

	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.GetPayloadString("key1") != "value1" || modified.GetPayloadString("key2") != "value2" {
		t.Errorf("Modified payload = %v", modified.Payload)
	}
	if modified.ID != original.ID {
		t.Error("WithPayload should keep the event ID")
	}
}

func TestEvent_PayloadGetters(t *testing.T) {
	event := NewEvent(TypeStatusChanged, "rec-1", "proj-1", "noi", map[string]interface{}{
		"str":    "value",
		"list":   []interface{}{"a", 1, "b"},
		"typed":  []string{"c"},
		"flag":   true,
		"number": 42,
	})

	if got := event.GetPayloadString("number"); got != "" {
		t.Errorf("GetPayloadString(number) = %q, want empty", got)
	}
	if got := event.GetPayloadStrings("list"); len(got) != 2 || got[1] != "b" {
		t.Errorf("GetPayloadStrings(list) = %v", got)
	}
	if got := event.GetPayloadStrings("typed"); len(got) != 1 {
		t.Errorf("GetPayloadStrings(typed) = %v", got)
	}
	if !event.GetPayloadBool("flag") || event.GetPayloadBool("str") {
		t.Error("GetPayloadBool returned wrong values")
	}
}
