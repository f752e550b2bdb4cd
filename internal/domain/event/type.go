package event

// Type identifies the type of domain event
type Type string

const (
	TypeRecordCreated Type = "record.created"
	TypeStatusChanged Type = "record.status_changed"
	TypeRecordDeleted Type = "record.deleted"
	TypeRecordRevised Type = "record.revised"
	TypeRecordEdited  Type = "record.edited"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRecordCreated,
		TypeStatusChanged,
		TypeRecordDeleted,
		TypeRecordRevised,
		TypeRecordEdited:
		return true
	default:
		return false
	}
}
