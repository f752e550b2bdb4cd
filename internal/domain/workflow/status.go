package workflow

import "fmt"

// Module identifies which workflow a record belongs to
type Module string

const (
	ModuleObservation Module = "observation"
	ModuleTraining    Module = "training"
	ModuleNOI         Module = "noi"
)

// Status represents the persisted workflow position of a record
type Status string

// Field observation statuses
const (
	StatusPreApproval          Status = "pre_approval"
	StatusWaitingDataEntry     Status = "waiting_data_entry"
	StatusOpen                 Status = "open"
	StatusWaitingCloseApproval Status = "waiting_close_approval"
	StatusClosedOnTime         Status = "closed_on_time"
	StatusClosedLate           Status = "closed_late"
)

// Field training statuses
const (
	StatusPlanned          Status = "planned"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
)

// NOI statuses. StatusResubmitted marks a rejected request that was superseded
// by a new revision.
const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusResubmitted     Status = "resubmitted"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// String returns the string representation of the module
func (m Module) String() string {
	return string(m)
}

// statusModel describes the stage layout of one module
type statusModel struct {
	stageCount int
	initial    Status
	ordered    []Status
	stages     map[Status]int
	terminal   map[Status]bool
	// closed statuses complete every stage up to and including their own
	closed map[Status]bool
}

var models = map[Module]*statusModel{
	ModuleObservation: {
		stageCount: 5,
		initial:    StatusPreApproval,
		ordered: []Status{
			StatusPreApproval,
			StatusWaitingDataEntry,
			StatusOpen,
			StatusWaitingCloseApproval,
			StatusClosedOnTime,
			StatusClosedLate,
		},
		stages: map[Status]int{
			StatusPreApproval:          2,
			StatusWaitingDataEntry:     3,
			StatusOpen:                 4,
			StatusWaitingCloseApproval: 5,
			StatusClosedOnTime:         5,
			StatusClosedLate:           5,
		},
		terminal: map[Status]bool{
			StatusClosedOnTime: true,
			StatusClosedLate:   true,
		},
		closed: map[Status]bool{
			StatusClosedOnTime: true,
			StatusClosedLate:   true,
		},
	},
	ModuleTraining: {
		stageCount: 2,
		initial:    StatusPlanned,
		ordered: []Status{
			StatusPlanned,
			StatusAwaitingApproval,
			StatusCompleted,
			StatusCancelled,
		},
		stages: map[Status]int{
			StatusPlanned:          1,
			StatusAwaitingApproval: 2,
			StatusCompleted:        2,
			StatusCancelled:        1,
		},
		terminal: map[Status]bool{
			StatusCompleted: true,
			StatusCancelled: true,
		},
		closed: map[Status]bool{
			StatusCompleted: true,
		},
	},
	ModuleNOI: {
		stageCount: 1,
		initial:    StatusPendingApproval,
		ordered: []Status{
			StatusPendingApproval,
			StatusApproved,
			StatusRejected,
			StatusResubmitted,
			StatusCancelled,
		},
		stages: map[Status]int{
			StatusPendingApproval: 1,
			StatusApproved:        1,
			StatusRejected:        1,
			StatusResubmitted:     1,
			StatusCancelled:       1,
		},
		terminal: map[Status]bool{
			StatusApproved:    true,
			StatusResubmitted: true,
			StatusCancelled:   true,
		},
		closed: map[Status]bool{
			StatusApproved: true,
		},
	},
}

// Modules returns every workflow module in a stable order
func Modules() []Module {
	return []Module{ModuleObservation, ModuleTraining, ModuleNOI}
}

// IsValid returns true if the module is known
func (m Module) IsValid() bool {
	_, ok := models[m]
	return ok
}

// StageCount returns the number of stages of the module, or 0 for an unknown module
func (m Module) StageCount() int {
	if model, ok := models[m]; ok {
		return model.stageCount
	}
	return 0
}

// InitialStatus returns the status a freshly created record starts in
func (m Module) InitialStatus() Status {
	if model, ok := models[m]; ok {
		return model.initial
	}
	return ""
}

// Statuses returns the module's status enum in workflow order
func (m Module) Statuses() []Status {
	model, ok := models[m]
	if !ok {
		return nil
	}
	return append([]Status(nil), model.ordered...)
}

// IsValidStatus returns true if the status belongs to the module's enum
func (m Module) IsValidStatus(s Status) bool {
	model, ok := models[m]
	if !ok {
		return false
	}
	_, ok = model.stages[s]
	return ok
}

// ParseModule converts a raw string into a known module
func ParseModule(raw string) (Module, error) {
	m := Module(raw)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidModule, raw)
	}
	return m, nil
}
