package workflow

import "fmt"

// StageOf returns the stage number the status belongs to.
// Unknown modules or statuses are reported as errors, never defaulted.
func StageOf(m Module, s Status) (int, error) {
	model, ok := models[m]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidModule, m)
	}
	stage, ok := model.stages[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a %s status", ErrInvalidStatus, s, m)
	}
	return stage, nil
}

// CompletedStages returns the stages finished by a record in the given status.
// Closed statuses include their own stage.
func CompletedStages(m Module, s Status) ([]int, error) {
	stage, err := StageOf(m, s)
	if err != nil {
		return nil, err
	}

	last := stage - 1
	if models[m].closed[s] {
		last = stage
	}

	completed := make([]int, 0, last)
	for i := 1; i <= last; i++ {
		completed = append(completed, i)
	}
	return completed, nil
}

// IsTerminal returns true if no further transition is expected from the status
func IsTerminal(m Module, s Status) bool {
	model, ok := models[m]
	if !ok {
		return false
	}
	return model.terminal[s]
}

// Progress is the display view of a record's workflow position
type Progress struct {
	Stage           int   `json:"stage"`
	StageCount      int   `json:"stage_count"`
	CompletedStages []int `json:"completed_stages"`
	Terminal        bool  `json:"terminal"`
}

// ProgressFor derives the workflow position of a record. A record that has not
// been persisted yet is always at stage 1, whatever its default status says.
func ProgressFor(m Module, s Status, persisted bool) (Progress, error) {
	if !m.IsValid() {
		return Progress{}, fmt.Errorf("%w: %q", ErrInvalidModule, m)
	}
	if !persisted {
		return Progress{
			Stage:           1,
			StageCount:      m.StageCount(),
			CompletedStages: []int{},
		}, nil
	}

	stage, err := StageOf(m, s)
	if err != nil {
		return Progress{}, err
	}
	completed, err := CompletedStages(m, s)
	if err != nil {
		return Progress{}, err
	}

	return Progress{
		Stage:           stage,
		StageCount:      m.StageCount(),
		CompletedStages: completed,
		Terminal:        IsTerminal(m, s),
	}, nil
}
