package workflow

import (
	"errors"
	"reflect"
	"testing"
)

func TestStageOf(t *testing.T) {
	tests := []struct {
		module Module
		status Status
		want   int
	}{
		{ModuleObservation, StatusPreApproval, 2},
		{ModuleObservation, StatusWaitingDataEntry, 3},
		{ModuleObservation, StatusOpen, 4},
		{ModuleObservation, StatusWaitingCloseApproval, 5},
		{ModuleObservation, StatusClosedOnTime, 5},
		{ModuleObservation, StatusClosedLate, 5},
		{ModuleTraining, StatusPlanned, 1},
		{ModuleTraining, StatusAwaitingApproval, 2},
		{ModuleTraining, StatusCompleted, 2},
		{ModuleTraining, StatusCancelled, 1},
		{ModuleNOI, StatusPendingApproval, 1},
		{ModuleNOI, StatusRejected, 1},
		{ModuleNOI, StatusApproved, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.module)+"/"+string(tt.status), func(t *testing.T) {
			got, err := StageOf(tt.module, tt.status)
			if err != nil {
				t.Fatalf("StageOf() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("StageOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStageOf_UnknownIsError(t *testing.T) {
	if _, err := StageOf(ModuleObservation, Status("archived")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("StageOf() error = %v, want %v", err, ErrInvalidStatus)
	}
	if _, err := StageOf(ModuleObservation, StatusPlanned); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("StageOf() error = %v, want %v", err, ErrInvalidStatus)
	}
	if _, err := StageOf(Module("payroll"), StatusPlanned); !errors.Is(err, ErrInvalidModule) {
		t.Errorf("StageOf() error = %v, want %v", err, ErrInvalidModule)
	}
}

func TestCompletedStages(t *testing.T) {
	tests := []struct {
		module Module
		status Status
		want   []int
	}{
		{ModuleObservation, StatusPreApproval, []int{1}},
		{ModuleObservation, StatusOpen, []int{1, 2, 3}},
		{ModuleObservation, StatusWaitingCloseApproval, []int{1, 2, 3, 4}},
		{ModuleObservation, StatusClosedOnTime, []int{1, 2, 3, 4, 5}},
		{ModuleObservation, StatusClosedLate, []int{1, 2, 3, 4, 5}},
		{ModuleTraining, StatusPlanned, []int{}},
		{ModuleTraining, StatusAwaitingApproval, []int{1}},
		{ModuleTraining, StatusCompleted, []int{1, 2}},
		{ModuleTraining, StatusCancelled, []int{}},
		{ModuleNOI, StatusPendingApproval, []int{}},
		{ModuleNOI, StatusApproved, []int{1}},
	}

	for _, tt := range tests {
		t.Run(string(tt.module)+"/"+string(tt.status), func(t *testing.T) {
			got, err := CompletedStages(tt.module, tt.status)
			if err != nil {
				t.Fatalf("CompletedStages() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CompletedStages() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Every stage below the current one is complete, and no stage above it.
func TestCompletedStages_Consistency(t *testing.T) {
	for _, m := range Modules() {
		for _, s := range m.Statuses() {
			stage, err := StageOf(m, s)
			if err != nil {
				t.Fatalf("StageOf(%s, %s) error = %v", m, s, err)
			}
			completed, err := CompletedStages(m, s)
			if err != nil {
				t.Fatalf("CompletedStages(%s, %s) error = %v", m, s, err)
			}

			done := make(map[int]bool, len(completed))
			for _, c := range completed {
				done[c] = true
			}
			for i := 1; i < stage; i++ {
				if !done[i] {
					t.Errorf("%s/%s: stage %d should be complete", m, s, i)
				}
			}
			for i := stage + 1; i <= m.StageCount(); i++ {
				if done[i] {
					t.Errorf("%s/%s: stage %d should not be complete", m, s, i)
				}
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		module Module
		status Status
		want   bool
	}{
		{ModuleObservation, StatusWaitingCloseApproval, false},
		{ModuleObservation, StatusClosedOnTime, true},
		{ModuleObservation, StatusClosedLate, true},
		{ModuleTraining, StatusAwaitingApproval, false},
		{ModuleTraining, StatusCompleted, true},
		{ModuleTraining, StatusCancelled, true},
		{ModuleNOI, StatusRejected, false},
		{ModuleNOI, StatusApproved, true},
		{ModuleNOI, StatusResubmitted, true},
		{ModuleNOI, StatusCancelled, true},
		{Module("payroll"), StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.module)+"/"+string(tt.status), func(t *testing.T) {
			if got := IsTerminal(tt.module, tt.status); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgressFor_NewRecordIsStageOne(t *testing.T) {
	for _, m := range Modules() {
		// a stale default status must not move an unsaved record past stage 1
		p, err := ProgressFor(m, m.InitialStatus(), false)
		if err != nil {
			t.Fatalf("ProgressFor(%s) error = %v", m, err)
		}
		if p.Stage != 1 {
			t.Errorf("%s: Stage = %d, want 1", m, p.Stage)
		}
		if len(p.CompletedStages) != 0 {
			t.Errorf("%s: CompletedStages = %v, want empty", m, p.CompletedStages)
		}
	}
}

func TestProgressFor_Persisted(t *testing.T) {
	p, err := ProgressFor(ModuleObservation, StatusClosedLate, true)
	if err != nil {
		t.Fatalf("ProgressFor() error = %v", err)
	}
	want := Progress{Stage: 5, StageCount: 5, CompletedStages: []int{1, 2, 3, 4, 5}, Terminal: true}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("ProgressFor() = %+v, want %+v", p, want)
	}

	if _, err := ProgressFor(ModuleObservation, Status(""), true); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ProgressFor() error = %v, want %v", err, ErrInvalidStatus)
	}
}

func TestParseModule(t *testing.T) {
	if m, err := ParseModule("noi"); err != nil || m != ModuleNOI {
		t.Errorf("ParseModule(noi) = %v, %v", m, err)
	}
	if _, err := ParseModule("NOI"); !errors.Is(err, ErrInvalidModule) {
		t.Errorf("ParseModule(NOI) error = %v, want %v", err, ErrInvalidModule)
	}
}
