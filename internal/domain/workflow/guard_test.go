package workflow

import (
	"strings"
	"testing"
	"time"
)

func TestCanEdit(t *testing.T) {
	approver := RoleFlags{IsApprover: true, IsMember: true}
	responsible := RoleFlags{IsResponsibleParty: true, IsMember: true}
	creator := RoleFlags{IsCreator: true, IsMember: true}
	member := RoleFlags{IsMember: true}
	admin := RoleFlags{IsAdmin: true}

	tests := []struct {
		name   string
		module Module
		stage  int
		status Status
		flags  RoleFlags
		want   bool
	}{
		{"member creates observation", ModuleObservation, 1, "", member, true},
		{"outsider cannot create", ModuleObservation, 1, "", RoleFlags{}, false},
		{"new record only at stage 1", ModuleObservation, 2, "", member, false},
		{"approver at pre approval", ModuleObservation, 2, StatusPreApproval, approver, true},
		{"responsible party at pre approval", ModuleObservation, 2, StatusPreApproval, responsible, false},
		{"responsible party enters data", ModuleObservation, 3, StatusWaitingDataEntry, responsible, true},
		{"approver cannot enter data", ModuleObservation, 3, StatusWaitingDataEntry, approver, false},
		{"responsible party submits closure", ModuleObservation, 4, StatusOpen, responsible, true},
		{"approver final approval", ModuleObservation, 5, StatusWaitingCloseApproval, approver, true},
		{"stage ahead of status", ModuleObservation, 3, StatusPreApproval, responsible, false},
		{"stage behind status", ModuleObservation, 2, StatusOpen, approver, false},
		{"closed observation", ModuleObservation, 5, StatusClosedOnTime, approver, false},
		{"admin on closed observation", ModuleObservation, 5, StatusClosedLate, admin, true},
		{"admin at any observation stage", ModuleObservation, 3, StatusPreApproval, admin, true},
		{"creator edits planned training", ModuleTraining, 1, StatusPlanned, creator, true},
		{"organizer edits planned training", ModuleTraining, 1, StatusPlanned, responsible, true},
		{"member cannot edit planned training", ModuleTraining, 1, StatusPlanned, member, false},
		{"planner approves training", ModuleTraining, 2, StatusAwaitingApproval, approver, true},
		{"creator cannot approve training", ModuleTraining, 2, StatusAwaitingApproval, creator, false},
		{"admin on planned training", ModuleTraining, 1, StatusPlanned, admin, true},
		{"admin locked out of completed training", ModuleTraining, 2, StatusCompleted, admin, false},
		{"admin locked out of cancelled training", ModuleTraining, 1, StatusCancelled, admin, false},
		{"noi approver on pending", ModuleNOI, 1, StatusPendingApproval, approver, true},
		{"noi creator on pending", ModuleNOI, 1, StatusPendingApproval, creator, false},
		{"noi creator on rejected", ModuleNOI, 1, StatusRejected, creator, true},
		{"noi approver on rejected", ModuleNOI, 1, StatusRejected, approver, false},
		{"noi approved is final", ModuleNOI, 1, StatusApproved, approver, false},
		{"admin on approved noi", ModuleNOI, 1, StatusApproved, admin, true},
		{"unknown module", Module("payroll"), 1, StatusPlanned, admin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEdit(tt.module, tt.stage, tt.status, tt.flags); got != tt.want {
				t.Errorf("CanEdit() = %v, want %v (reason: %s)", got, tt.want,
					CheckEdit(tt.module, tt.stage, tt.status, tt.flags).Reason)
			}
		})
	}
}

func TestCheckEdit_DenialHasReason(t *testing.T) {
	res := CheckEdit(ModuleObservation, 3, StatusPreApproval, RoleFlags{IsResponsibleParty: true})
	if res.Allowed {
		t.Fatal("CheckEdit() should deny out-of-order stage")
	}
	if !strings.Contains(res.Reason, "current stage 2") {
		t.Errorf("Reason = %q, want it to name the current stage", res.Reason)
	}
}

func TestCheckAction(t *testing.T) {
	tests := []struct {
		name    string
		module  Module
		trigger Trigger
		stage   int
		status  Status
		flags   RoleFlags
		want    bool
	}{
		{"creator cancels planned training", ModuleTraining, TriggerCancel, 1, StatusPlanned, RoleFlags{IsCreator: true}, true},
		{"planner cancels awaiting training", ModuleTraining, TriggerCancel, 2, StatusAwaitingApproval, RoleFlags{IsApprover: true}, true},
		{"member cannot cancel training", ModuleTraining, TriggerCancel, 1, StatusPlanned, RoleFlags{IsMember: true}, false},
		{"cancel terminal training", ModuleTraining, TriggerCancel, 2, StatusCompleted, RoleFlags{IsAdmin: true}, false},
		{"creator cancels pending noi", ModuleNOI, TriggerCancel, 1, StatusPendingApproval, RoleFlags{IsCreator: true}, true},
		{"approver cannot cancel noi", ModuleNOI, TriggerCancel, 1, StatusPendingApproval, RoleFlags{IsApprover: true}, false},
		{"creator resubmits noi", ModuleNOI, TriggerResubmit, 1, StatusRejected, RoleFlags{IsCreator: true}, true},
		{"admin resubmits noi", ModuleNOI, TriggerResubmit, 1, StatusRejected, RoleFlags{IsAdmin: true}, true},
		{"stranger resubmits noi", ModuleNOI, TriggerResubmit, 1, StatusRejected, RoleFlags{IsMember: true}, false},
		{"admin direct edit", ModuleObservation, TriggerAdminEdit, 4, StatusOpen, RoleFlags{IsAdmin: true}, true},
		{"admin direct edit on closed", ModuleObservation, TriggerAdminEdit, 5, StatusClosedLate, RoleFlags{IsAdmin: true}, false},
		{"approver direct edit", ModuleObservation, TriggerAdminEdit, 2, StatusPreApproval, RoleFlags{IsApprover: true}, false},
		{"approve uses stage guard", ModuleObservation, TriggerApprove, 2, StatusPreApproval, RoleFlags{IsApprover: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckAction(tt.module, tt.trigger, tt.stage, tt.status, tt.flags); got.Allowed != tt.want {
				t.Errorf("CheckAction() = %v, want %v (reason: %s)", got.Allowed, tt.want, got.Reason)
			}
		})
	}
}

func TestClassifyClosure(t *testing.T) {
	planned := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		closing time.Time
		want    Status
	}{
		{"same day", planned, StatusClosedOnTime},
		{"same day evening", time.Date(2026, 5, 20, 22, 30, 0, 0, time.UTC), StatusClosedOnTime},
		{"day before", planned.AddDate(0, 0, -1), StatusClosedOnTime},
		{"day after", planned.AddDate(0, 0, 1), StatusClosedLate},
		{"next month", planned.AddDate(0, 1, 0), StatusClosedLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyClosure(planned, tt.closing); got != tt.want {
				t.Errorf("ClassifyClosure() = %v, want %v", got, tt.want)
			}
		})
	}
}
