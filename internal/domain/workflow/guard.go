package workflow

import "fmt"

// RoleFlags describes the caller's relationship to a single record.
// IsMember is set when the caller has a personnel row in the record's project.
type RoleFlags struct {
	IsCreator          bool `json:"is_creator"`
	IsResponsibleParty bool `json:"is_responsible_party"`
	IsApprover         bool `json:"is_approver"`
	IsAdmin            bool `json:"is_admin"`
	IsMember           bool `json:"is_member"`
}

// GuardResult holds the outcome of a guard check with a human-readable reason
type GuardResult struct {
	Allowed bool
	Reason  string
}

func allow() GuardResult {
	return GuardResult{Allowed: true}
}

func deny(format string, args ...interface{}) GuardResult {
	return GuardResult{Reason: fmt.Sprintf(format, args...)}
}

// CanEdit reports whether the caller may act on the given stage of a record.
// An empty status denotes a record that has not been persisted yet.
func CanEdit(m Module, stage int, status Status, flags RoleFlags) bool {
	return CheckEdit(m, stage, status, flags).Allowed
}

// CheckEdit is CanEdit with the reason for a denial.
//
// Admins may edit any stage except a field training that is completed or
// cancelled. Everyone else must act on the current stage of a non-terminal
// record and hold the role that owns that stage.
func CheckEdit(m Module, stage int, status Status, flags RoleFlags) GuardResult {
	if !m.IsValid() {
		return deny("unknown module %q", m)
	}

	if status == "" {
		if stage != 1 {
			return deny("a new record can only be edited at stage 1")
		}
		if flags.IsAdmin || flags.IsMember {
			return allow()
		}
		return deny("only project members can submit a new record")
	}

	current, err := StageOf(m, status)
	if err != nil {
		return deny("%v", err)
	}

	if flags.IsAdmin {
		if m == ModuleTraining && IsTerminal(m, status) {
			return deny("training is locked once %s", status)
		}
		return allow()
	}

	if stage != current {
		return deny("stage %d is not the current stage %d", stage, current)
	}
	if IsTerminal(m, status) {
		return deny("record is %s", status)
	}

	switch m {
	case ModuleObservation:
		return checkObservation(status, flags)
	case ModuleTraining:
		return checkTraining(status, flags)
	case ModuleNOI:
		return checkNOI(status, flags)
	}
	return deny("unknown module %q", m)
}

func checkObservation(status Status, flags RoleFlags) GuardResult {
	switch status {
	case StatusPreApproval, StatusWaitingCloseApproval:
		if flags.IsApprover {
			return allow()
		}
		return deny("only an approver can act on %s", status)
	case StatusWaitingDataEntry, StatusOpen:
		if flags.IsResponsibleParty {
			return allow()
		}
		return deny("only a responsible party can act on %s", status)
	}
	return deny("no actor owns %s", status)
}

func checkTraining(status Status, flags RoleFlags) GuardResult {
	switch status {
	case StatusPlanned:
		if flags.IsCreator || flags.IsResponsibleParty || flags.IsApprover {
			return allow()
		}
		return deny("only the creator, organizer or a planner can edit a planned training")
	case StatusAwaitingApproval:
		if flags.IsApprover {
			return allow()
		}
		return deny("only a training planner can approve")
	}
	return deny("no actor owns %s", status)
}

func checkNOI(status Status, flags RoleFlags) GuardResult {
	switch status {
	case StatusPendingApproval:
		if flags.IsApprover {
			return allow()
		}
		return deny("only an NOI approver can act on a pending request")
	case StatusRejected:
		if flags.IsCreator {
			return allow()
		}
		return deny("only the requester can revise a rejected request")
	}
	return deny("no actor owns %s", status)
}

// CheckAction applies the guard for a specific trigger. Cancel and resubmit
// belong to the record's owner rather than to the stage actor.
func CheckAction(m Module, trigger Trigger, stage int, status Status, flags RoleFlags) GuardResult {
	switch trigger {
	case TriggerCancel, TriggerResubmit:
		return checkOwnerAction(m, trigger, stage, status, flags)
	case TriggerAdminEdit:
		if !flags.IsAdmin {
			return deny("direct edits require an administrator")
		}
		if IsTerminal(m, status) {
			return deny("record is %s", status)
		}
		return CheckEdit(m, stage, status, flags)
	}
	return CheckEdit(m, stage, status, flags)
}

func checkOwnerAction(m Module, trigger Trigger, stage int, status Status, flags RoleFlags) GuardResult {
	current, err := StageOf(m, status)
	if err != nil {
		return deny("%v", err)
	}
	if stage != current {
		return deny("stage %d is not the current stage %d", stage, current)
	}
	if IsTerminal(m, status) {
		return deny("record is %s", status)
	}
	if flags.IsAdmin || flags.IsCreator {
		return allow()
	}
	if m == ModuleTraining && trigger == TriggerCancel && (flags.IsResponsibleParty || flags.IsApprover) {
		return allow()
	}
	return deny("only the creator can %s", trigger)
}
