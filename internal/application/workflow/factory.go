package workflow

import (
	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
)

// buildMachines returns one configured builder per module. Every non-terminal
// status permits TriggerAdminEdit as a self transition.
func buildMachines() map[domainwf.Module]domainwf.StatusMachineBuilder {
	return map[domainwf.Module]domainwf.StatusMachineBuilder{
		domainwf.ModuleObservation: observationMachine(),
		domainwf.ModuleTraining:    trainingMachine(),
		domainwf.ModuleNOI:         noiMachine(),
	}
}

func observationMachine() domainwf.StatusMachineBuilder {
	b := domainwf.NewBuilder(domainwf.ModuleObservation)

	// rejection at pre-approval deletes the record and is not a status change
	b.Configure(domainwf.StatusPreApproval).
		Permit(domainwf.TriggerApprove, domainwf.StatusWaitingDataEntry).
		Permit(domainwf.TriggerAdminEdit, domainwf.StatusPreApproval)

	b.Configure(domainwf.StatusWaitingDataEntry).
		Permit(domainwf.TriggerSubmitDataEntry, domainwf.StatusOpen).
		Permit(domainwf.TriggerAdminEdit, domainwf.StatusWaitingDataEntry)

	b.Configure(domainwf.StatusOpen).
		Permit(domainwf.TriggerSubmitClosure, domainwf.StatusWaitingCloseApproval).
		Permit(domainwf.TriggerAdminEdit, domainwf.StatusOpen)

	b.Configure(domainwf.StatusWaitingCloseApproval).
		PermitIf(domainwf.TriggerApprove, domainwf.StatusClosedOnTime, domainwf.ClosedOnTime).
		PermitIf(domainwf.TriggerApprove, domainwf.StatusClosedLate, domainwf.ClosedLate).
		Permit(domainwf.TriggerReject, domainwf.StatusOpen).
		Permit(domainwf.TriggerAdminEdit, domainwf.StatusWaitingCloseApproval)

	return b
}

func trainingMachine() domainwf.StatusMachineBuilder {
	b := domainwf.NewBuilder(domainwf.ModuleTraining)

	b.Configure(domainwf.StatusPlanned).
		Permit(domainwf.TriggerSubmit, domainwf.StatusAwaitingApproval).
		Permit(domainwf.TriggerCancel, domainwf.StatusCancelled).
		Permit(domainwf.TriggerAdminEdit, domainwf.StatusPlanned)

	b.Configure(domainwf.StatusAwaitingApproval).
		Permit(domainwf.TriggerApprove, domainwf.StatusCompleted).
		Permit(domainwf.TriggerReject, domainwf.StatusPlanned).
		Permit(domainwf.TriggerCancel, domainwf.StatusCancelled).
		Permit(domainwf.TriggerAdminEdit, domainwf.StatusAwaitingApproval)

	return b
}

func noiMachine() domainwf.StatusMachineBuilder {
	b := domainwf.NewBuilder(domainwf.ModuleNOI)

	b.Configure(domainwf.StatusPendingApproval).
		Permit(domainwf.TriggerApprove, domainwf.StatusApproved).
		Permit(domainwf.TriggerReject, domainwf.StatusRejected).
		Permit(domainwf.TriggerCancel, domainwf.StatusCancelled).
		Permit(domainwf.TriggerAdminEdit, domainwf.StatusPendingApproval)

	b.Configure(domainwf.StatusRejected).
		Permit(domainwf.TriggerResubmit, domainwf.StatusResubmitted).
		Permit(domainwf.TriggerCancel, domainwf.StatusCancelled).
		Permit(domainwf.TriggerAdminEdit, domainwf.StatusRejected)

	return b
}
