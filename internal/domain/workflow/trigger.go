package workflow

// Trigger represents an action that can cause a status transition
type Trigger string

const (
	TriggerCreate          Trigger = "CREATE"
	TriggerApprove         Trigger = "APPROVE"
	TriggerReject          Trigger = "REJECT"
	TriggerSubmitDataEntry Trigger = "SUBMIT_DATA_ENTRY"
	TriggerSubmitClosure   Trigger = "SUBMIT_CLOSURE"
	TriggerSubmit          Trigger = "SUBMIT"
	TriggerCancel          Trigger = "CANCEL"
	TriggerResubmit        Trigger = "RESUBMIT"
	TriggerAdminEdit       Trigger = "ADMIN_EDIT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
