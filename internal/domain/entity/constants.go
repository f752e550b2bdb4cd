package entity

// System roles carried in the access token
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// History actions
const (
	ActionCreate          = "create"
	ActionApprove         = "approve"
	ActionReject          = "reject"
	ActionRejectAndDelete = "reject_and_delete"
	ActionSubmitDataEntry = "submit_data_entry"
	ActionSubmitClosure   = "submit_closure"
	ActionSubmit          = "submit_for_approval"
	ActionCancel          = "cancel"
	ActionResubmit        = "resubmit"
	ActionAdminEdit       = "admin_edit"
)

// Payload keys with workflow meaning
const (
	FieldDescription      = "description"
	FieldSeverity         = "severity"
	FieldRootCause        = "root_cause"
	FieldCorrectiveAction = "corrective_action"
	FieldCorrectivePhotos = "corrective_photos"
	FieldClosureNote      = "closure_note"
	FieldPhotos           = "photos"
	FieldClosurePhotos    = "closure_photos"
	FieldTopic            = "topic"
	FieldParticipants     = "participants"
	FieldDurationHours    = "duration_hours"
	FieldActivity         = "activity"
)

// Observation severities
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)
