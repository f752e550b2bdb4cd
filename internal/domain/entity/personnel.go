package entity

import "github.com/garyjia/site-qms/internal/domain/workflow"

// Personnel is a user's membership row in one project
type Personnel struct {
	ID                    string `json:"id"`
	UserID                string `json:"user_id"`
	ProjectID             string `json:"project_id"`
	Name                  string `json:"name"`
	LarkOpenID            string `json:"lark_open_id,omitempty"`
	IsObservationApprover bool   `json:"is_observation_approver"`
	IsTrainingPlanner     bool   `json:"is_training_planner"`
	IsNOIApprover         bool   `json:"is_noi_approver"`
	IsProjectOwner        bool   `json:"is_project_owner"`
}

// ApprovesModule returns true if the personnel row holds the approver flag of the module
func (p *Personnel) ApprovesModule(m workflow.Module) bool {
	if p == nil {
		return false
	}
	switch m {
	case workflow.ModuleObservation:
		return p.IsObservationApprover
	case workflow.ModuleTraining:
		return p.IsTrainingPlanner
	case workflow.ModuleNOI:
		return p.IsNOIApprover
	}
	return false
}

// Actor is the authenticated caller
type Actor struct {
	UserID     string
	SystemRole string
}

// IsSystemAdmin returns true for the admin and super admin system roles
func (a Actor) IsSystemAdmin() bool {
	return a.SystemRole == RoleAdmin || a.SystemRole == RoleSuperAdmin
}
