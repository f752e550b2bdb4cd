package workflow

import (
	"sort"
	"strings"
	"time"

	"github.com/garyjia/site-qms/internal/domain/entity"
	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
)

var severities = map[string]bool{
	entity.SeverityLow:    true,
	entity.SeverityMedium: true,
	entity.SeverityHigh:   true,
}

// Payload keys each stage submission may write. Anything else belongs to
// another stage and is refused.
var (
	dataEntryFields      = fieldSet(entity.FieldRootCause, entity.FieldCorrectiveAction, entity.FieldCorrectivePhotos)
	closureFields        = fieldSet(entity.FieldClosureNote, entity.FieldClosurePhotos)
	trainingSubmitFields = fieldSet(entity.FieldParticipants, entity.FieldDurationHours)
)

func fieldSet(fields ...string) map[string]bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// checkPayloadKeys refuses payload keys outside allowed, naming the first in
// sorted order
func checkPayloadKeys(payload map[string]interface{}, allowed map[string]bool) error {
	var foreign []string
	for k := range payload {
		if !allowed[k] {
			foreign = append(foreign, k)
		}
	}
	if len(foreign) == 0 {
		return nil
	}
	sort.Strings(foreign)
	return domainwf.NewValidationError(foreign[0], "cannot be changed at this stage")
}

// validateCreate checks the stage-1 required fields of a module
func validateCreate(req CreateRequest) error {
	if strings.TrimSpace(req.ProjectID) == "" {
		return domainwf.NewValidationError("project_id", "is required")
	}
	if !req.Module.IsValid() {
		return domainwf.NewValidationError("module", "must be observation, training or noi")
	}

	switch req.Module {
	case domainwf.ModuleObservation:
		if err := requirePayload(req.Payload, entity.FieldDescription); err != nil {
			return err
		}
		severity, _ := req.Payload[entity.FieldSeverity].(string)
		if !severities[strings.ToLower(strings.TrimSpace(severity))] {
			return domainwf.NewValidationError(entity.FieldSeverity, "must be low, medium or high")
		}
		if err := requireText("location", req.Location); err != nil {
			return err
		}
		if len(nonBlank(req.ResponsibleParties)) == 0 {
			return domainwf.NewValidationError("responsible_parties", "at least one responsible party is required")
		}

	case domainwf.ModuleTraining:
		if err := requirePayload(req.Payload, entity.FieldTopic); err != nil {
			return err
		}
		if req.EventDate == nil {
			return domainwf.NewValidationError("training_date", "is required")
		}
		if err := requireText("location", req.Location); err != nil {
			return err
		}
		if len(nonBlank(req.ResponsibleParties)) == 0 {
			return domainwf.NewValidationError("organizer", "is required")
		}

	case domainwf.ModuleNOI:
		if err := requireText("location", req.Location); err != nil {
			return err
		}
		return validateNOISchedule(req.EventDate, req.EventTime, req.Payload)
	}

	return nil
}

// validateNOISchedule checks the NOI fields a revision must carry over.
// Location is left out: a revision clears it unless a new one is given.
func validateNOISchedule(date *time.Time, clock string, payload map[string]interface{}) error {
	if date == nil {
		return domainwf.NewValidationError("inspection_date", "is required")
	}
	if err := requireText("inspection_time", clock); err != nil {
		return err
	}
	return requirePayload(payload, entity.FieldActivity)
}

// validateRevision checks the stage-1 fields of a revision before it is stored
func validateRevision(rec *entity.Record) error {
	if rec.Module != domainwf.ModuleNOI {
		return nil
	}
	return validateNOISchedule(rec.EventDate, rec.EventTime, rec.Payload)
}

func validateDataEntry(req StageRequest) error {
	if err := checkPayloadKeys(req.Payload, dataEntryFields); err != nil {
		return err
	}
	if err := requirePayload(req.Payload, entity.FieldRootCause); err != nil {
		return err
	}
	if err := requirePayload(req.Payload, entity.FieldCorrectiveAction); err != nil {
		return err
	}
	if req.PlannedCloseDate == nil {
		return domainwf.NewValidationError("planned_close_date", "is required")
	}
	return nil
}

func validateClosure(req StageRequest) error {
	if err := checkPayloadKeys(req.Payload, closureFields); err != nil {
		return err
	}
	if req.ClosingDate == nil {
		return domainwf.NewValidationError("closing_date", "is required")
	}
	return requirePayload(req.Payload, entity.FieldClosureNote)
}

func validateTrainingSubmit(req StageRequest) error {
	if err := checkPayloadKeys(req.Payload, trainingSubmitFields); err != nil {
		return err
	}
	if err := requirePayload(req.Payload, entity.FieldParticipants); err != nil {
		return err
	}
	hours, ok := toFloat(req.Payload[entity.FieldDurationHours])
	if !ok || hours <= 0 {
		return domainwf.NewValidationError(entity.FieldDurationHours, "must be a positive number")
	}
	return nil
}

// validateFinalClosure checks the record fields that timeliness needs
func validateFinalClosure(rec *entity.Record) error {
	if rec.ClosingDate == nil {
		return domainwf.NewValidationError("closing_date", "must be submitted before final approval")
	}
	if rec.PlannedCloseDate == nil {
		return domainwf.NewValidationError("planned_close_date", "must be set before final approval")
	}
	return nil
}

func validateReason(reason string) error {
	return requireText("reason", reason)
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domainwf.NewValidationError(field, "is required")
	}
	return nil
}

func requirePayload(payload map[string]interface{}, field string) error {
	if !present(payload[field]) {
		return domainwf.NewValidationError(field, "is required")
	}
	return nil
}

// present reports whether a decoded JSON value carries content
func present(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case []interface{}:
		return len(val) > 0
	case []string:
		return len(nonBlank(val)) > 0
	case map[string]interface{}:
		return len(val) > 0
	case float64:
		return val != 0
	case int:
		return val != 0
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
