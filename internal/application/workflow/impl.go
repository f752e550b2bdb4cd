package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/site-qms/internal/application/dispatcher"
	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/entity"
	"github.com/garyjia/site-qms/internal/domain/event"
	"github.com/garyjia/site-qms/internal/domain/numbering"
	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// RoleResolver resolves the caller's role flags
type RoleResolver interface {
	Resolve(ctx context.Context, actor entity.Actor, record *entity.Record) (domainwf.RoleFlags, error)
	ResolveForProject(ctx context.Context, actor entity.Actor, projectID string, m domainwf.Module) (domainwf.RoleFlags, error)
}

// DefaultSchemes are the sequence formats used when none are configured
var DefaultSchemes = map[domainwf.Module]numbering.Scheme{
	domainwf.ModuleObservation: {Prefix: "FO", Padding: 3},
	domainwf.ModuleTraining:    {Prefix: "FT", Padding: 3},
	domainwf.ModuleNOI:         {Prefix: "NOI", Padding: 3},
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	records  port.RecordRepository
	history  port.HistoryRepository
	counter  port.SequenceCounter
	tx       port.TransactionManager
	resolver RoleResolver

	dispatcher  dispatcher.Dispatcher
	uploads     port.UploadService
	attachments port.AttachmentRepository
	logger      Logger

	schemes  map[domainwf.Module]numbering.Scheme
	machines map[domainwf.Module]domainwf.StatusMachineBuilder
	now      func() time.Time
	newID    func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithUploads sets the upload service used to clean up photos of deleted records
func WithUploads(u port.UploadService) EngineOption {
	return func(e *engineImpl) {
		e.uploads = u
	}
}

// WithAttachments sets the upload ownership store. Records claim the uploads
// they reference, and only claimed uploads are removed with a deleted record.
func WithAttachments(a port.AttachmentRepository) EngineOption {
	return func(e *engineImpl) {
		e.attachments = a
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithSchemes overrides the sequence number format of the given modules
func WithSchemes(schemes map[domainwf.Module]numbering.Scheme) EngineOption {
	return func(e *engineImpl) {
		for m, s := range schemes {
			e.schemes[m] = s
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithIDGenerator overrides record and history id generation
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = newID
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	records port.RecordRepository,
	history port.HistoryRepository,
	counter port.SequenceCounter,
	tx port.TransactionManager,
	resolver RoleResolver,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		records:  records,
		history:  history,
		counter:  counter,
		tx:       tx,
		resolver: resolver,
		logger:   noopLogger{},
		schemes:  make(map[domainwf.Module]numbering.Scheme, len(DefaultSchemes)),
		machines: buildMachines(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for m, s := range DefaultSchemes {
		e.schemes[m] = s
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// step describes one status transition of an existing record
type step struct {
	trigger domainwf.Trigger
	action  string
	note    string
	// check runs after the guard and before any write
	check func(rec *entity.Record) error
	// apply stamps derived fields on the updated copy
	apply func(rec *entity.Record, now time.Time)
}

// Create validates stage-1 fields, allocates a sequence number and stores the record
func (e *engineImpl) Create(ctx context.Context, actor entity.Actor, req CreateRequest) (*entity.Record, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	flags, err := e.resolver.ResolveForProject(ctx, actor, req.ProjectID, req.Module)
	if err != nil {
		return nil, err
	}
	if res := domainwf.CheckEdit(req.Module, 1, "", flags); !res.Allowed {
		return nil, &domainwf.GuardError{Stage: 1, Reason: res.Reason}
	}

	now := e.now()
	rec := &entity.Record{
		ID:                 e.newID(),
		Module:             req.Module,
		ProjectID:          req.ProjectID,
		Status:             req.Module.InitialStatus(),
		CreatedBy:          actor.UserID,
		ResponsibleParties: nonBlank(req.ResponsibleParties),
		Location:           strings.TrimSpace(req.Location),
		EventDate:          req.EventDate,
		EventTime:          strings.TrimSpace(req.EventTime),
		Payload:            mergePayload(nil, req.Payload),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if severity, ok := rec.Payload[entity.FieldSeverity].(string); ok {
		rec.Payload[entity.FieldSeverity] = strings.ToLower(strings.TrimSpace(severity))
	}

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		n, err := e.counter.Next(txCtx, rec.ProjectID, rec.Module)
		if err != nil {
			return storeErr("allocate sequence", err)
		}
		rec.SequenceNumber = e.schemes[rec.Module].Format(n)

		if err := e.records.Create(txCtx, rec); err != nil {
			return storeErr("create record", err)
		}
		if err := e.claimUploads(txCtx, rec, actor); err != nil {
			return err
		}
		return e.appendHistory(txCtx, rec, actor, entity.ActionCreate, "", rec.Status, "")
	})
	if err != nil {
		e.logger.Error("Failed to create record",
			"project_id", req.ProjectID,
			"module", req.Module,
			"actor", actor.UserID,
			"error", err,
		)
		return nil, err
	}

	e.logger.Info("Record created",
		"record_id", rec.ID,
		"sequence_number", rec.SequenceNumber,
		"module", rec.Module,
		"actor", actor.UserID,
	)
	e.emit(ctx, event.TypeRecordCreated, rec, actor, entity.ActionCreate, "", rec.Status, nil)

	return rec, nil
}

// Approve advances the record past its approval stage
func (e *engineImpl) Approve(ctx context.Context, actor entity.Actor, req ApproveRequest) (*entity.Record, error) {
	rec, err := e.prepare(ctx, actor, req.RecordID, domainwf.TriggerApprove, req.Stage)
	if err != nil {
		return nil, err
	}

	finalClosure := rec.Module == domainwf.ModuleObservation && rec.Status == domainwf.StatusWaitingCloseApproval

	return e.commit(ctx, actor, rec, step{
		trigger: domainwf.TriggerApprove,
		action:  entity.ActionApprove,
		note:    req.Note,
		check: func(rec *entity.Record) error {
			if finalClosure {
				return validateFinalClosure(rec)
			}
			return nil
		},
		apply: func(rec *entity.Record, now time.Time) {
			if domainwf.IsTerminal(rec.Module, rec.Status) {
				rec.ClosedAt = &now
			}
			if !finalClosure {
				rec.ApprovedBy = actor.UserID
				rec.ApprovedAt = &now
			}
			rec.RejectionReason = ""
		},
	})
}

// SubmitDataEntry records root cause and corrective action on an observation
func (e *engineImpl) SubmitDataEntry(ctx context.Context, actor entity.Actor, req StageRequest) (*entity.Record, error) {
	if err := validateDataEntry(req); err != nil {
		return nil, err
	}

	rec, err := e.prepare(ctx, actor, req.RecordID, domainwf.TriggerSubmitDataEntry, req.Stage)
	if err != nil {
		return nil, err
	}

	return e.commit(ctx, actor, rec, step{
		trigger: domainwf.TriggerSubmitDataEntry,
		action:  entity.ActionSubmitDataEntry,
		note:    req.Note,
		apply: func(rec *entity.Record, now time.Time) {
			rec.Payload = mergePayload(rec.Payload, req.Payload)
			rec.PlannedCloseDate = req.PlannedCloseDate
			rec.DataEntryAt = &now
		},
	})
}

// SubmitClosure sends an observation to final approval
func (e *engineImpl) SubmitClosure(ctx context.Context, actor entity.Actor, req StageRequest) (*entity.Record, error) {
	if err := validateClosure(req); err != nil {
		return nil, err
	}

	rec, err := e.prepare(ctx, actor, req.RecordID, domainwf.TriggerSubmitClosure, req.Stage)
	if err != nil {
		return nil, err
	}

	return e.commit(ctx, actor, rec, step{
		trigger: domainwf.TriggerSubmitClosure,
		action:  entity.ActionSubmitClosure,
		note:    req.Note,
		apply: func(rec *entity.Record, now time.Time) {
			rec.Payload = mergePayload(rec.Payload, req.Payload)
			rec.ClosingDate = req.ClosingDate
			rec.ClosureSubmittedAt = &now
			rec.RejectionReason = ""
		},
	})
}

// SubmitForApproval sends a planned training to its planner
func (e *engineImpl) SubmitForApproval(ctx context.Context, actor entity.Actor, req StageRequest) (*entity.Record, error) {
	if err := validateTrainingSubmit(req); err != nil {
		return nil, err
	}

	rec, err := e.prepare(ctx, actor, req.RecordID, domainwf.TriggerSubmit, req.Stage)
	if err != nil {
		return nil, err
	}

	return e.commit(ctx, actor, rec, step{
		trigger: domainwf.TriggerSubmit,
		action:  entity.ActionSubmit,
		note:    req.Note,
		apply: func(rec *entity.Record, now time.Time) {
			rec.Payload = mergePayload(rec.Payload, req.Payload)
			rec.RejectionReason = ""
		},
	})
}

// Reject returns the record to its previous stage, or deletes an observation
// that is still awaiting pre-approval
func (e *engineImpl) Reject(ctx context.Context, actor entity.Actor, req ReasonRequest) (*RejectResult, error) {
	if err := validateReason(req.Reason); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)

	rec, err := e.prepare(ctx, actor, req.RecordID, domainwf.TriggerReject, req.Stage)
	if err != nil {
		return nil, err
	}

	if rec.Module == domainwf.ModuleObservation && rec.Status == domainwf.StatusPreApproval {
		if err := e.rejectAndDelete(ctx, actor, rec, reason); err != nil {
			return nil, err
		}
		return &RejectResult{Deleted: true}, nil
	}

	updated, err := e.commit(ctx, actor, rec, step{
		trigger: domainwf.TriggerReject,
		action:  entity.ActionReject,
		note:    reason,
		apply: func(rec *entity.Record, now time.Time) {
			rec.RejectionReason = reason
		},
	})
	if err != nil {
		return nil, err
	}
	return &RejectResult{Record: updated}, nil
}

// rejectAndDelete removes the record. The reason is only passed on to the
// notification and is not stored.
func (e *engineImpl) rejectAndDelete(ctx context.Context, actor entity.Actor, rec *entity.Record, reason string) error {
	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.records.Delete(txCtx, rec.ID, rec.Status); err != nil {
			return storeErr("delete record", err)
		}
		return e.appendHistory(txCtx, rec, actor, entity.ActionRejectAndDelete, rec.Status, "", "")
	})
	if err != nil {
		e.logger.Error("Failed to delete rejected record",
			"record_id", rec.ID,
			"actor", actor.UserID,
			"error", err,
		)
		return err
	}

	e.logger.Info("Record rejected and deleted",
		"record_id", rec.ID,
		"sequence_number", rec.SequenceNumber,
		"actor", actor.UserID,
	)

	e.cleanupPhotos(ctx, rec)
	e.emit(ctx, event.TypeRecordDeleted, rec, actor, entity.ActionRejectAndDelete, rec.Status, "",
		map[string]interface{}{event.KeyReason: reason})

	return nil
}

// cleanupPhotos deletes the uploads claimed by rec. URLs the record merely
// references are left alone.
func (e *engineImpl) cleanupPhotos(ctx context.Context, rec *entity.Record) {
	if e.uploads == nil || e.attachments == nil {
		return
	}

	owned, err := e.attachments.ListByRecord(ctx, rec.ID)
	if err != nil {
		e.logger.Error("Failed to list uploads of deleted record",
			"record_id", rec.ID,
			"error", err,
		)
		return
	}

	for _, a := range owned {
		if err := e.uploads.Delete(ctx, a.URL); err != nil {
			e.logger.Error("Failed to delete photo of deleted record",
				"record_id", rec.ID,
				"url", a.URL,
				"error", err,
			)
			continue
		}
		if err := e.attachments.Delete(ctx, a.URL); err != nil {
			e.logger.Error("Failed to forget deleted upload",
				"record_id", rec.ID,
				"url", a.URL,
				"error", err,
			)
		}
	}
}

// claimUploads binds the actor's unclaimed uploads referenced by rec to rec
func (e *engineImpl) claimUploads(ctx context.Context, rec *entity.Record, actor entity.Actor) error {
	if e.attachments == nil {
		return nil
	}
	urls := rec.PhotoURLs()
	if len(urls) == 0 {
		return nil
	}
	if _, err := e.attachments.Claim(ctx, rec.ID, actor.UserID, urls); err != nil {
		return storeErr("claim uploads", err)
	}
	return nil
}

// Cancel moves a training or NOI to cancelled
func (e *engineImpl) Cancel(ctx context.Context, actor entity.Actor, req ReasonRequest) (*entity.Record, error) {
	if err := validateReason(req.Reason); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)

	rec, err := e.prepare(ctx, actor, req.RecordID, domainwf.TriggerCancel, req.Stage)
	if err != nil {
		return nil, err
	}

	return e.commit(ctx, actor, rec, step{
		trigger: domainwf.TriggerCancel,
		action:  entity.ActionCancel,
		note:    reason,
		apply: func(rec *entity.Record, now time.Time) {
			rec.CancelledBy = actor.UserID
			rec.CancelledAt = &now
			rec.CancelReason = reason
		},
	})
}

// Resubmit supersedes a rejected NOI with a new revision in one transaction
func (e *engineImpl) Resubmit(ctx context.Context, actor entity.Actor, req ResubmitRequest) (*entity.Record, error) {
	rec, err := e.prepare(ctx, actor, req.RecordID, domainwf.TriggerResubmit, 0)
	if err != nil {
		return nil, err
	}

	machine := e.machines[rec.Module].Build(rec.Status)
	if err := machine.Fire(ctx, domainwf.TriggerResubmit); err != nil {
		return nil, err
	}

	now := e.now()
	superseded := rec.Clone()
	superseded.Status = machine.Status()
	superseded.UpdatedAt = now

	next := e.revise(rec, req, now)
	if err := validateRevision(next); err != nil {
		return nil, err
	}

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.records.Update(txCtx, superseded, rec.Status); err != nil {
			return storeErr("update record", err)
		}
		if err := e.appendHistory(txCtx, superseded, actor, entity.ActionResubmit, rec.Status, superseded.Status,
			"superseded by "+next.SequenceNumber); err != nil {
			return err
		}
		if err := e.records.Create(txCtx, next); err != nil {
			return storeErr("create revision", err)
		}
		if err := e.claimUploads(txCtx, next, actor); err != nil {
			return err
		}
		return e.appendHistory(txCtx, next, actor, entity.ActionCreate, "", next.Status,
			"revision of "+rec.SequenceNumber)
	})
	if err != nil {
		e.logger.Error("Failed to resubmit record",
			"record_id", rec.ID,
			"actor", actor.UserID,
			"error", err,
		)
		return nil, err
	}

	e.logger.Info("Record resubmitted",
		"record_id", rec.ID,
		"revision_id", next.ID,
		"sequence_number", next.SequenceNumber,
		"actor", actor.UserID,
	)
	e.emit(ctx, event.TypeStatusChanged, superseded, actor, entity.ActionResubmit, rec.Status, superseded.Status, nil)
	e.emit(ctx, event.TypeRecordRevised, next, actor, entity.ActionResubmit, "", next.Status,
		map[string]interface{}{event.KeyParentID: rec.ID})

	return next, nil
}

// revise builds the new revision of a rejected record
func (e *engineImpl) revise(rec *entity.Record, req ResubmitRequest, now time.Time) *entity.Record {
	revision := numbering.NextRevision(rec.SequenceNumber)

	next := rec.Clone()
	next.ID = e.newID()
	next.ParentID = rec.ID
	next.RevisionNumber = revision
	next.SequenceNumber = numbering.FormatWithRevision(numbering.ExtractBase(rec.SequenceNumber), revision)
	next.Status = rec.Module.InitialStatus()
	next.CreatedAt = now
	next.UpdatedAt = now
	next.Location = strings.TrimSpace(req.Location)
	next.Payload = mergePayload(next.Payload, req.Payload)

	switch {
	case req.EventDate != nil:
		next.EventDate = req.EventDate
	case req.KeepSchedule:
	default:
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		next.EventDate = &today
	}

	switch clock := strings.TrimSpace(req.EventTime); {
	case clock != "":
		next.EventTime = clock
	case req.KeepSchedule && req.EventDate == nil:
	default:
		next.EventTime = now.Format("15:04")
	}

	next.ApprovedBy = ""
	next.ApprovedAt = nil
	next.ClosedAt = nil
	next.RejectionReason = ""
	next.CancelledBy = ""
	next.CancelledAt = nil
	next.CancelReason = ""

	return next
}

// AdminEdit overwrites fields of a non-terminal record without a status change.
// Its history note is informational: a failure to write it is logged only.
func (e *engineImpl) AdminEdit(ctx context.Context, actor entity.Actor, req AdminEditRequest) (*entity.Record, error) {
	rec, err := e.prepare(ctx, actor, req.RecordID, domainwf.TriggerAdminEdit, 0)
	if err != nil {
		return nil, err
	}

	machine := e.machines[rec.Module].Build(rec.Status)
	if err := machine.Fire(ctx, domainwf.TriggerAdminEdit); err != nil {
		return nil, err
	}

	now := e.now()
	updated := rec.Clone()
	updated.UpdatedAt = now
	if req.Location != nil {
		updated.Location = strings.TrimSpace(*req.Location)
	}
	if req.EventDate != nil {
		updated.EventDate = req.EventDate
	}
	if req.EventTime != nil {
		updated.EventTime = strings.TrimSpace(*req.EventTime)
	}
	if req.PlannedCloseDate != nil {
		updated.PlannedCloseDate = req.PlannedCloseDate
	}
	if req.ClosingDate != nil {
		updated.ClosingDate = req.ClosingDate
	}
	if req.ResponsibleParties != nil {
		updated.ResponsibleParties = nonBlank(req.ResponsibleParties)
	}
	updated.Payload = mergePayload(updated.Payload, req.Payload)

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return storeErr("update record", e.records.Update(txCtx, updated, rec.Status))
	})
	if err != nil {
		return nil, err
	}

	if err := e.appendHistory(ctx, updated, actor, entity.ActionAdminEdit, rec.Status, updated.Status, req.Note); err != nil {
		e.logger.Error("Failed to record admin edit",
			"record_id", rec.ID,
			"actor", actor.UserID,
			"error", err,
		)
	}

	e.logger.Info("Record edited by admin",
		"record_id", rec.ID,
		"actor", actor.UserID,
	)
	e.emit(ctx, event.TypeRecordEdited, updated, actor, entity.ActionAdminEdit, rec.Status, updated.Status, nil)

	return updated, nil
}

// Get returns a record with its progress and the caller's edit permission
func (e *engineImpl) Get(ctx context.Context, actor entity.Actor, id string) (*RecordView, error) {
	rec, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	flags, err := e.resolver.Resolve(ctx, actor, rec)
	if err != nil {
		return nil, err
	}
	if !flags.IsMember && !flags.IsAdmin {
		return nil, &domainwf.GuardError{Status: rec.Status, Reason: "not a member of project " + rec.ProjectID}
	}

	progress, err := domainwf.ProgressFor(rec.Module, rec.Status, true)
	if err != nil {
		return nil, err
	}

	return &RecordView{
		Record:   rec,
		Progress: progress,
		Roles:    flags,
		CanEdit:  domainwf.CanEdit(rec.Module, progress.Stage, rec.Status, flags),
	}, nil
}

// List returns records of one project and module
func (e *engineImpl) List(ctx context.Context, actor entity.Actor, req ListRequest) ([]*entity.Record, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, domainwf.NewValidationError("project_id", "is required")
	}
	if !req.Module.IsValid() {
		return nil, domainwf.NewValidationError("module", "must be observation, training or noi")
	}
	for _, s := range req.Statuses {
		if !req.Module.IsValidStatus(s) {
			return nil, domainwf.NewValidationError("status", fmt.Sprintf("%q is not a %s status", s, req.Module))
		}
	}

	flags, err := e.resolver.ResolveForProject(ctx, actor, req.ProjectID, req.Module)
	if err != nil {
		return nil, err
	}
	if !flags.IsMember && !flags.IsAdmin {
		return nil, &domainwf.GuardError{Reason: "not a member of project " + req.ProjectID}
	}

	filter := port.RecordFilter{
		ProjectID: req.ProjectID,
		Module:    req.Module,
		Statuses:  req.Statuses,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}
	if req.Actionable {
		for _, s := range req.Module.Statuses() {
			if domainwf.IsTerminal(req.Module, s) {
				filter.ExcludeStatuses = append(filter.ExcludeStatuses, s)
			}
		}
	}

	records, err := e.records.List(ctx, filter)
	if err != nil {
		return nil, storeErr("list records", err)
	}
	return records, nil
}

// History returns the audit trail of a record
func (e *engineImpl) History(ctx context.Context, actor entity.Actor, id string) ([]*entity.HistoryEntry, error) {
	if _, err := e.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	entries, err := e.history.GetByRecordID(ctx, id)
	if err != nil {
		return nil, storeErr("get history", err)
	}
	return entries, nil
}

// prepare loads the record, resolves the caller and applies the guard
func (e *engineImpl) prepare(ctx context.Context, actor entity.Actor, id string, trigger domainwf.Trigger, stage int) (*entity.Record, error) {
	rec, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	flags, err := e.resolver.Resolve(ctx, actor, rec)
	if err != nil {
		return nil, err
	}

	if err := authorize(rec, trigger, stage, flags); err != nil {
		e.logger.Info("Transition denied",
			"record_id", rec.ID,
			"trigger", trigger,
			"status", rec.Status,
			"actor", actor.UserID,
			"reason", err.Error(),
		)
		return nil, err
	}

	return rec, nil
}

// authorize checks the requested stage against the record's current stage for
// every caller, then applies the role guard. Stage 0 means the current stage.
func authorize(rec *entity.Record, trigger domainwf.Trigger, requested int, flags domainwf.RoleFlags) error {
	current, err := domainwf.StageOf(rec.Module, rec.Status)
	if err != nil {
		return err
	}

	stage := requested
	if stage == 0 {
		stage = current
	}
	if stage != current {
		return &domainwf.GuardError{
			Stage:  stage,
			Status: rec.Status,
			Reason: fmt.Sprintf("record is at stage %d", current),
		}
	}

	if res := domainwf.CheckAction(rec.Module, trigger, stage, rec.Status, flags); !res.Allowed {
		return &domainwf.GuardError{Stage: stage, Status: rec.Status, Reason: res.Reason}
	}
	return nil
}

// commit fires the trigger and writes the new status and its history entry
// atomically. The update is a compare-and-swap on the status that was read.
func (e *engineImpl) commit(ctx context.Context, actor entity.Actor, rec *entity.Record, s step) (*entity.Record, error) {
	if s.check != nil {
		if err := s.check(rec); err != nil {
			return nil, err
		}
	}

	machine := e.machines[rec.Module].Build(rec.Status)
	fireCtx := domainwf.WithTransitionContext(ctx, domainwf.TransitionContext{
		PlannedCloseDate: rec.PlannedCloseDate,
		ClosingDate:      rec.ClosingDate,
	})
	if err := machine.Fire(fireCtx, s.trigger); err != nil {
		return nil, err
	}

	now := e.now()
	updated := rec.Clone()
	updated.Status = machine.Status()
	updated.UpdatedAt = now
	if s.apply != nil {
		s.apply(updated, now)
	}

	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.records.Update(txCtx, updated, rec.Status); err != nil {
			return storeErr("update record", err)
		}
		if err := e.claimUploads(txCtx, updated, actor); err != nil {
			return err
		}
		return e.appendHistory(txCtx, updated, actor, s.action, rec.Status, updated.Status, s.note)
	})
	if err != nil {
		e.logger.Error("Failed to commit transition",
			"record_id", rec.ID,
			"action", s.action,
			"from", rec.Status,
			"to", updated.Status,
			"actor", actor.UserID,
			"error", err,
		)
		return nil, err
	}

	e.logger.Info("Record transitioned",
		"record_id", rec.ID,
		"action", s.action,
		"from", rec.Status,
		"to", updated.Status,
		"actor", actor.UserID,
	)
	var extra map[string]interface{}
	if s.action == entity.ActionReject || s.action == entity.ActionCancel {
		extra = map[string]interface{}{event.KeyReason: s.note}
	}
	e.emit(ctx, event.TypeStatusChanged, updated, actor, s.action, rec.Status, updated.Status, extra)

	return updated, nil
}

func (e *engineImpl) load(ctx context.Context, id string) (*entity.Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domainwf.NewValidationError("id", "is required")
	}

	rec, err := e.records.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get record", err)
	}
	if !rec.Module.IsValidStatus(rec.Status) {
		return nil, &domainwf.StoreError{
			Op:  "get record",
			Err: fmt.Errorf("%w: %q for %s record %s", domainwf.ErrInvalidStatus, rec.Status, rec.Module, rec.ID),
		}
	}
	return rec, nil
}

func (e *engineImpl) appendHistory(ctx context.Context, rec *entity.Record, actor entity.Actor, action string, from, to domainwf.Status, note string) error {
	entry := &entity.HistoryEntry{
		ID:        e.newID(),
		RecordID:  rec.ID,
		Module:    rec.Module,
		ActorID:   actor.UserID,
		Action:    action,
		OldStatus: from,
		NewStatus: to,
		Note:      note,
		CreatedAt: e.now(),
	}
	if err := e.history.Create(ctx, entry); err != nil {
		return &domainwf.HistoryWriteError{Err: err}
	}
	return nil
}

func (e *engineImpl) emit(ctx context.Context, t event.Type, rec *entity.Record, actor entity.Actor, action string, from, to domainwf.Status, extra map[string]interface{}) {
	if e.dispatcher == nil {
		return
	}

	payload := map[string]interface{}{
		event.KeyAction:         action,
		event.KeyActorID:        actor.UserID,
		event.KeyOldStatus:      string(from),
		event.KeyNewStatus:      string(to),
		event.KeySequenceNumber: rec.SequenceNumber,
		event.KeyCreatedBy:      rec.CreatedBy,
		event.KeyResponsible:    append([]string(nil), rec.ResponsibleParties...),
	}
	for k, v := range extra {
		payload[k] = v
	}

	e.dispatcher.DispatchAsync(ctx, event.NewEvent(t, rec.ID, rec.ProjectID, string(rec.Module), payload))
}

// storeErr wraps a persistence failure unless it is already classified
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domainwf.ErrNotFound) || errors.Is(err, domainwf.ErrConflict) {
		return err
	}
	var se *domainwf.StoreError
	var he *domainwf.HistoryWriteError
	if errors.As(err, &se) || errors.As(err, &he) {
		return err
	}
	return &domainwf.StoreError{Op: op, Err: err}
}

func mergePayload(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
