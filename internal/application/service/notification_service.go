package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/site-qms/internal/application/dispatcher"
	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/entity"
	"github.com/garyjia/site-qms/internal/domain/event"
	"github.com/garyjia/site-qms/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NotificationService tells the next actor of a record that it is their turn
type NotificationService interface {
	// Register subscribes the service to the record events it handles
	Register(d dispatcher.Dispatcher)
	HandleEvent(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	personnelRepo port.PersonnelRepository
	messageSender port.MessageSender
	logger        Logger
}

// audience is who should hear about a status
type audience int

const (
	audienceNone audience = iota
	audienceApprovers
	audienceResponsible
	audienceCreator
	audienceCreatorAndResponsible
)

var moduleNames = map[workflow.Module]string{
	workflow.ModuleObservation: "Field observation",
	workflow.ModuleTraining:    "Field training",
	workflow.ModuleNOI:         "Notice of inspection",
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	personnelRepo port.PersonnelRepository,
	messageSender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		personnelRepo: personnelRepo,
		messageSender: messageSender,
		logger:        logger,
	}
}

// Register subscribes the service to the record events it handles
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.Subscribe("lark_notification", s.HandleEvent,
		event.TypeRecordCreated,
		event.TypeStatusChanged,
		event.TypeRecordDeleted,
		event.TypeRecordRevised,
	)
}

// HandleEvent resolves the recipients of an event and messages each of them.
// A failed message is logged and does not stop the others.
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	module := workflow.Module(evt.Module)
	status := workflow.Status(evt.GetPayloadString(event.KeyNewStatus))

	who := audienceCreator
	if evt.Type != event.TypeRecordDeleted {
		who = audienceFor(module, status)
	}
	if who == audienceNone {
		return nil
	}

	recipients, err := s.recipients(ctx, evt, module, who)
	if err != nil {
		s.logger.Error("Failed to resolve notification recipients",
			"record_id", evt.RecordID,
			"event_type", evt.Type,
			"error", err,
		)
		return fmt.Errorf("resolve recipients: %w", err)
	}

	message := buildMessage(evt, module, status)
	sent := 0
	for _, p := range recipients {
		if p.LarkOpenID == "" {
			s.logger.Info("Skipping recipient without Lark account", "record_id", evt.RecordID, "user_id", p.UserID)
			continue
		}
		if err := s.messageSender.SendMessage(ctx, p.LarkOpenID, message); err != nil {
			s.logger.Error("Failed to send notification",
				"record_id", evt.RecordID,
				"open_id", p.LarkOpenID,
				"error", err,
			)
			continue
		}
		sent++
	}

	s.logger.Info("Notifications sent",
		"record_id", evt.RecordID,
		"event_type", evt.Type,
		"status", status,
		"recipients", sent,
	)
	return nil
}

func audienceFor(m workflow.Module, status workflow.Status) audience {
	switch status {
	case workflow.StatusPreApproval, workflow.StatusWaitingCloseApproval,
		workflow.StatusAwaitingApproval, workflow.StatusPendingApproval:
		return audienceApprovers
	case workflow.StatusWaitingDataEntry, workflow.StatusOpen:
		return audienceResponsible
	case workflow.StatusPlanned:
		return audienceCreatorAndResponsible
	case workflow.StatusResubmitted:
		// the revision event covers it
		return audienceNone
	}
	if workflow.IsTerminal(m, status) || status == workflow.StatusRejected {
		return audienceCreator
	}
	return audienceNone
}

func (s *notificationServiceImpl) recipients(ctx context.Context, evt *event.Event, m workflow.Module, who audience) ([]*entity.Personnel, error) {
	actor := evt.GetPayloadString(event.KeyActorID)
	creator := evt.GetPayloadString(event.KeyCreatedBy)
	responsible := make(map[string]bool)
	for _, id := range evt.GetPayloadStrings(event.KeyResponsible) {
		responsible[id] = true
	}

	members, err := s.personnelRepo.ListByProject(ctx, evt.ProjectID)
	if err != nil {
		return nil, err
	}

	var out, owners []*entity.Personnel
	for _, p := range members {
		// nobody is told about their own action
		if p.UserID == actor {
			continue
		}
		isResponsible := responsible[p.ID] || responsible[p.UserID]

		var match bool
		switch who {
		case audienceApprovers:
			match = p.ApprovesModule(m)
			if !match && p.IsProjectOwner {
				owners = append(owners, p)
			}
		case audienceResponsible:
			match = isResponsible
		case audienceCreator:
			match = p.UserID == creator
		case audienceCreatorAndResponsible:
			match = p.UserID == creator || isResponsible
		}
		if match {
			out = append(out, p)
		}
	}

	// project owners stand in when the module has no other approver
	if who == audienceApprovers && len(out) == 0 {
		return owners, nil
	}
	return out, nil
}

func buildMessage(evt *event.Event, m workflow.Module, status workflow.Status) string {
	name := moduleNames[m]
	seq := evt.GetPayloadString(event.KeySequenceNumber)

	var b strings.Builder
	switch evt.Type {
	case event.TypeRecordDeleted:
		fmt.Fprintf(&b, "%s %s was rejected and removed.", name, seq)
	case event.TypeRecordRevised:
		fmt.Fprintf(&b, "%s %s was resubmitted and is waiting for your approval.", name, seq)
	default:
		fmt.Fprintf(&b, "%s %s is now %s.", name, seq, strings.ReplaceAll(string(status), "_", " "))
	}

	if reason := evt.GetPayloadString(event.KeyReason); reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", reason)
	}
	return b.String()
}
