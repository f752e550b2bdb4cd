package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/entity"
	"github.com/garyjia/site-qms/internal/domain/workflow"
	"github.com/garyjia/site-qms/internal/infrastructure/persistence/sqlite"
)

const recordColumns = `
	id, module, project_id, sequence_number, revision_number, parent_id,
	status, created_by, responsible_parties, location, event_date, event_time,
	planned_close_date, closing_date, approved_by, approved_at, data_entry_at,
	closure_submitted_at, closed_at, rejection_reason, cancelled_by,
	cancelled_at, cancel_reason, payload, created_at, updated_at`

// RecordRepository implements port.RecordRepository
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sql.DB, logger *zap.Logger) port.RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new record
func (r *RecordRepository) Create(ctx context.Context, record *entity.Record) error {
	parties, payload, err := encodeRecordJSON(record)
	if err != nil {
		return err
	}

	query := `INSERT INTO workflow_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		record.ID,
		string(record.Module),
		record.ProjectID,
		record.SequenceNumber,
		record.RevisionNumber,
		nullString(record.ParentID),
		string(record.Status),
		record.CreatedBy,
		parties,
		record.Location,
		nullTime(record.EventDate),
		record.EventTime,
		nullTime(record.PlannedCloseDate),
		nullTime(record.ClosingDate),
		record.ApprovedBy,
		nullTime(record.ApprovedAt),
		nullTime(record.DataEntryAt),
		nullTime(record.ClosureSubmittedAt),
		nullTime(record.ClosedAt),
		record.RejectionReason,
		record.CancelledBy,
		nullTime(record.CancelledAt),
		record.CancelReason,
		payload,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create record",
			zap.String("id", record.ID),
			zap.String("sequence_number", record.SequenceNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create record: %w", err)
	}

	return nil
}

// GetByID retrieves a record by ID
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*entity.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM workflow_records WHERE id = ?`

	record, err := scanRecord(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, workflow.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get record by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return record, nil
}

// List returns records matching the filter ordered by creation time, newest first
func (r *RecordRepository) List(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error) {
	var (
		where = []string{"project_id = ?", "module = ?"}
		args  = []interface{}{filter.ProjectID, string(filter.Module)}
	)

	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if len(filter.ExcludeStatuses) > 0 {
		where = append(where, "status NOT IN ("+placeholders(len(filter.ExcludeStatuses))+")")
		for _, s := range filter.ExcludeStatuses {
			args = append(args, string(s))
		}
	}
	if filter.CreatedBy != "" {
		where = append(where, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}

	query := `SELECT ` + recordColumns + ` FROM workflow_records
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, sequence_number DESC`

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list records",
			zap.String("project_id", filter.ProjectID),
			zap.String("module", string(filter.Module)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*entity.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Update writes every mutable column if the stored status still equals expected
func (r *RecordRepository) Update(ctx context.Context, record *entity.Record, expected workflow.Status) error {
	parties, payload, err := encodeRecordJSON(record)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_records SET
			status = ?, responsible_parties = ?, location = ?, event_date = ?,
			event_time = ?, planned_close_date = ?, closing_date = ?,
			approved_by = ?, approved_at = ?, data_entry_at = ?,
			closure_submitted_at = ?, closed_at = ?, rejection_reason = ?,
			cancelled_by = ?, cancelled_at = ?, cancel_reason = ?,
			payload = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		string(record.Status),
		parties,
		record.Location,
		nullTime(record.EventDate),
		record.EventTime,
		nullTime(record.PlannedCloseDate),
		nullTime(record.ClosingDate),
		record.ApprovedBy,
		nullTime(record.ApprovedAt),
		nullTime(record.DataEntryAt),
		nullTime(record.ClosureSubmittedAt),
		nullTime(record.ClosedAt),
		record.RejectionReason,
		record.CancelledBy,
		nullTime(record.CancelledAt),
		record.CancelReason,
		payload,
		record.UpdatedAt,
		record.ID,
		string(expected),
	)
	if err != nil {
		r.logger.Error("Failed to update record", zap.String("id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to update record: %w", err)
	}

	return r.checkSwapped(ctx, exec, result, record.ID, expected)
}

// Delete removes the record if the stored status still equals expected
func (r *RecordRepository) Delete(ctx context.Context, id string, expected workflow.Status) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)
	result, err := exec.ExecContext(ctx,
		`DELETE FROM workflow_records WHERE id = ? AND status = ?`, id, string(expected))
	if err != nil {
		r.logger.Error("Failed to delete record", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete record: %w", err)
	}

	return r.checkSwapped(ctx, exec, result, id, expected)
}

// checkSwapped tells a lost compare-and-swap apart from a missing row
func (r *RecordRepository) checkSwapped(ctx context.Context, exec sqlite.Executor, result sql.Result, id string, expected workflow.Status) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var current string
	err = exec.QueryRowContext(ctx, `SELECT status FROM workflow_records WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record %s: %w", id, workflow.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read record status: %w", err)
	}

	r.logger.Info("Record status changed concurrently",
		zap.String("id", id),
		zap.String("expected", string(expected)),
		zap.String("current", current))
	return fmt.Errorf("record %s is %s, expected %s: %w", id, current, expected, workflow.ErrConflict)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*entity.Record, error) {
	var (
		record  entity.Record
		module  string
		status  string
		parent  sql.NullString
		parties string
		payload string

		eventDate, plannedClose, closing, approvedAt, dataEntryAt sql.NullTime
		closureSubmittedAt, closedAt, cancelledAt                 sql.NullTime
	)

	err := row.Scan(
		&record.ID,
		&module,
		&record.ProjectID,
		&record.SequenceNumber,
		&record.RevisionNumber,
		&parent,
		&status,
		&record.CreatedBy,
		&parties,
		&record.Location,
		&eventDate,
		&record.EventTime,
		&plannedClose,
		&closing,
		&record.ApprovedBy,
		&approvedAt,
		&dataEntryAt,
		&closureSubmittedAt,
		&closedAt,
		&record.RejectionReason,
		&record.CancelledBy,
		&cancelledAt,
		&record.CancelReason,
		&payload,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Module = workflow.Module(module)
	record.Status = workflow.Status(status)
	record.ParentID = parent.String
	record.EventDate = timePtr(eventDate)
	record.PlannedCloseDate = timePtr(plannedClose)
	record.ClosingDate = timePtr(closing)
	record.ApprovedAt = timePtr(approvedAt)
	record.DataEntryAt = timePtr(dataEntryAt)
	record.ClosureSubmittedAt = timePtr(closureSubmittedAt)
	record.ClosedAt = timePtr(closedAt)
	record.CancelledAt = timePtr(cancelledAt)

	if err := json.Unmarshal([]byte(parties), &record.ResponsibleParties); err != nil {
		return nil, fmt.Errorf("decode responsible parties of %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(payload), &record.Payload); err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", record.ID, err)
	}
	if record.Payload == nil {
		record.Payload = make(map[string]interface{})
	}

	return &record, nil
}

func encodeRecordJSON(record *entity.Record) (string, string, error) {
	parties := record.ResponsibleParties
	if parties == nil {
		parties = []string{}
	}
	partiesJSON, err := json.Marshal(parties)
	if err != nil {
		return "", "", fmt.Errorf("encode responsible parties: %w", err)
	}

	payload := record.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("encode payload: %w", err)
	}

	return string(partiesJSON), string(payloadJSON), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Verify interface compliance
var _ port.RecordRepository = (*RecordRepository)(nil)
