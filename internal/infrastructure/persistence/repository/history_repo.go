package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/entity"
	"github.com/garyjia/site-qms/internal/domain/workflow"
	"github.com/garyjia/site-qms/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry
func (r *HistoryRepository) Create(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO record_history (
			id, record_id, module, actor_id, action,
			old_status, new_status, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.RecordID,
		string(entry.Module),
		entry.ActorID,
		entry.Action,
		string(entry.OldStatus),
		string(entry.NewStatus),
		entry.Note,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create history entry",
			zap.String("record_id", entry.RecordID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	return nil
}

// GetByRecordID retrieves the audit trail of a record in order
func (r *HistoryRepository) GetByRecordID(ctx context.Context, recordID string) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, record_id, module, actor_id, action,
			old_status, new_status, note, created_at
		FROM record_history
		WHERE record_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, recordID)
	if err != nil {
		r.logger.Error("Failed to get history by record ID", zap.String("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.HistoryEntry
	for rows.Next() {
		var entry entity.HistoryEntry
		var module, oldStatus, newStatus string
		err := rows.Scan(
			&entry.ID,
			&entry.RecordID,
			&module,
			&entry.ActorID,
			&entry.Action,
			&oldStatus,
			&newStatus,
			&entry.Note,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Module = workflow.Module(module)
		entry.OldStatus = workflow.Status(oldStatus)
		entry.NewStatus = workflow.Status(newStatus)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
