package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/workflow"
	"github.com/garyjia/site-qms/internal/infrastructure/persistence/sqlite"
)

// CounterRepository implements port.SequenceCounter
type CounterRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCounterRepository creates a new sequence counter repository
func NewCounterRepository(db *sql.DB, logger *zap.Logger) port.SequenceCounter {
	return &CounterRepository{
		db:     db,
		logger: logger,
	}
}

// Next increments and reads the counter in one statement. Run inside the
// record insert's transaction so a failed insert gives the number back.
func (r *CounterRepository) Next(ctx context.Context, projectID string, module workflow.Module) (int, error) {
	query := `
		INSERT INTO sequence_counters (project_id, module, last_number)
		VALUES (?, ?, 1)
		ON CONFLICT (project_id, module)
		DO UPDATE SET last_number = last_number + 1
		RETURNING last_number
	`

	var n int
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, projectID, string(module)).Scan(&n)
	if err != nil {
		r.logger.Error("Failed to allocate sequence number",
			zap.String("project_id", projectID),
			zap.String("module", string(module)),
			zap.Error(err))
		return 0, fmt.Errorf("failed to allocate sequence number: %w", err)
	}

	return n, nil
}

// Verify interface compliance
var _ port.SequenceCounter = (*CounterRepository)(nil)
