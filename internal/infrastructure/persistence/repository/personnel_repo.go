package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/entity"
	"github.com/garyjia/site-qms/internal/infrastructure/persistence/sqlite"
)

const personnelColumns = `
	id, user_id, project_id, name, lark_open_id, is_observation_approver,
	is_training_planner, is_noi_approver, is_project_owner`

// PersonnelRepository implements port.PersonnelRepository
type PersonnelRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPersonnelRepository creates a new personnel repository
func NewPersonnelRepository(db *sql.DB, logger *zap.Logger) port.PersonnelRepository {
	return &PersonnelRepository{
		db:     db,
		logger: logger,
	}
}

// GetByUserAndProject returns the user's row in the project, or nil if there is none
func (r *PersonnelRepository) GetByUserAndProject(ctx context.Context, userID, projectID string) (*entity.Personnel, error) {
	query := `SELECT ` + personnelColumns + ` FROM project_personnel WHERE user_id = ? AND project_id = ?`

	p, err := scanPersonnel(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, userID, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get personnel",
			zap.String("user_id", userID),
			zap.String("project_id", projectID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get personnel: %w", err)
	}

	return p, nil
}

// ListByProject returns every member of a project
func (r *PersonnelRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Personnel, error) {
	query := `SELECT ` + personnelColumns + ` FROM project_personnel WHERE project_id = ? ORDER BY name, user_id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list personnel", zap.String("project_id", projectID), zap.Error(err))
		return nil, fmt.Errorf("failed to list personnel: %w", err)
	}
	defer rows.Close()

	var members []*entity.Personnel
	for rows.Next() {
		p, err := scanPersonnel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan personnel: %w", err)
		}
		members = append(members, p)
	}

	return members, rows.Err()
}

// Upsert inserts a membership row or replaces the flags of an existing one
func (r *PersonnelRepository) Upsert(ctx context.Context, p *entity.Personnel) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	query := `
		INSERT INTO project_personnel (` + personnelColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, project_id) DO UPDATE SET
			name = excluded.name,
			lark_open_id = excluded.lark_open_id,
			is_observation_approver = excluded.is_observation_approver,
			is_training_planner = excluded.is_training_planner,
			is_noi_approver = excluded.is_noi_approver,
			is_project_owner = excluded.is_project_owner
		RETURNING id
	`

	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query,
		p.ID,
		p.UserID,
		p.ProjectID,
		p.Name,
		p.LarkOpenID,
		p.IsObservationApprover,
		p.IsTrainingPlanner,
		p.IsNOIApprover,
		p.IsProjectOwner,
	).Scan(&p.ID)
	if err != nil {
		r.logger.Error("Failed to upsert personnel",
			zap.String("user_id", p.UserID),
			zap.String("project_id", p.ProjectID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert personnel: %w", err)
	}

	return nil
}

func scanPersonnel(row rowScanner) (*entity.Personnel, error) {
	var p entity.Personnel
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.ProjectID,
		&p.Name,
		&p.LarkOpenID,
		&p.IsObservationApprover,
		&p.IsTrainingPlanner,
		&p.IsNOIApprover,
		&p.IsProjectOwner,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Verify interface compliance
var _ port.PersonnelRepository = (*PersonnelRepository)(nil)
