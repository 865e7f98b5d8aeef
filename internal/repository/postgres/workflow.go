// Package postgres provides sqlx-backed persistence for the admissions core.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"admissions/internal/domain"
	"admissions/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type WorkflowRepository struct {
	db *sqlx.DB
}

func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) CreateWorkflow(ctx context.Context, w *domain.Workflow) error {
	query := `
		INSERT INTO workflows (id, name, application_type, is_active, created_by, activated_at, created_at, updated_at)
		VALUES (:id, :name, :application_type, :is_active, :created_by, :activated_at, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, w)
	if err != nil {
		return errors.Wrap(err, "failed to insert workflow")
	}
	return nil
}

func (r *WorkflowRepository) FindWorkflowByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	var w domain.Workflow
	query := `SELECT * FROM workflows WHERE id = $1`

	err := r.db.GetContext(ctx, &w, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find workflow")
	}
	return &w, nil
}

func (r *WorkflowRepository) FindActiveByType(ctx context.Context, appType domain.ApplicationType) (*domain.Workflow, error) {
	var w domain.Workflow
	query := `SELECT * FROM workflows WHERE application_type = $1 AND is_active = true`

	err := r.db.GetContext(ctx, &w, query, appType)
	if err == sql.ErrNoRows {
		return nil, errors.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find active workflow")
	}
	return &w, nil
}

func (r *WorkflowRepository) SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error {
	query := `
		UPDATE workflows
		SET is_active = $2,
		    activated_at = CASE WHEN $2 THEN $3 ELSE activated_at END,
		    updated_at = $3
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active, at)
	if err != nil {
		return errors.Wrap(err, "failed to update workflow active flag")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return errors.ErrWorkflowNotFound
	}
	return nil
}

func (r *WorkflowRepository) DeactivateByType(ctx context.Context, appType domain.ApplicationType, except uuid.UUID) error {
	query := `
		UPDATE workflows
		SET is_active = false, updated_at = NOW()
		WHERE application_type = $1 AND is_active = true AND id != $2`

	_, err := r.db.ExecContext(ctx, query, appType, except)
	if err != nil {
		return errors.Wrap(err, "failed to deactivate workflows by type")
	}
	return nil
}

func (r *WorkflowRepository) CreateStage(ctx context.Context, s *domain.WorkflowStage) error {
	query := `
		INSERT INTO workflow_stages (id, workflow_id, name, sequence, is_initial, required_documents,
		                             required_actions, assigned_role, status_label, created_at)
		VALUES (:id, :workflow_id, :name, :sequence, :is_initial, :required_documents,
		        :required_actions, :assigned_role, :status_label, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return errors.Wrap(err, "failed to insert workflow stage")
	}
	return nil
}

func (r *WorkflowRepository) FindStages(ctx context.Context, workflowID uuid.UUID) ([]domain.WorkflowStage, error) {
	var stages []domain.WorkflowStage
	query := `SELECT * FROM workflow_stages WHERE workflow_id = $1 ORDER BY sequence ASC, created_at ASC`

	err := r.db.SelectContext(ctx, &stages, query, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list workflow stages")
	}
	return stages, nil
}

func (r *WorkflowRepository) FindStageByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStage, error) {
	var s domain.WorkflowStage
	query := `SELECT * FROM workflow_stages WHERE id = $1`

	err := r.db.GetContext(ctx, &s, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrStageNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find workflow stage")
	}
	return &s, nil
}

func (r *WorkflowRepository) CreateTransition(ctx context.Context, t *domain.WorkflowTransition) error {
	query := `
		INSERT INTO workflow_transitions (id, workflow_id, source_stage_id, target_stage_id, name,
		                                  conditions, required_permissions, is_automatic, is_retry_loop, created_at)
		VALUES (:id, :workflow_id, :source_stage_id, :target_stage_id, :name,
		        :conditions, :required_permissions, :is_automatic, :is_retry_loop, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, t)
	if err != nil {
		return errors.Wrap(err, "failed to insert workflow transition")
	}
	return nil
}

func (r *WorkflowRepository) FindTransitions(ctx context.Context, workflowID uuid.UUID) ([]domain.WorkflowTransition, error) {
	var transitions []domain.WorkflowTransition
	query := `SELECT * FROM workflow_transitions WHERE workflow_id = $1 ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &transitions, query, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list workflow transitions")
	}
	return transitions, nil
}
