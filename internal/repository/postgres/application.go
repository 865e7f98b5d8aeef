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

type ApplicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, a *domain.Application) error {
	query := `
		INSERT INTO applications (id, applicant_id, application_type, workflow_id, current_stage_id,
		                          submitted_at, completed_at, metadata, created_at, updated_at)
		VALUES (:id, :applicant_id, :application_type, :workflow_id, :current_stage_id,
		        :submitted_at, :completed_at, :metadata, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return errors.Wrap(err, "failed to insert application")
	}
	return nil
}

func (r *ApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	var a domain.Application
	query := `SELECT * FROM applications WHERE id = $1`

	err := r.db.GetContext(ctx, &a, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find application")
	}
	return &a, nil
}

// BindToWorkflow sets the workflow and initial stage on an unbound
// application. The WHERE clause guards against double binding under
// concurrent submissions.
func (r *ApplicationRepository) BindToWorkflow(ctx context.Context, id, workflowID, stageID uuid.UUID, at time.Time) error {
	query := `
		UPDATE applications
		SET workflow_id = $2, current_stage_id = $3, submitted_at = $4, updated_at = $4
		WHERE id = $1 AND workflow_id IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, workflowID, stageID, at)
	if err != nil {
		return errors.Wrap(err, "failed to bind application to workflow")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return errors.ErrApplicationAlreadyBound
	}
	return nil
}

// UpdateStage moves the application to a new stage, guarded by the expected
// current stage so a lost race cannot double-apply a transition.
func (r *ApplicationRepository) UpdateStage(ctx context.Context, id, fromStageID, toStageID uuid.UUID, completed bool, at time.Time) error {
	query := `
		UPDATE applications
		SET current_stage_id = $3,
		    completed_at = CASE WHEN $4 THEN $5 ELSE completed_at END,
		    updated_at = $5
		WHERE id = $1 AND current_stage_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, fromStageID, toStageID, completed, at)
	if err != nil {
		return errors.Wrap(err, "failed to update application stage")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return errors.ErrNotInSourceStage
	}
	return nil
}

func (r *ApplicationRepository) AppendStageHistory(ctx context.Context, e *domain.StageHistoryEntry) error {
	query := `
		INSERT INTO application_stage_history (id, application_id, stage_id, stage_name, transition_id, actor, is_automatic, entered_at)
		VALUES (:id, :application_id, :stage_id, :stage_name, :transition_id, :actor, :is_automatic, :entered_at)`

	_, err := r.db.NamedExecContext(ctx, query, e)
	if err != nil {
		return errors.Wrap(err, "failed to insert stage history entry")
	}
	return nil
}

func (r *ApplicationRepository) FindStageHistory(ctx context.Context, applicationID uuid.UUID) ([]domain.StageHistoryEntry, error) {
	var entries []domain.StageHistoryEntry
	query := `SELECT * FROM application_stage_history WHERE application_id = $1 ORDER BY entered_at ASC`

	err := r.db.SelectContext(ctx, &entries, query, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list stage history")
	}
	return entries, nil
}

func (r *ApplicationRepository) RecordAction(ctx context.Context, a *domain.ReviewerAction) error {
	query := `
		INSERT INTO reviewer_actions (id, application_id, action_id, actor, notes, recorded_at)
		VALUES (:id, :application_id, :action_id, :actor, :notes, :recorded_at)`

	_, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return errors.Wrap(err, "failed to insert reviewer action")
	}
	return nil
}

func (r *ApplicationRepository) HasAction(ctx context.Context, applicationID uuid.UUID, actionID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM reviewer_actions WHERE application_id = $1 AND action_id = $2`

	err := r.db.GetContext(ctx, &count, query, applicationID, actionID)
	if err != nil {
		return false, errors.Wrap(err, "failed to check reviewer action")
	}
	return count > 0, nil
}

func (r *ApplicationRepository) FindActions(ctx context.Context, applicationID uuid.UUID) ([]domain.ReviewerAction, error) {
	var actions []domain.ReviewerAction
	query := `SELECT * FROM reviewer_actions WHERE application_id = $1 ORDER BY recorded_at ASC`

	err := r.db.SelectContext(ctx, &actions, query, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reviewer actions")
	}
	return actions, nil
}
