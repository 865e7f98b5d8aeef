package postgres

import (
	"context"
	"database/sql"

	"admissions/internal/domain"
	"admissions/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ReviewerRepository struct {
	db *sqlx.DB
}

func NewReviewerRepository(db *sqlx.DB) *ReviewerRepository {
	return &ReviewerRepository{db: db}
}

func (r *ReviewerRepository) Create(ctx context.Context, rev *domain.Reviewer) error {
	query := `
		INSERT INTO reviewers (id, email, full_name, roles, permissions, is_active, created_at)
		VALUES (:id, :email, :full_name, :roles, :permissions, :is_active, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, rev)
	if err != nil {
		return errors.Wrap(err, "failed to insert reviewer")
	}
	return nil
}

func (r *ReviewerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Reviewer, error) {
	var rev domain.Reviewer
	query := `SELECT * FROM reviewers WHERE id = $1`

	err := r.db.GetContext(ctx, &rev, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrReviewerNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find reviewer")
	}
	return &rev, nil
}
