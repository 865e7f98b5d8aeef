package postgres

import (
	"context"
	"time"

	"admissions/internal/domain"
	"admissions/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_logs (id, actor, action, entity_type, entity_id, new_values, request_id, created_at)
		VALUES (:id, :actor, :action, :entity_type, :entity_id, :new_values, :request_id, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, log)
	if err != nil {
		return errors.Wrap(err, "failed to insert audit log")
	}
	return nil
}

func (r *AuditRepository) FindByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	query := `
		SELECT * FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	err := r.db.SelectContext(ctx, &logs, query, entityType, entityID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit logs")
	}
	return logs, nil
}
