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

type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	query := `
		INSERT INTO documents (id, application_id, document_type, file_name, mime_type, size_bytes,
		                       storage_ref, checksum_sha256, is_verified, verified_at, verified_by,
		                       resubmission_of, created_at, updated_at)
		VALUES (:id, :application_id, :document_type, :file_name, :mime_type, :size_bytes,
		        :storage_ref, :checksum_sha256, :is_verified, :verified_at, :verified_by,
		        :resubmission_of, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return errors.Wrap(err, "failed to insert document")
	}
	return nil
}

func (r *DocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var d domain.Document
	query := `SELECT * FROM documents WHERE id = $1`

	err := r.db.GetContext(ctx, &d, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find document")
	}
	return &d, nil
}

func (r *DocumentRepository) FindByApplication(ctx context.Context, applicationID uuid.UUID) ([]domain.Document, error) {
	var docs []domain.Document
	query := `SELECT * FROM documents WHERE application_id = $1 ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &docs, query, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list documents")
	}
	return docs, nil
}

// FindLatestByType returns the most recent document of a given type for an
// application. Resubmissions are append-only, so the newest row is the
// authoritative one for its type.
func (r *DocumentRepository) FindLatestByType(ctx context.Context, applicationID uuid.UUID, docType domain.DocumentType) (*domain.Document, error) {
	var d domain.Document
	query := `
		SELECT * FROM documents
		WHERE application_id = $1 AND document_type = $2
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &d, query, applicationID, docType)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find latest document by type")
	}
	return &d, nil
}

// MarkVerified sets the document-level verified flag after a terminal
// verified verification record.
func (r *DocumentRepository) MarkVerified(ctx context.Context, id uuid.UUID, verifiedBy *uuid.UUID, at time.Time) error {
	query := `
		UPDATE documents
		SET is_verified = true, verified_at = $2, verified_by = $3, updated_at = $2
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, at, verifiedBy)
	if err != nil {
		return errors.Wrap(err, "failed to mark document verified")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return errors.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) CreateVerification(ctx context.Context, v *domain.DocumentVerification) error {
	query := `
		INSERT INTO document_verifications (id, document_id, method, status, confidence_score,
		                                    extracted_fields, notes, verifier, created_at)
		VALUES (:id, :document_id, :method, :status, :confidence_score,
		        :extracted_fields, :notes, :verifier, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, v)
	if err != nil {
		return errors.Wrap(err, "failed to insert document verification")
	}
	return nil
}

func (r *DocumentRepository) FindVerifications(ctx context.Context, documentID uuid.UUID) ([]domain.DocumentVerification, error) {
	var verifications []domain.DocumentVerification
	query := `SELECT * FROM document_verifications WHERE document_id = $1 ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &verifications, query, documentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list document verifications")
	}
	return verifications, nil
}

func (r *DocumentRepository) FindLatestVerification(ctx context.Context, documentID uuid.UUID) (*domain.DocumentVerification, error) {
	var v domain.DocumentVerification
	query := `
		SELECT * FROM document_verifications
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &v, query, documentID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrVerificationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find latest verification")
	}
	return &v, nil
}

// FindVerificationHistory returns all verification records across a
// document's resubmission lineage, oldest first. The recursive walk follows
// resubmission_of links in both directions from the given document.
func (r *DocumentRepository) FindVerificationHistory(ctx context.Context, documentID uuid.UUID) ([]domain.DocumentVerification, error) {
	var verifications []domain.DocumentVerification
	query := `
		WITH RECURSIVE lineage AS (
			SELECT id, resubmission_of FROM documents WHERE id = $1
			UNION
			SELECT d.id, d.resubmission_of
			FROM documents d
			JOIN lineage l ON d.id = l.resubmission_of OR d.resubmission_of = l.id
		)
		SELECT v.* FROM document_verifications v
		JOIN lineage ON v.document_id = lineage.id
		ORDER BY v.created_at ASC`

	err := r.db.SelectContext(ctx, &verifications, query, documentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load verification history")
	}
	return verifications, nil
}
