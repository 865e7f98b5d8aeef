// Package verification implements the document verification pipeline:
// upload, automated classification, manual review and resubmission.
package verification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"admissions/internal/classifier"
	"admissions/internal/domain"
	"admissions/internal/storage"
	"admissions/pkg/config"
	"admissions/pkg/errors"
	"admissions/pkg/logger"

	"github.com/google/uuid"
)

// DocumentRepository is the document persistence the pipeline needs.
type DocumentRepository interface {
	Create(ctx context.Context, d *domain.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	FindByApplication(ctx context.Context, applicationID uuid.UUID) ([]domain.Document, error)
	FindLatestByType(ctx context.Context, applicationID uuid.UUID, docType domain.DocumentType) (*domain.Document, error)
	MarkVerified(ctx context.Context, id uuid.UUID, verifiedBy *uuid.UUID, at time.Time) error
	CreateVerification(ctx context.Context, v *domain.DocumentVerification) error
	FindVerifications(ctx context.Context, documentID uuid.UUID) ([]domain.DocumentVerification, error)
	FindLatestVerification(ctx context.Context, documentID uuid.UUID) (*domain.DocumentVerification, error)
	FindVerificationHistory(ctx context.Context, documentID uuid.UUID) ([]domain.DocumentVerification, error)
}

// ApplicationReader resolves applications for stage and role checks.
type ApplicationReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)
}

// GraphProvider resolves workflow graphs for stage role lookups.
type GraphProvider interface {
	Graph(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowGraph, error)
}

// RoleChecker authorizes manual verification against the stage's assigned
// role.
type RoleChecker interface {
	HasRole(ctx context.Context, actor uuid.UUID, role string) (bool, error)
}

// TransitionEvaluator re-evaluates automatic transitions after a terminal
// verification outcome.
type TransitionEvaluator interface {
	EvaluateAutomaticTransitions(ctx context.Context, applicationID uuid.UUID) error
}

// AuditRecorder persists audit entries for verification outcomes.
type AuditRecorder interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// Service is the document verification pipeline.
type Service struct {
	docs       DocumentRepository
	apps       ApplicationReader
	graphs     GraphProvider
	roles      RoleChecker
	store      storage.Provider
	classifier classifier.Classifier
	engine     TransitionEvaluator
	audit      AuditRecorder
	logger     logger.Logger

	classifierCfg config.ClassifierConfig
	uploadCfg     config.UploadConfig
	storeTimeout  time.Duration
}

// NewService creates a verification pipeline.
func NewService(
	docs DocumentRepository,
	apps ApplicationReader,
	graphs GraphProvider,
	roles RoleChecker,
	store storage.Provider,
	clf classifier.Classifier,
	eng TransitionEvaluator,
	audit AuditRecorder,
	classifierCfg config.ClassifierConfig,
	uploadCfg config.UploadConfig,
	storeTimeout time.Duration,
	log logger.Logger,
) *Service {
	return &Service{
		docs:          docs,
		apps:          apps,
		graphs:        graphs,
		roles:         roles,
		store:         store,
		classifier:    clf,
		engine:        eng,
		audit:         audit,
		classifierCfg: classifierCfg,
		uploadCfg:     uploadCfg,
		storeTimeout:  storeTimeout,
		logger:        log,
	}
}

// SubmitRequest carries an uploaded document.
type SubmitRequest struct {
	ApplicationID uuid.UUID           `json:"application_id" validate:"required"`
	DocumentType  domain.DocumentType `json:"document_type" validate:"required,document_type"`
	FileName      string              `json:"file_name" validate:"required,max=255"`
	MimeType      string              `json:"mime_type" validate:"required"`
	Content       []byte              `json:"-"`
}

// Submit stores an uploaded document and, when automated verification is
// enabled, dispatches classification asynchronously. The document starts in
// pending verification state.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.Document, error) {
	if _, err := s.apps.FindByID(ctx, req.ApplicationID); err != nil {
		return nil, err
	}
	if err := s.checkUploadLimits(req.DocumentType, req.MimeType, int64(len(req.Content))); err != nil {
		return nil, err
	}
	return s.storeDocument(ctx, req, nil)
}

// Resubmit stores a replacement for a rejected document. Resubmission is
// append-only: the rejected document and its verification records remain.
func (s *Service) Resubmit(ctx context.Context, originalID uuid.UUID, req SubmitRequest) (*domain.Document, error) {
	original, err := s.docs.FindByID(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if original.ApplicationID != req.ApplicationID {
		return nil, errors.ErrDocumentNotFound
	}

	latest, err := s.docs.FindLatestVerification(ctx, originalID)
	if err != nil && err != errors.ErrVerificationNotFound {
		return nil, err
	}
	if latest == nil || latest.Status != domain.VerificationStatusRejected {
		return nil, errors.ErrResubmissionNotAllowed
	}

	req.DocumentType = original.DocumentType
	if err := s.checkUploadLimits(req.DocumentType, req.MimeType, int64(len(req.Content))); err != nil {
		return nil, err
	}
	return s.storeDocument(ctx, req, &originalID)
}

func (s *Service) checkUploadLimits(docType domain.DocumentType, mimeType string, size int64) error {
	category := string(domain.CategoryForDocumentType(docType))

	allowed := false
	for _, mt := range s.uploadCfg.AllowedMimeTypes[category] {
		if mt == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.ErrUnsupportedMimeType
	}

	if max, ok := s.uploadCfg.MaxSizeBytes[category]; ok && size > max {
		return errors.ErrFileTooLarge
	}
	return nil
}

func (s *Service) storeDocument(ctx context.Context, req SubmitRequest, resubmissionOf *uuid.UUID) (*domain.Document, error) {
	sum := sha256.Sum256(req.Content)
	docID := uuid.New()
	key := fmt.Sprintf("applications/%s/%s/%s", req.ApplicationID, req.DocumentType, docID)

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	ref, err := s.store.Put(storeCtx, key, req.Content, req.MimeType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store document")
	}

	now := time.Now()
	doc := &domain.Document{
		ID:             docID,
		ApplicationID:  req.ApplicationID,
		DocumentType:   req.DocumentType,
		FileName:       req.FileName,
		MimeType:       req.MimeType,
		SizeBytes:      int64(len(req.Content)),
		StorageRef:     ref,
		ChecksumSHA256: hex.EncodeToString(sum[:]),
		IsVerified:     false,
		ResubmissionOf: resubmissionOf,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("Document submitted", map[string]interface{}{
		"document_id":    doc.ID,
		"application_id": req.ApplicationID,
		"document_type":  req.DocumentType,
		"size_bytes":     doc.SizeBytes,
		"resubmission":   resubmissionOf != nil,
	})

	if s.classifierCfg.AutoVerify && s.classifier != nil {
		go s.dispatchAutomated(doc.ID)
	}

	return doc, nil
}

// dispatchAutomated runs automated verification detached from the request
// context. Collaborator failures leave the document pending for manual
// review; they are logged, never retried here.
func (s *Service) dispatchAutomated(documentID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.classifierCfg.Timeout+s.storeTimeout)
	defer cancel()

	if _, err := s.VerifyAutomated(ctx, documentID); err != nil {
		s.logger.Warn("Automated verification failed, document awaits manual review", map[string]interface{}{
			"document_id": documentID,
			"error":       err.Error(),
			"retryable":   errors.IsRetryable(err),
		})
	}
}

// VerifyAutomated runs the classifier over a stored document and records one
// verification attempt. Confidence at or above the type's threshold verifies
// the document; below it the record stays pending and the document is
// escalated to manual review. Automated verification never rejects.
func (s *Service) VerifyAutomated(ctx context.Context, documentID uuid.UUID) (*domain.DocumentVerification, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.IsVerified {
		return s.docs.FindLatestVerification(ctx, documentID)
	}

	getCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	content, err := s.store.Get(getCtx, doc.StorageRef)
	cancel()
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch document for classification")
	}

	clfCtx, cancelClf := context.WithTimeout(ctx, s.classifierCfg.Timeout)
	defer cancelClf()
	result, err := s.classifier.Classify(clfCtx, content, doc.MimeType, doc.DocumentType)
	if err != nil {
		return nil, err
	}

	threshold := s.classifierCfg.Threshold(string(doc.DocumentType))
	passed := result.Confidence.GreaterThanOrEqual(threshold)

	status := domain.VerificationStatusPending
	notes := fmt.Sprintf("confidence %s below threshold %s, escalated to manual review", result.Confidence, threshold)
	if passed {
		status = domain.VerificationStatusVerified
		notes = ""
	}

	confidence := result.Confidence
	record := &domain.DocumentVerification{
		ID:              uuid.New(),
		DocumentID:      documentID,
		Method:          domain.VerificationMethodAutomated,
		Status:          status,
		ConfidenceScore: &confidence,
		ExtractedFields: result.ExtractedFields,
		Notes:           notes,
		CreatedAt:       time.Now(),
	}
	if err := s.docs.CreateVerification(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Automated verification recorded", map[string]interface{}{
		"document_id": documentID,
		"status":      status,
		"confidence":  result.Confidence.String(),
		"threshold":   threshold.String(),
	})

	if passed {
		if err := s.finalizeVerified(ctx, doc, nil); err != nil {
			return nil, err
		}
	}

	return record, nil
}

// VerifyManual records a reviewer's verdict on a document. The reviewer must
// hold the role assigned to the application's current stage.
func (s *Service) VerifyManual(ctx context.Context, documentID, reviewerID uuid.UUID, decision domain.ManualDecision, notes string) (*domain.DocumentVerification, error) {
	if decision != domain.ManualDecisionVerified && decision != domain.ManualDecisionRejected {
		return nil, fmt.Errorf("unknown manual decision: %s", decision)
	}

	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if err := s.checkStageRole(ctx, doc.ApplicationID, reviewerID); err != nil {
		return nil, err
	}

	status := domain.VerificationStatusVerified
	if decision == domain.ManualDecisionRejected {
		status = domain.VerificationStatusRejected
	}

	record := &domain.DocumentVerification{
		ID:         uuid.New(),
		DocumentID: documentID,
		Method:     domain.VerificationMethodManual,
		Status:     status,
		Notes:      notes,
		Verifier:   &reviewerID,
		CreatedAt:  time.Now(),
	}
	if err := s.docs.CreateVerification(ctx, record); err != nil {
		return nil, err
	}

	if s.audit != nil {
		auditErr := s.audit.Create(ctx, &domain.AuditLog{
			Actor:      &reviewerID,
			Action:     "document_manual_verification",
			EntityType: "document",
			EntityID:   documentID.String(),
			NewValues: domain.Metadata{
				"decision": string(decision),
			},
		})
		if auditErr != nil {
			s.logger.Warn("Failed to write verification audit log", map[string]interface{}{
				"document_id": documentID,
				"error":       auditErr.Error(),
			})
		}
	}

	s.logger.Info("Manual verification recorded", map[string]interface{}{
		"document_id": documentID,
		"reviewer_id": reviewerID,
		"decision":    decision,
	})

	if status == domain.VerificationStatusVerified {
		if err := s.finalizeVerified(ctx, doc, &reviewerID); err != nil {
			return nil, err
		}
	} else {
		// Rejection is terminal too; the engine gets notified for any
		// terminal outcome so condition re-evaluation stays event driven.
		s.reevaluateTransitions(ctx, doc)
	}

	return record, nil
}

// checkStageRole verifies the reviewer holds the role assigned to the
// application's current stage. Stages without an assigned role accept any
// reviewer.
func (s *Service) checkStageRole(ctx context.Context, applicationID, reviewerID uuid.UUID) error {
	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.WorkflowID == nil || app.CurrentStageID == nil {
		return errors.ErrApplicationNotBound
	}
	graph, err := s.graphs.Graph(ctx, *app.WorkflowID)
	if err != nil {
		return err
	}
	stage := graph.Stage(*app.CurrentStageID)
	if stage == nil || stage.AssignedRole == "" {
		return nil
	}

	ok, err := s.roles.HasRole(ctx, reviewerID, stage.AssignedRole)
	if err != nil {
		return errors.Wrap(err, "failed to check reviewer role")
	}
	if !ok {
		return errors.ErrPermissionDenied
	}
	return nil
}

// finalizeVerified flips the document-level verified flag and re-evaluates
// automatic transitions, since all_documents_verified conditions may now
// hold.
func (s *Service) finalizeVerified(ctx context.Context, doc *domain.Document, verifiedBy *uuid.UUID) error {
	if err := s.docs.MarkVerified(ctx, doc.ID, verifiedBy, time.Now()); err != nil {
		return err
	}
	s.reevaluateTransitions(ctx, doc)
	return nil
}

// reevaluateTransitions notifies the engine after a terminal verification
// outcome. Evaluation failures are logged, never propagated to the caller.
func (s *Service) reevaluateTransitions(ctx context.Context, doc *domain.Document) {
	if s.engine == nil {
		return
	}
	if err := s.engine.EvaluateAutomaticTransitions(ctx, doc.ApplicationID); err != nil {
		s.logger.Error("Automatic transition evaluation failed after verification", map[string]interface{}{
			"application_id": doc.ApplicationID,
			"document_id":    doc.ID,
			"error":          err.Error(),
		})
	}
}

// VerificationHistory returns every verification record across the
// document's resubmission lineage, oldest first.
func (s *Service) VerificationHistory(ctx context.Context, documentID uuid.UUID) ([]domain.DocumentVerification, error) {
	if _, err := s.docs.FindByID(ctx, documentID); err != nil {
		return nil, err
	}
	return s.docs.FindVerificationHistory(ctx, documentID)
}

// DocumentStatus summarizes one required document type for completeness
// reporting.
type DocumentStatus struct {
	DocumentType domain.DocumentType `json:"document_type"`
	Uploaded     bool                `json:"uploaded"`
	Verified     bool                `json:"verified"`
	DocumentID   *uuid.UUID          `json:"document_id,omitempty"`
}

// CompletenessSummary reports, for each document type required by the
// application's current stage, whether the latest document of that type is
// uploaded and verified.
func (s *Service) CompletenessSummary(ctx context.Context, applicationID uuid.UUID) ([]DocumentStatus, error) {
	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.WorkflowID == nil || app.CurrentStageID == nil {
		return nil, errors.ErrApplicationNotBound
	}
	graph, err := s.graphs.Graph(ctx, *app.WorkflowID)
	if err != nil {
		return nil, err
	}
	stage := graph.Stage(*app.CurrentStageID)
	if stage == nil {
		return nil, errors.ErrStageNotFound
	}

	var out []DocumentStatus
	for _, dt := range stage.RequiredDocuments {
		status := DocumentStatus{DocumentType: dt}
		doc, err := s.docs.FindLatestByType(ctx, applicationID, dt)
		if err != nil && err != errors.ErrDocumentNotFound {
			return nil, err
		}
		if doc != nil {
			status.Uploaded = true
			status.Verified = doc.IsVerified
			status.DocumentID = &doc.ID
		}
		out = append(out, status)
	}
	return out, nil
}
