// Package domain defines the core business entities for the admissions platform.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==============================================================================
// ENUMS & STATUS TYPES
// ==============================================================================

// ApplicationType identifies which admissions process an application follows.
type ApplicationType string

const (
	ApplicationTypeUndergraduate ApplicationType = "undergraduate"
	ApplicationTypeGraduate      ApplicationType = "graduate"
	ApplicationTypeTransfer      ApplicationType = "transfer"
	ApplicationTypeInternational ApplicationType = "international"
)

// DocumentType represents types of admissions documents.
type DocumentType string

const (
	DocumentTypeTranscript           DocumentType = "transcript"
	DocumentTypeDiploma              DocumentType = "diploma"
	DocumentTypePassport             DocumentType = "passport"
	DocumentTypeTestScore            DocumentType = "test_score"
	DocumentTypeRecommendationLetter DocumentType = "recommendation_letter"
	DocumentTypePersonalStatement    DocumentType = "personal_statement"
	DocumentTypeFinancialStatement   DocumentType = "financial_statement"
	DocumentTypeLanguageCertificate  DocumentType = "language_certificate"
)

// DocumentCategory groups document types for upload constraints
// (MIME allow-list and size ceiling are configured per category).
type DocumentCategory string

const (
	DocumentCategoryAcademic DocumentCategory = "academic"
	DocumentCategoryIdentity DocumentCategory = "identity"
	DocumentCategoryWritten  DocumentCategory = "written"
)

// CategoryForDocumentType maps a document type to its upload category.
func CategoryForDocumentType(dt DocumentType) DocumentCategory {
	switch dt {
	case DocumentTypePassport:
		return DocumentCategoryIdentity
	case DocumentTypePersonalStatement, DocumentTypeRecommendationLetter:
		return DocumentCategoryWritten
	default:
		return DocumentCategoryAcademic
	}
}

// VerificationMethod represents how a document was checked.
type VerificationMethod string

const (
	VerificationMethodAutomated VerificationMethod = "automated"
	VerificationMethodManual    VerificationMethod = "manual"
	VerificationMethodExternal  VerificationMethod = "external"
)

// VerificationStatus represents the state of one verification attempt.
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusRejected VerificationStatus = "rejected"
)

// Terminal reports whether the status is a terminal verification outcome.
func (s VerificationStatus) Terminal() bool {
	return s == VerificationStatusVerified || s == VerificationStatusRejected
}

// ManualDecision is a reviewer's verdict on a document.
type ManualDecision string

const (
	ManualDecisionVerified ManualDecision = "verified"
	ManualDecisionRejected ManualDecision = "rejected"
)

// StatusLabel is the applicant-facing status derived from the current stage.
type StatusLabel string

const (
	StatusLabelDraft       StatusLabel = "Draft"
	StatusLabelSubmitted   StatusLabel = "Submitted"
	StatusLabelUnderReview StatusLabel = "Under Review"
	StatusLabelAccepted    StatusLabel = "Accepted"
	StatusLabelWaitlisted  StatusLabel = "Waitlisted"
	StatusLabelRejected    StatusLabel = "Rejected"
	StatusLabelEnrolled    StatusLabel = "Enrolled"
	StatusLabelDeclined    StatusLabel = "Declined"
)

// ==============================================================================
// SQL HELPER TYPES
// ==============================================================================

// Metadata holds arbitrary key-value metadata stored as JSONB.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}

// DocumentTypeList is a JSONB-backed list of document types.
type DocumentTypeList []DocumentType

func (l DocumentTypeList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]DocumentType{})
	}
	return json.Marshal(l)
}

func (l *DocumentTypeList) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, l)
}

// Contains reports whether dt is in the list.
func (l DocumentTypeList) Contains(dt DocumentType) bool {
	for _, t := range l {
		if t == dt {
			return true
		}
	}
	return false
}

// StringList is a JSONB-backed list of strings (action ids, permissions).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, l)
}

// ==============================================================================
// WORKFLOW DEFINITION
// ==============================================================================

// Workflow is an application-type-specific admissions process definition.
// It is edited freely while inactive and immutable once activated, except
// for administrative deactivation.
type Workflow struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	ApplicationType ApplicationType `json:"application_type" db:"application_type"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	CreatedBy       *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	ActivatedAt     *time.Time      `json:"activated_at,omitempty" db:"activated_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// WorkflowStage is a node in the workflow graph.
type WorkflowStage struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	WorkflowID        uuid.UUID        `json:"workflow_id" db:"workflow_id"`
	Name              string           `json:"name" db:"name"`
	Sequence          int              `json:"sequence" db:"sequence"`
	IsInitial         bool             `json:"is_initial" db:"is_initial"`
	RequiredDocuments DocumentTypeList `json:"required_documents" db:"required_documents"`
	RequiredActions   StringList       `json:"required_actions" db:"required_actions"`
	AssignedRole      string           `json:"assigned_role" db:"assigned_role"`
	StatusLabel       StatusLabel      `json:"status_label" db:"status_label"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}

// WorkflowTransition is a directed, conditionally gated edge between two
// stages of the same workflow.
type WorkflowTransition struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	WorkflowID          uuid.UUID  `json:"workflow_id" db:"workflow_id"`
	SourceStageID       uuid.UUID  `json:"source_stage_id" db:"source_stage_id"`
	TargetStageID       uuid.UUID  `json:"target_stage_id" db:"target_stage_id"`
	Name                string     `json:"name" db:"name"`
	Conditions          Condition  `json:"conditions" db:"conditions"`
	RequiredPermissions StringList `json:"required_permissions" db:"required_permissions"`
	IsAutomatic         bool       `json:"is_automatic" db:"is_automatic"`
	IsRetryLoop         bool       `json:"is_retry_loop" db:"is_retry_loop"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// ==============================================================================
// APPLICATION & DOCUMENTS
// ==============================================================================

// Application is the subject moving through the workflow graph.
type Application struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ApplicantID     uuid.UUID       `json:"applicant_id" db:"applicant_id"`
	ApplicationType ApplicationType `json:"application_type" db:"application_type"`
	WorkflowID      *uuid.UUID      `json:"workflow_id,omitempty" db:"workflow_id"`
	CurrentStageID  *uuid.UUID      `json:"current_stage_id,omitempty" db:"current_stage_id"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty" db:"submitted_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	Metadata        Metadata        `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// StageHistoryEntry is one row of an application's ordered stage-entry log.
type StageHistoryEntry struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	ApplicationID uuid.UUID  `json:"application_id" db:"application_id"`
	StageID       uuid.UUID  `json:"stage_id" db:"stage_id"`
	StageName     string     `json:"stage_name" db:"stage_name"`
	TransitionID  *uuid.UUID `json:"transition_id,omitempty" db:"transition_id"`
	Actor         *uuid.UUID `json:"actor,omitempty" db:"actor"`
	IsAutomatic   bool       `json:"is_automatic" db:"is_automatic"`
	EnteredAt     time.Time  `json:"entered_at" db:"entered_at"`
}

// ReviewerAction is an explicit action recorded by a reviewer against an
// application (e.g. "interview_completed"); referenced by ActionRecorded
// conditions.
type ReviewerAction struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ApplicationID uuid.UUID `json:"application_id" db:"application_id"`
	ActionID      string    `json:"action_id" db:"action_id"`
	Actor         uuid.UUID `json:"actor" db:"actor"`
	Notes         string    `json:"notes,omitempty" db:"notes"`
	RecordedAt    time.Time `json:"recorded_at" db:"recorded_at"`
}

// Document is a file associated with an application. Documents are
// append-only per resubmission: a rejected document is superseded by a new
// row rather than overwritten.
type Document struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	ApplicationID  uuid.UUID    `json:"application_id" db:"application_id"`
	DocumentType   DocumentType `json:"document_type" db:"document_type"`
	FileName       string       `json:"file_name" db:"file_name"`
	MimeType       string       `json:"mime_type" db:"mime_type"`
	SizeBytes      int64        `json:"size_bytes" db:"size_bytes"`
	StorageRef     string       `json:"storage_ref" db:"storage_ref"`
	ChecksumSHA256 string       `json:"checksum_sha256" db:"checksum_sha256"`
	IsVerified     bool         `json:"is_verified" db:"is_verified"`
	VerifiedAt     *time.Time   `json:"verified_at,omitempty" db:"verified_at"`
	VerifiedBy     *uuid.UUID   `json:"verified_by,omitempty" db:"verified_by"`
	ResubmissionOf *uuid.UUID   `json:"resubmission_of,omitempty" db:"resubmission_of"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// DocumentVerification is an immutable audit record of one verification
// attempt. A document may accumulate many records; the document's
// IsVerified/VerifiedAt reflect only the most recent terminal record.
type DocumentVerification struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	DocumentID      uuid.UUID          `json:"document_id" db:"document_id"`
	Method          VerificationMethod `json:"method" db:"method"`
	Status          VerificationStatus `json:"status" db:"status"`
	ConfidenceScore *decimal.Decimal   `json:"confidence_score,omitempty" db:"confidence_score"`
	ExtractedFields Metadata           `json:"extracted_fields,omitempty" db:"extracted_fields"`
	Notes           string             `json:"notes,omitempty" db:"notes"`
	Verifier        *uuid.UUID         `json:"verifier,omitempty" db:"verifier"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

// AuditLog records a state-changing operation for the audit trail.
type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Actor      *uuid.UUID `json:"actor,omitempty" db:"actor"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   string     `json:"entity_id" db:"entity_id"`
	NewValues  Metadata   `json:"new_values,omitempty" db:"new_values"`
	RequestID  string     `json:"request_id,omitempty" db:"request_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Reviewer holds the roles and permissions of a staff member acting on
// applications. The permission model behind the PermissionChecker capability.
type Reviewer struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Email       string     `json:"email" db:"email"`
	FullName    string     `json:"full_name" db:"full_name"`
	Roles       StringList `json:"roles" db:"roles"`
	Permissions StringList `json:"permissions" db:"permissions"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// StatusChangedEvent is emitted by the status projector when an
// application's externally visible status changes.
type StatusChangedEvent struct {
	ApplicationID uuid.UUID   `json:"application_id"`
	ApplicantID   uuid.UUID   `json:"applicant_id"`
	OldStatus     StatusLabel `json:"old_status"`
	NewStatus     StatusLabel `json:"new_status"`
	Timestamp     time.Time   `json:"timestamp"`
}
