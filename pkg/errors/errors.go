// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Workflow definition errors
	ErrWorkflowNotFound       = errors.New("workflow not found")
	ErrStageNotFound          = errors.New("workflow stage not found")
	ErrTransitionNotFound     = errors.New("workflow transition not found")
	ErrInvalidWorkflowState   = errors.New("workflow is active and immutable")
	ErrCrossWorkflowReference = errors.New("stages belong to different workflows")
	ErrWorkflowNotActive      = errors.New("workflow is not active")

	// Application errors
	ErrApplicationNotFound     = errors.New("application not found")
	ErrApplicationNotBound     = errors.New("application not bound to a workflow")
	ErrApplicationAlreadyBound = errors.New("application already bound to a workflow")

	// Transition engine errors
	ErrNotInSourceStage        = errors.New("application is not in the transition's source stage")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrAutomaticTransitionLoop = errors.New("automatic transition loop exceeded hop bound")

	// Document errors
	ErrDocumentNotFound       = errors.New("document not found")
	ErrUnsupportedMimeType    = errors.New("mime type not allowed for document category")
	ErrFileTooLarge           = errors.New("file exceeds size ceiling for document category")
	ErrResubmissionNotAllowed = errors.New("resubmission allowed only after rejection")
	ErrVerificationNotFound   = errors.New("document verification not found")

	// Reviewer errors
	ErrReviewerNotFound = errors.New("reviewer not found")

	// Collaborator errors (retryable by callers, never retried by the core)
	ErrCollaboratorTimeout     = errors.New("external collaborator timed out")
	ErrCollaboratorUnavailable = errors.New("external collaborator unavailable")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryable reports whether the error is a collaborator failure that a
// caller may retry with backoff. Business-rule errors are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCollaboratorTimeout) || errors.Is(err, ErrCollaboratorUnavailable)
}
