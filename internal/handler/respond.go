// Package handler exposes the admissions core over HTTP.
package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"admissions/internal/engine"
	"admissions/internal/workflow"
	"admissions/pkg/errors"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

var statusMappings = []struct {
	err    error
	status int
}{
	{errors.ErrWorkflowNotFound, http.StatusNotFound},
	{errors.ErrStageNotFound, http.StatusNotFound},
	{errors.ErrTransitionNotFound, http.StatusNotFound},
	{errors.ErrApplicationNotFound, http.StatusNotFound},
	{errors.ErrDocumentNotFound, http.StatusNotFound},
	{errors.ErrVerificationNotFound, http.StatusNotFound},
	{errors.ErrReviewerNotFound, http.StatusNotFound},
	{errors.ErrInvalidWorkflowState, http.StatusConflict},
	{errors.ErrCrossWorkflowReference, http.StatusConflict},
	{errors.ErrWorkflowNotActive, http.StatusConflict},
	{errors.ErrApplicationNotBound, http.StatusConflict},
	{errors.ErrApplicationAlreadyBound, http.StatusConflict},
	{errors.ErrNotInSourceStage, http.StatusConflict},
	{errors.ErrResubmissionNotAllowed, http.StatusConflict},
	{errors.ErrAutomaticTransitionLoop, http.StatusConflict},
	{errors.ErrPermissionDenied, http.StatusForbidden},
	{errors.ErrUnsupportedMimeType, http.StatusUnsupportedMediaType},
	{errors.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{errors.ErrCollaboratorTimeout, http.StatusBadGateway},
	{errors.ErrCollaboratorUnavailable, http.StatusBadGateway},
}

// respondServiceError maps service errors to HTTP responses. Typed errors
// carry structured detail; sentinels map to status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	var vf *workflow.ValidationFailedError
	if stderrors.As(err, &vf) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":    "workflow validation failed",
			"findings": vf.Findings,
		})
		return
	}
	var cnm *engine.ConditionsNotMetError
	if stderrors.As(err, &cnm) {
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":   "transition conditions not met",
			"reasons": cnm.Reasons,
		})
		return
	}

	for _, m := range statusMappings {
		if stderrors.Is(err, m.err) {
			respondError(w, m.status, m.err.Error())
			return
		}
	}
	respondError(w, http.StatusInternalServerError, "internal server error")
}
