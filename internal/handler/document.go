package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"admissions/internal/domain"
	"admissions/internal/middleware"
	"admissions/internal/verification"
	"admissions/pkg/logger"
	"admissions/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Multipart parsing keeps at most this much of the upload in memory; the
// per-category ceilings enforced by the pipeline are all below it.
const maxMultipartMemory = 32 << 20

// DocumentHandler exposes document upload and verification endpoints.
type DocumentHandler struct {
	pipeline  *verification.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewDocumentHandler(pipeline *verification.Service, v *validator.Validator, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{pipeline: pipeline, validator: v, logger: log}
}

// RegisterRoutes mounts the document endpoints.
func (h *DocumentHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/applications/{id}/documents", h.Submit).Methods(http.MethodPost)
	r.HandleFunc("/applications/{id}/documents/summary", h.CompletenessSummary).Methods(http.MethodGet)
	r.HandleFunc("/documents/{documentId}/resubmit", h.Resubmit).Methods(http.MethodPost)
	r.HandleFunc("/documents/{documentId}/verify", h.VerifyManual).Methods(http.MethodPost)
	r.HandleFunc("/documents/{documentId}/verifications", h.VerificationHistory).Methods(http.MethodGet)
}

// parseUpload reads the multipart "file" part plus the document_type field
// into a submit request.
func (h *DocumentHandler) parseUpload(r *http.Request, applicationID uuid.UUID) (*verification.SubmitRequest, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(content)
	}

	return &verification.SubmitRequest{
		ApplicationID: applicationID,
		DocumentType:  domain.DocumentType(r.FormValue("document_type")),
		FileName:      header.Filename,
		MimeType:      mimeType,
		Content:       content,
	}, nil
}

func (h *DocumentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	appID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	req, err := h.parseUpload(r, appID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	if fieldErrs := h.validator.ValidateStructured(*req); fieldErrs != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
		return
	}

	doc, err := h.pipeline.Submit(r.Context(), *req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(mux.Vars(r)["documentId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	appID, err := uuid.Parse(r.URL.Query().Get("application_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "application_id query parameter required")
		return
	}

	req, err := h.parseUpload(r, appID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	doc, err := h.pipeline.Resubmit(r.Context(), docID, *req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

type manualVerifyRequest struct {
	Decision domain.ManualDecision `json:"decision" validate:"required,oneof=verified rejected"`
	Notes    string                `json:"notes" validate:"max=2000"`
}

func (h *DocumentHandler) VerifyManual(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(mux.Vars(r)["documentId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	reviewer, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, "acting reviewer required")
		return
	}

	var req manualVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrs := h.validator.ValidateStructured(req); fieldErrs != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
		return
	}

	record, err := h.pipeline.VerifyManual(r.Context(), docID, reviewer, req.Decision, validator.Sanitize(req.Notes))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

func (h *DocumentHandler) VerificationHistory(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(mux.Vars(r)["documentId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	history, err := h.pipeline.VerificationHistory(r.Context(), docID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (h *DocumentHandler) CompletenessSummary(w http.ResponseWriter, r *http.Request) {
	appID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	summary, err := h.pipeline.CompletenessSummary(r.Context(), appID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
