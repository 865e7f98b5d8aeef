package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"admissions/internal/domain"
	"admissions/internal/engine"
	"admissions/internal/middleware"
	"admissions/internal/status"
	"admissions/pkg/logger"
	"admissions/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ApplicationRepository is the persistence surface the application handler
// needs directly; everything stateful goes through the engine.
type ApplicationRepository interface {
	Create(ctx context.Context, a *domain.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	FindStageHistory(ctx context.Context, applicationID uuid.UUID) ([]domain.StageHistoryEntry, error)
}

// ApplicationHandler exposes application lifecycle endpoints.
type ApplicationHandler struct {
	apps      ApplicationRepository
	engine    *engine.Service
	projector *status.Projector
	validator *validator.Validator
	logger    logger.Logger
}

func NewApplicationHandler(apps ApplicationRepository, eng *engine.Service, projector *status.Projector, v *validator.Validator, log logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		apps:      apps,
		engine:    eng,
		projector: projector,
		validator: v,
		logger:    log,
	}
}

// RegisterRoutes mounts the application endpoints.
func (h *ApplicationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/applications", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/applications/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/applications/{id}/submit", h.Submit).Methods(http.MethodPost)
	r.HandleFunc("/applications/{id}/transitions", h.AvailableTransitions).Methods(http.MethodGet)
	r.HandleFunc("/applications/{id}/transitions/{transitionId}", h.AttemptTransition).Methods(http.MethodPost)
	r.HandleFunc("/applications/{id}/actions", h.RecordAction).Methods(http.MethodPost)
	r.HandleFunc("/applications/{id}/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/applications/{id}/status/history", h.StatusHistory).Methods(http.MethodGet)
	r.HandleFunc("/applications/{id}/history", h.StageHistory).Methods(http.MethodGet)
}

type createApplicationRequest struct {
	ApplicantID     uuid.UUID              `json:"applicant_id" validate:"required"`
	ApplicationType domain.ApplicationType `json:"application_type" validate:"required,oneof=undergraduate graduate transfer international"`
	Metadata        domain.Metadata        `json:"metadata,omitempty"`
}

func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrs := h.validator.ValidateStructured(req); fieldErrs != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
		return
	}

	now := time.Now()
	app := &domain.Application{
		ID:              uuid.New(),
		ApplicantID:     req.ApplicantID,
		ApplicationType: req.ApplicationType,
		Metadata:        req.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.apps.Create(r.Context(), app); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, app)
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	app, err := h.apps.FindByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// Submit binds a draft application to the active workflow for its type.
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	stage, err := h.engine.BindToWorkflow(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"initial_stage": stage.Name,
		"stage_id":      stage.ID,
	})
}

func (h *ApplicationHandler) AvailableTransitions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	transitions, err := h.engine.AvailableTransitions(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transitions)
}

func (h *ApplicationHandler) AttemptTransition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}
	transitionID, err := uuid.Parse(vars["transitionId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transition id")
		return
	}

	var actor *uuid.UUID
	if a, ok := middleware.ActorFromContext(r.Context()); ok {
		actor = &a
	}

	if err := h.engine.AttemptTransition(r.Context(), id, transitionID, actor); err != nil {
		respondServiceError(w, err)
		return
	}

	label, err := h.projector.ProjectStatus(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": label})
}

type recordActionRequest struct {
	ActionID string `json:"action_id" validate:"required,min=2,max=100"`
	Notes    string `json:"notes" validate:"max=2000"`
}

func (h *ApplicationHandler) RecordAction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, "acting reviewer required")
		return
	}

	var req recordActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrs := h.validator.ValidateStructured(req); fieldErrs != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
		return
	}

	if err := h.engine.RecordAction(r.Context(), id, req.ActionID, actor, validator.Sanitize(req.Notes)); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (h *ApplicationHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	label, err := h.projector.ProjectStatus(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": label})
}

func (h *ApplicationHandler) StatusHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	history, err := h.projector.StatusHistory(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (h *ApplicationHandler) StageHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	history, err := h.apps.FindStageHistory(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}
