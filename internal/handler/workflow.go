package handler

import (
	"encoding/json"
	"net/http"

	"admissions/internal/domain"
	"admissions/internal/middleware"
	"admissions/internal/workflow"
	"admissions/pkg/logger"
	"admissions/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// WorkflowHandler exposes workflow definition management.
type WorkflowHandler struct {
	store     *workflow.Store
	validator *validator.Validator
	logger    logger.Logger
}

func NewWorkflowHandler(store *workflow.Store, v *validator.Validator, log logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{store: store, validator: v, logger: log}
}

// RegisterRoutes mounts the workflow definition endpoints.
func (h *WorkflowHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/workflows", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/workflows/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/workflows/{id}/stages", h.AddStage).Methods(http.MethodPost)
	r.HandleFunc("/workflows/{id}/transitions", h.AddTransition).Methods(http.MethodPost)
	r.HandleFunc("/workflows/{id}/validate", h.Validate).Methods(http.MethodPost)
	r.HandleFunc("/workflows/{id}/activate", h.Activate).Methods(http.MethodPost)
	r.HandleFunc("/workflows/{id}/deactivate", h.Deactivate).Methods(http.MethodPost)
}

type createWorkflowRequest struct {
	Name            string                 `json:"name" validate:"required,min=3,max=120"`
	ApplicationType domain.ApplicationType `json:"application_type" validate:"required,oneof=undergraduate graduate transfer international"`
}

func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrs := h.validator.ValidateStructured(req); fieldErrs != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
		return
	}

	var createdBy *uuid.UUID
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		createdBy = &actor
	}

	id, err := h.store.CreateWorkflow(r.Context(), validator.Sanitize(req.Name), req.ApplicationType, createdBy)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workflow id")
		return
	}

	graph, err := h.store.Graph(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, graph)
}

func (h *WorkflowHandler) AddStage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workflow id")
		return
	}

	var spec workflow.StageSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrs := h.validator.ValidateStructured(spec); fieldErrs != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
		return
	}

	stageID, err := h.store.AddStage(r.Context(), id, spec)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"id": stageID})
}

type addTransitionRequest struct {
	SourceStageID uuid.UUID `json:"source_stage_id" validate:"required"`
	TargetStageID uuid.UUID `json:"target_stage_id" validate:"required"`
	workflow.TransitionSpec
}

func (h *WorkflowHandler) AddTransition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workflow id")
		return
	}

	var req addTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceStageID == uuid.Nil || req.TargetStageID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "source_stage_id and target_stage_id are required")
		return
	}

	transitionID, err := h.store.AddTransition(r.Context(), id, req.SourceStageID, req.TargetStageID, req.TransitionSpec)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"id": transitionID})
}

func (h *WorkflowHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workflow id")
		return
	}

	findings, err := h.store.Validate(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    len(findings) == 0,
		"findings": findings,
	})
}

func (h *WorkflowHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workflow id")
		return
	}

	if err := h.store.Activate(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (h *WorkflowHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workflow id")
		return
	}

	if err := h.store.Deactivate(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
