// Package workflow implements the workflow definition store: CRUD over
// admissions workflow graphs with structural validation before activation.
package workflow

import (
	"context"
	"fmt"
	"time"

	"admissions/internal/domain"
	"admissions/pkg/errors"
	"admissions/pkg/logger"

	"github.com/google/uuid"
)

// Repository defines workflow definition persistence.
type Repository interface {
	CreateWorkflow(ctx context.Context, w *domain.Workflow) error
	FindWorkflowByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	FindActiveByType(ctx context.Context, appType domain.ApplicationType) (*domain.Workflow, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error
	DeactivateByType(ctx context.Context, appType domain.ApplicationType, except uuid.UUID) error

	CreateStage(ctx context.Context, s *domain.WorkflowStage) error
	FindStages(ctx context.Context, workflowID uuid.UUID) ([]domain.WorkflowStage, error)
	FindStageByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStage, error)

	CreateTransition(ctx context.Context, t *domain.WorkflowTransition) error
	FindTransitions(ctx context.Context, workflowID uuid.UUID) ([]domain.WorkflowTransition, error)
}

// GraphCache caches materialized graphs of active workflows.
type GraphCache interface {
	Get(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowGraph, bool)
	Put(ctx context.Context, graph *domain.WorkflowGraph)
	Invalidate(ctx context.Context, workflowID uuid.UUID)
}

// Store is the workflow definition service.
type Store struct {
	repo   Repository
	cache  GraphCache
	logger logger.Logger
}

// NewStore creates a workflow definition store.
func NewStore(repo Repository, cache GraphCache, log logger.Logger) *Store {
	return &Store{repo: repo, cache: cache, logger: log}
}

// StageSpec describes a stage to add to a draft workflow.
type StageSpec struct {
	Name              string                  `json:"name" validate:"required,stage_name"`
	Sequence          int                     `json:"sequence"`
	IsInitial         bool                    `json:"is_initial"`
	RequiredDocuments domain.DocumentTypeList `json:"required_documents"`
	RequiredActions   domain.StringList       `json:"required_actions"`
	AssignedRole      string                  `json:"assigned_role"`
	StatusLabel       domain.StatusLabel      `json:"status_label"`
}

// TransitionSpec describes a transition to add to a draft workflow.
type TransitionSpec struct {
	Name                string            `json:"name"`
	Conditions          domain.Condition  `json:"conditions"`
	RequiredPermissions domain.StringList `json:"required_permissions"`
	IsAutomatic         bool              `json:"is_automatic"`
	IsRetryLoop         bool              `json:"is_retry_loop"`
}

// CreateWorkflow creates an inactive, empty workflow for an application type.
func (s *Store) CreateWorkflow(ctx context.Context, name string, appType domain.ApplicationType, createdBy *uuid.UUID) (uuid.UUID, error) {
	now := time.Now()
	w := &domain.Workflow{
		ID:              uuid.New(),
		Name:            name,
		ApplicationType: appType,
		IsActive:        false,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateWorkflow(ctx, w); err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to create workflow")
	}

	s.logger.Info("Workflow created", map[string]interface{}{
		"workflow_id":      w.ID,
		"name":             name,
		"application_type": appType,
	})

	return w.ID, nil
}

// AddStage adds a stage to a draft workflow. Active workflows are immutable.
func (s *Store) AddStage(ctx context.Context, workflowID uuid.UUID, spec StageSpec) (uuid.UUID, error) {
	w, err := s.repo.FindWorkflowByID(ctx, workflowID)
	if err != nil {
		return uuid.Nil, err
	}
	if w.IsActive {
		return uuid.Nil, errors.ErrInvalidWorkflowState
	}

	stage := &domain.WorkflowStage{
		ID:                uuid.New(),
		WorkflowID:        workflowID,
		Name:              spec.Name,
		Sequence:          spec.Sequence,
		IsInitial:         spec.IsInitial,
		RequiredDocuments: spec.RequiredDocuments,
		RequiredActions:   spec.RequiredActions,
		AssignedRole:      spec.AssignedRole,
		StatusLabel:       spec.StatusLabel,
		CreatedAt:         time.Now(),
	}

	if err := s.repo.CreateStage(ctx, stage); err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to create stage")
	}

	return stage.ID, nil
}

// AddTransition adds a directed edge between two stages of the same draft
// workflow.
func (s *Store) AddTransition(ctx context.Context, workflowID, sourceStageID, targetStageID uuid.UUID, spec TransitionSpec) (uuid.UUID, error) {
	w, err := s.repo.FindWorkflowByID(ctx, workflowID)
	if err != nil {
		return uuid.Nil, err
	}
	if w.IsActive {
		return uuid.Nil, errors.ErrInvalidWorkflowState
	}

	source, err := s.repo.FindStageByID(ctx, sourceStageID)
	if err != nil {
		return uuid.Nil, err
	}
	target, err := s.repo.FindStageByID(ctx, targetStageID)
	if err != nil {
		return uuid.Nil, err
	}
	if source.WorkflowID != workflowID || target.WorkflowID != workflowID {
		return uuid.Nil, errors.ErrCrossWorkflowReference
	}

	if err := spec.Conditions.Validate(); err != nil {
		return uuid.Nil, errors.Wrap(err, "invalid transition conditions")
	}

	t := &domain.WorkflowTransition{
		ID:                  uuid.New(),
		WorkflowID:          workflowID,
		SourceStageID:       sourceStageID,
		TargetStageID:       targetStageID,
		Name:                spec.Name,
		Conditions:          spec.Conditions,
		RequiredPermissions: spec.RequiredPermissions,
		IsAutomatic:         spec.IsAutomatic,
		IsRetryLoop:         spec.IsRetryLoop,
		CreatedAt:           time.Now(),
	}

	if err := s.repo.CreateTransition(ctx, t); err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to create transition")
	}

	return t.ID, nil
}

// Validate checks the structural validity of a workflow graph. An empty
// findings list means the workflow may be activated.
func (s *Store) Validate(ctx context.Context, workflowID uuid.UUID) ([]Finding, error) {
	graph, err := s.loadGraphUncached(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return validateGraph(graph), nil
}

// Activate validates and activates a workflow, deactivating any other
// workflow of the same application type. Active workflows are immutable.
func (s *Store) Activate(ctx context.Context, workflowID uuid.UUID) error {
	graph, err := s.loadGraphUncached(ctx, workflowID)
	if err != nil {
		return err
	}

	if findings := validateGraph(graph); len(findings) > 0 {
		return &ValidationFailedError{WorkflowID: workflowID, Findings: findings}
	}

	if err := s.repo.DeactivateByType(ctx, graph.Workflow.ApplicationType, workflowID); err != nil {
		return errors.Wrap(err, "failed to deactivate previous workflow")
	}

	now := time.Now()
	if err := s.repo.SetActive(ctx, workflowID, true, now); err != nil {
		return errors.Wrap(err, "failed to activate workflow")
	}

	graph.Workflow.IsActive = true
	graph.Workflow.ActivatedAt = &now
	if s.cache != nil {
		s.cache.Put(ctx, graph)
	}

	s.logger.Info("Workflow activated", map[string]interface{}{
		"workflow_id":      workflowID,
		"application_type": graph.Workflow.ApplicationType,
		"stages":           len(graph.Stages),
		"transitions":      len(graph.Transitions),
	})

	return nil
}

// Deactivate administratively deactivates a workflow. In-flight applications
// already bound to it are unaffected.
func (s *Store) Deactivate(ctx context.Context, workflowID uuid.UUID) error {
	w, err := s.repo.FindWorkflowByID(ctx, workflowID)
	if err != nil {
		return err
	}
	if !w.IsActive {
		return errors.ErrWorkflowNotActive
	}

	if err := s.repo.SetActive(ctx, workflowID, false, time.Now()); err != nil {
		return errors.Wrap(err, "failed to deactivate workflow")
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, workflowID)
	}

	s.logger.Info("Workflow deactivated", map[string]interface{}{
		"workflow_id": workflowID,
	})

	return nil
}

// Graph returns the materialized graph for a workflow, served from cache for
// activated workflows.
func (s *Store) Graph(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowGraph, error) {
	if s.cache != nil {
		if g, ok := s.cache.Get(ctx, workflowID); ok {
			return g, nil
		}
	}

	graph, err := s.loadGraphUncached(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	// Only immutable (active) graphs are cacheable.
	if graph.Workflow.IsActive && s.cache != nil {
		s.cache.Put(ctx, graph)
	}

	return graph, nil
}

// ActiveGraphForType returns the graph of the active workflow for an
// application type.
func (s *Store) ActiveGraphForType(ctx context.Context, appType domain.ApplicationType) (*domain.WorkflowGraph, error) {
	w, err := s.repo.FindActiveByType(ctx, appType)
	if err != nil {
		return nil, err
	}
	return s.Graph(ctx, w.ID)
}

func (s *Store) loadGraphUncached(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowGraph, error) {
	w, err := s.repo.FindWorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	stages, err := s.repo.FindStages(ctx, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load stages")
	}
	transitions, err := s.repo.FindTransitions(ctx, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transitions")
	}
	return &domain.WorkflowGraph{Workflow: *w, Stages: stages, Transitions: transitions}, nil
}

// ValidationFailedError carries the findings that blocked activation.
type ValidationFailedError struct {
	WorkflowID uuid.UUID
	Findings   []Finding
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("workflow %s failed validation with %d findings", e.WorkflowID, len(e.Findings))
}
