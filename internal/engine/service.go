// Package engine implements the stage transition engine: it moves
// applications along activated workflow graphs, enforcing source-stage,
// permission and condition gates.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"admissions/internal/domain"
	"admissions/pkg/errors"
	"admissions/pkg/logger"

	"github.com/google/uuid"
)

// ApplicationRepository is the application persistence the engine needs.
type ApplicationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	BindToWorkflow(ctx context.Context, id, workflowID, stageID uuid.UUID, at time.Time) error
	UpdateStage(ctx context.Context, id, fromStageID, toStageID uuid.UUID, completed bool, at time.Time) error
	AppendStageHistory(ctx context.Context, e *domain.StageHistoryEntry) error
	FindStageHistory(ctx context.Context, applicationID uuid.UUID) ([]domain.StageHistoryEntry, error)
	RecordAction(ctx context.Context, a *domain.ReviewerAction) error
	HasAction(ctx context.Context, applicationID uuid.UUID, actionID string) (bool, error)
}

// DocumentReader exposes the document state condition evaluation reads.
type DocumentReader interface {
	FindByApplication(ctx context.Context, applicationID uuid.UUID) ([]domain.Document, error)
}

// GraphProvider resolves workflow graphs.
type GraphProvider interface {
	Graph(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowGraph, error)
	ActiveGraphForType(ctx context.Context, appType domain.ApplicationType) (*domain.WorkflowGraph, error)
}

// PermissionChecker authorizes manual transitions.
type PermissionChecker interface {
	HasPermission(ctx context.Context, actor uuid.UUID, permission string) (bool, error)
}

// StageObserver is notified after an application enters a new stage. The
// engine calls it synchronously inside the per-application lock; observers
// must not call back into the engine.
type StageObserver interface {
	OnStageChanged(ctx context.Context, app *domain.Application, graph *domain.WorkflowGraph, from, to *domain.WorkflowStage, automatic bool)
}

// AuditRecorder persists audit entries for executed transitions.
type AuditRecorder interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// Service is the stage transition engine.
type Service struct {
	apps     ApplicationRepository
	docs     DocumentReader
	graphs   GraphProvider
	perms    PermissionChecker
	audit    AuditRecorder
	observer StageObserver
	logger   logger.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService creates a transition engine. The observer may be nil.
func NewService(
	apps ApplicationRepository,
	docs DocumentReader,
	graphs GraphProvider,
	perms PermissionChecker,
	audit AuditRecorder,
	log logger.Logger,
) *Service {
	return &Service{
		apps:   apps,
		docs:   docs,
		graphs: graphs,
		perms:  perms,
		audit:  audit,
		logger: log,
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetObserver registers the stage observer. Called once during wiring, before
// the engine serves requests.
func (s *Service) SetObserver(o StageObserver) {
	s.observer = o
}

// lockApplication serializes all transition activity per application.
func (s *Service) lockApplication(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// releaseLock drops a completed application's lock entry so the map does not
// grow with every application ever processed. A waiter already blocked on the
// dropped mutex may briefly run alongside a holder of a fresh one, but a
// terminal stage has no outgoing transitions and the guarded stage update
// rejects stale moves.
func (s *Service) releaseLock(id uuid.UUID) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

// ConditionsNotMetError reports which transition conditions blocked an
// attempt, with human-readable reasons.
type ConditionsNotMetError struct {
	TransitionID uuid.UUID
	Reasons      []string
}

func (e *ConditionsNotMetError) Error() string {
	return fmt.Sprintf("transition %s conditions not met: %d unmet", e.TransitionID, len(e.Reasons))
}

// BindToWorkflow binds an unbound application to the active workflow for its
// type and places it in the initial stage. Called once at submission time.
func (s *Service) BindToWorkflow(ctx context.Context, applicationID uuid.UUID) (*domain.WorkflowStage, error) {
	lock := s.lockApplication(applicationID)
	lock.Lock()
	defer lock.Unlock()

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.WorkflowID != nil {
		return nil, errors.ErrApplicationAlreadyBound
	}

	graph, err := s.graphs.ActiveGraphForType(ctx, app.ApplicationType)
	if err != nil {
		return nil, err
	}
	initial := graph.InitialStage()
	if initial == nil {
		// Activation validation guarantees an initial stage; reaching this
		// means a corrupted definition.
		return nil, errors.ErrInvalidWorkflowState
	}

	now := time.Now()
	if err := s.apps.BindToWorkflow(ctx, applicationID, graph.Workflow.ID, initial.ID, now); err != nil {
		return nil, err
	}

	entry := &domain.StageHistoryEntry{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		StageID:       initial.ID,
		StageName:     initial.Name,
		IsAutomatic:   false,
		EnteredAt:     now,
	}
	if err := s.apps.AppendStageHistory(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Application bound to workflow", map[string]interface{}{
		"application_id": applicationID,
		"workflow_id":    graph.Workflow.ID,
		"initial_stage":  initial.Name,
	})

	app.WorkflowID = &graph.Workflow.ID
	app.CurrentStageID = &initial.ID
	s.notifyObserver(ctx, app, graph, nil, initial, false)

	// Documents may already be verified before submission, so initial-stage
	// conditions can hold at binding time.
	if err := s.evaluateAutomaticLocked(ctx, app, graph); err != nil {
		return nil, err
	}

	return initial, nil
}

// AttemptTransition executes one manual transition for an application.
// Gate order: source stage, permissions, conditions. A failed gate leaves
// the application unchanged, so a failed attempt is safely repeatable.
func (s *Service) AttemptTransition(ctx context.Context, applicationID, transitionID uuid.UUID, actor *uuid.UUID) error {
	lock := s.lockApplication(applicationID)
	lock.Lock()
	defer lock.Unlock()

	app, graph, err := s.loadBound(ctx, applicationID)
	if err != nil {
		return err
	}

	transition := graph.Transition(transitionID)
	if transition == nil {
		return errors.ErrTransitionNotFound
	}
	if *app.CurrentStageID != transition.SourceStageID {
		return errors.ErrNotInSourceStage
	}

	if !transition.IsAutomatic {
		if err := s.checkPermissions(ctx, transition, actor); err != nil {
			return err
		}
	}

	unmet, err := s.evaluateConditions(ctx, app, graph, transition)
	if err != nil {
		return err
	}
	if len(unmet) > 0 {
		return &ConditionsNotMetError{TransitionID: transitionID, Reasons: unmet}
	}

	return s.execute(ctx, app, graph, transition, actor, false)
}

// EvaluateAutomaticTransitions repeatedly fires eligible automatic
// transitions out of the application's current stage until none apply. When
// several are eligible the earliest-created wins. The hop count is bounded by
// the stage count; exceeding it indicates a workflow configuration defect.
func (s *Service) EvaluateAutomaticTransitions(ctx context.Context, applicationID uuid.UUID) error {
	lock := s.lockApplication(applicationID)
	lock.Lock()
	defer lock.Unlock()

	app, graph, err := s.loadBound(ctx, applicationID)
	if err != nil {
		if err == errors.ErrApplicationNotBound {
			return nil
		}
		return err
	}

	return s.evaluateAutomaticLocked(ctx, app, graph)
}

// evaluateAutomaticLocked is the evaluation loop body. The caller holds the
// application lock.
func (s *Service) evaluateAutomaticLocked(ctx context.Context, app *domain.Application, graph *domain.WorkflowGraph) error {
	maxHops := len(graph.Stages)
	for hop := 0; ; hop++ {
		if hop >= maxHops {
			s.logger.Error("Automatic transition loop exceeded hop bound", map[string]interface{}{
				"application_id": app.ID,
				"workflow_id":    graph.Workflow.ID,
				"hop_bound":      maxHops,
			})
			return errors.ErrAutomaticTransitionLoop
		}

		fired, err := s.fireOneAutomatic(ctx, app, graph)
		if err != nil {
			return err
		}
		if !fired {
			return nil
		}
	}
}

func (s *Service) fireOneAutomatic(ctx context.Context, app *domain.Application, graph *domain.WorkflowGraph) (bool, error) {
	// Outgoing is ordered by creation time, so the first eligible transition
	// is the deterministic winner.
	for _, t := range graph.Outgoing(*app.CurrentStageID) {
		if !t.IsAutomatic {
			continue
		}
		transition := t
		unmet, err := s.evaluateConditions(ctx, app, graph, &transition)
		if err != nil {
			return false, err
		}
		if len(unmet) > 0 {
			continue
		}
		if err := s.execute(ctx, app, graph, &transition, nil, true); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// RecordAction records a reviewer action against an application and then
// re-evaluates automatic transitions, since action_recorded conditions may
// now hold.
func (s *Service) RecordAction(ctx context.Context, applicationID uuid.UUID, actionID string, actor uuid.UUID, notes string) error {
	action := &domain.ReviewerAction{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		ActionID:      actionID,
		Actor:         actor,
		Notes:         notes,
		RecordedAt:    time.Now(),
	}
	if err := s.apps.RecordAction(ctx, action); err != nil {
		return err
	}

	s.logger.Info("Reviewer action recorded", map[string]interface{}{
		"application_id": applicationID,
		"action_id":      actionID,
		"actor":          actor,
	})

	return s.EvaluateAutomaticTransitions(ctx, applicationID)
}

// AvailableTransitions returns the outgoing transitions of the application's
// current stage with their condition evaluation, for reviewer tooling.
func (s *Service) AvailableTransitions(ctx context.Context, applicationID uuid.UUID) ([]TransitionStatus, error) {
	lock := s.lockApplication(applicationID)
	lock.Lock()
	defer lock.Unlock()

	app, graph, err := s.loadBound(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	var out []TransitionStatus
	for _, t := range graph.Outgoing(*app.CurrentStageID) {
		transition := t
		unmet, err := s.evaluateConditions(ctx, app, graph, &transition)
		if err != nil {
			return nil, err
		}
		target := graph.Stage(transition.TargetStageID)
		status := TransitionStatus{
			Transition:   transition,
			Eligible:     len(unmet) == 0,
			UnmetReasons: unmet,
		}
		if target != nil {
			status.TargetStageName = target.Name
		}
		out = append(out, status)
	}
	return out, nil
}

// TransitionStatus pairs a transition with its current eligibility.
type TransitionStatus struct {
	Transition      domain.WorkflowTransition `json:"transition"`
	TargetStageName string                    `json:"target_stage_name"`
	Eligible        bool                      `json:"eligible"`
	UnmetReasons    []string                  `json:"unmet_reasons,omitempty"`
}

func (s *Service) loadBound(ctx context.Context, applicationID uuid.UUID) (*domain.Application, *domain.WorkflowGraph, error) {
	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	if app.WorkflowID == nil || app.CurrentStageID == nil {
		return nil, nil, errors.ErrApplicationNotBound
	}
	graph, err := s.graphs.Graph(ctx, *app.WorkflowID)
	if err != nil {
		return nil, nil, err
	}
	return app, graph, nil
}

func (s *Service) checkPermissions(ctx context.Context, t *domain.WorkflowTransition, actor *uuid.UUID) error {
	if len(t.RequiredPermissions) == 0 {
		return nil
	}
	if actor == nil {
		return errors.ErrPermissionDenied
	}
	for _, perm := range t.RequiredPermissions {
		ok, err := s.perms.HasPermission(ctx, *actor, perm)
		if err != nil {
			return errors.Wrap(err, "failed to check permission")
		}
		if !ok {
			return errors.ErrPermissionDenied
		}
	}
	return nil
}

// execute applies a gated transition: stage update, history append, audit,
// observer notification. The caller holds the application lock.
func (s *Service) execute(ctx context.Context, app *domain.Application, graph *domain.WorkflowGraph, t *domain.WorkflowTransition, actor *uuid.UUID, automatic bool) error {
	from := graph.Stage(t.SourceStageID)
	to := graph.Stage(t.TargetStageID)
	if to == nil {
		return errors.ErrStageNotFound
	}

	now := time.Now()
	completed := graph.IsTerminal(to.ID)
	if err := s.apps.UpdateStage(ctx, app.ID, t.SourceStageID, t.TargetStageID, completed, now); err != nil {
		return err
	}

	entry := &domain.StageHistoryEntry{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		StageID:       to.ID,
		StageName:     to.Name,
		TransitionID:  &t.ID,
		Actor:         actor,
		IsAutomatic:   automatic,
		EnteredAt:     now,
	}
	if err := s.apps.AppendStageHistory(ctx, entry); err != nil {
		return err
	}

	app.CurrentStageID = &to.ID
	if completed {
		app.CompletedAt = &now
		s.releaseLock(app.ID)
	}

	if s.audit != nil {
		auditErr := s.audit.Create(ctx, &domain.AuditLog{
			Actor:      actor,
			Action:     "stage_transition",
			EntityType: "application",
			EntityID:   app.ID.String(),
			NewValues: domain.Metadata{
				"transition_id": t.ID.String(),
				"from_stage":    t.SourceStageID.String(),
				"to_stage":      to.ID.String(),
				"automatic":     automatic,
			},
		})
		if auditErr != nil {
			s.logger.Warn("Failed to write transition audit log", map[string]interface{}{
				"application_id": app.ID,
				"error":          auditErr.Error(),
			})
		}
	}

	s.logger.Info("Application transitioned", map[string]interface{}{
		"application_id": app.ID,
		"transition_id":  t.ID,
		"to_stage":       to.Name,
		"automatic":      automatic,
		"completed":      completed,
	})

	s.notifyObserver(ctx, app, graph, from, to, automatic)
	return nil
}

func (s *Service) notifyObserver(ctx context.Context, app *domain.Application, graph *domain.WorkflowGraph, from, to *domain.WorkflowStage, automatic bool) {
	if s.observer == nil {
		return
	}
	s.observer.OnStageChanged(ctx, app, graph, from, to, automatic)
}
