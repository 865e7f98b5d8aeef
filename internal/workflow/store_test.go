package workflow

import (
	"context"
	"testing"
	"time"

	"admissions/internal/domain"
	"admissions/pkg/errors"
	"admissions/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateWorkflow(ctx context.Context, w *domain.Workflow) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockRepository) FindWorkflowByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Workflow), args.Error(1)
}

func (m *MockRepository) FindActiveByType(ctx context.Context, appType domain.ApplicationType) (*domain.Workflow, error) {
	args := m.Called(ctx, appType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Workflow), args.Error(1)
}

func (m *MockRepository) SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error {
	args := m.Called(ctx, id, active, at)
	return args.Error(0)
}

func (m *MockRepository) DeactivateByType(ctx context.Context, appType domain.ApplicationType, except uuid.UUID) error {
	args := m.Called(ctx, appType, except)
	return args.Error(0)
}

func (m *MockRepository) CreateStage(ctx context.Context, s *domain.WorkflowStage) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockRepository) FindStages(ctx context.Context, workflowID uuid.UUID) ([]domain.WorkflowStage, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WorkflowStage), args.Error(1)
}

func (m *MockRepository) FindStageByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WorkflowStage), args.Error(1)
}

func (m *MockRepository) CreateTransition(ctx context.Context, t *domain.WorkflowTransition) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) FindTransitions(ctx context.Context, workflowID uuid.UUID) ([]domain.WorkflowTransition, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WorkflowTransition), args.Error(1)
}

// --- Graph fixtures ---

func stage(workflowID uuid.UUID, name string, initial bool) domain.WorkflowStage {
	return domain.WorkflowStage{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		Name:       name,
		IsInitial:  initial,
		CreatedAt:  time.Now(),
	}
}

func edge(workflowID, from, to uuid.UUID) domain.WorkflowTransition {
	return domain.WorkflowTransition{
		ID:            uuid.New(),
		WorkflowID:    workflowID,
		SourceStageID: from,
		TargetStageID: to,
		CreatedAt:     time.Now(),
	}
}

func findingCodes(findings []Finding) []string {
	codes := make([]string, len(findings))
	for i, f := range findings {
		codes[i] = f.Code
	}
	return codes
}

// --- Validation ---

func TestValidateGraph_EmptyWorkflow(t *testing.T) {
	g := &domain.WorkflowGraph{Workflow: domain.Workflow{ID: uuid.New()}}

	findings := validateGraph(g)

	assert.Equal(t, []string{FindingEmptyWorkflow}, findingCodes(findings))
}

func TestValidateGraph_ValidLinearWorkflow(t *testing.T) {
	wfID := uuid.New()
	received := stage(wfID, "Received", true)
	review := stage(wfID, "Review", false)
	decided := stage(wfID, "Decided", false)

	g := &domain.WorkflowGraph{
		Workflow: domain.Workflow{ID: wfID},
		Stages:   []domain.WorkflowStage{received, review, decided},
		Transitions: []domain.WorkflowTransition{
			edge(wfID, received.ID, review.ID),
			edge(wfID, review.ID, decided.ID),
		},
	}

	assert.Empty(t, validateGraph(g))
}

func TestValidateGraph_NoInitialStage(t *testing.T) {
	wfID := uuid.New()
	a := stage(wfID, "A", false)
	b := stage(wfID, "B", false)

	g := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID},
		Stages:      []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{edge(wfID, a.ID, b.ID)},
	}

	assert.Contains(t, findingCodes(validateGraph(g)), FindingNoInitialStage)
}

func TestValidateGraph_MultipleInitialStages(t *testing.T) {
	wfID := uuid.New()
	a := stage(wfID, "A", true)
	b := stage(wfID, "B", true)

	g := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID},
		Stages:      []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{edge(wfID, a.ID, b.ID)},
	}

	codes := findingCodes(validateGraph(g))
	assert.Contains(t, codes, FindingMultipleInitialStages)
}

func TestValidateGraph_InitialStageWithIncomingTransition(t *testing.T) {
	wfID := uuid.New()
	a := stage(wfID, "A", true)
	b := stage(wfID, "B", false)
	c := stage(wfID, "C", false)

	g := &domain.WorkflowGraph{
		Workflow: domain.Workflow{ID: wfID},
		Stages:   []domain.WorkflowStage{a, b, c},
		Transitions: []domain.WorkflowTransition{
			edge(wfID, a.ID, b.ID),
			edge(wfID, b.ID, a.ID),
			edge(wfID, b.ID, c.ID),
		},
	}

	assert.Contains(t, findingCodes(validateGraph(g)), FindingInitialHasIncoming)
}

func TestValidateGraph_OrphanStage(t *testing.T) {
	wfID := uuid.New()
	a := stage(wfID, "A", true)
	b := stage(wfID, "B", false)
	orphan := stage(wfID, "Orphan", false)

	g := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID},
		Stages:      []domain.WorkflowStage{a, b, orphan},
		Transitions: []domain.WorkflowTransition{edge(wfID, a.ID, b.ID)},
	}

	findings := validateGraph(g)
	assert.Contains(t, findingCodes(findings), FindingOrphanStage)

	var orphanFinding *Finding
	for i := range findings {
		if findings[i].Code == FindingOrphanStage {
			orphanFinding = &findings[i]
		}
	}
	assert.NotNil(t, orphanFinding)
	assert.Equal(t, orphan.ID, orphanFinding.StageID)
}

func TestValidateGraph_CycleWithNoExit(t *testing.T) {
	wfID := uuid.New()
	a := stage(wfID, "A", true)
	b := stage(wfID, "B", false)
	c := stage(wfID, "C", false)

	// b and c cycle forever with no path to a terminal stage.
	g := &domain.WorkflowGraph{
		Workflow: domain.Workflow{ID: wfID},
		Stages:   []domain.WorkflowStage{a, b, c},
		Transitions: []domain.WorkflowTransition{
			edge(wfID, a.ID, b.ID),
			edge(wfID, b.ID, c.ID),
			edge(wfID, c.ID, b.ID),
		},
	}

	codes := findingCodes(validateGraph(g))
	assert.Contains(t, codes, FindingNoPathToTerminal)
	assert.Contains(t, codes, FindingNoTerminalStage)
}

func TestValidateGraph_CycleWithExitIsValid(t *testing.T) {
	wfID := uuid.New()
	a := stage(wfID, "A", true)
	b := stage(wfID, "B", false)
	c := stage(wfID, "C", false)
	done := stage(wfID, "Done", false)

	g := &domain.WorkflowGraph{
		Workflow: domain.Workflow{ID: wfID},
		Stages:   []domain.WorkflowStage{a, b, c, done},
		Transitions: []domain.WorkflowTransition{
			edge(wfID, a.ID, b.ID),
			edge(wfID, b.ID, c.ID),
			edge(wfID, c.ID, b.ID),
			edge(wfID, c.ID, done.ID),
		},
	}

	assert.Empty(t, validateGraph(g))
}

func TestValidateGraph_SelfLoopRequiresRetryFlag(t *testing.T) {
	wfID := uuid.New()
	a := stage(wfID, "A", true)
	b := stage(wfID, "B", false)

	loop := edge(wfID, a.ID, a.ID)

	g := &domain.WorkflowGraph{
		Workflow: domain.Workflow{ID: wfID},
		Stages:   []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{
			loop,
			edge(wfID, a.ID, b.ID),
		},
	}

	assert.Contains(t, findingCodes(validateGraph(g)), FindingSelfLoopNotRetry)

	// Flagging the loop as a retry loop clears the finding.
	g.Transitions[0].IsRetryLoop = true
	assert.Empty(t, validateGraph(g))
}

// --- Store ---

func TestStore_AddStageRejectsActiveWorkflow(t *testing.T) {
	repo := new(MockRepository)
	store := NewStore(repo, nil, logger.NewNop())

	wfID := uuid.New()
	repo.On("FindWorkflowByID", mock.Anything, wfID).
		Return(&domain.Workflow{ID: wfID, IsActive: true}, nil)

	_, err := store.AddStage(context.Background(), wfID, StageSpec{Name: "Review"})

	assert.ErrorIs(t, err, errors.ErrInvalidWorkflowState)
	repo.AssertNotCalled(t, "CreateStage", mock.Anything, mock.Anything)
}

func TestStore_AddTransitionRejectsCrossWorkflowStages(t *testing.T) {
	repo := new(MockRepository)
	store := NewStore(repo, nil, logger.NewNop())

	wfID := uuid.New()
	otherWfID := uuid.New()
	source := stage(wfID, "A", true)
	foreign := stage(otherWfID, "B", false)

	repo.On("FindWorkflowByID", mock.Anything, wfID).
		Return(&domain.Workflow{ID: wfID}, nil)
	repo.On("FindStageByID", mock.Anything, source.ID).Return(&source, nil)
	repo.On("FindStageByID", mock.Anything, foreign.ID).Return(&foreign, nil)

	_, err := store.AddTransition(context.Background(), wfID, source.ID, foreign.ID, TransitionSpec{})

	assert.ErrorIs(t, err, errors.ErrCrossWorkflowReference)
	repo.AssertNotCalled(t, "CreateTransition", mock.Anything, mock.Anything)
}

func TestStore_ActivateRejectsInvalidWorkflow(t *testing.T) {
	repo := new(MockRepository)
	store := NewStore(repo, nil, logger.NewNop())

	wfID := uuid.New()
	a := stage(wfID, "A", true)
	orphan := stage(wfID, "Orphan", false)

	repo.On("FindWorkflowByID", mock.Anything, wfID).
		Return(&domain.Workflow{ID: wfID, ApplicationType: domain.ApplicationTypeGraduate}, nil)
	repo.On("FindStages", mock.Anything, wfID).
		Return([]domain.WorkflowStage{a, orphan}, nil)
	repo.On("FindTransitions", mock.Anything, wfID).
		Return([]domain.WorkflowTransition{}, nil)

	err := store.Activate(context.Background(), wfID)

	var vf *ValidationFailedError
	assert.ErrorAs(t, err, &vf)
	assert.Contains(t, findingCodes(vf.Findings), FindingOrphanStage)
	repo.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_ActivateDeactivatesPreviousWorkflowOfSameType(t *testing.T) {
	repo := new(MockRepository)
	store := NewStore(repo, nil, logger.NewNop())

	wfID := uuid.New()
	a := stage(wfID, "Received", true)
	b := stage(wfID, "Decided", false)

	repo.On("FindWorkflowByID", mock.Anything, wfID).
		Return(&domain.Workflow{ID: wfID, ApplicationType: domain.ApplicationTypeUndergraduate}, nil)
	repo.On("FindStages", mock.Anything, wfID).
		Return([]domain.WorkflowStage{a, b}, nil)
	repo.On("FindTransitions", mock.Anything, wfID).
		Return([]domain.WorkflowTransition{edge(wfID, a.ID, b.ID)}, nil)
	repo.On("DeactivateByType", mock.Anything, domain.ApplicationTypeUndergraduate, wfID).Return(nil)
	repo.On("SetActive", mock.Anything, wfID, true, mock.Anything).Return(nil)

	err := store.Activate(context.Background(), wfID)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestStore_DeactivateRequiresActiveWorkflow(t *testing.T) {
	repo := new(MockRepository)
	store := NewStore(repo, nil, logger.NewNop())

	wfID := uuid.New()
	repo.On("FindWorkflowByID", mock.Anything, wfID).
		Return(&domain.Workflow{ID: wfID, IsActive: false}, nil)

	err := store.Deactivate(context.Background(), wfID)

	assert.ErrorIs(t, err, errors.ErrWorkflowNotActive)
}
