package engine

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

type MockApplicationRepository struct {
	mock.Mock
}

func (m *MockApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *MockApplicationRepository) BindToWorkflow(ctx context.Context, id, workflowID, stageID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, workflowID, stageID, at)
	return args.Error(0)
}

func (m *MockApplicationRepository) UpdateStage(ctx context.Context, id, fromStageID, toStageID uuid.UUID, completed bool, at time.Time) error {
	args := m.Called(ctx, id, fromStageID, toStageID, completed, at)
	return args.Error(0)
}

func (m *MockApplicationRepository) AppendStageHistory(ctx context.Context, e *domain.StageHistoryEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockApplicationRepository) FindStageHistory(ctx context.Context, applicationID uuid.UUID) ([]domain.StageHistoryEntry, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StageHistoryEntry), args.Error(1)
}

func (m *MockApplicationRepository) RecordAction(ctx context.Context, a *domain.ReviewerAction) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockApplicationRepository) HasAction(ctx context.Context, applicationID uuid.UUID, actionID string) (bool, error) {
	args := m.Called(ctx, applicationID, actionID)
	return args.Bool(0), args.Error(1)
}

type MockDocumentReader struct {
	mock.Mock
}

func (m *MockDocumentReader) FindByApplication(ctx context.Context, applicationID uuid.UUID) ([]domain.Document, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

type MockGraphProvider struct {
	mock.Mock
}

func (m *MockGraphProvider) Graph(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowGraph, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WorkflowGraph), args.Error(1)
}

func (m *MockGraphProvider) ActiveGraphForType(ctx context.Context, appType domain.ApplicationType) (*domain.WorkflowGraph, error) {
	args := m.Called(ctx, appType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WorkflowGraph), args.Error(1)
}

type MockPermissionChecker struct {
	mock.Mock
}

func (m *MockPermissionChecker) HasPermission(ctx context.Context, actor uuid.UUID, permission string) (bool, error) {
	args := m.Called(ctx, actor, permission)
	return args.Bool(0), args.Error(1)
}

type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) OnStageChanged(ctx context.Context, app *domain.Application, graph *domain.WorkflowGraph, from, to *domain.WorkflowStage, automatic bool) {
	m.Called(ctx, app, graph, from, to, automatic)
}

// --- Fixtures ---

type fixture struct {
	apps    *MockApplicationRepository
	docs    *MockDocumentReader
	graphs  *MockGraphProvider
	perms   *MockPermissionChecker
	service *Service
}

func newFixture() *fixture {
	f := &fixture{
		apps:   new(MockApplicationRepository),
		docs:   new(MockDocumentReader),
		graphs: new(MockGraphProvider),
		perms:  new(MockPermissionChecker),
	}
	f.service = NewService(f.apps, f.docs, f.graphs, f.perms, nil, logger.NewNop())
	return f
}

func makeStage(wfID uuid.UUID, name string, initial bool) domain.WorkflowStage {
	return domain.WorkflowStage{
		ID:         uuid.New(),
		WorkflowID: wfID,
		Name:       name,
		IsInitial:  initial,
		CreatedAt:  time.Now(),
	}
}

func makeApp(wfID, stageID uuid.UUID) *domain.Application {
	return &domain.Application{
		ID:              uuid.New(),
		ApplicantID:     uuid.New(),
		ApplicationType: domain.ApplicationTypeUndergraduate,
		WorkflowID:      &wfID,
		CurrentStageID:  &stageID,
	}
}

// --- AttemptTransition ---

func TestAttemptTransition_NotInSourceStage(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "A", true)
	b := makeStage(wfID, "B", false)
	c := makeStage(wfID, "C", false)
	transition := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: b.ID, TargetStageID: c.ID,
		CreatedAt: time.Now(),
	}
	graph := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID, IsActive: true},
		Stages:      []domain.WorkflowStage{a, b, c},
		Transitions: []domain.WorkflowTransition{transition},
	}

	// Application sits in A, transition starts from B.
	app := makeApp(wfID, a.ID)
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("Graph", mock.Anything, wfID).Return(graph, nil)

	err := f.service.AttemptTransition(context.Background(), app.ID, transition.ID, nil)

	assert.ErrorIs(t, err, errors.ErrNotInSourceStage)
	f.apps.AssertNotCalled(t, "UpdateStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAttemptTransition_PermissionDeniedLeavesApplicationUnchanged(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "A", true)
	b := makeStage(wfID, "B", false)
	transition := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: b.ID,
		RequiredPermissions: domain.StringList{"applications.decide"},
		CreatedAt:           time.Now(),
	}
	graph := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID, IsActive: true},
		Stages:      []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{transition},
	}

	app := makeApp(wfID, a.ID)
	actor := uuid.New()
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("Graph", mock.Anything, wfID).Return(graph, nil)
	f.perms.On("HasPermission", mock.Anything, actor, "applications.decide").Return(false, nil)

	err := f.service.AttemptTransition(context.Background(), app.ID, transition.ID, &actor)

	assert.ErrorIs(t, err, errors.ErrPermissionDenied)
	f.apps.AssertNotCalled(t, "UpdateStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.apps.AssertNotCalled(t, "AppendStageHistory", mock.Anything, mock.Anything)

	// A failed attempt is repeatable and fails identically.
	err = f.service.AttemptTransition(context.Background(), app.ID, transition.ID, &actor)
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)
}

func TestAttemptTransition_ConditionsNotMetReportsReasons(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "Document Collection", true)
	a.RequiredDocuments = domain.DocumentTypeList{domain.DocumentTypeTranscript, domain.DocumentTypePassport}
	b := makeStage(wfID, "Review", false)
	transition := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: b.ID,
		Conditions: domain.AllDocumentsVerified(),
		CreatedAt:  time.Now(),
	}
	graph := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID, IsActive: true},
		Stages:      []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{transition},
	}

	app := makeApp(wfID, a.ID)
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("Graph", mock.Anything, wfID).Return(graph, nil)
	// Transcript uploaded but unverified, passport missing entirely.
	f.docs.On("FindByApplication", mock.Anything, app.ID).Return([]domain.Document{
		{ID: uuid.New(), ApplicationID: app.ID, DocumentType: domain.DocumentTypeTranscript, IsVerified: false},
	}, nil)

	err := f.service.AttemptTransition(context.Background(), app.ID, transition.ID, nil)

	var cnm *ConditionsNotMetError
	assert.ErrorAs(t, err, &cnm)
	assert.Len(t, cnm.Reasons, 2)
	assert.Contains(t, cnm.Reasons, "transcript is uploaded but not yet verified")
	assert.Contains(t, cnm.Reasons, "passport has not been uploaded")
	f.apps.AssertNotCalled(t, "UpdateStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAttemptTransition_SuccessAppendsHistoryAndNotifies(t *testing.T) {
	f := newFixture()
	observer := new(MockObserver)
	f.service.SetObserver(observer)

	wfID := uuid.New()
	a := makeStage(wfID, "Review", true)
	b := makeStage(wfID, "Decided", false)
	transition := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: b.ID,
		CreatedAt: time.Now(),
	}
	graph := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID, IsActive: true},
		Stages:      []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{transition},
	}

	app := makeApp(wfID, a.ID)
	actor := uuid.New()
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("Graph", mock.Anything, wfID).Return(graph, nil)
	// b is terminal, so the move also completes the application.
	f.apps.On("UpdateStage", mock.Anything, app.ID, a.ID, b.ID, true, mock.Anything).Return(nil)
	f.apps.On("AppendStageHistory", mock.Anything, mock.MatchedBy(func(e *domain.StageHistoryEntry) bool {
		return e.ApplicationID == app.ID && e.StageID == b.ID && !e.IsAutomatic && e.Actor != nil && *e.Actor == actor
	})).Return(nil)
	observer.On("OnStageChanged", mock.Anything, mock.Anything, graph, &graph.Stages[0], &graph.Stages[1], false).Return()

	err := f.service.AttemptTransition(context.Background(), app.ID, transition.ID, &actor)

	assert.NoError(t, err)
	f.apps.AssertExpectations(t)
	observer.AssertExpectations(t)
}

// --- Automatic transitions ---

func TestEvaluateAutomaticTransitions_EarliestCreatedWins(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "A", true)
	b := makeStage(wfID, "B", false)
	c := makeStage(wfID, "C", false)

	now := time.Now()
	older := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: b.ID,
		IsAutomatic: true, CreatedAt: now.Add(-time.Hour),
	}
	newer := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: c.ID,
		IsAutomatic: true, CreatedAt: now,
	}
	graph := &domain.WorkflowGraph{
		Workflow: domain.Workflow{ID: wfID, IsActive: true},
		Stages:   []domain.WorkflowStage{a, b, c},
		// Listed newest first to prove ordering comes from CreatedAt, not
		// slice position.
		Transitions: []domain.WorkflowTransition{newer, older},
	}

	app := makeApp(wfID, a.ID)
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("Graph", mock.Anything, wfID).Return(graph, nil)
	f.apps.On("UpdateStage", mock.Anything, app.ID, a.ID, b.ID, true, mock.Anything).Return(nil)
	f.apps.On("AppendStageHistory", mock.Anything, mock.MatchedBy(func(e *domain.StageHistoryEntry) bool {
		return e.StageID == b.ID && e.IsAutomatic
	})).Return(nil)

	err := f.service.EvaluateAutomaticTransitions(context.Background(), app.ID)

	assert.NoError(t, err)
	f.apps.AssertExpectations(t)
}

func TestEvaluateAutomaticTransitions_ChainsAcrossStages(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "A", true)
	b := makeStage(wfID, "B", false)
	c := makeStage(wfID, "C", false)

	ab := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: b.ID,
		IsAutomatic: true, CreatedAt: time.Now(),
	}
	bc := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: b.ID, TargetStageID: c.ID,
		IsAutomatic: true, CreatedAt: time.Now(),
	}
	graph := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID, IsActive: true},
		Stages:      []domain.WorkflowStage{a, b, c},
		Transitions: []domain.WorkflowTransition{ab, bc},
	}

	app := makeApp(wfID, a.ID)
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("Graph", mock.Anything, wfID).Return(graph, nil)
	f.apps.On("UpdateStage", mock.Anything, app.ID, a.ID, b.ID, false, mock.Anything).Return(nil)
	f.apps.On("UpdateStage", mock.Anything, app.ID, b.ID, c.ID, true, mock.Anything).Return(nil)
	f.apps.On("AppendStageHistory", mock.Anything, mock.Anything).Return(nil)

	err := f.service.EvaluateAutomaticTransitions(context.Background(), app.ID)

	assert.NoError(t, err)
	f.apps.AssertNumberOfCalls(t, "UpdateStage", 2)
}

func TestEvaluateAutomaticTransitions_HopBoundDetectsLoop(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "A", true)
	b := makeStage(wfID, "B", false)
	done := makeStage(wfID, "Done", false)

	// a and b ping-pong with unconditional automatic transitions. The exit
	// to Done is never the earliest-created option, so evaluation loops.
	now := time.Now()
	ab := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: b.ID,
		IsAutomatic: true, CreatedAt: now.Add(-2 * time.Hour),
	}
	ba := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: b.ID, TargetStageID: a.ID,
		IsAutomatic: true, CreatedAt: now.Add(-time.Hour),
	}
	bDone := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: b.ID, TargetStageID: done.ID,
		IsAutomatic: true, CreatedAt: now,
	}
	graph := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID, IsActive: true},
		Stages:      []domain.WorkflowStage{a, b, done},
		Transitions: []domain.WorkflowTransition{ab, ba, bDone},
	}

	app := makeApp(wfID, a.ID)
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("Graph", mock.Anything, wfID).Return(graph, nil)
	f.apps.On("UpdateStage", mock.Anything, app.ID, mock.Anything, mock.Anything, false, mock.Anything).Return(nil)
	f.apps.On("AppendStageHistory", mock.Anything, mock.Anything).Return(nil)

	err := f.service.EvaluateAutomaticTransitions(context.Background(), app.ID)

	assert.ErrorIs(t, err, errors.ErrAutomaticTransitionLoop)
}

func TestEvaluateAutomaticTransitions_UnboundApplicationIsNoop(t *testing.T) {
	f := newFixture()

	app := &domain.Application{ID: uuid.New(), ApplicationType: domain.ApplicationTypeGraduate}
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)

	err := f.service.EvaluateAutomaticTransitions(context.Background(), app.ID)

	assert.NoError(t, err)
}

// --- BindToWorkflow ---

func TestBindToWorkflow_PlacesApplicationInInitialStage(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "Received", true)
	b := makeStage(wfID, "Review", false)
	graph := &domain.WorkflowGraph{
		Workflow: domain.Workflow{ID: wfID, ApplicationType: domain.ApplicationTypeUndergraduate, IsActive: true},
		Stages:   []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{{
			ID: uuid.New(), WorkflowID: wfID,
			SourceStageID: a.ID, TargetStageID: b.ID, CreatedAt: time.Now(),
		}},
	}

	app := &domain.Application{
		ID:              uuid.New(),
		ApplicantID:     uuid.New(),
		ApplicationType: domain.ApplicationTypeUndergraduate,
	}
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("ActiveGraphForType", mock.Anything, domain.ApplicationTypeUndergraduate).Return(graph, nil)
	f.apps.On("BindToWorkflow", mock.Anything, app.ID, wfID, a.ID, mock.Anything).Return(nil)
	f.apps.On("AppendStageHistory", mock.Anything, mock.MatchedBy(func(e *domain.StageHistoryEntry) bool {
		return e.StageID == a.ID && e.StageName == "Received"
	})).Return(nil)

	initial, err := f.service.BindToWorkflow(context.Background(), app.ID)

	assert.NoError(t, err)
	assert.Equal(t, a.ID, initial.ID)
	f.apps.AssertExpectations(t)
}

func TestBindToWorkflow_FiresEligibleAutomaticTransition(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "Submitted", true)
	a.RequiredDocuments = domain.DocumentTypeList{domain.DocumentTypeTranscript}
	b := makeStage(wfID, "Review", false)
	transition := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: b.ID,
		IsAutomatic: true,
		Conditions:  domain.AllDocumentsVerified(),
		CreatedAt:   time.Now(),
	}
	graph := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID, ApplicationType: domain.ApplicationTypeUndergraduate, IsActive: true},
		Stages:      []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{transition},
	}

	app := &domain.Application{
		ID:              uuid.New(),
		ApplicantID:     uuid.New(),
		ApplicationType: domain.ApplicationTypeUndergraduate,
	}
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("ActiveGraphForType", mock.Anything, domain.ApplicationTypeUndergraduate).Return(graph, nil)
	f.apps.On("BindToWorkflow", mock.Anything, app.ID, wfID, a.ID, mock.Anything).Return(nil)
	// The transcript was uploaded and verified before submission.
	f.docs.On("FindByApplication", mock.Anything, app.ID).Return([]domain.Document{
		{ID: uuid.New(), ApplicationID: app.ID, DocumentType: domain.DocumentTypeTranscript, IsVerified: true},
	}, nil)
	f.apps.On("UpdateStage", mock.Anything, app.ID, a.ID, b.ID, true, mock.Anything).Return(nil)
	f.apps.On("AppendStageHistory", mock.Anything, mock.Anything).Return(nil)

	initial, err := f.service.BindToWorkflow(context.Background(), app.ID)

	assert.NoError(t, err)
	assert.Equal(t, a.ID, initial.ID)
	assert.Equal(t, b.ID, *app.CurrentStageID)
	f.apps.AssertExpectations(t)
}

func TestBindToWorkflow_RejectsAlreadyBoundApplication(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	stageID := uuid.New()
	app := makeApp(wfID, stageID)
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)

	_, err := f.service.BindToWorkflow(context.Background(), app.ID)

	assert.ErrorIs(t, err, errors.ErrApplicationAlreadyBound)
}

func TestAttemptTransition_TerminalStageReleasesLockEntry(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "Review", true)
	b := makeStage(wfID, "Decided", false)
	transition := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: b.ID,
		CreatedAt: time.Now(),
	}
	graph := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID, IsActive: true},
		Stages:      []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{transition},
	}

	app := makeApp(wfID, a.ID)
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("Graph", mock.Anything, wfID).Return(graph, nil)
	f.apps.On("UpdateStage", mock.Anything, app.ID, a.ID, b.ID, true, mock.Anything).Return(nil)
	f.apps.On("AppendStageHistory", mock.Anything, mock.Anything).Return(nil)

	err := f.service.AttemptTransition(context.Background(), app.ID, transition.ID, nil)

	assert.NoError(t, err)
	f.service.mu.Lock()
	_, held := f.service.locks[app.ID]
	f.service.mu.Unlock()
	assert.False(t, held, "completed application should not retain a lock entry")
}

// --- RecordAction ---

func TestRecordAction_TriggersAutomaticEvaluation(t *testing.T) {
	f := newFixture()

	wfID := uuid.New()
	a := makeStage(wfID, "Interview", true)
	b := makeStage(wfID, "Decided", false)
	transition := domain.WorkflowTransition{
		ID: uuid.New(), WorkflowID: wfID,
		SourceStageID: a.ID, TargetStageID: b.ID,
		IsAutomatic: true,
		Conditions:  domain.ActionRecorded("interview_completed"),
		CreatedAt:   time.Now(),
	}
	graph := &domain.WorkflowGraph{
		Workflow:    domain.Workflow{ID: wfID, IsActive: true},
		Stages:      []domain.WorkflowStage{a, b},
		Transitions: []domain.WorkflowTransition{transition},
	}

	app := makeApp(wfID, a.ID)
	actor := uuid.New()
	f.apps.On("RecordAction", mock.Anything, mock.MatchedBy(func(ra *domain.ReviewerAction) bool {
		return ra.ApplicationID == app.ID && ra.ActionID == "interview_completed" && ra.Actor == actor
	})).Return(nil)
	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.graphs.On("Graph", mock.Anything, wfID).Return(graph, nil)
	f.docs.On("FindByApplication", mock.Anything, app.ID).Return([]domain.Document{}, nil)
	f.apps.On("HasAction", mock.Anything, app.ID, "interview_completed").Return(true, nil)
	f.apps.On("UpdateStage", mock.Anything, app.ID, a.ID, b.ID, true, mock.Anything).Return(nil)
	f.apps.On("AppendStageHistory", mock.Anything, mock.Anything).Return(nil)

	err := f.service.RecordAction(context.Background(), app.ID, "interview_completed", actor, "went well")

	assert.NoError(t, err)
	f.apps.AssertExpectations(t)
}
