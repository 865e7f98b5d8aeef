// Package status projects applicant-facing statuses from workflow stage
// state and emits status-changed events.
package status

import (
	"context"
	"time"

	"admissions/internal/domain"
	"admissions/pkg/errors"
	"admissions/pkg/logger"

	"github.com/google/uuid"
)

// ApplicationReader resolves applications and their stage history.
type ApplicationReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	FindStageHistory(ctx context.Context, applicationID uuid.UUID) ([]domain.StageHistoryEntry, error)
}

// GraphProvider resolves workflow graphs for status label lookups.
type GraphProvider interface {
	Graph(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowGraph, error)
}

// Notifier delivers status change notifications. Delivery is best effort;
// failures never affect the transition that triggered them.
type Notifier interface {
	NotifyStatusChanged(ctx context.Context, event domain.StatusChangedEvent)
}

// AuditRecorder persists audit entries for emitted events.
type AuditRecorder interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// Projector derives applicant-facing statuses. It is registered as the
// engine's stage observer.
type Projector struct {
	apps     ApplicationReader
	graphs   GraphProvider
	notifier Notifier
	audit    AuditRecorder
	logger   logger.Logger
}

func NewProjector(apps ApplicationReader, graphs GraphProvider, notifier Notifier, audit AuditRecorder, log logger.Logger) *Projector {
	return &Projector{
		apps:     apps,
		graphs:   graphs,
		notifier: notifier,
		audit:    audit,
		logger:   log,
	}
}

// ProjectStatus returns the applicant-facing status of an application. An
// application not yet bound to a workflow is a Draft.
func (p *Projector) ProjectStatus(ctx context.Context, applicationID uuid.UUID) (domain.StatusLabel, error) {
	app, err := p.apps.FindByID(ctx, applicationID)
	if err != nil {
		return "", err
	}
	return p.statusOf(ctx, app)
}

func (p *Projector) statusOf(ctx context.Context, app *domain.Application) (domain.StatusLabel, error) {
	if app.WorkflowID == nil || app.CurrentStageID == nil {
		return domain.StatusLabelDraft, nil
	}
	graph, err := p.graphs.Graph(ctx, *app.WorkflowID)
	if err != nil {
		return "", err
	}
	stage := graph.Stage(*app.CurrentStageID)
	if stage == nil {
		return "", errors.ErrStageNotFound
	}
	if stage.StatusLabel != "" {
		return stage.StatusLabel, nil
	}
	// Stages without an explicit label project a generic in-review status.
	return domain.StatusLabelUnderReview, nil
}

// StatusHistoryEntry is one row of the applicant-facing status timeline.
type StatusHistoryEntry struct {
	Status    domain.StatusLabel `json:"status"`
	StageName string             `json:"stage_name"`
	EnteredAt time.Time          `json:"entered_at"`
}

// StatusHistory projects the stage-entry log into an applicant-facing
// status timeline. Consecutive stages sharing a label collapse into one
// entry, since the applicant-visible status did not change.
func (p *Projector) StatusHistory(ctx context.Context, applicationID uuid.UUID) ([]StatusHistoryEntry, error) {
	app, err := p.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.WorkflowID == nil {
		return []StatusHistoryEntry{{Status: domain.StatusLabelDraft, EnteredAt: app.CreatedAt}}, nil
	}
	graph, err := p.graphs.Graph(ctx, *app.WorkflowID)
	if err != nil {
		return nil, err
	}
	history, err := p.apps.FindStageHistory(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	out := []StatusHistoryEntry{{Status: domain.StatusLabelDraft, EnteredAt: app.CreatedAt}}
	for _, entry := range history {
		label := domain.StatusLabelUnderReview
		if stage := graph.Stage(entry.StageID); stage != nil && stage.StatusLabel != "" {
			label = stage.StatusLabel
		}
		if out[len(out)-1].Status == label {
			continue
		}
		out = append(out, StatusHistoryEntry{
			Status:    label,
			StageName: entry.StageName,
			EnteredAt: entry.EnteredAt,
		})
	}
	return out, nil
}

// OnStageChanged implements the engine's stage observer. It emits a
// status-changed event when the stage change altered the projected status.
// Notification dispatch is fire and forget.
func (p *Projector) OnStageChanged(ctx context.Context, app *domain.Application, graph *domain.WorkflowGraph, from, to *domain.WorkflowStage, automatic bool) {
	oldLabel := domain.StatusLabelDraft
	if from != nil {
		oldLabel = stageLabel(from)
	}
	newLabel := stageLabel(to)
	if oldLabel == newLabel {
		return
	}

	event := domain.StatusChangedEvent{
		ApplicationID: app.ID,
		ApplicantID:   app.ApplicantID,
		OldStatus:     oldLabel,
		NewStatus:     newLabel,
		Timestamp:     time.Now(),
	}

	if p.audit != nil {
		if err := p.audit.Create(ctx, &domain.AuditLog{
			Action:     "status_changed",
			EntityType: "application",
			EntityID:   app.ID.String(),
			NewValues: domain.Metadata{
				"old_status": string(oldLabel),
				"new_status": string(newLabel),
				"automatic":  automatic,
			},
		}); err != nil {
			p.logger.Warn("Failed to write status change audit log", map[string]interface{}{
				"application_id": app.ID,
				"error":          err.Error(),
			})
		}
	}

	p.logger.Info("Application status changed", map[string]interface{}{
		"application_id": app.ID,
		"old_status":     oldLabel,
		"new_status":     newLabel,
	})

	if p.notifier != nil {
		go p.notifier.NotifyStatusChanged(context.WithoutCancel(ctx), event)
	}
}

func stageLabel(stage *domain.WorkflowStage) domain.StatusLabel {
	if stage == nil {
		return domain.StatusLabelDraft
	}
	if stage.StatusLabel != "" {
		return stage.StatusLabel
	}
	return domain.StatusLabelUnderReview
}
