package workflow

import (
	"fmt"

	"admissions/internal/domain"

	"github.com/google/uuid"
)

// Finding codes reported by workflow validation.
const (
	FindingEmptyWorkflow         = "empty_workflow"
	FindingNoInitialStage        = "no_initial_stage"
	FindingMultipleInitialStages = "multiple_initial_stages"
	FindingInitialHasIncoming    = "initial_stage_has_incoming"
	FindingNoTerminalStage       = "no_terminal_stage"
	FindingOrphanStage           = "orphan_stage"
	FindingNoPathToTerminal      = "no_path_to_terminal"
	FindingSelfLoopNotRetry      = "self_loop_not_retry"
)

// Finding is a single structural problem discovered during validation.
type Finding struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	StageID uuid.UUID `json:"stage_id,omitempty"`
}

// validateGraph runs the full structural validation suite over a workflow
// graph. Activation requires an empty result.
func validateGraph(g *domain.WorkflowGraph) []Finding {
	var findings []Finding

	if len(g.Stages) == 0 {
		return []Finding{{
			Code:    FindingEmptyWorkflow,
			Message: "workflow has no stages",
		}}
	}

	var initials []domain.WorkflowStage
	for _, s := range g.Stages {
		if s.IsInitial {
			initials = append(initials, s)
		}
	}
	switch {
	case len(initials) == 0:
		findings = append(findings, Finding{
			Code:    FindingNoInitialStage,
			Message: "no stage is designated as the initial stage",
		})
	case len(initials) > 1:
		for _, s := range initials {
			findings = append(findings, Finding{
				Code:    FindingMultipleInitialStages,
				Message: fmt.Sprintf("stage %q is one of %d designated initial stages", s.Name, len(initials)),
				StageID: s.ID,
			})
		}
	default:
		if in := g.Incoming(initials[0].ID); len(in) > 0 {
			findings = append(findings, Finding{
				Code:    FindingInitialHasIncoming,
				Message: fmt.Sprintf("initial stage %q has incoming transitions", initials[0].Name),
				StageID: initials[0].ID,
			})
		}
	}

	if len(g.TerminalStages()) == 0 {
		findings = append(findings, Finding{
			Code:    FindingNoTerminalStage,
			Message: "workflow has no terminal stage",
		})
	}

	// Orphan check only makes sense with a single well-defined entry point.
	if len(initials) == 1 {
		reachable := g.ReachableFrom(initials[0].ID)
		for _, s := range g.Stages {
			if !reachable[s.ID] {
				findings = append(findings, Finding{
					Code:    FindingOrphanStage,
					Message: fmt.Sprintf("stage %q is unreachable from the initial stage", s.Name),
					StageID: s.ID,
				})
			}
		}
	}

	// Every stage must have some path to a terminal stage, otherwise an
	// application can get stuck cycling forever.
	canTerminate := g.CanReachTerminal()
	for _, s := range g.Stages {
		if !canTerminate[s.ID] {
			findings = append(findings, Finding{
				Code:    FindingNoPathToTerminal,
				Message: fmt.Sprintf("no path from stage %q to any terminal stage", s.Name),
				StageID: s.ID,
			})
		}
	}

	// Self-loops are allowed only when explicitly marked as retry loops.
	for _, t := range g.Transitions {
		if t.SourceStageID == t.TargetStageID && !t.IsRetryLoop {
			stage := g.Stage(t.SourceStageID)
			name := t.SourceStageID.String()
			if stage != nil {
				name = stage.Name
			}
			findings = append(findings, Finding{
				Code:    FindingSelfLoopNotRetry,
				Message: fmt.Sprintf("self-loop on stage %q is not marked as a retry loop", name),
				StageID: t.SourceStageID,
			})
		}
	}

	return findings
}
