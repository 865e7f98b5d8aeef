package domain

import (
	"sort"

	"github.com/google/uuid"
)

// WorkflowGraph is a fully materialized workflow definition: the workflow row
// plus all of its stages and transitions. Graphs for active workflows are
// effectively immutable and safe for concurrent reads.
type WorkflowGraph struct {
	Workflow    Workflow             `json:"workflow"`
	Stages      []WorkflowStage      `json:"stages"`
	Transitions []WorkflowTransition `json:"transitions"`
}

// Stage returns the stage with the given id, or nil.
func (g *WorkflowGraph) Stage(id uuid.UUID) *WorkflowStage {
	for i := range g.Stages {
		if g.Stages[i].ID == id {
			return &g.Stages[i]
		}
	}
	return nil
}

// Transition returns the transition with the given id, or nil.
func (g *WorkflowGraph) Transition(id uuid.UUID) *WorkflowTransition {
	for i := range g.Transitions {
		if g.Transitions[i].ID == id {
			return &g.Transitions[i]
		}
	}
	return nil
}

// InitialStage returns the stage flagged as the workflow's entry point, or nil.
func (g *WorkflowGraph) InitialStage() *WorkflowStage {
	for i := range g.Stages {
		if g.Stages[i].IsInitial {
			return &g.Stages[i]
		}
	}
	return nil
}

// Outgoing returns the transitions leaving the given stage, ordered by
// creation time (earliest first). Automatic-transition evaluation relies on
// this ordering for determinism.
func (g *WorkflowGraph) Outgoing(stageID uuid.UUID) []WorkflowTransition {
	var out []WorkflowTransition
	for _, t := range g.Transitions {
		if t.SourceStageID == stageID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Incoming returns the transitions entering the given stage, excluding
// self-loops.
func (g *WorkflowGraph) Incoming(stageID uuid.UUID) []WorkflowTransition {
	var in []WorkflowTransition
	for _, t := range g.Transitions {
		if t.TargetStageID == stageID && t.SourceStageID != stageID {
			in = append(in, t)
		}
	}
	return in
}

// IsTerminal reports whether the stage has no outgoing transitions.
func (g *WorkflowGraph) IsTerminal(stageID uuid.UUID) bool {
	for _, t := range g.Transitions {
		if t.SourceStageID == stageID {
			return false
		}
	}
	return true
}

// TerminalStages returns all stages with no outgoing transitions.
func (g *WorkflowGraph) TerminalStages() []WorkflowStage {
	var out []WorkflowStage
	for _, s := range g.Stages {
		if g.IsTerminal(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// ReachableFrom returns the set of stage ids reachable from start, following
// transitions forward. Start itself is included.
func (g *WorkflowGraph) ReachableFrom(start uuid.UUID) map[uuid.UUID]bool {
	seen := map[uuid.UUID]bool{start: true}
	queue := []uuid.UUID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range g.Transitions {
			if t.SourceStageID == cur && !seen[t.TargetStageID] {
				seen[t.TargetStageID] = true
				queue = append(queue, t.TargetStageID)
			}
		}
	}
	return seen
}

// CanReachTerminal returns the set of stage ids from which some terminal
// stage is reachable. Computed by walking transitions backwards from every
// terminal stage.
func (g *WorkflowGraph) CanReachTerminal() map[uuid.UUID]bool {
	seen := map[uuid.UUID]bool{}
	var queue []uuid.UUID
	for _, s := range g.TerminalStages() {
		seen[s.ID] = true
		queue = append(queue, s.ID)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range g.Transitions {
			if t.TargetStageID == cur && !seen[t.SourceStageID] {
				seen[t.SourceStageID] = true
				queue = append(queue, t.SourceStageID)
			}
		}
	}
	return seen
}
