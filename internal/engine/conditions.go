package engine

import (
	"context"
	"fmt"
	"strings"

	"admissions/internal/domain"
	"admissions/pkg/errors"
)

// evaluateConditions evaluates a transition's condition tree against the
// application's current document and action state. It returns the list of
// human-readable reasons for unmet conditions; an empty list means the
// transition is eligible.
func (s *Service) evaluateConditions(ctx context.Context, app *domain.Application, graph *domain.WorkflowGraph, t *domain.WorkflowTransition) ([]string, error) {
	if t.Conditions.IsZero() {
		return nil, nil
	}

	state, err := s.loadConditionState(ctx, app)
	if err != nil {
		return nil, err
	}

	source := graph.Stage(t.SourceStageID)
	return evalCondition(ctx, t.Conditions, source, state, s.apps, app)
}

// conditionState is a snapshot of verified documents, loaded once per
// evaluation so nested conditions see a consistent view.
type conditionState struct {
	verifiedTypes map[domain.DocumentType]bool
	uploadedTypes map[domain.DocumentType]bool
}

func (s *Service) loadConditionState(ctx context.Context, app *domain.Application) (*conditionState, error) {
	docs, err := s.docs.FindByApplication(ctx, app.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load documents for condition evaluation")
	}

	state := &conditionState{
		verifiedTypes: make(map[domain.DocumentType]bool),
		uploadedTypes: make(map[domain.DocumentType]bool),
	}
	for _, d := range docs {
		state.uploadedTypes[d.DocumentType] = true
		if d.IsVerified {
			state.verifiedTypes[d.DocumentType] = true
		}
	}
	return state, nil
}

// evalCondition walks the condition tree. sourceStage supplies the implicit
// required-document list for all_documents_verified with no explicit types.
func evalCondition(ctx context.Context, c domain.Condition, sourceStage *domain.WorkflowStage, state *conditionState, apps ApplicationRepository, app *domain.Application) ([]string, error) {
	switch c.Kind {
	case domain.ConditionNone:
		return nil, nil

	case domain.ConditionAllDocumentsVerified:
		required := c.DocumentTypes
		if len(required) == 0 && sourceStage != nil {
			required = sourceStage.RequiredDocuments
		}
		var unmet []string
		for _, dt := range required {
			if state.verifiedTypes[dt] {
				continue
			}
			label := strings.ReplaceAll(string(dt), "_", " ")
			if state.uploadedTypes[dt] {
				unmet = append(unmet, fmt.Sprintf("%s is uploaded but not yet verified", label))
			} else {
				unmet = append(unmet, fmt.Sprintf("%s has not been uploaded", label))
			}
		}
		return unmet, nil

	case domain.ConditionActionRecorded:
		ok, err := apps.HasAction(ctx, app.ID, c.ActionID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to check recorded action")
		}
		if ok {
			return nil, nil
		}
		return []string{fmt.Sprintf("action %q has not been recorded", strings.ReplaceAll(c.ActionID, "_", " "))}, nil

	case domain.ConditionAnd:
		var unmet []string
		for _, sub := range c.Conditions {
			subUnmet, err := evalCondition(ctx, sub, sourceStage, state, apps, app)
			if err != nil {
				return nil, err
			}
			unmet = append(unmet, subUnmet...)
		}
		return unmet, nil

	case domain.ConditionOr:
		for _, sub := range c.Conditions {
			subUnmet, err := evalCondition(ctx, sub, sourceStage, state, apps, app)
			if err != nil {
				return nil, err
			}
			if len(subUnmet) == 0 {
				return nil, nil
			}
		}
		return []string{"none of the alternatives hold: " + c.Describe()}, nil

	default:
		return nil, fmt.Errorf("unknown condition kind: %s", c.Kind)
	}
}
