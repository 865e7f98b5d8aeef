package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ConditionKind tags the variant of a transition condition.
type ConditionKind string

const (
	// ConditionNone is the empty condition; it always holds.
	ConditionNone ConditionKind = ""
	// ConditionAllDocumentsVerified holds when every listed document type has
	// a verified document on the application. An empty list means the source
	// stage's required_documents.
	ConditionAllDocumentsVerified ConditionKind = "all_documents_verified"
	// ConditionActionRecorded holds when a reviewer action with the given id
	// has been recorded against the application.
	ConditionActionRecorded ConditionKind = "action_recorded"
	// ConditionAnd holds when all sub-conditions hold.
	ConditionAnd ConditionKind = "and"
	// ConditionOr holds when at least one sub-condition holds.
	ConditionOr ConditionKind = "or"
)

// Condition is a typed predicate over application and document-verification
// state, stored as JSONB on a transition. The tagged-variant form replaces
// opaque JSON-blob condition configuration.
type Condition struct {
	Kind          ConditionKind    `json:"kind"`
	DocumentTypes DocumentTypeList `json:"document_types,omitempty"`
	ActionID      string           `json:"action_id,omitempty"`
	Conditions    []Condition      `json:"conditions,omitempty"`
}

// AllDocumentsVerified builds an all_documents_verified condition.
func AllDocumentsVerified(types ...DocumentType) Condition {
	return Condition{Kind: ConditionAllDocumentsVerified, DocumentTypes: types}
}

// ActionRecorded builds an action_recorded condition.
func ActionRecorded(actionID string) Condition {
	return Condition{Kind: ConditionActionRecorded, ActionID: actionID}
}

// And combines conditions conjunctively.
func And(conds ...Condition) Condition {
	return Condition{Kind: ConditionAnd, Conditions: conds}
}

// Or combines conditions disjunctively.
func Or(conds ...Condition) Condition {
	return Condition{Kind: ConditionOr, Conditions: conds}
}

// IsZero reports whether the condition is the empty (always-true) condition.
func (c Condition) IsZero() bool {
	return c.Kind == ConditionNone
}

// Validate checks structural well-formedness of the condition tree.
func (c Condition) Validate() error {
	switch c.Kind {
	case ConditionNone:
		return nil
	case ConditionAllDocumentsVerified:
		return nil
	case ConditionActionRecorded:
		if strings.TrimSpace(c.ActionID) == "" {
			return errors.New("action_recorded condition requires action_id")
		}
		return nil
	case ConditionAnd, ConditionOr:
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%s condition requires sub-conditions", c.Kind)
		}
		for _, sub := range c.Conditions {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind: %s", c.Kind)
	}
}

// Describe returns a human-readable rendering of the condition, used to build
// applicant/reviewer-facing reasons for unmet conditions.
func (c Condition) Describe() string {
	switch c.Kind {
	case ConditionNone:
		return "no conditions"
	case ConditionAllDocumentsVerified:
		if len(c.DocumentTypes) == 0 {
			return "all required documents of the current stage verified"
		}
		names := make([]string, len(c.DocumentTypes))
		for i, dt := range c.DocumentTypes {
			names[i] = strings.ReplaceAll(string(dt), "_", " ")
		}
		return "verified " + strings.Join(names, ", ")
	case ConditionActionRecorded:
		return "action " + strings.ReplaceAll(c.ActionID, "_", " ") + " recorded"
	case ConditionAnd:
		parts := make([]string, len(c.Conditions))
		for i, sub := range c.Conditions {
			parts[i] = sub.Describe()
		}
		return strings.Join(parts, " and ")
	case ConditionOr:
		parts := make([]string, len(c.Conditions))
		for i, sub := range c.Conditions {
			parts[i] = sub.Describe()
		}
		return strings.Join(parts, " or ")
	}
	return string(c.Kind)
}

func (c Condition) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *Condition) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, c)
}
