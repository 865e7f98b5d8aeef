package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestConditionValidate(t *testing.T) {
	assert.NoError(t, Condition{}.Validate())
	assert.NoError(t, AllDocumentsVerified().Validate())
	assert.NoError(t, AllDocumentsVerified(DocumentTypeTranscript).Validate())
	assert.NoError(t, ActionRecorded("interview_completed").Validate())
	assert.NoError(t, And(AllDocumentsVerified(), ActionRecorded("fee_paid")).Validate())

	assert.Error(t, ActionRecorded("").Validate())
	assert.Error(t, And().Validate())
	assert.Error(t, Or().Validate())
	assert.Error(t, Condition{Kind: "sometimes"}.Validate())
	assert.Error(t, And(ActionRecorded("")).Validate())
}

func TestConditionDescribe(t *testing.T) {
	c := And(
		AllDocumentsVerified(DocumentTypeTranscript, DocumentTypeTestScore),
		ActionRecorded("interview_completed"),
	)

	desc := c.Describe()
	assert.Contains(t, desc, "transcript")
	assert.Contains(t, desc, "test score")
	assert.Contains(t, desc, "interview completed")
	assert.Contains(t, desc, " and ")
}

func TestConditionJSONRoundTrip(t *testing.T) {
	original := Or(
		AllDocumentsVerified(),
		And(ActionRecorded("waiver_granted"), AllDocumentsVerified(DocumentTypePassport)),
	)

	data, err := json.Marshal(original)
	assert.NoError(t, err)

	var decoded Condition
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestGraphOutgoingOrderedByCreation(t *testing.T) {
	// Deliberately unsorted input; Outgoing must order by CreatedAt.
	g := &WorkflowGraph{}
	stageID := uuid.New()
	now := time.Now()
	later := WorkflowTransition{ID: uuid.New(), SourceStageID: stageID, CreatedAt: now}
	earlier := WorkflowTransition{ID: uuid.New(), SourceStageID: stageID, CreatedAt: now.Add(-time.Minute)}
	g.Transitions = []WorkflowTransition{later, earlier}

	out := g.Outgoing(stageID)
	assert.Equal(t, earlier.ID, out[0].ID)
	assert.Equal(t, later.ID, out[1].ID)
}
