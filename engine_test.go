package signoff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsUnknownMode(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	_, err := engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      "majority",
		Approvers: approvers("alice"),
	}, "creator")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateRejectsEmptyApproverList(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	_, err := engine.Create(ctx, CreateWorkflowParams{
		FileID: "file-1",
		Mode:   ModeParallel,
	}, "creator")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "empty")
}

func TestCreateRejectsBadOrderIndexes(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	var validationErr *ValidationError

	_, err := engine.Create(ctx, CreateWorkflowParams{
		FileID: "file-1",
		Mode:   ModeSerial,
		Approvers: []ApproverSpec{
			{UserID: "alice", OrderIndex: 0},
			{UserID: "bob", OrderIndex: 0},
		},
	}, "creator")
	require.ErrorAs(t, err, &validationErr)

	_, err = engine.Create(ctx, CreateWorkflowParams{
		FileID: "file-1",
		Mode:   ModeSerial,
		Approvers: []ApproverSpec{
			{UserID: "alice", OrderIndex: 0},
			{UserID: "bob", OrderIndex: 5},
		},
	}, "creator")
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateAssignsOrderIndexesFromPosition(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	workflow, err := engine.Create(ctx, CreateWorkflowParams{
		FileID: "file-1",
		Mode:   ModeSerial,
		Approvers: []ApproverSpec{
			{UserID: "alice"},
			{UserID: "bob"},
			{UserID: "carol"},
		},
	}, "creator")
	require.NoError(t, err)

	require.Len(t, workflow.Steps, 3)
	assert.Equal(t, "alice", workflow.Steps[0].ApproverUserID)
	assert.Equal(t, 0, workflow.Steps[0].OrderIndex)
	assert.Equal(t, "bob", workflow.Steps[1].ApproverUserID)
	assert.Equal(t, 1, workflow.Steps[1].OrderIndex)
	assert.Equal(t, "carol", workflow.Steps[2].ApproverUserID)
	assert.Equal(t, 2, workflow.Steps[2].OrderIndex)
}

func TestCreateChecksFileAndApproverReferences(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(
		WithUserDirectory(staticDirectory{"alice": true}),
		WithFileRegistry(staticFiles{"file-1": true}),
	)

	var validationErr *ValidationError

	_, err := engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-unknown",
		Mode:      ModeParallel,
		Approvers: approvers("alice"),
	}, "creator")
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "unknown file")

	_, err = engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      ModeParallel,
		Approvers: approvers("mallory"),
	}, "creator")
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "unknown approver")

	_, err = engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      ModeParallel,
		Approvers: approvers("alice"),
	}, "creator")
	require.NoError(t, err)
}

func TestCreatePersistsPendingAggregate(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()

	created, err := engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      ModeParallel,
		Approvers: approvers("alice", "bob"),
	}, "creator")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, "creator", created.CreatedBy)
	assert.Nil(t, created.CompletedAt)

	stored, err := store.GetWorkflow(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Steps, 2)
	for _, step := range stored.Steps {
		assert.Equal(t, DecisionPending, step.Decision)
		assert.Nil(t, step.DecidedAt)
	}

	events, err := store.GetWorkflowEvents(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{EventWorkflowCreated}, eventTypes(events))
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	_, _, err := engine.Decide(ctx, "step", "alice", "abstain", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestDecideUnknownStep(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	_, _, err := engine.Decide(ctx, "missing", "alice", DecisionApprove, nil)

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "step", notFoundErr.Entity)
}

func TestCancelUnknownWorkflow(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	_, err := engine.Cancel(ctx, "missing", "creator")

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "workflow", notFoundErr.Entity)
}
