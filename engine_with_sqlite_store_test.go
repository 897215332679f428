package signoff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteEngine(t *testing.T, opts ...EngineOption) (*Engine, *SQLiteStore) {
	t.Helper()

	store, err := NewSQLiteInMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine := NewEngine(NewMemoryTxManager(), store, opts...)

	return engine, store
}

func TestSQLiteParallelApproval(t *testing.T) {
	ctx := context.Background()
	engine, store := newSQLiteEngine(t)

	workflow, err := engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      ModeParallel,
		Approvers: approvers("alice", "bob"),
	}, "creator")
	require.NoError(t, err)

	comment := "ship it"
	_, updated, err := engine.Decide(ctx, workflow.Steps[0].ID, "alice", DecisionApprove, &comment)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)

	_, updated, err = engine.Decide(ctx, workflow.Steps[1].ID, "bob", DecisionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, updated.Status)

	stored, err := store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	require.Len(t, stored.Steps, 2)
	require.NotNil(t, stored.Steps[0].Comment)
	assert.Equal(t, "ship it", *stored.Steps[0].Comment)

	events, err := store.GetWorkflowEvents(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		EventWorkflowCreated,
		EventStepDecided,
		EventStepDecided,
		EventWorkflowResolved,
	}, eventTypes(events))
}

func TestSQLiteSerialOrderAndRejection(t *testing.T) {
	ctx := context.Background()
	engine, store := newSQLiteEngine(t)

	workflow, err := engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      ModeSerial,
		Approvers: approvers("alice", "bob", "carol"),
	}, "creator")
	require.NoError(t, err)

	var conflictErr *ConflictError
	_, _, err = engine.Decide(ctx, workflow.Steps[2].ID, "carol", DecisionApprove, nil)
	require.ErrorAs(t, err, &conflictErr)

	_, _, err = engine.Decide(ctx, workflow.Steps[0].ID, "alice", DecisionApprove, nil)
	require.NoError(t, err)

	_, updated, err := engine.Decide(ctx, workflow.Steps[1].ID, "bob", DecisionReject, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, updated.Status)

	stored, err := store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionApproved, stored.Steps[0].Decision)
	assert.Equal(t, DecisionRejected, stored.Steps[1].Decision)
	assert.Equal(t, DecisionCancelled, stored.Steps[2].Decision)
	assert.Nil(t, stored.Steps[2].DecidedAt)
}

func TestSQLiteCancelAndPendingQueries(t *testing.T) {
	ctx := context.Background()
	engine, store := newSQLiteEngine(t)
	query := NewQueryService(store)

	workflow, err := engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      ModeParallel,
		Approvers: approvers("alice", "bob"),
	}, "creator")
	require.NoError(t, err)

	steps, err := query.ListMyPendingSteps(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, steps, 1)

	_, err = engine.Cancel(ctx, workflow.ID, "creator")
	require.NoError(t, err)

	steps, err = query.ListMyPendingSteps(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, steps)

	workflows, err := query.ListWorkflows(ctx, "file-1")
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, StatusCancelled, workflows[0].Status)
}

func TestSQLiteFolderRules(t *testing.T) {
	ctx := context.Background()
	engine, _ := newSQLiteEngine(t, WithFolderTree(staticFolders{"child": "parent"}))

	rule, err := engine.CreateFolderRule(ctx, CreateFolderRuleParams{
		FolderID:          "parent",
		Mode:              ModeSerial,
		ApplyToSubfolders: true,
		Active:            true,
		Approvers:         ruleApprovers("alice", "bob"),
	}, "admin")
	require.NoError(t, err)

	resolved, err := engine.ApplicableRule(ctx, "child")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, rule.ID, resolved.ID)
	require.Len(t, resolved.Approvers, 2)

	workflow, err := engine.AutoCreateForFile(ctx, "file-9", "child", "uploader")
	require.NoError(t, err)
	require.NotNil(t, workflow)
	assert.Equal(t, ModeSerial, workflow.Mode)
	require.Len(t, workflow.Steps, 2)
}

func TestSQLiteSummaryStatsAndCleanup(t *testing.T) {
	ctx := context.Background()
	engine, store := newSQLiteEngine(t)

	approved, err := engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      ModeParallel,
		Approvers: approvers("alice"),
	}, "creator")
	require.NoError(t, err)
	_, _, err = engine.Decide(ctx, approved.Steps[0].ID, "alice", DecisionApprove, nil)
	require.NoError(t, err)

	_, err = engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-2",
		Mode:      ModeParallel,
		Approvers: approvers("bob"),
	}, "creator")
	require.NoError(t, err)

	stats, err := store.GetSummaryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), stats.TotalWorkflows)
	assert.Equal(t, uint(1), stats.ApprovedWorkflows)
	assert.Equal(t, uint(1), stats.PendingWorkflows)

	// daysToKeep zero makes everything already resolved eligible.
	deleted, err := store.CleanupOldWorkflows(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	stats, err = store.GetSummaryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), stats.TotalWorkflows)
	assert.Equal(t, uint(1), stats.PendingWorkflows)
}
