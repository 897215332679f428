package signoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReturnsClones(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()

	workflow, err := engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      ModeParallel,
		Approvers: approvers("alice"),
	}, "creator")
	require.NoError(t, err)

	loaded, err := store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)

	// Mutating the returned aggregate must not leak into the store.
	loaded.Status = StatusApproved
	loaded.Steps[0].Decision = DecisionApproved

	fresh, err := store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, fresh.Status)
	assert.Equal(t, DecisionPending, fresh.Steps[0].Decision)
}

func TestMemoryStoreCleanupOldWorkflows(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	old := now.AddDate(0, 0, -40)

	makeWorkflow := func(id string, status WorkflowStatus, completedAt *time.Time) {
		workflow := &Workflow{
			ID:        id,
			FileID:    "file-1",
			Mode:      ModeParallel,
			Status:    status,
			CreatedBy: "creator",
			CreatedAt: old,
			UpdatedAt: old,
			Steps: []*Step{{
				ID:             id + "-step",
				WorkflowID:     id,
				ApproverUserID: "alice",
				Decision:       DecisionPending,
				CreatedAt:      old,
			}},
		}
		require.NoError(t, store.CreateWorkflow(ctx, workflow))
		if completedAt != nil {
			require.NoError(t, store.UpdateWorkflowStatus(ctx, id, status, completedAt))
		}
	}

	recent := now.Add(-time.Hour)
	makeWorkflow("stale-approved", StatusApproved, &old)
	makeWorkflow("fresh-approved", StatusApproved, &recent)
	makeWorkflow("old-pending", StatusPending, nil)

	deleted, err := store.CleanupOldWorkflows(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetWorkflow(ctx, "stale-approved")
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = store.GetWorkflow(ctx, "fresh-approved")
	require.NoError(t, err)

	// Pending workflows survive regardless of age.
	_, err = store.GetWorkflow(ctx, "old-pending")
	require.NoError(t, err)
}

func TestMemoryStoreListStalePendingSteps(t *testing.T) {
	ctx := context.Background()
	clock := testClock(time.Now().Add(-time.Hour))
	engine, store := newTestEngine(WithClock(clock))

	workflow, err := engine.Create(ctx, CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      ModeParallel,
		Approvers: approvers("alice", "bob"),
	}, "creator")
	require.NoError(t, err)

	steps, err := store.ListStalePendingSteps(ctx, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Len(t, steps, 2)

	// Deciding a step removes it from the stale set.
	_, _, err = engine.Decide(ctx, workflow.Steps[0].ID, "alice", DecisionApprove, nil)
	require.NoError(t, err)

	steps, err = store.ListStalePendingSteps(ctx, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "bob", steps[0].ApproverUserID)
}
