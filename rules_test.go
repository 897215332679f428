package signoff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleApprovers(userIDs ...string) []RuleApprover {
	specs := make([]RuleApprover, 0, len(userIDs))
	for i, userID := range userIDs {
		specs = append(specs, RuleApprover{UserID: userID, OrderIndex: i})
	}

	return specs
}

func TestCreateFolderRuleValidation(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(WithUserDirectory(staticDirectory{"alice": true}))

	var validationErr *ValidationError

	_, err := engine.CreateFolderRule(ctx, CreateFolderRuleParams{
		FolderID:  "folder-1",
		Mode:      "majority",
		Approvers: ruleApprovers("alice"),
	}, "admin")
	require.ErrorAs(t, err, &validationErr)

	_, err = engine.CreateFolderRule(ctx, CreateFolderRuleParams{
		FolderID: "folder-1",
		Mode:     ModeParallel,
	}, "admin")
	require.ErrorAs(t, err, &validationErr)

	_, err = engine.CreateFolderRule(ctx, CreateFolderRuleParams{
		FolderID:  "folder-1",
		Mode:      ModeParallel,
		Approvers: ruleApprovers("mallory"),
	}, "admin")
	require.ErrorAs(t, err, &validationErr)
}

func TestFolderRuleCRUD(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	rule, err := engine.CreateFolderRule(ctx, CreateFolderRuleParams{
		FolderID:  "folder-1",
		Mode:      ModeParallel,
		Active:    true,
		Approvers: ruleApprovers("alice", "bob"),
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", rule.CreatedBy)

	fetched, err := engine.GetFolderRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.FolderID, fetched.FolderID)
	assert.Len(t, fetched.Approvers, 2)

	serial := ModeSerial
	active := false
	updated, err := engine.UpdateFolderRule(ctx, rule.ID, UpdateFolderRuleParams{
		Mode:      &serial,
		Active:    &active,
		Approvers: ruleApprovers("carol"),
	})
	require.NoError(t, err)
	assert.Equal(t, ModeSerial, updated.Mode)
	assert.False(t, updated.Active)
	require.Len(t, updated.Approvers, 1)
	assert.Equal(t, "carol", updated.Approvers[0].UserID)

	rules, err := engine.ListFolderRules(ctx, "folder-1")
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	rules, err = engine.ListFolderRules(ctx, "folder-other")
	require.NoError(t, err)
	assert.Empty(t, rules)

	require.NoError(t, engine.DeleteFolderRule(ctx, rule.ID))

	var notFoundErr *NotFoundError
	_, err = engine.GetFolderRule(ctx, rule.ID)
	require.ErrorAs(t, err, &notFoundErr)
	err = engine.DeleteFolderRule(ctx, rule.ID)
	require.ErrorAs(t, err, &notFoundErr)
}

func TestApplicableRuleParentChain(t *testing.T) {
	ctx := context.Background()
	folders := staticFolders{
		"child":  "parent",
		"parent": "root",
	}
	engine, _ := newTestEngine(WithFolderTree(folders))

	// No rule anywhere.
	rule, err := engine.ApplicableRule(ctx, "child")
	require.NoError(t, err)
	assert.Nil(t, rule)

	// Rule on the parent without subfolder propagation is not inherited.
	scoped, err := engine.CreateFolderRule(ctx, CreateFolderRuleParams{
		FolderID:  "parent",
		Mode:      ModeParallel,
		Active:    true,
		Approvers: ruleApprovers("alice"),
	}, "admin")
	require.NoError(t, err)

	rule, err = engine.ApplicableRule(ctx, "child")
	require.NoError(t, err)
	assert.Nil(t, rule)

	propagate := true
	_, err = engine.UpdateFolderRule(ctx, scoped.ID, UpdateFolderRuleParams{
		ApplyToSubfolders: &propagate,
	})
	require.NoError(t, err)

	rule, err = engine.ApplicableRule(ctx, "child")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "parent", rule.FolderID)

	// The folder's own active rule wins over the ancestor's.
	own, err := engine.CreateFolderRule(ctx, CreateFolderRuleParams{
		FolderID:  "child",
		Mode:      ModeSerial,
		Active:    true,
		Approvers: ruleApprovers("bob"),
	}, "admin")
	require.NoError(t, err)

	rule, err = engine.ApplicableRule(ctx, "child")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, own.ID, rule.ID)
}

func TestApplicableRuleIgnoresInactive(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(WithFolderTree(staticFolders{}))

	_, err := engine.CreateFolderRule(ctx, CreateFolderRuleParams{
		FolderID:  "folder-1",
		Mode:      ModeParallel,
		Active:    false,
		Approvers: ruleApprovers("alice"),
	}, "admin")
	require.NoError(t, err)

	rule, err := engine.ApplicableRule(ctx, "folder-1")
	require.NoError(t, err)
	assert.Nil(t, rule)
}

func TestAutoCreateForFile(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(WithFolderTree(staticFolders{}))

	// No rule: nothing happens.
	workflow, err := engine.AutoCreateForFile(ctx, "file-1", "folder-1", "uploader")
	require.NoError(t, err)
	assert.Nil(t, workflow)

	_, err = engine.CreateFolderRule(ctx, CreateFolderRuleParams{
		FolderID:  "folder-1",
		Mode:      ModeSerial,
		Active:    true,
		Approvers: ruleApprovers("alice", "bob"),
	}, "admin")
	require.NoError(t, err)

	workflow, err = engine.AutoCreateForFile(ctx, "file-1", "folder-1", "uploader")
	require.NoError(t, err)
	require.NotNil(t, workflow)
	assert.Equal(t, ModeSerial, workflow.Mode)
	assert.Equal(t, "uploader", workflow.CreatedBy)
	require.NotNil(t, workflow.ResolutionText)
	assert.Equal(t, "Automatic approval required", *workflow.ResolutionText)
	require.Len(t, workflow.Steps, 2)
	assert.Equal(t, "alice", workflow.Steps[0].ApproverUserID)

	stored, err := store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}
