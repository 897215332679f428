package signoff

import (
	"context"
	"time"
)

// Store is the durable storage for workflows, steps, folder rules and the
// event log. Mutating calls are expected to run inside a transaction opened
// by a TxManager; GetWorkflowForUpdate must pin the workflow row for the
// remainder of that transaction so read-decide-write sequences on one
// workflow are serialized.
type Store interface {
	CreateWorkflow(ctx context.Context, workflow *Workflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error)
	GetWorkflowForUpdate(ctx context.Context, workflowID string) (*Workflow, error)
	GetStep(ctx context.Context, stepID string) (*Step, error)
	UpdateStepDecision(
		ctx context.Context,
		stepID string,
		decision StepDecision,
		comment *string,
		decidedAt *time.Time,
	) error
	CancelPendingSteps(ctx context.Context, workflowID string) (int, error)
	UpdateWorkflowStatus(
		ctx context.Context,
		workflowID string,
		status WorkflowStatus,
		completedAt *time.Time,
	) error
	ListWorkflowsByFile(ctx context.Context, fileID string) ([]*Workflow, error)
	ListPendingStepsByUser(ctx context.Context, userID string) ([]*Step, error)
	ListStalePendingSteps(ctx context.Context, olderThan time.Time) ([]*Step, error)
	CleanupOldWorkflows(ctx context.Context, daysToKeep int) (int64, error)

	LogEvent(
		ctx context.Context,
		workflowID string,
		stepID *string,
		eventType string,
		payload any,
	) error
	GetWorkflowEvents(ctx context.Context, workflowID string) ([]WorkflowEvent, error)

	CreateFolderRule(ctx context.Context, rule *FolderRule) error
	GetFolderRule(ctx context.Context, ruleID string) (*FolderRule, error)
	ListFolderRules(ctx context.Context, folderID string) ([]*FolderRule, error)
	UpdateFolderRule(ctx context.Context, rule *FolderRule) error
	DeleteFolderRule(ctx context.Context, ruleID string) error
	GetActiveRuleByFolder(ctx context.Context, folderID string) (*FolderRule, error)

	GetSummaryStats(ctx context.Context) (*SummaryStats, error)
}

// TxManager runs a function inside a storage transaction. Implementations
// must guarantee that two transactions touching the same workflow do not
// interleave between its reads and writes.
type TxManager interface {
	ReadCommitted(ctx context.Context, fn func(ctx context.Context) error) error
}
