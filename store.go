package signoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

var _ Store = (*StoreImpl)(nil)

// StoreImpl is the Postgres store. Inside a TxManagerImpl transaction it
// runs against the transaction carried in the context; otherwise against
// the pool directly.
type StoreImpl struct {
	db Tx
}

func NewStore(pool *pgxpool.Pool) *StoreImpl {
	return &StoreImpl{db: pool}
}

func (store *StoreImpl) CreateWorkflow(ctx context.Context, workflow *Workflow) error {
	executor := store.getExecutor(ctx)

	const workflowQuery = `
INSERT INTO signoff.workflows
	(id, file_id, mode, resolution_text, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	_, err := executor.Exec(ctx, workflowQuery,
		workflow.ID, workflow.FileID, workflow.Mode, workflow.ResolutionText,
		workflow.Status, workflow.CreatedBy, workflow.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}

	const stepQuery = `
INSERT INTO signoff.steps
	(id, workflow_id, approver_user_id, order_index, decision, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	for _, step := range workflow.Steps {
		_, err := executor.Exec(ctx, stepQuery,
			step.ID, step.WorkflowID, step.ApproverUserID,
			step.OrderIndex, step.Decision, step.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", step.OrderIndex, err)
		}
	}

	return nil
}

func (store *StoreImpl) GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error) {
	return store.getWorkflow(ctx, workflowID, false)
}

// GetWorkflowForUpdate pins the workflow row until the surrounding
// transaction commits, serializing concurrent decisions per workflow.
func (store *StoreImpl) GetWorkflowForUpdate(ctx context.Context, workflowID string) (*Workflow, error) {
	return store.getWorkflow(ctx, workflowID, true)
}

func (store *StoreImpl) getWorkflow(ctx context.Context, workflowID string, forUpdate bool) (*Workflow, error) {
	executor := store.getExecutor(ctx)

	query := `
SELECT id, file_id, mode, resolution_text, status, created_by, created_at, updated_at, completed_at
FROM signoff.workflows
WHERE id = $1`
	if forUpdate {
		query += `
FOR UPDATE`
	}

	var workflow Workflow
	err := executor.QueryRow(ctx, query, workflowID).Scan(
		&workflow.ID, &workflow.FileID, &workflow.Mode, &workflow.ResolutionText,
		&workflow.Status, &workflow.CreatedBy, &workflow.CreatedAt,
		&workflow.UpdatedAt, &workflow.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntityNotFound
		}

		return nil, err
	}

	steps, err := store.getSteps(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("get steps: %w", err)
	}
	workflow.Steps = steps

	return &workflow, nil
}

func (store *StoreImpl) getSteps(ctx context.Context, workflowID string) ([]*Step, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT id, workflow_id, approver_user_id, order_index, decision, comment, decided_at, created_at
FROM signoff.steps
WHERE workflow_id = $1
ORDER BY order_index`

	rows, err := executor.Query(ctx, query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		var step Step
		if err := rows.Scan(
			&step.ID, &step.WorkflowID, &step.ApproverUserID, &step.OrderIndex,
			&step.Decision, &step.Comment, &step.DecidedAt, &step.CreatedAt,
		); err != nil {
			return nil, err
		}
		steps = append(steps, &step)
	}

	return steps, rows.Err()
}

func (store *StoreImpl) GetStep(ctx context.Context, stepID string) (*Step, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT id, workflow_id, approver_user_id, order_index, decision, comment, decided_at, created_at
FROM signoff.steps
WHERE id = $1`

	var step Step
	err := executor.QueryRow(ctx, query, stepID).Scan(
		&step.ID, &step.WorkflowID, &step.ApproverUserID, &step.OrderIndex,
		&step.Decision, &step.Comment, &step.DecidedAt, &step.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntityNotFound
		}

		return nil, err
	}

	return &step, nil
}

func (store *StoreImpl) UpdateStepDecision(
	ctx context.Context,
	stepID string,
	decision StepDecision,
	comment *string,
	decidedAt *time.Time,
) error {
	executor := store.getExecutor(ctx)

	const query = `
UPDATE signoff.steps
SET decision = $2, comment = $3, decided_at = $4
WHERE id = $1`

	tag, err := executor.Exec(ctx, query, stepID, decision, comment, decidedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (store *StoreImpl) CancelPendingSteps(ctx context.Context, workflowID string) (int, error) {
	executor := store.getExecutor(ctx)

	const query = `
UPDATE signoff.steps
SET decision = $2
WHERE workflow_id = $1 AND decision = $3`

	tag, err := executor.Exec(ctx, query, workflowID, DecisionCancelled, DecisionPending)
	if err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}

func (store *StoreImpl) UpdateWorkflowStatus(
	ctx context.Context,
	workflowID string,
	status WorkflowStatus,
	completedAt *time.Time,
) error {
	executor := store.getExecutor(ctx)

	const query = `
UPDATE signoff.workflows
SET status = $2, completed_at = COALESCE(completed_at, $3), updated_at = now()
WHERE id = $1`

	tag, err := executor.Exec(ctx, query, workflowID, status, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (store *StoreImpl) ListWorkflowsByFile(ctx context.Context, fileID string) ([]*Workflow, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT id, file_id, mode, resolution_text, status, created_by, created_at, updated_at, completed_at
FROM signoff.workflows
WHERE file_id = $1
ORDER BY created_at DESC`

	rows, err := executor.Query(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workflows := make([]*Workflow, 0)
	for rows.Next() {
		var workflow Workflow
		if err := rows.Scan(
			&workflow.ID, &workflow.FileID, &workflow.Mode, &workflow.ResolutionText,
			&workflow.Status, &workflow.CreatedBy, &workflow.CreatedAt,
			&workflow.UpdatedAt, &workflow.CompletedAt,
		); err != nil {
			return nil, err
		}
		workflows = append(workflows, &workflow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		steps, err := store.getSteps(ctx, workflow.ID)
		if err != nil {
			return nil, fmt.Errorf("get steps: %w", err)
		}
		workflow.Steps = steps
	}

	return workflows, nil
}

func (store *StoreImpl) ListPendingStepsByUser(ctx context.Context, userID string) ([]*Step, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT s.id, s.workflow_id, s.approver_user_id, s.order_index, s.decision, s.comment, s.decided_at, s.created_at
FROM signoff.steps s
JOIN signoff.workflows w ON w.id = s.workflow_id
WHERE s.approver_user_id = $1 AND s.decision = $2 AND w.status = $3
ORDER BY s.created_at, s.order_index`

	rows, err := executor.Query(ctx, query, userID, DecisionPending, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := make([]*Step, 0)
	for rows.Next() {
		var step Step
		if err := rows.Scan(
			&step.ID, &step.WorkflowID, &step.ApproverUserID, &step.OrderIndex,
			&step.Decision, &step.Comment, &step.DecidedAt, &step.CreatedAt,
		); err != nil {
			return nil, err
		}
		steps = append(steps, &step)
	}

	return steps, rows.Err()
}

func (store *StoreImpl) ListStalePendingSteps(ctx context.Context, olderThan time.Time) ([]*Step, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT s.id, s.workflow_id, s.approver_user_id, s.order_index, s.decision, s.comment, s.decided_at, s.created_at
FROM signoff.steps s
JOIN signoff.workflows w ON w.id = s.workflow_id
WHERE s.decision = $1 AND w.status = $2 AND s.created_at < $3
ORDER BY s.created_at, s.order_index`

	rows, err := executor.Query(ctx, query, DecisionPending, StatusPending, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := make([]*Step, 0)
	for rows.Next() {
		var step Step
		if err := rows.Scan(
			&step.ID, &step.WorkflowID, &step.ApproverUserID, &step.OrderIndex,
			&step.Decision, &step.Comment, &step.DecidedAt, &step.CreatedAt,
		); err != nil {
			return nil, err
		}
		steps = append(steps, &step)
	}

	return steps, rows.Err()
}

func (store *StoreImpl) CleanupOldWorkflows(ctx context.Context, daysToKeep int) (int64, error) {
	executor := store.getExecutor(ctx)

	const query = `
DELETE FROM signoff.workflows
WHERE status != $1 AND completed_at < $2`

	cutoff := time.Now().AddDate(0, 0, -daysToKeep)
	result, err := executor.Exec(ctx, query, StatusPending, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

func (store *StoreImpl) LogEvent(
	ctx context.Context,
	workflowID string,
	stepID *string,
	eventType string,
	payload any,
) error {
	executor := store.getExecutor(ctx)

	const query = `
INSERT INTO signoff.workflow_events (workflow_id, step_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = executor.Exec(ctx, query, workflowID, stepID, eventType, payloadJSON, time.Now())

	return err
}

func (store *StoreImpl) GetWorkflowEvents(ctx context.Context, workflowID string) ([]WorkflowEvent, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT id, workflow_id, step_id, event_type, payload, created_at
FROM signoff.workflow_events
WHERE workflow_id = $1
ORDER BY id`

	rows, err := executor.Query(ctx, query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]WorkflowEvent, 0)
	for rows.Next() {
		var event WorkflowEvent
		if err := rows.Scan(
			&event.ID, &event.WorkflowID, &event.StepID,
			&event.EventType, &event.Payload, &event.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func (store *StoreImpl) CreateFolderRule(ctx context.Context, rule *FolderRule) error {
	executor := store.getExecutor(ctx)

	const ruleQuery = `
INSERT INTO signoff.folder_rules
	(id, folder_id, mode, resolution_text, apply_to_subfolders, active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

	_, err := executor.Exec(ctx, ruleQuery,
		rule.ID, rule.FolderID, rule.Mode, rule.ResolutionText,
		rule.ApplyToSubfolders, rule.Active, rule.CreatedBy, rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert folder rule: %w", err)
	}

	return store.insertRuleApprovers(ctx, rule.ID, rule.Approvers)
}

func (store *StoreImpl) insertRuleApprovers(ctx context.Context, ruleID string, approvers []RuleApprover) error {
	executor := store.getExecutor(ctx)

	const query = `
INSERT INTO signoff.folder_rule_approvers (rule_id, user_id, order_index)
VALUES ($1, $2, $3)`

	for _, approver := range approvers {
		if _, err := executor.Exec(ctx, query, ruleID, approver.UserID, approver.OrderIndex); err != nil {
			return fmt.Errorf("insert rule approver: %w", err)
		}
	}

	return nil
}

func (store *StoreImpl) GetFolderRule(ctx context.Context, ruleID string) (*FolderRule, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT id, folder_id, mode, resolution_text, apply_to_subfolders, active, created_by, created_at, updated_at
FROM signoff.folder_rules
WHERE id = $1`

	rule, err := scanRule(executor.QueryRow(ctx, query, ruleID))
	if err != nil {
		return nil, err
	}

	rule.Approvers, err = store.getRuleApprovers(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (store *StoreImpl) ListFolderRules(ctx context.Context, folderID string) ([]*FolderRule, error) {
	executor := store.getExecutor(ctx)

	query := `
SELECT id, folder_id, mode, resolution_text, apply_to_subfolders, active, created_by, created_at, updated_at
FROM signoff.folder_rules`
	args := []any{}
	if folderID != "" {
		query += `
WHERE folder_id = $1`
		args = append(args, folderID)
	}
	query += `
ORDER BY created_at DESC`

	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*FolderRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rule := range rules {
		rule.Approvers, err = store.getRuleApprovers(ctx, rule.ID)
		if err != nil {
			return nil, err
		}
	}

	return rules, nil
}

func (store *StoreImpl) UpdateFolderRule(ctx context.Context, rule *FolderRule) error {
	executor := store.getExecutor(ctx)

	const query = `
UPDATE signoff.folder_rules
SET mode = $2, resolution_text = $3, apply_to_subfolders = $4, active = $5, updated_at = $6
WHERE id = $1`

	tag, err := executor.Exec(ctx, query,
		rule.ID, rule.Mode, rule.ResolutionText,
		rule.ApplyToSubfolders, rule.Active, rule.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	const deleteQuery = `
DELETE FROM signoff.folder_rule_approvers
WHERE rule_id = $1`

	if _, err := executor.Exec(ctx, deleteQuery, rule.ID); err != nil {
		return fmt.Errorf("delete rule approvers: %w", err)
	}

	return store.insertRuleApprovers(ctx, rule.ID, rule.Approvers)
}

func (store *StoreImpl) DeleteFolderRule(ctx context.Context, ruleID string) error {
	executor := store.getExecutor(ctx)

	const query = `
DELETE FROM signoff.folder_rules
WHERE id = $1`

	tag, err := executor.Exec(ctx, query, ruleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (store *StoreImpl) GetActiveRuleByFolder(ctx context.Context, folderID string) (*FolderRule, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT id, folder_id, mode, resolution_text, apply_to_subfolders, active, created_by, created_at, updated_at
FROM signoff.folder_rules
WHERE folder_id = $1 AND active
ORDER BY created_at DESC
LIMIT 1`

	rule, err := scanRule(executor.QueryRow(ctx, query, folderID))
	if err != nil {
		return nil, err
	}

	rule.Approvers, err = store.getRuleApprovers(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (store *StoreImpl) getRuleApprovers(ctx context.Context, ruleID string) ([]RuleApprover, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT user_id, order_index
FROM signoff.folder_rule_approvers
WHERE rule_id = $1
ORDER BY order_index`

	rows, err := executor.Query(ctx, query, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	approvers := make([]RuleApprover, 0)
	for rows.Next() {
		var approver RuleApprover
		if err := rows.Scan(&approver.UserID, &approver.OrderIndex); err != nil {
			return nil, err
		}
		approvers = append(approvers, approver)
	}

	return approvers, rows.Err()
}

func (store *StoreImpl) GetSummaryStats(ctx context.Context) (*SummaryStats, error) {
	executor := store.getExecutor(ctx)

	const query = `
SELECT status, COUNT(*)
FROM signoff.workflows
GROUP BY status`

	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &SummaryStats{}
	for rows.Next() {
		var status WorkflowStatus
		var count uint
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}

		stats.TotalWorkflows += count
		switch status {
		case StatusPending:
			stats.PendingWorkflows = count
		case StatusApproved:
			stats.ApprovedWorkflows = count
		case StatusRejected:
			stats.RejectedWorkflows = count
		case StatusCancelled:
			stats.CancelledWorkflows = count
		}
	}

	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*FolderRule, error) {
	var rule FolderRule
	err := row.Scan(
		&rule.ID, &rule.FolderID, &rule.Mode, &rule.ResolutionText,
		&rule.ApplyToSubfolders, &rule.Active, &rule.CreatedBy,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntityNotFound
		}

		return nil, err
	}

	return &rule, nil
}

func (store *StoreImpl) getExecutor(ctx context.Context) Tx {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}

	return store.db
}
