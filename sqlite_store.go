package signoff

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Ensure interface compliance
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore provides a lightweight Store backed by SQLite, useful for
// embedded deployments and tests. Critical sections are serialized with a
// mutex; pair it with MemoryTxManager, which holds the same kind of
// coarse-grained lock around whole transactions.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteInMemoryStore creates an in-memory SQLite database and
// initializes the schema.
func NewSQLiteInMemoryStore() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	_, _ = db.Exec("PRAGMA foreign_keys=ON;")
	_, _ = db.Exec("PRAGMA busy_timeout=5000;")
	// single connection to keep :memory: consistent and avoid locks
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := RunSQLiteMigrations(context.Background(), db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}

// NewSQLiteStore opens (or creates) a file-backed SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	_, _ = db.Exec("PRAGMA journal_mode=WAL;")
	_, _ = db.Exec("PRAGMA foreign_keys=ON;")
	_, _ = db.Exec("PRAGMA busy_timeout=5000;")

	store := &SQLiteStore{db: db}
	if err := RunSQLiteMigrations(context.Background(), db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateWorkflow(ctx context.Context, workflow *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const workflowQuery = `
INSERT INTO workflows (id, file_id, mode, resolution_text, status, created_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, workflowQuery,
		workflow.ID, workflow.FileID, workflow.Mode, workflow.ResolutionText,
		workflow.Status, workflow.CreatedBy, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}

	const stepQuery = `
INSERT INTO steps (id, workflow_id, approver_user_id, order_index, decision, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

	for _, step := range workflow.Steps {
		_, err := s.db.ExecContext(ctx, stepQuery,
			step.ID, step.WorkflowID, step.ApproverUserID,
			step.OrderIndex, step.Decision, step.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", step.OrderIndex, err)
		}
	}

	return nil
}

func (s *SQLiteStore) GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getWorkflowLocked(ctx, workflowID)
}

// GetWorkflowForUpdate relies on the tx manager's transaction lock; the
// read itself is the same as GetWorkflow.
func (s *SQLiteStore) GetWorkflowForUpdate(ctx context.Context, workflowID string) (*Workflow, error) {
	return s.GetWorkflow(ctx, workflowID)
}

func (s *SQLiteStore) getWorkflowLocked(ctx context.Context, workflowID string) (*Workflow, error) {
	const query = `
SELECT id, file_id, mode, resolution_text, status, created_by, created_at, updated_at, completed_at
FROM workflows
WHERE id = ?`

	workflow, err := scanSQLiteWorkflow(s.db.QueryRowContext(ctx, query, workflowID))
	if err != nil {
		return nil, err
	}

	workflow.Steps, err = s.getStepsLocked(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("get steps: %w", err)
	}

	return workflow, nil
}

func (s *SQLiteStore) getStepsLocked(ctx context.Context, workflowID string) ([]*Step, error) {
	const query = `
SELECT id, workflow_id, approver_user_id, order_index, decision, comment, decided_at, created_at
FROM steps
WHERE workflow_id = ?
ORDER BY order_index`

	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step, err := scanSQLiteStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func (s *SQLiteStore) GetStep(ctx context.Context, stepID string) (*Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
SELECT id, workflow_id, approver_user_id, order_index, decision, comment, decided_at, created_at
FROM steps
WHERE id = ?`

	return scanSQLiteStep(s.db.QueryRowContext(ctx, query, stepID))
}

func (s *SQLiteStore) UpdateStepDecision(
	ctx context.Context,
	stepID string,
	decision StepDecision,
	comment *string,
	decidedAt *time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
UPDATE steps
SET decision = ?, comment = ?, decided_at = ?
WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, decision, comment, decidedAt, stepID)
	if err != nil {
		return err
	}

	return requireSQLiteRows(result)
}

func (s *SQLiteStore) CancelPendingSteps(ctx context.Context, workflowID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
UPDATE steps
SET decision = ?
WHERE workflow_id = ? AND decision = ?`

	result, err := s.db.ExecContext(ctx, query, DecisionCancelled, workflowID, DecisionPending)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}

func (s *SQLiteStore) UpdateWorkflowStatus(
	ctx context.Context,
	workflowID string,
	status WorkflowStatus,
	completedAt *time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
UPDATE workflows
SET status = ?, completed_at = COALESCE(completed_at, ?), updated_at = ?
WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, status, completedAt, time.Now(), workflowID)
	if err != nil {
		return err
	}

	return requireSQLiteRows(result)
}

func (s *SQLiteStore) ListWorkflowsByFile(ctx context.Context, fileID string) ([]*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
SELECT id, file_id, mode, resolution_text, status, created_by, created_at, updated_at, completed_at
FROM workflows
WHERE file_id = ?
ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workflows := make([]*Workflow, 0)
	for rows.Next() {
		workflow, err := scanSQLiteWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, workflow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		workflow.Steps, err = s.getStepsLocked(ctx, workflow.ID)
		if err != nil {
			return nil, fmt.Errorf("get steps: %w", err)
		}
	}

	return workflows, nil
}

func (s *SQLiteStore) ListPendingStepsByUser(ctx context.Context, userID string) ([]*Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
SELECT s.id, s.workflow_id, s.approver_user_id, s.order_index, s.decision, s.comment, s.decided_at, s.created_at
FROM steps s
JOIN workflows w ON w.id = s.workflow_id
WHERE s.approver_user_id = ? AND s.decision = ? AND w.status = ?
ORDER BY s.created_at, s.order_index`

	rows, err := s.db.QueryContext(ctx, query, userID, DecisionPending, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := make([]*Step, 0)
	for rows.Next() {
		step, err := scanSQLiteStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func (s *SQLiteStore) ListStalePendingSteps(ctx context.Context, olderThan time.Time) ([]*Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
SELECT s.id, s.workflow_id, s.approver_user_id, s.order_index, s.decision, s.comment, s.decided_at, s.created_at
FROM steps s
JOIN workflows w ON w.id = s.workflow_id
WHERE s.decision = ? AND w.status = ? AND s.created_at < ?
ORDER BY s.created_at, s.order_index`

	rows, err := s.db.QueryContext(ctx, query, DecisionPending, StatusPending, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := make([]*Step, 0)
	for rows.Next() {
		step, err := scanSQLiteStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func (s *SQLiteStore) CleanupOldWorkflows(ctx context.Context, daysToKeep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -daysToKeep)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM workflows WHERE status != ? AND completed_at < ?`,
		StatusPending, cutoff,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (s *SQLiteStore) LogEvent(
	ctx context.Context,
	workflowID string,
	stepID *string,
	eventType string,
	payload any,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const query = `
INSERT INTO workflow_events (workflow_id, step_id, event_type, payload, created_at)
VALUES (?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query, workflowID, stepID, eventType, string(payloadJSON), time.Now())

	return err
}

func (s *SQLiteStore) GetWorkflowEvents(ctx context.Context, workflowID string) ([]WorkflowEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
SELECT id, workflow_id, step_id, event_type, payload, created_at
FROM workflow_events
WHERE workflow_id = ?
ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]WorkflowEvent, 0)
	for rows.Next() {
		var event WorkflowEvent
		var stepID sql.NullString
		var payload sql.NullString
		if err := rows.Scan(
			&event.ID, &event.WorkflowID, &stepID,
			&event.EventType, &payload, &event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if stepID.Valid {
			event.StepID = &stepID.String
		}
		if payload.Valid {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func (s *SQLiteStore) CreateFolderRule(ctx context.Context, rule *FolderRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const ruleQuery = `
INSERT INTO folder_rules
	(id, folder_id, mode, resolution_text, apply_to_subfolders, active, created_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, ruleQuery,
		rule.ID, rule.FolderID, rule.Mode, rule.ResolutionText,
		rule.ApplyToSubfolders, rule.Active, rule.CreatedBy, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert folder rule: %w", err)
	}

	return s.insertRuleApproversLocked(ctx, rule.ID, rule.Approvers)
}

func (s *SQLiteStore) insertRuleApproversLocked(ctx context.Context, ruleID string, approvers []RuleApprover) error {
	const query = `
INSERT INTO folder_rule_approvers (rule_id, user_id, order_index)
VALUES (?, ?, ?)`

	for _, approver := range approvers {
		if _, err := s.db.ExecContext(ctx, query, ruleID, approver.UserID, approver.OrderIndex); err != nil {
			return fmt.Errorf("insert rule approver: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) GetFolderRule(ctx context.Context, ruleID string) (*FolderRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
SELECT id, folder_id, mode, resolution_text, apply_to_subfolders, active, created_by, created_at, updated_at
FROM folder_rules
WHERE id = ?`

	rule, err := scanSQLiteRule(s.db.QueryRowContext(ctx, query, ruleID))
	if err != nil {
		return nil, err
	}

	rule.Approvers, err = s.getRuleApproversLocked(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (s *SQLiteStore) ListFolderRules(ctx context.Context, folderID string) ([]*FolderRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, folder_id, mode, resolution_text, apply_to_subfolders, active, created_by, created_at, updated_at
FROM folder_rules`
	args := []any{}
	if folderID != "" {
		query += `
WHERE folder_id = ?`
		args = append(args, folderID)
	}
	query += `
ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*FolderRule, 0)
	for rows.Next() {
		rule, err := scanSQLiteRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rule := range rules {
		rule.Approvers, err = s.getRuleApproversLocked(ctx, rule.ID)
		if err != nil {
			return nil, err
		}
	}

	return rules, nil
}

func (s *SQLiteStore) UpdateFolderRule(ctx context.Context, rule *FolderRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
UPDATE folder_rules
SET mode = ?, resolution_text = ?, apply_to_subfolders = ?, active = ?, updated_at = ?
WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		rule.Mode, rule.ResolutionText, rule.ApplyToSubfolders,
		rule.Active, rule.UpdatedAt, rule.ID,
	)
	if err != nil {
		return err
	}
	if err := requireSQLiteRows(result); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM folder_rule_approvers WHERE rule_id = ?`, rule.ID); err != nil {
		return fmt.Errorf("delete rule approvers: %w", err)
	}

	return s.insertRuleApproversLocked(ctx, rule.ID, rule.Approvers)
}

func (s *SQLiteStore) DeleteFolderRule(ctx context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM folder_rules WHERE id = ?`, ruleID)
	if err != nil {
		return err
	}

	return requireSQLiteRows(result)
}

func (s *SQLiteStore) GetActiveRuleByFolder(ctx context.Context, folderID string) (*FolderRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
SELECT id, folder_id, mode, resolution_text, apply_to_subfolders, active, created_by, created_at, updated_at
FROM folder_rules
WHERE folder_id = ? AND active = 1
ORDER BY created_at DESC
LIMIT 1`

	rule, err := scanSQLiteRule(s.db.QueryRowContext(ctx, query, folderID))
	if err != nil {
		return nil, err
	}

	rule.Approvers, err = s.getRuleApproversLocked(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (s *SQLiteStore) getRuleApproversLocked(ctx context.Context, ruleID string) ([]RuleApprover, error) {
	const query = `
SELECT user_id, order_index
FROM folder_rule_approvers
WHERE rule_id = ?
ORDER BY order_index`

	rows, err := s.db.QueryContext(ctx, query, ruleID)
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

func (s *SQLiteStore) GetSummaryStats(ctx context.Context) (*SummaryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
SELECT status, COUNT(*)
FROM workflows
GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
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

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteWorkflow(row sqliteScanner) (*Workflow, error) {
	var workflow Workflow
	var resolution sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&workflow.ID, &workflow.FileID, &workflow.Mode, &resolution,
		&workflow.Status, &workflow.CreatedBy, &workflow.CreatedAt,
		&workflow.UpdatedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}

		return nil, err
	}

	if resolution.Valid {
		workflow.ResolutionText = &resolution.String
	}
	if completedAt.Valid {
		workflow.CompletedAt = &completedAt.Time
	}

	return &workflow, nil
}

func scanSQLiteStep(row sqliteScanner) (*Step, error) {
	var step Step
	var comment sql.NullString
	var decidedAt sql.NullTime

	err := row.Scan(
		&step.ID, &step.WorkflowID, &step.ApproverUserID, &step.OrderIndex,
		&step.Decision, &comment, &decidedAt, &step.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}

		return nil, err
	}

	if comment.Valid {
		step.Comment = &comment.String
	}
	if decidedAt.Valid {
		step.DecidedAt = &decidedAt.Time
	}

	return &step, nil
}

func scanSQLiteRule(row sqliteScanner) (*FolderRule, error) {
	var rule FolderRule
	var resolution sql.NullString

	err := row.Scan(
		&rule.ID, &rule.FolderID, &rule.Mode, &resolution,
		&rule.ApplyToSubfolders, &rule.Active, &rule.CreatedBy,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}

		return nil, err
	}

	if resolution.Valid {
		rule.ResolutionText = &resolution.String
	}

	return &rule, nil
}

func requireSQLiteRows(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEntityNotFound
	}

	return nil
}
