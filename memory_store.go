package signoff

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is the in-memory reference implementation. Pair it with
// MemoryTxManager, which serializes transactions so the engine's
// read-decide-write sequences stay atomic.
type MemoryStore struct {
	mu          sync.RWMutex
	workflows   map[string]*Workflow
	stepOwner   map[string]string
	events      map[string][]*WorkflowEvent
	rules       map[string]*FolderRule
	nextEventID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:   make(map[string]*Workflow),
		stepOwner:   make(map[string]string),
		events:      make(map[string][]*WorkflowEvent),
		rules:       make(map[string]*FolderRule),
		nextEventID: 1,
	}
}

func (s *MemoryStore) CreateWorkflow(ctx context.Context, workflow *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneWorkflow(workflow)
	s.workflows[stored.ID] = stored
	for _, step := range stored.Steps {
		s.stepOwner[step.ID] = stored.ID
	}

	return nil
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflow, exists := s.workflows[workflowID]
	if !exists {
		return nil, ErrEntityNotFound
	}

	return cloneWorkflow(workflow), nil
}

// GetWorkflowForUpdate is a plain read here: MemoryTxManager already holds
// the transaction mutex, so no row lock is needed.
func (s *MemoryStore) GetWorkflowForUpdate(ctx context.Context, workflowID string) (*Workflow, error) {
	return s.GetWorkflow(ctx, workflowID)
}

func (s *MemoryStore) GetStep(ctx context.Context, stepID string) (*Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step := s.findStep(stepID)
	if step == nil {
		return nil, ErrEntityNotFound
	}

	clone := *step

	return &clone, nil
}

func (s *MemoryStore) UpdateStepDecision(
	ctx context.Context,
	stepID string,
	decision StepDecision,
	comment *string,
	decidedAt *time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.findStep(stepID)
	if step == nil {
		return ErrEntityNotFound
	}

	step.Decision = decision
	step.Comment = comment
	step.DecidedAt = decidedAt

	return nil
}

func (s *MemoryStore) CancelPendingSteps(ctx context.Context, workflowID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	workflow, exists := s.workflows[workflowID]
	if !exists {
		return 0, ErrEntityNotFound
	}

	cancelled := 0
	for _, step := range workflow.Steps {
		if step.Decision == DecisionPending {
			step.Decision = DecisionCancelled
			cancelled++
		}
	}

	return cancelled, nil
}

func (s *MemoryStore) UpdateWorkflowStatus(
	ctx context.Context,
	workflowID string,
	status WorkflowStatus,
	completedAt *time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workflow, exists := s.workflows[workflowID]
	if !exists {
		return ErrEntityNotFound
	}

	workflow.Status = status
	workflow.CompletedAt = completedAt
	if completedAt != nil {
		workflow.UpdatedAt = *completedAt
	}

	return nil
}

func (s *MemoryStore) ListWorkflowsByFile(ctx context.Context, fileID string) ([]*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflows := make([]*Workflow, 0)
	for _, workflow := range s.workflows {
		if workflow.FileID == fileID {
			workflows = append(workflows, cloneWorkflow(workflow))
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (s *MemoryStore) ListPendingStepsByUser(ctx context.Context, userID string) ([]*Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make([]*Step, 0)
	for _, workflow := range s.workflows {
		if workflow.Status != StatusPending {
			continue
		}

		for _, step := range workflow.Steps {
			if step.ApproverUserID == userID && step.Decision == DecisionPending {
				clone := *step
				steps = append(steps, &clone)
			}
		}
	}

	sort.Slice(steps, func(i, j int) bool {
		if !steps[i].CreatedAt.Equal(steps[j].CreatedAt) {
			return steps[i].CreatedAt.Before(steps[j].CreatedAt)
		}

		return steps[i].OrderIndex < steps[j].OrderIndex
	})

	return steps, nil
}

func (s *MemoryStore) ListStalePendingSteps(ctx context.Context, olderThan time.Time) ([]*Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make([]*Step, 0)
	for _, workflow := range s.workflows {
		if workflow.Status != StatusPending {
			continue
		}

		for _, step := range workflow.Steps {
			if step.Decision == DecisionPending && step.CreatedAt.Before(olderThan) {
				clone := *step
				steps = append(steps, &clone)
			}
		}
	}

	sort.Slice(steps, func(i, j int) bool {
		if !steps[i].CreatedAt.Equal(steps[j].CreatedAt) {
			return steps[i].CreatedAt.Before(steps[j].CreatedAt)
		}

		return steps[i].OrderIndex < steps[j].OrderIndex
	})

	return steps, nil
}

func (s *MemoryStore) CleanupOldWorkflows(ctx context.Context, daysToKeep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -daysToKeep)
	deleted := int64(0)

	for id, workflow := range s.workflows {
		if workflow.Status == StatusPending {
			continue
		}
		if workflow.CompletedAt == nil || !workflow.CompletedAt.Before(cutoff) {
			continue
		}

		for _, step := range workflow.Steps {
			delete(s.stepOwner, step.ID)
		}
		delete(s.workflows, id)
		delete(s.events, id)
		deleted++
	}

	return deleted, nil
}

func (s *MemoryStore) LogEvent(
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

	event := &WorkflowEvent{
		ID:         s.nextEventID,
		WorkflowID: workflowID,
		StepID:     stepID,
		EventType:  eventType,
		Payload:    payloadJSON,
		CreatedAt:  time.Now(),
	}

	s.events[workflowID] = append(s.events[workflowID], event)
	s.nextEventID++

	return nil
}

func (s *MemoryStore) GetWorkflowEvents(ctx context.Context, workflowID string) ([]WorkflowEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[workflowID]
	events := make([]WorkflowEvent, 0, len(stored))
	for _, event := range stored {
		events = append(events, *event)
	}

	return events, nil
}

func (s *MemoryStore) CreateFolderRule(ctx context.Context, rule *FolderRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[rule.ID] = cloneRule(rule)

	return nil
}

func (s *MemoryStore) GetFolderRule(ctx context.Context, ruleID string) (*FolderRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[ruleID]
	if !exists {
		return nil, ErrEntityNotFound
	}

	return cloneRule(rule), nil
}

func (s *MemoryStore) ListFolderRules(ctx context.Context, folderID string) ([]*FolderRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]*FolderRule, 0)
	for _, rule := range s.rules {
		if folderID != "" && rule.FolderID != folderID {
			continue
		}
		rules = append(rules, cloneRule(rule))
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].CreatedAt.After(rules[j].CreatedAt)
	})

	return rules, nil
}

func (s *MemoryStore) UpdateFolderRule(ctx context.Context, rule *FolderRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; !exists {
		return ErrEntityNotFound
	}

	s.rules[rule.ID] = cloneRule(rule)

	return nil
}

func (s *MemoryStore) DeleteFolderRule(ctx context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[ruleID]; !exists {
		return ErrEntityNotFound
	}

	delete(s.rules, ruleID)

	return nil
}

func (s *MemoryStore) GetActiveRuleByFolder(ctx context.Context, folderID string) (*FolderRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rules {
		if rule.FolderID == folderID && rule.Active {
			return cloneRule(rule), nil
		}
	}

	return nil, ErrEntityNotFound
}

func (s *MemoryStore) GetSummaryStats(ctx context.Context) (*SummaryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &SummaryStats{}
	for _, workflow := range s.workflows {
		stats.TotalWorkflows++
		switch workflow.Status {
		case StatusPending:
			stats.PendingWorkflows++
		case StatusApproved:
			stats.ApprovedWorkflows++
		case StatusRejected:
			stats.RejectedWorkflows++
		case StatusCancelled:
			stats.CancelledWorkflows++
		}
	}

	return stats, nil
}

// findStep must be called with the mutex held.
func (s *MemoryStore) findStep(stepID string) *Step {
	workflowID, exists := s.stepOwner[stepID]
	if !exists {
		return nil
	}

	workflow, exists := s.workflows[workflowID]
	if !exists {
		return nil
	}

	return workflow.Step(stepID)
}

func cloneWorkflow(workflow *Workflow) *Workflow {
	clone := *workflow
	clone.Steps = make([]*Step, 0, len(workflow.Steps))
	for _, step := range workflow.Steps {
		stepClone := *step
		clone.Steps = append(clone.Steps, &stepClone)
	}
	sortSteps(clone.Steps)

	return &clone
}

func cloneRule(rule *FolderRule) *FolderRule {
	clone := *rule
	clone.Approvers = make([]RuleApprover, len(rule.Approvers))
	copy(clone.Approvers, rule.Approvers)

	return &clone
}
