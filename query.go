package signoff

import "context"

// QueryService serves read-only views over the store.
type QueryService struct {
	store Store
}

func NewQueryService(store Store) *QueryService {
	return &QueryService{store: store}
}

// GetWorkflow returns one workflow with its steps.
func (q *QueryService) GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error) {
	workflow, err := q.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, notFoundOrStore(err, "workflow", workflowID, "get workflow")
	}

	return workflow, nil
}

// ListWorkflows returns all workflows for a file, newest first.
func (q *QueryService) ListWorkflows(ctx context.Context, fileID string) ([]*Workflow, error) {
	workflows, err := q.store.ListWorkflowsByFile(ctx, fileID)
	if err != nil {
		return nil, &StoreError{Op: "list workflows", Err: err}
	}

	return workflows, nil
}

// ListMyPendingSteps returns the user's steps that are actionable right
// now: pending steps of pending workflows, filtered in serial mode to the
// step whose turn it is.
func (q *QueryService) ListMyPendingSteps(ctx context.Context, userID string) ([]*Step, error) {
	steps, err := q.store.ListPendingStepsByUser(ctx, userID)
	if err != nil {
		return nil, &StoreError{Op: "list pending steps", Err: err}
	}

	workflows := make(map[string]*Workflow)
	actionable := make([]*Step, 0, len(steps))

	for _, step := range steps {
		workflow, ok := workflows[step.WorkflowID]
		if !ok {
			workflow, err = q.store.GetWorkflow(ctx, step.WorkflowID)
			if err != nil {
				return nil, notFoundOrStore(err, "workflow", step.WorkflowID, "get workflow")
			}
			workflows[step.WorkflowID] = workflow
		}

		if StepActionable(workflow, step) {
			actionable = append(actionable, step)
		}
	}

	return actionable, nil
}

// GetWorkflowEvents returns the durable event log for a workflow, oldest
// first.
func (q *QueryService) GetWorkflowEvents(ctx context.Context, workflowID string) ([]WorkflowEvent, error) {
	if _, err := q.store.GetWorkflow(ctx, workflowID); err != nil {
		return nil, notFoundOrStore(err, "workflow", workflowID, "get workflow")
	}

	events, err := q.store.GetWorkflowEvents(ctx, workflowID)
	if err != nil {
		return nil, &StoreError{Op: "get workflow events", Err: err}
	}

	return events, nil
}

// GetSummaryStats returns workflow counts by status.
func (q *QueryService) GetSummaryStats(ctx context.Context) (*SummaryStats, error) {
	stats, err := q.store.GetSummaryStats(ctx)
	if err != nil {
		return nil, &StoreError{Op: "get summary stats", Err: err}
	}

	return stats, nil
}
