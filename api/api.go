package api

import (
	"context"

	"github.com/rom8726/signoff"
)

// APIService is the thin layer the HTTP handlers talk to. Mutations go
// through the engine, reads through the query service.
type APIService struct {
	engine *signoff.Engine
	query  *signoff.QueryService
}

func NewAPIService(engine *signoff.Engine, query *signoff.QueryService) *APIService {
	return &APIService{
		engine: engine,
		query:  query,
	}
}

func (a *APIService) CreateApproval(
	ctx context.Context,
	params signoff.CreateWorkflowParams,
	createdBy string,
) (*signoff.Workflow, error) {
	return a.engine.Create(ctx, params, createdBy)
}

func (a *APIService) Decide(
	ctx context.Context,
	stepID, actorID string,
	req DecisionRequest,
) (*DecisionResponse, error) {
	step, workflow, err := a.engine.Decide(ctx, stepID, actorID, req.Decision, req.Comment)
	if err != nil {
		return nil, err
	}

	return &DecisionResponse{Step: step, Workflow: workflow}, nil
}

func (a *APIService) CancelApproval(ctx context.Context, workflowID, actorID string) (*signoff.Workflow, error) {
	return a.engine.Cancel(ctx, workflowID, actorID)
}

func (a *APIService) GetApproval(ctx context.Context, workflowID string) (*signoff.Workflow, error) {
	return a.query.GetWorkflow(ctx, workflowID)
}

func (a *APIService) ListFileApprovals(ctx context.Context, fileID string) ([]*signoff.Workflow, error) {
	return a.query.ListWorkflows(ctx, fileID)
}

func (a *APIService) ListPendingSteps(ctx context.Context, userID string) ([]*signoff.Step, error) {
	return a.query.ListMyPendingSteps(ctx, userID)
}

func (a *APIService) GetApprovalEvents(ctx context.Context, workflowID string) ([]signoff.WorkflowEvent, error) {
	return a.query.GetWorkflowEvents(ctx, workflowID)
}

func (a *APIService) GetSummaryStats(ctx context.Context) (*signoff.SummaryStats, error) {
	return a.query.GetSummaryStats(ctx)
}
