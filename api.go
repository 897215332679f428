package signoff

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// API bundles a fully wired Postgres-backed engine and query service. It is
// the one-call entry point for applications that do not need custom wiring.
type API struct {
	Engine *Engine
	Query  *QueryService

	store Store
}

func NewAPI(pool *pgxpool.Pool, opts ...EngineOption) *API {
	store := NewStore(pool)
	txManager := NewTxManager(pool)

	// Creator-only cancellation by default; callers override via opts.
	engineOpts := append([]EngineOption{WithCancelPolicy(CreatorOnlyCancelPolicy)}, opts...)

	return &API{
		Engine: NewEngine(txManager, store, engineOpts...),
		Query:  NewQueryService(store),
		store:  store,
	}
}

func (a *API) CreateApproval(
	ctx context.Context,
	params CreateWorkflowParams,
	createdBy string,
) (*Workflow, error) {
	return a.Engine.Create(ctx, params, createdBy)
}

func (a *API) Decide(
	ctx context.Context,
	stepID, actorID string,
	decision Decision,
	comment *string,
) (*Step, *Workflow, error) {
	return a.Engine.Decide(ctx, stepID, actorID, decision, comment)
}

func (a *API) CancelApproval(ctx context.Context, workflowID, actorID string) (*Workflow, error) {
	return a.Engine.Cancel(ctx, workflowID, actorID)
}

func (a *API) GetApproval(ctx context.Context, workflowID string) (*Workflow, error) {
	return a.Query.GetWorkflow(ctx, workflowID)
}

func (a *API) ListFileApprovals(ctx context.Context, fileID string) ([]*Workflow, error) {
	return a.Query.ListWorkflows(ctx, fileID)
}

func (a *API) ListPendingSteps(ctx context.Context, userID string) ([]*Step, error) {
	return a.Query.ListMyPendingSteps(ctx, userID)
}

func (a *API) GetApprovalEvents(ctx context.Context, workflowID string) ([]WorkflowEvent, error) {
	return a.Query.GetWorkflowEvents(ctx, workflowID)
}

func (a *API) GetSummaryStats(ctx context.Context) (*SummaryStats, error) {
	return a.Query.GetSummaryStats(ctx)
}
