package signoff

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Engine coordinates multi-party sign-off on a file: it creates workflows,
// applies approver decisions and cancels workflows. All mutations of one
// workflow run inside a single store transaction, serialized per workflow
// by the TxManager/Store pair.
type Engine struct {
	txManager    TxManager
	store        Store
	directory    UserDirectory
	files        FileRegistry
	folders      FolderTree
	notifier     Notifier
	cancelPolicy CancelPolicy
	now          func() time.Time
}

func NewEngine(txManager TxManager, store Store, opts ...EngineOption) *Engine {
	engine := &Engine{
		txManager: txManager,
		store:     store,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

type ApproverSpec struct {
	UserID     string `json:"user_id"`
	OrderIndex int    `json:"order_index"`
}

type CreateWorkflowParams struct {
	FileID         string         `json:"file_id"`
	Mode           WorkflowMode   `json:"mode"`
	ResolutionText *string        `json:"resolution_text"`
	Approvers      []ApproverSpec `json:"approvers"`
}

// Create validates the approver list and persists the workflow together
// with its pending steps in one atomic write.
//
// Order indexes must be unique and contiguous starting at 0. When the
// caller leaves all indexes at zero, the engine assigns them from list
// position. In serial mode the indexes define actionability order; in
// parallel mode they are informational only.
func (engine *Engine) Create(
	ctx context.Context,
	params CreateWorkflowParams,
	createdBy string,
) (*Workflow, error) {
	if !params.Mode.Valid() {
		return nil, validationErrorf("unknown mode: %q", params.Mode)
	}

	if len(params.Approvers) == 0 {
		return nil, validationErrorf("approver list is empty")
	}

	approvers := assignOrderIndexes(params.Approvers)

	indexes := make([]int, 0, len(approvers))
	for _, approver := range approvers {
		indexes = append(indexes, approver.OrderIndex)
	}
	if err := validateOrderIndexes(indexes); err != nil {
		return nil, err
	}

	if err := engine.checkReferences(ctx, params.FileID, approvers); err != nil {
		return nil, err
	}

	now := engine.now()
	workflow := &Workflow{
		ID:             uuid.NewString(),
		FileID:         params.FileID,
		Mode:           params.Mode,
		ResolutionText: params.ResolutionText,
		Status:         StatusPending,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, approver := range approvers {
		workflow.Steps = append(workflow.Steps, &Step{
			ID:             uuid.NewString(),
			WorkflowID:     workflow.ID,
			ApproverUserID: approver.UserID,
			OrderIndex:     approver.OrderIndex,
			Decision:       DecisionPending,
			CreatedAt:      now,
		})
	}
	sortSteps(workflow.Steps)

	err := engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		if err := engine.store.CreateWorkflow(ctx, workflow); err != nil {
			return &StoreError{Op: "create workflow", Err: err}
		}

		_ = engine.store.LogEvent(ctx, workflow.ID, nil, EventWorkflowCreated, map[string]any{
			KeyFileID:    workflow.FileID,
			KeyMode:      workflow.Mode,
			KeyApprovers: len(workflow.Steps),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	engine.notify(ctx, assignedNotifications(workflow))

	return workflow, nil
}

// Decide applies one approver decision to a step and atomically re-evaluates
// the owning workflow's status. At most one decision is ever written per
// step; a duplicate submission surfaces ConflictError.
func (engine *Engine) Decide(
	ctx context.Context,
	stepID string,
	actorID string,
	decision Decision,
	comment *string,
) (*Step, *Workflow, error) {
	if !decision.Valid() {
		return nil, nil, validationErrorf("unknown decision: %q", decision)
	}

	var (
		workflow *Workflow
		step     *Step
	)

	err := engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		located, err := engine.store.GetStep(ctx, stepID)
		if err != nil {
			return notFoundOrStore(err, "step", stepID, "get step")
		}

		// Lock the owning workflow, then re-read the step from the locked
		// snapshot: a concurrent decision may have committed while we
		// waited for the lock.
		workflow, err = engine.store.GetWorkflowForUpdate(ctx, located.WorkflowID)
		if err != nil {
			return notFoundOrStore(err, "workflow", located.WorkflowID, "lock workflow")
		}

		step = workflow.Step(stepID)
		if step == nil {
			return &NotFoundError{Entity: "step", ID: stepID}
		}

		if workflow.Status != StatusPending {
			return &StateError{Reason: fmt.Sprintf("workflow already %s", workflow.Status)}
		}
		if step.Decision != DecisionPending {
			return &ConflictError{Reason: fmt.Sprintf("step already %s", step.Decision)}
		}
		if step.ApproverUserID != actorID {
			return &AuthorizationError{Reason: "you are not the assigned approver for this step"}
		}
		if workflow.Mode == ModeSerial && !StepActionable(workflow, step) {
			return &ConflictError{Reason: "not your turn: previous approvers must approve first"}
		}

		now := engine.now()
		step.Decision = DecisionApproved
		if decision == DecisionReject {
			step.Decision = DecisionRejected
		}
		step.Comment = comment
		step.DecidedAt = &now

		if err := engine.store.UpdateStepDecision(ctx, step.ID, step.Decision, comment, &now); err != nil {
			return &StoreError{Op: "update step decision", Err: err}
		}

		_ = engine.store.LogEvent(ctx, workflow.ID, &step.ID, EventStepDecided, map[string]any{
			KeyApprover:   step.ApproverUserID,
			KeyDecision:   step.Decision,
			KeyOrderIndex: step.OrderIndex,
		})

		return engine.resolveWorkflow(ctx, workflow, now)
	})
	if err != nil {
		return nil, nil, err
	}

	engine.notify(ctx, decisionNotifications(workflow, step))

	return step, workflow, nil
}

// Cancel terminates a pending workflow: status becomes cancelled and every
// step still pending is cancelled with it. Cancelling an already-terminal
// workflow returns StateError.
func (engine *Engine) Cancel(ctx context.Context, workflowID, actorID string) (*Workflow, error) {
	var workflow *Workflow

	err := engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		var err error
		workflow, err = engine.store.GetWorkflowForUpdate(ctx, workflowID)
		if err != nil {
			return notFoundOrStore(err, "workflow", workflowID, "lock workflow")
		}

		if engine.cancelPolicy != nil {
			if err := engine.cancelPolicy(workflow, actorID); err != nil {
				return err
			}
		}

		if workflow.Status != StatusPending {
			return &StateError{Reason: fmt.Sprintf("workflow already %s", workflow.Status)}
		}

		now := engine.now()
		if err := engine.applyTerminalStatus(ctx, workflow, StatusCancelled, now); err != nil {
			return err
		}

		_ = engine.store.LogEvent(ctx, workflow.ID, nil, EventWorkflowCancelled, map[string]any{
			KeyCancelledBy: actorID,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// resolveWorkflow recomputes the workflow status after a decision and, on a
// terminal transition, stamps completed_at and cancels the remaining
// pending steps. It runs inside the same transaction that locked the
// workflow, so two concurrent approvals can never both complete it.
func (engine *Engine) resolveWorkflow(ctx context.Context, workflow *Workflow, now time.Time) error {
	status := ComputeStatus(workflow)
	if status == StatusPending {
		return nil
	}

	return engine.applyTerminalStatus(ctx, workflow, status, now)
}

func (engine *Engine) applyTerminalStatus(
	ctx context.Context,
	workflow *Workflow,
	status WorkflowStatus,
	now time.Time,
) error {
	cancelled, err := engine.store.CancelPendingSteps(ctx, workflow.ID)
	if err != nil {
		return &StoreError{Op: "cancel pending steps", Err: err}
	}

	if err := engine.store.UpdateWorkflowStatus(ctx, workflow.ID, status, &now); err != nil {
		return &StoreError{Op: "update workflow status", Err: err}
	}

	workflow.Status = status
	workflow.CompletedAt = &now
	workflow.UpdatedAt = now
	for _, step := range workflow.Steps {
		// Mooted steps carry no decided_at: nobody acted on them.
		if step.Decision == DecisionPending {
			step.Decision = DecisionCancelled
		}
	}

	if cancelled > 0 {
		_ = engine.store.LogEvent(ctx, workflow.ID, nil, EventStepsCancelled, map[string]any{
			KeyCount: cancelled,
		})
	}

	_ = engine.store.LogEvent(ctx, workflow.ID, nil, EventWorkflowResolved, map[string]any{
		KeyStatus: status,
	})

	return nil
}

func (engine *Engine) checkReferences(ctx context.Context, fileID string, approvers []ApproverSpec) error {
	if engine.files != nil {
		ok, err := engine.files.FileExists(ctx, fileID)
		if err != nil {
			return fmt.Errorf("check file: %w", err)
		}
		if !ok {
			return validationErrorf("unknown file: %s", fileID)
		}
	}

	if engine.directory != nil {
		for _, approver := range approvers {
			ok, err := engine.directory.UserExists(ctx, approver.UserID)
			if err != nil {
				return fmt.Errorf("check approver: %w", err)
			}
			if !ok {
				return validationErrorf("unknown approver: %s", approver.UserID)
			}
		}
	}

	return nil
}

// assignOrderIndexes fills indexes from list position when the caller left
// them all at zero.
func assignOrderIndexes(approvers []ApproverSpec) []ApproverSpec {
	assigned := make([]ApproverSpec, len(approvers))
	copy(assigned, approvers)

	allZero := true
	for _, approver := range assigned {
		if approver.OrderIndex != 0 {
			allZero = false

			break
		}
	}

	if allZero && len(assigned) > 1 {
		for i := range assigned {
			assigned[i].OrderIndex = i
		}
	}

	return assigned
}

func (engine *Engine) notify(ctx context.Context, notifications []Notification) {
	if engine.notifier == nil {
		return
	}

	for _, notification := range notifications {
		if err := engine.notifier.Notify(ctx, notification); err != nil {
			log.Printf("signoff: notify %s to %s: %v", notification.Type, notification.UserID, err)
		}
	}
}

// assignedNotifications tells approvers a workflow was created. In serial
// mode only the first approver is actionable, so only they are told.
func assignedNotifications(workflow *Workflow) []Notification {
	notifications := make([]Notification, 0, len(workflow.Steps))
	for _, step := range workflow.Steps {
		if workflow.Mode == ModeSerial && step.OrderIndex > 0 {
			continue
		}

		notifications = append(notifications, Notification{
			UserID:     step.ApproverUserID,
			Type:       NotifyAssigned,
			WorkflowID: workflow.ID,
			FileID:     workflow.FileID,
			StepID:     &step.ID,
		})
	}

	return notifications
}

// decisionNotifications routes the fallout of one decision: the creator
// hears about every decision, all other participants hear about a terminal
// resolution, and in a still-pending serial workflow the next approver is
// told it is their turn.
func decisionNotifications(workflow *Workflow, decided *Step) []Notification {
	decisionType := NotifyApproved
	if decided.Decision == DecisionRejected {
		decisionType = NotifyRejected
	}

	notifications := []Notification{{
		UserID:     workflow.CreatedBy,
		Type:       decisionType,
		WorkflowID: workflow.ID,
		FileID:     workflow.FileID,
		StepID:     &decided.ID,
	}}

	if workflow.Status.Terminal() {
		for _, step := range workflow.Steps {
			if step.ApproverUserID == decided.ApproverUserID {
				continue
			}

			notifications = append(notifications, Notification{
				UserID:     step.ApproverUserID,
				Type:       NotifyWorkflowCompleted,
				WorkflowID: workflow.ID,
				FileID:     workflow.FileID,
			})
		}

		return notifications
	}

	if workflow.Mode == ModeSerial && decided.Decision == DecisionApproved {
		for _, step := range workflow.Steps {
			if step.OrderIndex > decided.OrderIndex && step.Decision == DecisionPending {
				notifications = append(notifications, Notification{
					UserID:     step.ApproverUserID,
					Type:       NotifyAssigned,
					WorkflowID: workflow.ID,
					FileID:     workflow.FileID,
					StepID:     &step.ID,
				})

				break
			}
		}
	}

	return notifications
}
