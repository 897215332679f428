package signoff

const (
	// Event types
	EventWorkflowCreated   = "workflow_created"
	EventStepDecided       = "step_decided"
	EventStepsCancelled    = "steps_cancelled"
	EventWorkflowResolved  = "workflow_resolved"
	EventWorkflowCancelled = "workflow_cancelled"

	// Event data keys
	KeyFileID      = "file_id"
	KeyMode        = "mode"
	KeyStatus      = "status"
	KeyApprovers   = "approvers"
	KeyApprover    = "approver"
	KeyDecision    = "decision"
	KeyDecidedBy   = "decided_by"
	KeyOrderIndex  = "order_index"
	KeyCancelledBy = "cancelled_by"
	KeyCount       = "count"
)
