package signoff

import (
	"encoding/json"
	"time"
)

type WorkflowMode string

const (
	ModeParallel WorkflowMode = "parallel"
	ModeSerial   WorkflowMode = "serial"
)

func (m WorkflowMode) Valid() bool {
	return m == ModeParallel || m == ModeSerial
}

type WorkflowStatus string

const (
	StatusPending   WorkflowStatus = "pending"
	StatusApproved  WorkflowStatus = "approved"
	StatusRejected  WorkflowStatus = "rejected"
	StatusCancelled WorkflowStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s WorkflowStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

type StepDecision string

const (
	DecisionPending   StepDecision = "pending"
	DecisionApproved  StepDecision = "approved"
	DecisionRejected  StepDecision = "rejected"
	DecisionCancelled StepDecision = "cancelled"
)

func (d StepDecision) Terminal() bool {
	return d == DecisionApproved || d == DecisionRejected || d == DecisionCancelled
}

// Decision is an approver's input verb, distinct from the terminal
// StepDecision it produces.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

type Workflow struct {
	ID             string         `json:"id"`
	FileID         string         `json:"file_id"`
	Mode           WorkflowMode   `json:"mode"`
	ResolutionText *string        `json:"resolution_text"`
	Status         WorkflowStatus `json:"status"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at"`

	// Steps are ordered by OrderIndex. The aggregate is always loaded and
	// mutated as a unit.
	Steps []*Step `json:"steps"`
}

// Step finds the workflow's step by id.
func (w *Workflow) Step(stepID string) *Step {
	for _, step := range w.Steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

type Step struct {
	ID             string       `json:"id"`
	WorkflowID     string       `json:"workflow_id"`
	ApproverUserID string       `json:"approver_user_id"`
	OrderIndex     int          `json:"order_index"`
	Decision       StepDecision `json:"decision"`
	Comment        *string      `json:"comment"`
	DecidedAt      *time.Time   `json:"decided_at"`
	CreatedAt      time.Time    `json:"created_at"`
}

type WorkflowEvent struct {
	ID         int64           `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	StepID     *string         `json:"step_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// FolderRule auto-creates a workflow for every file landing in a folder.
type FolderRule struct {
	ID                string         `json:"id"`
	FolderID          string         `json:"folder_id"`
	Mode              WorkflowMode   `json:"mode"`
	ResolutionText    *string        `json:"resolution_text"`
	ApplyToSubfolders bool           `json:"apply_to_subfolders"`
	Active            bool           `json:"active"`
	CreatedBy         string         `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Approvers         []RuleApprover `json:"approvers"`
}

type RuleApprover struct {
	UserID     string `json:"user_id"`
	OrderIndex int    `json:"order_index"`
}

type SummaryStats struct {
	TotalWorkflows     uint `json:"total_workflows"`
	PendingWorkflows   uint `json:"pending_workflows"`
	ApprovedWorkflows  uint `json:"approved_workflows"`
	RejectedWorkflows  uint `json:"rejected_workflows"`
	CancelledWorkflows uint `json:"cancelled_workflows"`
}

type NotificationType string

const (
	NotifyAssigned          NotificationType = "approval_assigned"
	NotifyApproved          NotificationType = "approval_approved"
	NotifyRejected          NotificationType = "approval_rejected"
	NotifyWorkflowCompleted NotificationType = "approval_completed"
	NotifyReminder          NotificationType = "approval_reminder"
)

// Notification is a transition event the engine emits for an external
// dispatcher to deliver. Delivery failures never roll back the engine's
// transaction.
type Notification struct {
	UserID     string           `json:"user_id"`
	Type       NotificationType `json:"type"`
	WorkflowID string           `json:"workflow_id"`
	FileID     string           `json:"file_id"`
	StepID     *string          `json:"step_id"`
}
