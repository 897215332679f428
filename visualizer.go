package signoff

import (
	"fmt"
)

// Visualizer renders an approval workflow as plain text, for CLIs and
// debugging sessions.
type Visualizer struct{}

func NewVisualizer() *Visualizer {
	return &Visualizer{}
}

func (v *Visualizer) RenderWorkflow(workflow *Workflow) string {
	output := fmt.Sprintf("Approval Workflow: %s\n", workflow.ID)
	output += fmt.Sprintf("File: %s\n", workflow.FileID)
	output += fmt.Sprintf("Mode: %s\n", workflow.Mode)
	output += fmt.Sprintf("Status: %s %s\n", v.statusSymbol(workflow.Status), workflow.Status)
	if workflow.ResolutionText != nil {
		output += fmt.Sprintf("Resolution: %s\n", *workflow.ResolutionText)
	}
	output += "======================================\n\n"

	for _, step := range workflow.Steps {
		output += v.renderStep(workflow, step)
	}

	return output
}

func (v *Visualizer) renderStep(workflow *Workflow, step *Step) string {
	connector := "•"
	if workflow.Mode == ModeSerial {
		connector = fmt.Sprintf("%d.", step.OrderIndex+1)
	}

	output := fmt.Sprintf("%s %s %s [%s]", connector, v.decisionSymbol(step.Decision),
		step.ApproverUserID, step.Decision)

	if step.Decision == DecisionPending && StepActionable(workflow, step) {
		output += " ⏳ awaiting decision"
	}

	output += "\n"

	if step.Comment != nil {
		output += fmt.Sprintf("   💬 %s\n", *step.Comment)
	}
	if step.DecidedAt != nil {
		output += fmt.Sprintf("   decided at %s\n", step.DecidedAt.Format("2006-01-02 15:04:05"))
	}

	return output
}

func (v *Visualizer) statusSymbol(status WorkflowStatus) string {
	switch status {
	case StatusApproved:
		return "✅"
	case StatusRejected:
		return "❌"
	case StatusCancelled:
		return "🚫"
	case StatusPending:
		return "⏳"
	default:
		return "❓"
	}
}

func (v *Visualizer) decisionSymbol(decision StepDecision) string {
	switch decision {
	case DecisionApproved:
		return "✅"
	case DecisionRejected:
		return "❌"
	case DecisionCancelled:
		return "⏭"
	case DecisionPending:
		return "⏸"
	default:
		return "❓"
	}
}
