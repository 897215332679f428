package signoff

import "sort"

// StepActionable reports whether the step's mode-specific preconditions for
// deciding are currently satisfied. A pending step of a pending workflow is
// always actionable in parallel mode; in serial mode every step with a
// smaller order index must already be approved.
func StepActionable(workflow *Workflow, step *Step) bool {
	if workflow.Status != StatusPending || step.Decision != DecisionPending {
		return false
	}

	if workflow.Mode == ModeParallel {
		return true
	}

	for _, s := range workflow.Steps {
		if s.OrderIndex < step.OrderIndex && s.Decision != DecisionApproved {
			return false
		}
	}

	return true
}

// ComputeStatus derives the workflow status from its steps' decisions.
// A single rejection fails the whole workflow regardless of mode; approval
// requires every step approved. In serial mode the ordering invariant makes
// "all approved" equivalent to "highest-index step approved".
func ComputeStatus(workflow *Workflow) WorkflowStatus {
	allApproved := true
	for _, step := range workflow.Steps {
		switch step.Decision {
		case DecisionRejected:
			return StatusRejected
		case DecisionApproved:
		default:
			allApproved = false
		}
	}

	if allApproved {
		return StatusApproved
	}

	return StatusPending
}

// sortSteps orders the aggregate's steps by order index.
func sortSteps(steps []*Step) {
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].OrderIndex < steps[j].OrderIndex
	})
}

// validateOrderIndexes checks that indexes are unique and contiguous from 0.
func validateOrderIndexes(indexes []int) error {
	seen := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		if idx < 0 || idx >= len(indexes) {
			return validationErrorf("order index %d out of range [0, %d)", idx, len(indexes))
		}
		if seen[idx] {
			return validationErrorf("duplicate order index: %d", idx)
		}
		seen[idx] = true
	}

	return nil
}
