package signoff

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type CreateFolderRuleParams struct {
	FolderID          string         `json:"folder_id"`
	Mode              WorkflowMode   `json:"mode"`
	ResolutionText    *string        `json:"resolution_text"`
	ApplyToSubfolders bool           `json:"apply_to_subfolders"`
	Active            bool           `json:"active"`
	Approvers         []RuleApprover `json:"approvers"`
}

// CreateFolderRule registers an automated approval rule: files landing in
// the folder (and, optionally, its subfolders) get a workflow created from
// the rule's approver list.
func (engine *Engine) CreateFolderRule(
	ctx context.Context,
	params CreateFolderRuleParams,
	createdBy string,
) (*FolderRule, error) {
	if !params.Mode.Valid() {
		return nil, validationErrorf("unknown mode: %q", params.Mode)
	}

	if len(params.Approvers) == 0 {
		return nil, validationErrorf("approver list is empty")
	}

	indexes := make([]int, 0, len(params.Approvers))
	for _, approver := range params.Approvers {
		indexes = append(indexes, approver.OrderIndex)
	}
	if err := validateOrderIndexes(indexes); err != nil {
		return nil, err
	}

	if engine.directory != nil {
		for _, approver := range params.Approvers {
			ok, err := engine.directory.UserExists(ctx, approver.UserID)
			if err != nil {
				return nil, fmt.Errorf("check approver: %w", err)
			}
			if !ok {
				return nil, validationErrorf("unknown approver: %s", approver.UserID)
			}
		}
	}

	now := engine.now()
	rule := &FolderRule{
		ID:                uuid.NewString(),
		FolderID:          params.FolderID,
		Mode:              params.Mode,
		ResolutionText:    params.ResolutionText,
		ApplyToSubfolders: params.ApplyToSubfolders,
		Active:            params.Active,
		CreatedBy:         createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
		Approvers:         params.Approvers,
	}

	err := engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		if err := engine.store.CreateFolderRule(ctx, rule); err != nil {
			return &StoreError{Op: "create folder rule", Err: err}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (engine *Engine) GetFolderRule(ctx context.Context, ruleID string) (*FolderRule, error) {
	rule, err := engine.store.GetFolderRule(ctx, ruleID)
	if err != nil {
		return nil, notFoundOrStore(err, "folder rule", ruleID, "get folder rule")
	}

	return rule, nil
}

// ListFolderRules lists rules, optionally restricted to one folder.
func (engine *Engine) ListFolderRules(ctx context.Context, folderID string) ([]*FolderRule, error) {
	rules, err := engine.store.ListFolderRules(ctx, folderID)
	if err != nil {
		return nil, &StoreError{Op: "list folder rules", Err: err}
	}

	return rules, nil
}

type UpdateFolderRuleParams struct {
	Mode              *WorkflowMode  `json:"mode"`
	ResolutionText    *string        `json:"resolution_text"`
	ApplyToSubfolders *bool          `json:"apply_to_subfolders"`
	Active            *bool          `json:"active"`
	Approvers         []RuleApprover `json:"approvers"`
}

// UpdateFolderRule applies a partial update; nil fields keep their value.
func (engine *Engine) UpdateFolderRule(
	ctx context.Context,
	ruleID string,
	params UpdateFolderRuleParams,
) (*FolderRule, error) {
	var rule *FolderRule

	err := engine.txManager.ReadCommitted(ctx, func(ctx context.Context) error {
		var err error
		rule, err = engine.store.GetFolderRule(ctx, ruleID)
		if err != nil {
			return notFoundOrStore(err, "folder rule", ruleID, "get folder rule")
		}

		if params.Mode != nil {
			if !params.Mode.Valid() {
				return validationErrorf("unknown mode: %q", *params.Mode)
			}
			rule.Mode = *params.Mode
		}
		if params.ResolutionText != nil {
			rule.ResolutionText = params.ResolutionText
		}
		if params.ApplyToSubfolders != nil {
			rule.ApplyToSubfolders = *params.ApplyToSubfolders
		}
		if params.Active != nil {
			rule.Active = *params.Active
		}
		if params.Approvers != nil {
			indexes := make([]int, 0, len(params.Approvers))
			for _, approver := range params.Approvers {
				indexes = append(indexes, approver.OrderIndex)
			}
			if err := validateOrderIndexes(indexes); err != nil {
				return err
			}
			rule.Approvers = params.Approvers
		}
		rule.UpdatedAt = engine.now()

		if err := engine.store.UpdateFolderRule(ctx, rule); err != nil {
			return &StoreError{Op: "update folder rule", Err: err}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (engine *Engine) DeleteFolderRule(ctx context.Context, ruleID string) error {
	err := engine.store.DeleteFolderRule(ctx, ruleID)
	if err != nil {
		return notFoundOrStore(err, "folder rule", ruleID, "delete folder rule")
	}

	return nil
}

// ApplicableRule resolves the rule governing a folder: the folder's own
// active rule wins; otherwise the nearest ancestor rule with
// apply_to_subfolders set. Returns nil when no rule applies.
func (engine *Engine) ApplicableRule(ctx context.Context, folderID string) (*FolderRule, error) {
	rule, err := engine.store.GetActiveRuleByFolder(ctx, folderID)
	if err == nil {
		return rule, nil
	}
	if !isNotFound(err) {
		return nil, &StoreError{Op: "get active rule", Err: err}
	}

	if engine.folders == nil {
		return nil, nil
	}

	current := folderID
	for {
		parent, err := engine.folders.ParentFolder(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("resolve parent folder: %w", err)
		}
		if parent == "" {
			return nil, nil
		}

		rule, err := engine.store.GetActiveRuleByFolder(ctx, parent)
		if err == nil {
			if rule.ApplyToSubfolders {
				return rule, nil
			}
		} else if !isNotFound(err) {
			return nil, &StoreError{Op: "get active rule", Err: err}
		}

		current = parent
	}
}

// AutoCreateForFile creates a workflow for a freshly uploaded file when a
// folder rule applies. Returns nil without error when no rule governs the
// folder.
func (engine *Engine) AutoCreateForFile(
	ctx context.Context,
	fileID, folderID, createdBy string,
) (*Workflow, error) {
	rule, err := engine.ApplicableRule(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if rule == nil || len(rule.Approvers) == 0 {
		return nil, nil
	}

	resolution := rule.ResolutionText
	if resolution == nil {
		text := "Automatic approval required"
		resolution = &text
	}

	approvers := make([]ApproverSpec, 0, len(rule.Approvers))
	for _, approver := range rule.Approvers {
		approvers = append(approvers, ApproverSpec{
			UserID:     approver.UserID,
			OrderIndex: approver.OrderIndex,
		})
	}

	return engine.Create(ctx, CreateWorkflowParams{
		FileID:         fileID,
		Mode:           rule.Mode,
		ResolutionText: resolution,
		Approvers:      approvers,
	}, createdBy)
}
