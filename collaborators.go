package signoff

import "context"

// UserDirectory resolves approver ids before a workflow is created.
// Identity and session mechanics live outside the engine.
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// FileRegistry verifies that the document under approval exists.
type FileRegistry interface {
	FileExists(ctx context.Context, fileID string) (bool, error)
}

// FolderTree exposes the folder hierarchy for rule resolution. ParentFolder
// returns "" for a root folder.
type FolderTree interface {
	ParentFolder(ctx context.Context, folderID string) (string, error)
}

// Notifier receives transition notifications for delivery. The engine calls
// it after commit and ignores failures beyond logging them.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// CancelPolicy decides who may cancel a workflow. The engine itself only
// enforces the state precondition.
type CancelPolicy func(workflow *Workflow, actorID string) error

// CreatorOnlyCancelPolicy allows only the workflow's creator to cancel it.
func CreatorOnlyCancelPolicy(workflow *Workflow, actorID string) error {
	if workflow.CreatedBy != actorID {
		return &AuthorizationError{Reason: "only the creator can cancel the workflow"}
	}

	return nil
}
