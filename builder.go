package signoff

import (
	"errors"
	"fmt"
)

// ApprovalBuilder assembles CreateWorkflowParams fluently:
//
//	params, err := NewApprovalBuilder("file-1").
//		Serial().
//		Resolution("Contract requires legal sign-off").
//		Approver("legal").
//		Approver("cfo").
//		Build()
type ApprovalBuilder struct {
	fileID     string
	mode       WorkflowMode
	resolution *string
	approvers  []ApproverSpec
}

func NewApprovalBuilder(fileID string, opts ...BuilderOption) *ApprovalBuilder {
	builder := &ApprovalBuilder{
		fileID: fileID,
		mode:   ModeParallel,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder
}

func (builder *ApprovalBuilder) Parallel() *ApprovalBuilder {
	builder.mode = ModeParallel

	return builder
}

func (builder *ApprovalBuilder) Serial() *ApprovalBuilder {
	builder.mode = ModeSerial

	return builder
}

func (builder *ApprovalBuilder) Resolution(text string) *ApprovalBuilder {
	builder.resolution = &text

	return builder
}

// Approver appends one approver. The order index defaults to the position
// in the call sequence; override it with WithApproverOrder.
func (builder *ApprovalBuilder) Approver(userID string, opts ...ApproverOption) *ApprovalBuilder {
	spec := ApproverSpec{
		UserID:     userID,
		OrderIndex: len(builder.approvers),
	}

	for _, opt := range opts {
		opt(&spec)
	}

	builder.approvers = append(builder.approvers, spec)

	return builder
}

func (builder *ApprovalBuilder) Build() (CreateWorkflowParams, error) {
	if builder.fileID == "" {
		return CreateWorkflowParams{}, errors.New("file ID is required")
	}

	if len(builder.approvers) == 0 {
		return CreateWorkflowParams{}, errors.New("at least one approver is required")
	}

	seen := make(map[string]bool, len(builder.approvers))
	for _, approver := range builder.approvers {
		if seen[approver.UserID] {
			return CreateWorkflowParams{}, fmt.Errorf("duplicate approver: %s", approver.UserID)
		}
		seen[approver.UserID] = true
	}

	return CreateWorkflowParams{
		FileID:         builder.fileID,
		Mode:           builder.mode,
		ResolutionText: builder.resolution,
		Approvers:      builder.approvers,
	}, nil
}
