package signoff

type ApproverOption func(spec *ApproverSpec)

func WithApproverOrder(orderIndex int) ApproverOption {
	return func(spec *ApproverSpec) {
		spec.OrderIndex = orderIndex
	}
}

type BuilderOption func(builder *ApprovalBuilder)

func WithBuilderMode(mode WorkflowMode) BuilderOption {
	return func(builder *ApprovalBuilder) {
		builder.mode = mode
	}
}
