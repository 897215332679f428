package signoff

import (
	"context"
)

// IEngine is the narrow surface plugins and external dispatchers need: the
// decision operation itself.
type IEngine interface {
	Decide(
		ctx context.Context,
		stepID string,
		actorID string,
		decision Decision,
		comment *string,
	) (*Step, *Workflow, error)
}

var _ IEngine = (*Engine)(nil)
