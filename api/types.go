package api

import (
	"net/http"

	"github.com/rom8726/signoff"
)

type Plugin interface {
	Name() string
	Description() string
	RegisterRoutes(mux *http.ServeMux)
}

// DecisionRequest is the body of POST /api/steps/{id}/decision.
type DecisionRequest struct {
	Decision signoff.Decision `json:"decision"`
	Comment  *string          `json:"comment,omitempty"`
}

// AutoCreateRequest is the body of POST /api/folders/{id}/auto-create.
type AutoCreateRequest struct {
	FileID string `json:"file_id"`
}

// DecisionResponse carries the decided step plus the workflow state the
// decision left behind, so clients see a terminal transition immediately.
type DecisionResponse struct {
	Step     *signoff.Step     `json:"step"`
	Workflow *signoff.Workflow `json:"workflow"`
}
