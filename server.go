package signoff

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Server is a minimal read-only HTTP surface over a Postgres-backed module:
// enough to inspect approvals without mounting the full api package.
type Server struct {
	api *API
}

func NewServer(pool *pgxpool.Pool) *Server {
	return &Server{
		api: NewAPI(pool),
	}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/approvals/{id}", s.handleGetApproval)
	mux.HandleFunc("GET /api/approvals/{id}/events", s.handleGetApprovalEvents)
	mux.HandleFunc("GET /api/files/{id}/approvals", s.handleListFileApprovals)
	mux.HandleFunc("GET /api/stats/summary", s.handleGetSummaryStats)

	return mux
}

func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	workflow, err := s.api.GetApproval(ctx, id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch approval: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(workflow)
}

func (s *Server) handleGetApprovalEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	events, err := s.api.GetApprovalEvents(ctx, id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch approval events: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Server) handleListFileApprovals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := r.PathValue("id")

	workflows, err := s.api.ListFileApprovals(ctx, fileID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch approvals: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(workflows)
}

func (s *Server) handleGetSummaryStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.api.GetSummaryStats(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch summary stats: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
