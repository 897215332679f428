package api

import (
	"encoding/json"
	"net/http"

	"github.com/rom8726/signoff"
)

// ActorHeader carries the authenticated user's ID. Authentication itself
// happens upstream; handlers only require the header to be present.
const ActorHeader = "X-Actor-ID"

type Server struct {
	api     *APIService
	engine  *signoff.Engine
	plugins []Plugin
}

func NewServer(engine *signoff.Engine, query *signoff.QueryService, plugins ...Plugin) *Server {
	return &Server{
		api:     NewAPIService(engine, query),
		engine:  engine,
		plugins: plugins,
	}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	// Approval workflows
	mux.HandleFunc("POST /api/approvals", s.HandleCreateApproval)
	mux.HandleFunc("GET /api/approvals/{id}", s.HandleGetApproval)
	mux.HandleFunc("DELETE /api/approvals/{id}", s.HandleCancelApproval)
	mux.HandleFunc("GET /api/approvals/{id}/events", s.HandleGetApprovalEvents)

	// Decisions
	mux.HandleFunc("POST /api/steps/{id}/decision", s.HandleDecide)

	// Views
	mux.HandleFunc("GET /api/files/{id}/approvals", s.HandleListFileApprovals)
	mux.HandleFunc("GET /api/pending", s.HandleListPendingSteps)
	mux.HandleFunc("GET /api/stats/summary", s.HandleGetSummaryStats)

	// Folder rules
	RegisterRuleRoutes(mux, s.engine)

	for _, plugin := range s.plugins {
		plugin.RegisterRoutes(mux)
	}

	return mux
}

func (s *Server) HandleCreateApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var params signoff.CreateWorkflowParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	workflow, err := s.api.CreateApproval(ctx, params, actor)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, workflow)
}

func (s *Server) HandleGetApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	workflow, err := s.api.GetApproval(ctx, id)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, workflow)
}

func (s *Server) HandleCancelApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	workflow, err := s.api.CancelApproval(ctx, id, actor)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, workflow)
}

func (s *Server) HandleGetApprovalEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	events, err := s.api.GetApprovalEvents(ctx, id)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (s *Server) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stepID := r.PathValue("id")

	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := s.api.Decide(ctx, stepID, actor, req)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleListFileApprovals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := r.PathValue("id")

	workflows, err := s.api.ListFileApprovals(ctx, fileID)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, workflows)
}

func (s *Server) HandleListPendingSteps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	steps, err := s.api.ListPendingSteps(ctx, actor)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, steps)
}

func (s *Server) HandleGetSummaryStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.api.GetSummaryStats(ctx)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := r.Header.Get(ActorHeader)
	if actor == "" {
		http.Error(w, "Missing "+ActorHeader+" header", http.StatusBadRequest)
		return "", false
	}

	return actor, true
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}
