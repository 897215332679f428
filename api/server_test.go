package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rom8726/signoff"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := signoff.NewMemoryStore()
	engine := signoff.NewEngine(signoff.NewMemoryTxManager(), store)

	server := NewServer(engine, signoff.NewQueryService(store))
	testServer := httptest.NewServer(server.Mux())
	t.Cleanup(testServer.Close)

	return testServer
}

func doJSON(t *testing.T, method, url, actor string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func createApproval(t *testing.T, baseURL string, mode signoff.WorkflowMode, users ...string) signoff.Workflow {
	t.Helper()

	specs := make([]signoff.ApproverSpec, 0, len(users))
	for i, user := range users {
		specs = append(specs, signoff.ApproverSpec{UserID: user, OrderIndex: i})
	}

	resp := doJSON(t, http.MethodPost, baseURL+"/api/approvals", "creator", signoff.CreateWorkflowParams{
		FileID:    "file-1",
		Mode:      mode,
		Approvers: specs,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workflow signoff.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workflow))

	return workflow
}

func TestCreateAndDecideOverHTTP(t *testing.T) {
	server := newTestServer(t)

	workflow := createApproval(t, server.URL, signoff.ModeParallel, "alice", "bob")
	require.Len(t, workflow.Steps, 2)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/steps/"+workflow.Steps[0].ID+"/decision",
		"alice", DecisionRequest{Decision: signoff.DecisionApprove})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decided DecisionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decided))
	assert.Equal(t, signoff.DecisionApproved, decided.Step.Decision)
	assert.Equal(t, signoff.StatusPending, decided.Workflow.Status)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/steps/"+workflow.Steps[1].ID+"/decision",
		"bob", DecisionRequest{Decision: signoff.DecisionApprove})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decided))
	assert.Equal(t, signoff.StatusApproved, decided.Workflow.Status)
}

func TestErrorStatusMapping(t *testing.T) {
	server := newTestServer(t)

	workflow := createApproval(t, server.URL, signoff.ModeSerial, "alice", "bob")

	// Missing actor header.
	resp := doJSON(t, http.MethodPost, server.URL+"/api/steps/"+workflow.Steps[0].ID+"/decision",
		"", DecisionRequest{Decision: signoff.DecisionApprove})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Wrong actor.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/steps/"+workflow.Steps[0].ID+"/decision",
		"mallory", DecisionRequest{Decision: signoff.DecisionApprove})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Out of turn in serial mode.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/steps/"+workflow.Steps[1].ID+"/decision",
		"bob", DecisionRequest{Decision: signoff.DecisionApprove})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown step.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/steps/missing/decision",
		"alice", DecisionRequest{Decision: signoff.DecisionApprove})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Invalid create payload.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/approvals", "creator",
		signoff.CreateWorkflowParams{FileID: "file-1", Mode: "majority"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown workflow.
	resp = doJSON(t, http.MethodGet, server.URL+"/api/approvals/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelOverHTTP(t *testing.T) {
	server := newTestServer(t)

	workflow := createApproval(t, server.URL, signoff.ModeParallel, "alice")

	resp := doJSON(t, http.MethodDelete, server.URL+"/api/approvals/"+workflow.ID, "creator", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cancelled signoff.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cancelled))
	assert.Equal(t, signoff.StatusCancelled, cancelled.Status)

	// Already terminal.
	resp = doJSON(t, http.MethodDelete, server.URL+"/api/approvals/"+workflow.ID, "creator", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPendingStepsAndEventsOverHTTP(t *testing.T) {
	server := newTestServer(t)

	workflow := createApproval(t, server.URL, signoff.ModeParallel, "alice", "bob")

	resp := doJSON(t, http.MethodGet, server.URL+"/api/pending", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var steps []signoff.Step
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&steps))
	require.Len(t, steps, 1)
	assert.Equal(t, workflow.ID, steps[0].WorkflowID)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/approvals/"+workflow.ID+"/events", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []signoff.WorkflowEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.NotEmpty(t, events)
	assert.Equal(t, signoff.EventWorkflowCreated, events[0].EventType)
}

func TestFolderRulesOverHTTP(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/folder-rules", "admin",
		signoff.CreateFolderRuleParams{
			FolderID: "folder-1",
			Mode:     signoff.ModeParallel,
			Active:   true,
			Approvers: []signoff.RuleApprover{
				{UserID: "alice", OrderIndex: 0},
			},
		})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule signoff.FolderRule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rule))

	resp = doJSON(t, http.MethodGet, server.URL+"/api/folder-rules?folder_id=folder-1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rules []signoff.FolderRule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rules))
	require.Len(t, rules, 1)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/folders/folder-1/auto-create", "uploader",
		AutoCreateRequest{FileID: "file-7"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workflow signoff.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workflow))
	assert.Equal(t, "file-7", workflow.FileID)

	resp = doJSON(t, http.MethodDelete, server.URL+"/api/folder-rules/"+rule.ID, "admin", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/folders/folder-1/rule", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSummaryStatsOverHTTP(t *testing.T) {
	server := newTestServer(t)

	createApproval(t, server.URL, signoff.ModeParallel, "alice")

	resp := doJSON(t, http.MethodGet, server.URL+"/api/stats/summary", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats signoff.SummaryStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, uint(1), stats.TotalWorkflows)
	assert.Equal(t, uint(1), stats.PendingWorkflows)
}
