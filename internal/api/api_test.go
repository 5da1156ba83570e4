package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/autonoma/autonoma/internal/models"
	"github.com/autonoma/autonoma/internal/store"
	"github.com/openai/openai-go"
)

// mockGenAI returns scripted replies in order. Once the script is exhausted
// it keeps returning the last reply.
type mockGenAI struct {
	replies []string
	err     error
	calls   int
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, maxTokens int64) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", errors.New("mock has no reply configured")
	}
	idx := m.calls - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return m.replies[idx], nil
}

const charterReply = `{
  "executive_summary": "Build the new onboarding flow.",
  "objectives": [{"description": "Ship v1", "measurable_target": "live by Q4"}],
  "scope": {"in_scope": ["signup"], "out_of_scope": ["billing"]},
  "stakeholders": [{"name": "Dana", "role": "Sponsor", "raci_level": "accountable"}],
  "timeline": [{"name": "Design complete", "description": "Mockups approved", "target_date": "2026-10-01", "status": "pending", "completion_percentage": 0}],
  "risks": [{"description": "Scope creep", "probability": "medium", "impact": "high", "mitigation": "Weekly review", "status": "identified"}],
  "communication_plan": "Weekly standup notes.",
  "success_metrics": ["activation rate"]
}`

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func strPtr(s string) *string { return &s }

func createProjectRequest() models.CreateProjectRequest {
	return models.CreateProjectRequest{
		ProjectData: models.ProjectIntakeData{
			Name:      strPtr("Onboarding Revamp"),
			Objective: strPtr("Improve new user activation"),
		},
	}
}

func TestServiceHealthEndpoint(t *testing.T) {
	srv := NewServer(store.NewInMemoryStore(), nil, nil)
	rec, resp := doRequest(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(resp.Result, &body); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if body["ai_enabled"] {
		t.Error("ai_enabled = true without a GenAI client")
	}
}

func TestCreateProjectSuccess(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, &mockGenAI{replies: []string{charterReply}}, nil)
	h := srv.Handler()

	rec, resp := doRequest(t, h, http.MethodPost, "/projects", createProjectRequest())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var detail ProjectDetail
	if err := json.Unmarshal(resp.Result, &detail); err != nil {
		t.Fatalf("failed to decode project detail: %v", err)
	}
	if detail.Project.Name != "Onboarding Revamp" {
		t.Errorf("project name = %q", detail.Project.Name)
	}
	if detail.Project.Status != models.ProjectStatusActive {
		t.Errorf("project status = %q, want active", detail.Project.Status)
	}
	if detail.Project.HealthScore != initialHealthScore {
		t.Errorf("health score = %d, want %d", detail.Project.HealthScore, initialHealthScore)
	}
	// No team size in intake, so the default classifies as small.
	if detail.Project.Scale != models.ScaleSmall {
		t.Errorf("scale = %q, want small", detail.Project.Scale)
	}
	if detail.Charter == nil || detail.Charter.Version != 1 {
		t.Fatalf("charter = %+v, want version 1", detail.Charter)
	}

	milestones, err := st.ListMilestones(detail.Project.ID)
	if err != nil || len(milestones) != 1 {
		t.Errorf("milestones = %v (err %v), want 1 from charter", milestones, err)
	}
	risks, _ := st.ListRisks(detail.Project.ID)
	if len(risks) != 1 {
		t.Errorf("risks = %d, want 1 from charter", len(risks))
	}
	stakeholders, _ := st.ListStakeholders(detail.Project.ID)
	if len(stakeholders) != 1 {
		t.Errorf("stakeholders = %d, want 1 from charter", len(stakeholders))
	}
}

func TestCreateProjectCharterFailureBlocksCreation(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, &mockGenAI{err: errors.New("model unavailable")}, nil)
	h := srv.Handler()

	rec, _ := doRequest(t, h, http.MethodPost, "/projects", createProjectRequest())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	projects, _ := st.ListProjects()
	if len(projects) != 0 {
		t.Errorf("expected no projects after charter failure, got %d", len(projects))
	}
}

func TestCreateProjectValidation(t *testing.T) {
	srv := NewServer(store.NewInMemoryStore(), &mockGenAI{replies: []string{charterReply}}, nil)
	h := srv.Handler()

	req := models.CreateProjectRequest{ProjectData: models.ProjectIntakeData{Objective: strPtr("x")}}
	rec, resp := doRequest(t, h, http.MethodPost, "/projects", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Message != models.ErrMissingProjectName.Error() {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestCreateProjectWithoutGenAI(t *testing.T) {
	srv := NewServer(store.NewInMemoryStore(), nil, nil)
	rec, _ := doRequest(t, srv.Handler(), http.MethodPost, "/projects", createProjectRequest())
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without GenAI client", rec.Code)
	}
}

func TestIntakeTurn(t *testing.T) {
	reply := `{"response": "Great, what is the objective?", "extractedData": {"name": "CRM Migration"}, "phase": "clarification", "confidence": 0.8}`
	srv := NewServer(store.NewInMemoryStore(), &mockGenAI{replies: []string{reply}}, nil)
	h := srv.Handler()

	req := models.IntakeRequest{Message: "I want to migrate our CRM"}
	rec, resp := doRequest(t, h, http.MethodPost, "/intake", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Response      string                   `json:"response"`
		ExtractedData models.ProjectIntakeData `json:"extractedData"`
		Phase         models.ConversationPhase `json:"phase"`
		Confidence    float64                  `json:"confidence"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to decode turn result: %v", err)
	}
	if result.ExtractedData.Name == nil || *result.ExtractedData.Name != "CRM Migration" {
		t.Errorf("extracted name = %v", result.ExtractedData.Name)
	}
	if result.Phase != models.PhaseClarification {
		t.Errorf("phase = %q, want clarification", result.Phase)
	}
	if result.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", result.Confidence)
	}
}

func TestIntakeValidation(t *testing.T) {
	srv := NewServer(store.NewInMemoryStore(), &mockGenAI{replies: []string{"{}"}}, nil)
	rec, resp := doRequest(t, srv.Handler(), http.MethodPost, "/intake", models.IntakeRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Message != models.ErrEmptyMessage.Error() {
		t.Errorf("message = %q", resp.Message)
	}
}

func seedProject(t *testing.T, st *store.InMemoryStore) *models.Project {
	t.Helper()
	p := &models.Project{
		Name:      "Seeded",
		Objective: "Test objective",
		Status:    models.ProjectStatusActive,
		Scale:     models.ScaleSmall,
	}
	if err := st.CreateProject(p); err != nil {
		t.Fatalf("seed project failed: %v", err)
	}
	return p
}

func TestTaskLifecycle(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, nil, nil)
	h := srv.Handler()
	p := seedProject(t, st)

	createReq := models.CreateTaskRequest{
		ProjectID: p.ID,
		Title:     "Write migration script",
		Priority:  models.PriorityHigh,
		DueDate:   time.Now().Add(72 * time.Hour).Format(time.RFC3339),
	}
	rec, resp := doRequest(t, h, http.MethodPost, "/tasks", createReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var task models.Task
	if err := json.Unmarshal(resp.Result, &task); err != nil {
		t.Fatalf("failed to decode task: %v", err)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("new task status = %q, want pending", task.Status)
	}
	if task.DueDate == nil {
		t.Error("expected due date to be parsed")
	}

	completed := models.TaskStatusCompleted
	rec, resp = doRequest(t, h, http.MethodPatch, "/tasks/"+task.ID, models.TaskPatch{Status: &completed})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(resp.Result, &task); err != nil {
		t.Fatalf("failed to decode patched task: %v", err)
	}
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("patched status = %q, want completed", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected completed_at to be stamped on completion")
	}

	// Moving back out of completed clears the completion time.
	inProgress := models.TaskStatusInProgress
	_, resp = doRequest(t, h, http.MethodPatch, "/tasks/"+task.ID, models.TaskPatch{Status: &inProgress})
	var reopened models.Task
	if err := json.Unmarshal(resp.Result, &reopened); err != nil {
		t.Fatalf("failed to decode re-patched task: %v", err)
	}
	if reopened.CompletedAt != nil {
		t.Error("expected completed_at to be cleared when leaving completed")
	}

	rec, _ = doRequest(t, h, http.MethodDelete, "/tasks/"+task.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec, _ = doRequest(t, h, http.MethodGet, "/tasks/"+task.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestTaskPatchValidation(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, nil, nil)
	p := seedProject(t, st)
	task := &models.Task{ProjectID: p.ID, Title: "T", Status: models.TaskStatusPending, Priority: models.PriorityNormal}
	if err := st.CreateTask(task); err != nil {
		t.Fatalf("seed task failed: %v", err)
	}

	bogus := models.TaskStatus("bogus")
	rec, resp := doRequest(t, srv.Handler(), http.MethodPatch, "/tasks/"+task.ID, models.TaskPatch{Status: &bogus})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Message != models.ErrInvalidTaskStatus.Error() {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestTaskUpdateWithAnalysis(t *testing.T) {
	analysisReply := `{"progress_percentage": 60, "new_status": "in_progress", "blockers": [], "sentiment": "positive", "summary": "On track."}`
	st := store.NewInMemoryStore()
	srv := NewServer(st, &mockGenAI{replies: []string{analysisReply}}, nil)
	h := srv.Handler()
	p := seedProject(t, st)
	task := &models.Task{ProjectID: p.ID, Title: "T", Status: models.TaskStatusPending, Priority: models.PriorityNormal}
	if err := st.CreateTask(task); err != nil {
		t.Fatalf("seed task failed: %v", err)
	}

	rec, resp := doRequest(t, h, http.MethodPost, fmt.Sprintf("/tasks/%s/updates", task.ID), models.TaskUpdateRequest{Content: "made good progress today"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var result TaskUpdateResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to decode update result: %v", err)
	}
	if result.Analysis == nil || result.Analysis.ProgressPercentage != 60 {
		t.Fatalf("analysis = %+v", result.Analysis)
	}
	if result.Update.ParsedProgress != 60 || result.Update.ParsedStatus != models.TaskStatusInProgress {
		t.Errorf("parsed fields not stored: %+v", result.Update)
	}
	if result.Update.Channel != defaultUpdateChannel {
		t.Errorf("channel = %q, want default", result.Update.Channel)
	}

	// The analyzed status is applied to the task.
	got, _ := st.GetTask(task.ID)
	if got.Status != models.TaskStatusInProgress {
		t.Errorf("task status = %q, want in_progress after analyzed update", got.Status)
	}
}

func TestTaskUpdateSurvivesAnalysisFailure(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, &mockGenAI{err: errors.New("model down")}, nil)
	h := srv.Handler()
	p := seedProject(t, st)
	task := &models.Task{ProjectID: p.ID, Title: "T", Status: models.TaskStatusPending, Priority: models.PriorityNormal}
	if err := st.CreateTask(task); err != nil {
		t.Fatalf("seed task failed: %v", err)
	}

	rec, resp := doRequest(t, h, http.MethodPost, fmt.Sprintf("/tasks/%s/updates", task.ID), models.TaskUpdateRequest{Content: "update text", Channel: "web"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want update stored despite analysis failure: %s", rec.Code, rec.Body.String())
	}
	var result TaskUpdateResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to decode update result: %v", err)
	}
	if result.Analysis != nil {
		t.Error("expected no analysis when the model call fails")
	}
	updates, _ := st.ListUpdates(task.ID)
	if len(updates) != 1 || updates[0].Content != "update text" {
		t.Errorf("raw update not stored: %+v", updates)
	}
}

func TestProjectHealthEndpoint(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, nil, nil)
	h := srv.Handler()
	p := seedProject(t, st)

	rec, resp := doRequest(t, h, http.MethodGet, fmt.Sprintf("/projects/%s/health", p.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var score models.HealthScore
	if err := json.Unmarshal(resp.Result, &score); err != nil {
		t.Fatalf("failed to decode health score: %v", err)
	}
	if score.Timeline != 100 || score.Quality != 50 {
		t.Errorf("empty project score = %+v, want timeline 100 quality 50", score)
	}
	if score.Stakeholder != 75 {
		t.Errorf("stakeholder = %d, want placeholder 75", score.Stakeholder)
	}

	rec, _ = doRequest(t, h, http.MethodGet, "/projects/missing/health", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing project status = %d, want 404", rec.Code)
	}
}

func TestAdviseEscalationCreatesRecord(t *testing.T) {
	recReply := `{"should_escalate": true, "severity": "high", "trigger_type": "timeline", "recommended_action": "Add a second engineer", "message": "Timeline at risk."}`
	st := store.NewInMemoryStore()
	srv := NewServer(st, &mockGenAI{replies: []string{recReply}}, nil)
	h := srv.Handler()
	p := seedProject(t, st)

	rec, resp := doRequest(t, h, http.MethodPost, fmt.Sprintf("/projects/%s/escalations/advise", p.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var advice EscalationAdvice
	if err := json.Unmarshal(resp.Result, &advice); err != nil {
		t.Fatalf("failed to decode advice: %v", err)
	}
	if !advice.Recommendation.ShouldEscalate {
		t.Fatal("expected should_escalate true")
	}
	if advice.Escalation == nil || advice.Escalation.Severity != models.SeverityHigh {
		t.Fatalf("escalation = %+v", advice.Escalation)
	}

	escalations, _ := st.ListEscalations(p.ID)
	if len(escalations) != 1 || escalations[0].Status != models.EscalationStatusOpen {
		t.Errorf("stored escalations = %+v", escalations)
	}
}

func TestAdviseEscalationNoActionNeeded(t *testing.T) {
	recReply := `{"should_escalate": false, "severity": "low", "trigger_type": "timeline", "recommended_action": "None", "message": "Healthy."}`
	st := store.NewInMemoryStore()
	srv := NewServer(st, &mockGenAI{replies: []string{recReply}}, nil)
	p := seedProject(t, st)

	rec, resp := doRequest(t, srv.Handler(), http.MethodPost, fmt.Sprintf("/projects/%s/escalations/advise", p.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var advice EscalationAdvice
	if err := json.Unmarshal(resp.Result, &advice); err != nil {
		t.Fatalf("failed to decode advice: %v", err)
	}
	if advice.Escalation != nil {
		t.Error("expected no escalation record when not recommended")
	}
	escalations, _ := st.ListEscalations(p.ID)
	if len(escalations) != 0 {
		t.Errorf("expected no stored escalations, got %d", len(escalations))
	}
}

func TestPatchEscalationResolution(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, nil, nil)
	p := seedProject(t, st)
	esc := &models.Escalation{ProjectID: p.ID, TriggerType: models.TriggerQuality, Severity: models.SeverityMedium, Status: models.EscalationStatusOpen}
	if err := st.CreateEscalation(esc); err != nil {
		t.Fatalf("seed escalation failed: %v", err)
	}

	resolved := models.EscalationStatusResolved
	rec, resp := doRequest(t, srv.Handler(), http.MethodPatch, "/escalations/"+esc.ID, map[string]interface{}{"status": resolved})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got models.Escalation
	if err := json.Unmarshal(resp.Result, &got); err != nil {
		t.Fatalf("failed to decode escalation: %v", err)
	}
	if got.Status != models.EscalationStatusResolved || got.ResolvedAt == nil {
		t.Errorf("escalation after patch = %+v", got)
	}
}

func TestProjectDetailIncludesHealth(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, nil, nil)
	h := srv.Handler()
	p := seedProject(t, st)

	rec, resp := doRequest(t, h, http.MethodGet, "/projects/"+p.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var detail ProjectDetail
	if err := json.Unmarshal(resp.Result, &detail); err != nil {
		t.Fatalf("failed to decode detail: %v", err)
	}
	if detail.Health.Overall == 0 && detail.Health.Timeline == 0 {
		t.Errorf("health missing from detail: %+v", detail.Health)
	}
	if detail.Project.HealthScore != detail.Health.Overall {
		t.Errorf("project health %d does not match computed overall %d", detail.Project.HealthScore, detail.Health.Overall)
	}
}

func TestListProjectsIncludesTaskCounts(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, nil, nil)
	p := seedProject(t, st)
	for i, status := range []models.TaskStatus{models.TaskStatusCompleted, models.TaskStatusPending} {
		task := &models.Task{ProjectID: p.ID, Title: fmt.Sprintf("T%d", i), Status: status, Priority: models.PriorityNormal}
		if err := st.CreateTask(task); err != nil {
			t.Fatalf("seed task failed: %v", err)
		}
	}

	rec, resp := doRequest(t, srv.Handler(), http.MethodGet, "/projects", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var summaries []ProjectSummary
	if err := json.Unmarshal(resp.Result, &summaries); err != nil {
		t.Fatalf("failed to decode summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	if summaries[0].TasksTotal != 2 || summaries[0].TasksCompleted != 1 {
		t.Errorf("task counts = %d/%d, want 2 total 1 completed", summaries[0].TasksTotal, summaries[0].TasksCompleted)
	}
}
