package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/autonoma/autonoma/internal/flow"
	"github.com/autonoma/autonoma/internal/models"
)

// defaultUpdateChannel is recorded when a progress update does not name its
// submission channel.
const defaultUpdateChannel = "api"

func (s *Server) intakeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.intakeHandler: processing intake turn")

	var req models.IntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.intakeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.intakeHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if s.intake == nil {
		slog.Warn("Server.intakeHandler: GenAI client not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("GenAI client not configured"))
		return
	}

	result, err := s.intake.Advance(r.Context(), req.Message, &req.Context)
	if err != nil {
		slog.Error("Server.intakeHandler: intake turn failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process intake message"))
		return
	}
	slog.Info("Server.intakeHandler: intake turn completed", "phase", result.Phase, "confidence", result.Confidence)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// TaskUpdateResult is the response for a submitted progress update.
type TaskUpdateResult struct {
	Update   models.Update        `json:"update"`
	Analysis *flow.UpdateAnalysis `json:"analysis,omitempty"`
	Task     models.Task          `json:"task"`
}

func (s *Server) createTaskUpdateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	slog.Debug("Server.createTaskUpdateHandler: processing update", "taskID", id)

	var req models.TaskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createTaskUpdateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createTaskUpdateHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	task, err := s.st.GetTask(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record update"))
		return
	}
	if task == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Task not found"))
		return
	}

	update := models.Update{
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		Content:   req.Content,
		Channel:   req.Channel,
	}
	if update.Channel == "" {
		update.Channel = defaultUpdateChannel
	}

	// Analysis failures never lose the update: the raw content is stored
	// and the parsed fields stay empty.
	var analysis *flow.UpdateAnalysis
	if s.analyzer != nil {
		analysis, err = s.analyzer.Analyze(r.Context(), req.Content, *task)
		if err != nil {
			slog.Warn("Server.createTaskUpdateHandler: analysis failed, storing raw update", "error", err, "taskID", id)
			analysis = nil
		}
	}
	if analysis != nil {
		update.ParsedProgress = analysis.ProgressPercentage
		update.ParsedStatus = analysis.NewStatus
		update.ParsedBlockers = analysis.Blockers
	}

	if err := s.st.CreateUpdate(&update); err != nil {
		slog.Error("Server.createTaskUpdateHandler: update insert failed", "error", err, "taskID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record update"))
		return
	}

	if analysis != nil && models.IsValidTaskStatus(analysis.NewStatus) && analysis.NewStatus != task.Status {
		applyTaskStatus(task, analysis.NewStatus)
		if err := s.st.UpdateTask(task); err != nil {
			slog.Error("Server.createTaskUpdateHandler: task status update failed", "error", err, "taskID", id)
		} else {
			slog.Info("Server.createTaskUpdateHandler: task status changed from update", "taskID", id, "status", task.Status)
		}
	}

	if analysis != nil && (len(analysis.Blockers) > 0 || analysis.Sentiment == "concerning") {
		s.maybeEscalate(r, task.ProjectID, task.ID, analysis.Blockers)
	}

	writeJSONResponse(w, http.StatusCreated, models.Success(TaskUpdateResult{
		Update:   update,
		Analysis: analysis,
		Task:     *task,
	}))
}

// maybeEscalate asks the advisor whether a concerning update warrants an
// escalation and records one if so. Advisory failures are logged and
// swallowed; the update itself already succeeded.
func (s *Server) maybeEscalate(r *http.Request, projectID, taskID string, issues []string) {
	if s.advisor == nil {
		return
	}
	project, err := s.st.GetProject(projectID)
	if err != nil || project == nil {
		return
	}
	summary, err := s.projectStatusSummary(*project, issues)
	if err != nil {
		slog.Warn("Server.maybeEscalate: status summary failed", "error", err, "projectID", projectID)
		return
	}
	rec, err := s.advisor.Recommend(r.Context(), summary)
	if err != nil {
		slog.Warn("Server.maybeEscalate: advisor failed", "error", err, "projectID", projectID)
		return
	}
	if !rec.ShouldEscalate {
		slog.Debug("Server.maybeEscalate: no escalation recommended", "projectID", projectID)
		return
	}
	esc := &models.Escalation{
		ProjectID:         projectID,
		TaskID:            taskID,
		TriggerType:       rec.TriggerType,
		Severity:          rec.Severity,
		Description:       rec.Message,
		RecommendedAction: rec.RecommendedAction,
		Status:            models.EscalationStatusOpen,
	}
	if err := s.st.CreateEscalation(esc); err != nil {
		slog.Error("Server.maybeEscalate: escalation insert failed", "error", err, "projectID", projectID)
		return
	}
	slog.Info("Server.maybeEscalate: escalation created", "projectID", projectID, "escalationID", esc.ID, "severity", esc.Severity)
	s.sendEscalationAlert(*project, *esc)
}

// projectStatusSummary condenses live project state for the advisor.
func (s *Server) projectStatusSummary(project models.Project, extraIssues []string) (flow.ProjectStatusSummary, error) {
	score, err := s.computeHealth(project.ID)
	if err != nil {
		return flow.ProjectStatusSummary{}, err
	}
	tasks, err := s.st.ListTasks(project.ID)
	if err != nil {
		return flow.ProjectStatusSummary{}, err
	}
	var overdue, blocked int
	now := time.Now()
	for _, t := range tasks {
		if t.DueDate != nil && t.DueDate.Before(now) && t.Status != models.TaskStatusCompleted {
			overdue++
		}
		if t.Status == models.TaskStatusBlocked {
			blocked++
		}
	}
	issues := append([]string(nil), extraIssues...)
	escalations, err := s.st.ListEscalations(project.ID)
	if err != nil {
		return flow.ProjectStatusSummary{}, err
	}
	for _, e := range escalations {
		if e.Status == models.EscalationStatusOpen && e.Description != "" {
			issues = append(issues, e.Description)
		}
	}
	return flow.ProjectStatusSummary{
		Name:         project.Name,
		HealthScore:  score.Overall,
		OverdueTasks: overdue,
		BlockedTasks: blocked,
		RecentIssues: issues,
	}, nil
}

// sendEscalationAlert notifies the configured recipient about an escalation.
func (s *Server) sendEscalationAlert(project models.Project, esc models.Escalation) {
	if s.escalateTo == "" {
		slog.Debug("Server.sendEscalationAlert: no escalation recipient configured", "projectID", project.ID)
		return
	}
	if err := s.notifier.SendEscalation(s.escalateTo, project, esc); err != nil {
		slog.Error("Server.sendEscalationAlert: notification failed", "error", err, "projectID", project.ID)
	}
}
