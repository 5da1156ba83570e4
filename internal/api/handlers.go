// Package api provides HTTP handlers for Autonoma endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/autonoma/autonoma/internal/models"
)

// initialHealthScore is assigned to a freshly chartered project before any
// live data exists to score it.
const initialHealthScore = 85

// ProjectSummary is a project list entry with task counts.
type ProjectSummary struct {
	models.Project
	TasksTotal     int `json:"tasks_total"`
	TasksCompleted int `json:"tasks_completed"`
}

// ProjectDetail is the full project view with its charter and related records.
type ProjectDetail struct {
	Project      models.Project       `json:"project"`
	Charter      *models.Charter      `json:"charter,omitempty"`
	Milestones   []models.Milestone   `json:"milestones"`
	Tasks        []models.Task        `json:"tasks"`
	Risks        []models.Risk        `json:"risks"`
	Stakeholders []models.Stakeholder `json:"stakeholders"`
	Health       models.HealthScore   `json:"health"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", map[string]bool{
		"ai_enabled": s.hasGenAI,
	}))
}

func (s *Server) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listProjectsHandler: listing projects")
	projects, err := s.st.ListProjects()
	if err != nil {
		slog.Error("Server.listProjectsHandler: store query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list projects"))
		return
	}

	summaries := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		tasks, err := s.st.ListTasks(p.ID)
		if err != nil {
			slog.Error("Server.listProjectsHandler: task query failed", "error", err, "projectID", p.ID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list projects"))
			return
		}
		summary := ProjectSummary{Project: p, TasksTotal: len(tasks)}
		for _, t := range tasks {
			if t.Status == models.TaskStatusCompleted {
				summary.TasksCompleted++
			}
		}
		summaries = append(summaries, summary)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summaries))
}

func (s *Server) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createProjectHandler: processing create request")

	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createProjectHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createProjectHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if s.charterGen == nil {
		slog.Warn("Server.createProjectHandler: GenAI client not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("GenAI client not configured"))
		return
	}

	// The charter is generated before anything is persisted. A charter
	// failure aborts project creation entirely.
	content, err := s.charterGen.Generate(r.Context(), req.ProjectData)
	if err != nil {
		slog.Error("Server.createProjectHandler: charter generation failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate project charter"))
		return
	}

	intake := req.ProjectData
	description := *intake.Objective
	if intake.Description != nil && *intake.Description != "" {
		description = *intake.Description
	}
	project := &models.Project{
		Name:            *intake.Name,
		Description:     description,
		Objective:       *intake.Objective,
		Status:          models.ProjectStatusActive,
		Scale:           models.DetermineScale(intake),
		SuccessCriteria: intake.SuccessCriteria,
		Constraints:     intake.Constraints,
		HealthScore:     initialHealthScore,
	}
	if intake.TargetTimeline != nil {
		project.TargetEndDate = *intake.TargetTimeline
	}
	if err := s.st.CreateProject(project); err != nil {
		slog.Error("Server.createProjectHandler: project insert failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create project"))
		return
	}

	charter := &models.Charter{ProjectID: project.ID, Version: 1, Content: *content}
	if err := s.st.CreateCharter(charter); err != nil {
		slog.Error("Server.createProjectHandler: charter insert failed", "error", err, "projectID", project.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store charter"))
		return
	}
	if err := s.st.CreateMilestones(project.ID, content.Timeline); err != nil {
		slog.Error("Server.createProjectHandler: milestone insert failed", "error", err, "projectID", project.ID)
	}
	if err := s.st.CreateStakeholders(project.ID, content.Stakeholders); err != nil {
		slog.Error("Server.createProjectHandler: stakeholder insert failed", "error", err, "projectID", project.ID)
	}
	if err := s.st.CreateRisks(project.ID, content.Risks); err != nil {
		slog.Error("Server.createProjectHandler: risk insert failed", "error", err, "projectID", project.ID)
	}

	slog.Info("Server.createProjectHandler: project created", "projectID", project.ID, "name", project.Name, "scale", project.Scale)
	writeJSONResponse(w, http.StatusCreated, models.Success(ProjectDetail{
		Project:      *project,
		Charter:      charter,
		Milestones:   content.Timeline,
		Tasks:        []models.Task{},
		Risks:        content.Risks,
		Stakeholders: content.Stakeholders,
	}))
}

func (s *Server) getProjectHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.getProjectHandler: fetching project", "projectID", id)

	project, err := s.st.GetProject(id)
	if err != nil {
		slog.Error("Server.getProjectHandler: store query failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch project"))
		return
	}
	if project == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}

	charter, err := s.st.GetLatestCharter(id)
	if err != nil {
		slog.Error("Server.getProjectHandler: charter query failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch project"))
		return
	}
	milestones, err := s.st.ListMilestones(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch project"))
		return
	}
	tasks, err := s.st.ListTasks(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch project"))
		return
	}
	risks, err := s.st.ListRisks(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch project"))
		return
	}
	stakeholders, err := s.st.ListStakeholders(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch project"))
		return
	}
	score, err := s.computeHealth(id)
	if err != nil {
		slog.Error("Server.getProjectHandler: health computation failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch project"))
		return
	}
	project.HealthScore = score.Overall

	writeJSONResponse(w, http.StatusOK, models.Success(ProjectDetail{
		Project:      *project,
		Charter:      charter,
		Milestones:   milestones,
		Tasks:        tasks,
		Risks:        risks,
		Stakeholders: stakeholders,
		Health:       score,
	}))
}

func (s *Server) patchProjectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	slog.Debug("Server.patchProjectHandler: processing patch", "projectID", id)

	var patch struct {
		Name        *string               `json:"name,omitempty"`
		Description *string               `json:"description,omitempty"`
		Status      *models.ProjectStatus `json:"status,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		slog.Warn("Server.patchProjectHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	project, err := s.st.GetProject(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch project"))
		return
	}
	if project == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}

	if patch.Name != nil {
		project.Name = *patch.Name
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if patch.Status != nil {
		project.Status = *patch.Status
		if *patch.Status == models.ProjectStatusCompleted && project.ActualEndDate == nil {
			now := time.Now()
			project.ActualEndDate = &now
		}
	}
	if err := s.st.UpdateProject(project); err != nil {
		slog.Error("Server.patchProjectHandler: update failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update project"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(project))
}

func (s *Server) deleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.deleteProjectHandler: deleting project", "projectID", id)

	project, err := s.st.GetProject(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete project"))
		return
	}
	if project == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}
	if err := s.st.DeleteProject(id); err != nil {
		slog.Error("Server.deleteProjectHandler: delete failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete project"))
		return
	}
	slog.Info("Server.deleteProjectHandler: project deleted", "projectID", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Project deleted", nil))
}

func (s *Server) projectHealthHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.projectHealthHandler: scoring project", "projectID", id)

	project, err := s.st.GetProject(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to score project"))
		return
	}
	if project == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}
	score, err := s.computeHealth(id)
	if err != nil {
		slog.Error("Server.projectHealthHandler: health computation failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to score project"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(score))
}

func (s *Server) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createTaskHandler: processing create request")

	var req models.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createTaskHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createTaskHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	project, err := s.st.GetProject(req.ProjectID)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create task"))
		return
	}
	if project == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}

	task := &models.Task{
		ProjectID:    req.ProjectID,
		MilestoneID:  req.MilestoneID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       models.TaskStatusPending,
		Priority:     req.Priority,
		AssigneeName: req.AssigneeName,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityNormal
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			slog.Warn("Server.createTaskHandler: invalid due date", "error", err, "dueDate", req.DueDate)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid due_date, expected RFC 3339"))
			return
		}
		task.DueDate = &due
	}
	if err := s.st.CreateTask(task); err != nil {
		slog.Error("Server.createTaskHandler: task insert failed", "error", err, "projectID", req.ProjectID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create task"))
		return
	}
	slog.Info("Server.createTaskHandler: task created", "taskID", task.ID, "projectID", task.ProjectID)
	writeJSONResponse(w, http.StatusCreated, models.Success(task))
}

func (s *Server) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := s.st.GetTask(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch task"))
		return
	}
	if task == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Task not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(task))
}

func (s *Server) patchTaskHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	slog.Debug("Server.patchTaskHandler: processing patch", "taskID", id)

	var patch models.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		slog.Warn("Server.patchTaskHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := patch.Validate(); err != nil {
		slog.Warn("Server.patchTaskHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	task, err := s.st.GetTask(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update task"))
		return
	}
	if task == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Task not found"))
		return
	}

	applyTaskPatch(task, patch)

	if err := s.st.UpdateTask(task); err != nil {
		slog.Error("Server.patchTaskHandler: update failed", "error", err, "taskID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update task"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(task))
}

// applyTaskPatch applies allowed field changes to a task. Completion time
// tracks status: it is stamped when a task moves to completed and cleared
// when it leaves completed.
func applyTaskPatch(task *models.Task, patch models.TaskPatch) {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.AssigneeName != nil {
		task.AssigneeName = *patch.AssigneeName
	}
	if patch.MilestoneID != nil {
		task.MilestoneID = *patch.MilestoneID
	}
	if patch.ActualHours != nil {
		task.ActualHours = *patch.ActualHours
	}
	if patch.DueDate != nil {
		if *patch.DueDate == "" {
			task.DueDate = nil
		} else if due, err := time.Parse(time.RFC3339, *patch.DueDate); err == nil {
			task.DueDate = &due
		}
	}
	if patch.Status != nil {
		applyTaskStatus(task, *patch.Status)
	}
}

// applyTaskStatus sets the task status and keeps CompletedAt consistent.
func applyTaskStatus(task *models.Task, status models.TaskStatus) {
	switch {
	case status == models.TaskStatusCompleted && task.Status != models.TaskStatusCompleted:
		now := time.Now()
		task.CompletedAt = &now
	case status != models.TaskStatusCompleted:
		task.CompletedAt = nil
	}
	task.Status = status
}

func (s *Server) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.deleteTaskHandler: deleting task", "taskID", id)

	task, err := s.st.GetTask(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete task"))
		return
	}
	if task == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Task not found"))
		return
	}
	if err := s.st.DeleteTask(id); err != nil {
		slog.Error("Server.deleteTaskHandler: delete failed", "error", err, "taskID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete task"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Task deleted", nil))
}

func (s *Server) listTaskUpdatesHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := s.st.GetTask(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list updates"))
		return
	}
	if task == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Task not found"))
		return
	}
	updates, err := s.st.ListUpdates(id)
	if err != nil {
		slog.Error("Server.listTaskUpdatesHandler: store query failed", "error", err, "taskID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list updates"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(updates))
}
