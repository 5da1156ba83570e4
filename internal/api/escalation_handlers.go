package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/autonoma/autonoma/internal/flow"
	"github.com/autonoma/autonoma/internal/models"
)

// EscalationAdvice is the response for an on-demand escalation check.
type EscalationAdvice struct {
	Recommendation flow.EscalationRecommendation `json:"recommendation"`
	Escalation     *models.Escalation            `json:"escalation,omitempty"`
}

func (s *Server) listEscalationsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := s.st.GetProject(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list escalations"))
		return
	}
	if project == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}
	escalations, err := s.st.ListEscalations(id)
	if err != nil {
		slog.Error("Server.listEscalationsHandler: store query failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list escalations"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(escalations))
}

func (s *Server) adviseEscalationHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.adviseEscalationHandler: evaluating project", "projectID", id)

	if s.advisor == nil {
		slog.Warn("Server.adviseEscalationHandler: GenAI client not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("GenAI client not configured"))
		return
	}
	project, err := s.st.GetProject(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to evaluate project"))
		return
	}
	if project == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}

	summary, err := s.projectStatusSummary(*project, nil)
	if err != nil {
		slog.Error("Server.adviseEscalationHandler: status summary failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to evaluate project"))
		return
	}
	rec, err := s.advisor.Recommend(r.Context(), summary)
	if err != nil {
		slog.Error("Server.adviseEscalationHandler: advisor failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to produce escalation recommendation"))
		return
	}

	advice := EscalationAdvice{Recommendation: *rec}
	if rec.ShouldEscalate {
		esc := &models.Escalation{
			ProjectID:         id,
			TriggerType:       rec.TriggerType,
			Severity:          rec.Severity,
			Description:       rec.Message,
			RecommendedAction: rec.RecommendedAction,
			Status:            models.EscalationStatusOpen,
		}
		if err := s.st.CreateEscalation(esc); err != nil {
			slog.Error("Server.adviseEscalationHandler: escalation insert failed", "error", err, "projectID", id)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record escalation"))
			return
		}
		advice.Escalation = esc
		slog.Info("Server.adviseEscalationHandler: escalation created", "projectID", id, "escalationID", esc.ID, "severity", esc.Severity)
		s.sendEscalationAlert(*project, *esc)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(advice))
}

func (s *Server) patchEscalationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	slog.Debug("Server.patchEscalationHandler: processing patch", "escalationID", id)

	var patch struct {
		Status      *models.EscalationStatus `json:"status,omitempty"`
		EscalatedTo *string                  `json:"escalated_to,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		slog.Warn("Server.patchEscalationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	esc, err := s.st.GetEscalation(id)
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update escalation"))
		return
	}
	if esc == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Escalation not found"))
		return
	}

	if patch.EscalatedTo != nil {
		esc.EscalatedTo = *patch.EscalatedTo
	}
	if patch.Status != nil {
		esc.Status = *patch.Status
		switch *patch.Status {
		case models.EscalationStatusResolved, models.EscalationStatusDismissed:
			if esc.ResolvedAt == nil {
				now := time.Now()
				esc.ResolvedAt = &now
			}
		default:
			esc.ResolvedAt = nil
		}
	}
	if err := s.st.UpdateEscalation(esc); err != nil {
		slog.Error("Server.patchEscalationHandler: update failed", "error", err, "escalationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update escalation"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(esc))
}
