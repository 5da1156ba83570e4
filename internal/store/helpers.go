package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autonoma/autonoma/internal/models"
)

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalStrings encodes a string slice as JSON for a text column. A nil
// slice encodes as an empty array.
func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// unmarshalStrings decodes a JSON text column into a string slice. Empty or
// malformed columns decode as nil.
func unmarshalStrings(s string) []string {
	if s == "" {
		return nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(s), &ss); err != nil {
		return nil
	}
	if len(ss) == 0 {
		return nil
	}
	return ss
}

// nullableTime converts an optional time to a driver value.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// scanProject scans a project row in column order
// (id, name, description, status, scale, objective, success_criteria,
// project_constraints, start_date, target_end_date, actual_end_date,
// health_score, created_at, updated_at).
func scanProject(row rowScanner) (models.Project, error) {
	var p models.Project
	var description, targetEndDate sql.NullString
	var successCriteria, constraints sql.NullString
	var startDate, actualEndDate sql.NullTime
	err := row.Scan(
		&p.ID, &p.Name, &description, &p.Status, &p.Scale, &p.Objective,
		&successCriteria, &constraints, &startDate, &targetEndDate, &actualEndDate,
		&p.HealthScore, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, fmt.Errorf("scan project failed: %w", err)
	}
	p.Description = description.String
	p.TargetEndDate = targetEndDate.String
	p.SuccessCriteria = unmarshalStrings(successCriteria.String)
	p.Constraints = unmarshalStrings(constraints.String)
	if startDate.Valid {
		p.StartDate = &startDate.Time
	}
	if actualEndDate.Valid {
		p.ActualEndDate = &actualEndDate.Time
	}
	return p, nil
}

// scanCharter scans a charter row in column order
// (id, project_id, version, content, generated_at, approved_at).
func scanCharter(row rowScanner) (models.Charter, error) {
	var c models.Charter
	var contentJSON string
	var approvedAt sql.NullTime
	err := row.Scan(&c.ID, &c.ProjectID, &c.Version, &contentJSON, &c.GeneratedAt, &approvedAt)
	if err != nil {
		return c, fmt.Errorf("scan charter failed: %w", err)
	}
	if err := json.Unmarshal([]byte(contentJSON), &c.Content); err != nil {
		return c, fmt.Errorf("decode charter content failed: %w", err)
	}
	if approvedAt.Valid {
		c.ApprovedAt = &approvedAt.Time
	}
	return c, nil
}

// scanTask scans a task row in column order
// (id, project_id, milestone_id, title, description, status, priority,
// assignee_name, estimated_hours, actual_hours, due_date, completed_at,
// dependencies, created_at, updated_at).
func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	var milestoneID, description, assigneeName, dependencies sql.NullString
	var dueDate, completedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.ProjectID, &milestoneID, &t.Title, &description, &t.Status, &t.Priority,
		&assigneeName, &t.EstimatedHours, &t.ActualHours, &dueDate, &completedAt,
		&dependencies, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, fmt.Errorf("scan task failed: %w", err)
	}
	t.MilestoneID = milestoneID.String
	t.Description = description.String
	t.AssigneeName = assigneeName.String
	t.Dependencies = unmarshalStrings(dependencies.String)
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

// scanUpdate scans an update row in column order
// (id, task_id, project_id, content, parsed_progress, parsed_status,
// parsed_blockers, channel, created_at).
func scanUpdate(row rowScanner) (models.Update, error) {
	var u models.Update
	var parsedStatus, parsedBlockers, channel sql.NullString
	err := row.Scan(
		&u.ID, &u.TaskID, &u.ProjectID, &u.Content, &u.ParsedProgress,
		&parsedStatus, &parsedBlockers, &channel, &u.CreatedAt,
	)
	if err != nil {
		return u, fmt.Errorf("scan update failed: %w", err)
	}
	u.ParsedStatus = models.TaskStatus(parsedStatus.String)
	u.ParsedBlockers = unmarshalStrings(parsedBlockers.String)
	u.Channel = channel.String
	return u, nil
}

// scanEscalation scans an escalation row in column order
// (id, project_id, task_id, trigger_type, severity, description,
// recommended_action, status, escalated_to, created_at, resolved_at).
func scanEscalation(row rowScanner) (models.Escalation, error) {
	var e models.Escalation
	var taskID, escalatedTo sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(
		&e.ID, &e.ProjectID, &taskID, &e.TriggerType, &e.Severity, &e.Description,
		&e.RecommendedAction, &e.Status, &escalatedTo, &e.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return e, fmt.Errorf("scan escalation failed: %w", err)
	}
	e.TaskID = taskID.String
	e.EscalatedTo = escalatedTo.String
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Time
	}
	return e, nil
}
