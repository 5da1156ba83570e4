// Package models defines intake conversation structures for Autonoma.
package models

// ConversationPhase represents the stage of an intake conversation.
type ConversationPhase string

const (
	// PhaseIntake is the initial information-gathering stage.
	PhaseIntake ConversationPhase = "intake"
	// PhaseClarification indicates the assistant is filling gaps in the intake data.
	PhaseClarification ConversationPhase = "clarification"
	// PhaseConfirmation indicates enough data exists and the assistant is summarizing for approval.
	PhaseConfirmation ConversationPhase = "confirmation"
	// PhaseComplete indicates the user approved the summary.
	PhaseComplete ConversationPhase = "complete"
)

// ConversationMessage is a single turn in an intake conversation.
type ConversationMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ConversationContext carries the accumulated intake conversation across turns.
// The caller owns it and must resend it on every turn; the engine never
// persists it.
type ConversationContext struct {
	Messages      []ConversationMessage `json:"messages"`
	ExtractedData ProjectIntakeData     `json:"extractedData"`
	Phase         ConversationPhase     `json:"phase"`
}

// ProjectIntakeData is the partial project record accumulated during intake.
// All fields are optional until confirmation. Pointer fields distinguish
// "absent from a model reply" from an explicit empty value, which the merge
// contract depends on.
type ProjectIntakeData struct {
	Name            *string  `json:"name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Objective       *string  `json:"objective,omitempty"`
	SuccessCriteria []string `json:"success_criteria,omitempty"`
	KeyStakeholders []string `json:"key_stakeholders,omitempty"`
	Constraints     []string `json:"constraints,omitempty"`
	TargetTimeline  *string  `json:"target_timeline,omitempty"`
	BudgetRange     *string  `json:"budget_range,omitempty"`
	TeamSize        *int     `json:"team_size,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
}

// Merge returns a copy of d with every field present in update overwriting
// the corresponding field. Fields absent from update are preserved. This is
// a last-write-wins shallow merge with no field-level validation: a model
// reply can shrink team_size or replace a list wholesale.
func (d ProjectIntakeData) Merge(update ProjectIntakeData) ProjectIntakeData {
	out := d
	if update.Name != nil {
		out.Name = update.Name
	}
	if update.Description != nil {
		out.Description = update.Description
	}
	if update.Objective != nil {
		out.Objective = update.Objective
	}
	if update.SuccessCriteria != nil {
		out.SuccessCriteria = update.SuccessCriteria
	}
	if update.KeyStakeholders != nil {
		out.KeyStakeholders = update.KeyStakeholders
	}
	if update.Constraints != nil {
		out.Constraints = update.Constraints
	}
	if update.TargetTimeline != nil {
		out.TargetTimeline = update.TargetTimeline
	}
	if update.BudgetRange != nil {
		out.BudgetRange = update.BudgetRange
	}
	if update.TeamSize != nil {
		out.TeamSize = update.TeamSize
	}
	if update.Dependencies != nil {
		out.Dependencies = update.Dependencies
	}
	return out
}

// DefaultTeamSize is assumed when intake never captured a team size.
const DefaultTeamSize = 5

// DetermineScale classifies a project by team size. Thresholds are inclusive
// upper bounds: micro <=3, small <=10, medium <=50, large <=200, else enterprise.
func DetermineScale(d ProjectIntakeData) ProjectScale {
	teamSize := DefaultTeamSize
	if d.TeamSize != nil {
		teamSize = *d.TeamSize
	}

	switch {
	case teamSize <= 3:
		return ScaleMicro
	case teamSize <= 10:
		return ScaleSmall
	case teamSize <= 50:
		return ScaleMedium
	case teamSize <= 200:
		return ScaleLarge
	default:
		return ScaleEnterprise
	}
}

// IntakeRequest is the payload for one intake dialogue turn.
type IntakeRequest struct {
	Message string              `json:"message"`
	Context ConversationContext `json:"context"`
}

// Validate checks an IntakeRequest before processing.
func (r *IntakeRequest) Validate() error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// CreateProjectRequest is the payload for creating a project from completed intake data.
type CreateProjectRequest struct {
	ProjectData ProjectIntakeData `json:"projectData"`
}

// Validate checks a CreateProjectRequest before charter generation.
func (r *CreateProjectRequest) Validate() error {
	if r.ProjectData.Name == nil || *r.ProjectData.Name == "" {
		return ErrMissingProjectName
	}
	if r.ProjectData.Objective == nil || *r.ProjectData.Objective == "" {
		return ErrMissingObjective
	}
	return nil
}

// CreateTaskRequest is the payload for creating a task.
type CreateTaskRequest struct {
	ProjectID    string   `json:"project_id"`
	MilestoneID  string   `json:"milestone_id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Priority     Priority `json:"priority,omitempty"`
	AssigneeName string   `json:"assignee_name,omitempty"`
	DueDate      string   `json:"due_date,omitempty"` // RFC 3339
}

// Validate checks a CreateTaskRequest.
func (r *CreateTaskRequest) Validate() error {
	if r.ProjectID == "" {
		return ErrMissingProjectID
	}
	if r.Title == "" {
		return ErrMissingTaskTitle
	}
	if r.Priority != "" && !IsValidPriority(r.Priority) {
		return ErrInvalidPriority
	}
	return nil
}

// TaskPatch carries the fields a task update is allowed to change. Pointer
// fields distinguish "leave unchanged" from an explicit new value.
type TaskPatch struct {
	Title        *string     `json:"title,omitempty"`
	Description  *string     `json:"description,omitempty"`
	Status       *TaskStatus `json:"status,omitempty"`
	Priority     *Priority   `json:"priority,omitempty"`
	AssigneeName *string     `json:"assignee_name,omitempty"`
	DueDate      *string     `json:"due_date,omitempty"` // RFC 3339, empty clears
	MilestoneID  *string     `json:"milestone_id,omitempty"`
	ActualHours  *float64    `json:"actual_hours,omitempty"`
}

// Validate checks a TaskPatch.
func (p *TaskPatch) Validate() error {
	if p.Status != nil && !IsValidTaskStatus(*p.Status) {
		return ErrInvalidTaskStatus
	}
	if p.Priority != nil && !IsValidPriority(*p.Priority) {
		return ErrInvalidPriority
	}
	return nil
}

// TaskUpdateRequest is the payload for submitting a progress update on a task.
type TaskUpdateRequest struct {
	Content string `json:"content"`
	Channel string `json:"channel,omitempty"` // web, email, slack, api
}

// Validate checks a TaskUpdateRequest.
func (r *TaskUpdateRequest) Validate() error {
	if r.Content == "" {
		return ErrEmptyMessage
	}
	return nil
}
