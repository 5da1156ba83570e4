// Package models defines the core data structures for Autonoma.
//
// It includes project, charter, task, and escalation records shared across modules.
package models

import (
	"errors"
	"time"
)

// ProjectScale classifies a project by the size of its team.
type ProjectScale string

const (
	// ScaleMicro covers teams of up to 3 people.
	ScaleMicro ProjectScale = "micro"
	// ScaleSmall covers teams of up to 10 people.
	ScaleSmall ProjectScale = "small"
	// ScaleMedium covers teams of up to 50 people.
	ScaleMedium ProjectScale = "medium"
	// ScaleLarge covers teams of up to 200 people.
	ScaleLarge ProjectScale = "large"
	// ScaleEnterprise covers teams larger than 200 people.
	ScaleEnterprise ProjectScale = "enterprise"
)

// ProjectStatus represents the lifecycle status of a project.
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusPaused    ProjectStatus = "paused"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// TaskStatus represents the working status of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// RACILevel classifies a stakeholder's responsibility for a project.
type RACILevel string

const (
	RACIResponsible RACILevel = "responsible"
	RACIAccountable RACILevel = "accountable"
	RACIConsulted   RACILevel = "consulted"
	RACIInformed    RACILevel = "informed"
)

// RiskLevel grades the probability or impact of a risk.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// RiskStatus represents the handling status of a risk.
type RiskStatus string

const (
	RiskStatusIdentified RiskStatus = "identified"
	RiskStatusMitigating RiskStatus = "mitigating"
	RiskStatusResolved   RiskStatus = "resolved"
	RiskStatusOccurred   RiskStatus = "occurred"
)

// MilestoneStatus represents the progress status of a milestone.
type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
	MilestoneStatusMissed     MilestoneStatus = "missed"
)

// EscalationSeverity grades how urgent an escalation is.
type EscalationSeverity string

const (
	SeverityLow      EscalationSeverity = "low"
	SeverityMedium   EscalationSeverity = "medium"
	SeverityHigh     EscalationSeverity = "high"
	SeverityCritical EscalationSeverity = "critical"
)

// EscalationStatus represents the handling status of an escalation.
type EscalationStatus string

const (
	EscalationStatusOpen         EscalationStatus = "open"
	EscalationStatusAcknowledged EscalationStatus = "acknowledged"
	EscalationStatusResolved     EscalationStatus = "resolved"
	EscalationStatusDismissed    EscalationStatus = "dismissed"
)

// EscalationTrigger identifies the concern that caused an escalation.
type EscalationTrigger string

const (
	TriggerTimeline      EscalationTrigger = "timeline"
	TriggerResource      EscalationTrigger = "resource"
	TriggerScope         EscalationTrigger = "scope"
	TriggerCommunication EscalationTrigger = "communication"
	TriggerQuality       EscalationTrigger = "quality"
	TriggerBudget        EscalationTrigger = "budget"
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage       = errors.New("message cannot be empty")
	ErrMissingProjectName = errors.New("project name is required")
	ErrMissingObjective   = errors.New("project objective is required")
	ErrMissingProjectID   = errors.New("project_id is required")
	ErrMissingTaskTitle   = errors.New("task title is required")
	ErrInvalidTaskStatus  = errors.New("invalid task status")
	ErrInvalidPriority    = errors.New("invalid priority")
)

// Project is the top-level record tracked by Autonoma.
type Project struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Status          ProjectStatus `json:"status"`
	Scale           ProjectScale  `json:"scale"`
	Objective       string        `json:"objective"`
	SuccessCriteria []string      `json:"success_criteria"`
	Constraints     []string      `json:"constraints"`
	StartDate       *time.Time    `json:"start_date,omitempty"`
	TargetEndDate   string        `json:"target_end_date,omitempty"`
	ActualEndDate   *time.Time    `json:"actual_end_date,omitempty"`
	HealthScore     int           `json:"health_score"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Charter is a versioned, immutable snapshot of a generated project charter.
// New generations create new versions; existing versions are never rewritten.
type Charter struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Version     int            `json:"version"`
	Content     CharterContent `json:"content"`
	GeneratedAt time.Time      `json:"generated_at"`
	ApprovedAt  *time.Time     `json:"approved_at,omitempty"`
}

// CharterContent is the structured planning document produced by the charter generator.
type CharterContent struct {
	ExecutiveSummary  string        `json:"executive_summary"`
	Objectives        []Objective   `json:"objectives"`
	Scope             CharterScope  `json:"scope"`
	Stakeholders      []Stakeholder `json:"stakeholders"`
	Timeline          []Milestone   `json:"timeline"`
	Risks             []Risk        `json:"risks"`
	CommunicationPlan string        `json:"communication_plan"`
	SuccessMetrics    []string      `json:"success_metrics"`
}

// Objective is a single measurable charter objective.
type Objective struct {
	ID               string `json:"id,omitempty"`
	Description      string `json:"description"`
	MeasurableTarget string `json:"measurable_target"`
	DueDate          string `json:"due_date,omitempty"`
}

// CharterScope separates in-scope from out-of-scope work.
type CharterScope struct {
	InScope    []string `json:"in_scope"`
	OutOfScope []string `json:"out_of_scope"`
}

// Stakeholder is a person with a RACI responsibility on a project.
type Stakeholder struct {
	ID        string    `json:"id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	RACILevel RACILevel `json:"raci_level"`
	Email     string    `json:"email,omitempty"`
}

// Milestone is a dated checkpoint on a project timeline.
type Milestone struct {
	ID                   string          `json:"id,omitempty"`
	ProjectID            string          `json:"project_id,omitempty"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	TargetDate           string          `json:"target_date"`
	Status               MilestoneStatus `json:"status"`
	CompletionPercentage int             `json:"completion_percentage"`
}

// Risk is an identified project risk with mitigation.
type Risk struct {
	ID          string     `json:"id,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"`
	Description string     `json:"description"`
	Probability RiskLevel  `json:"probability"`
	Impact      RiskLevel  `json:"impact"`
	Mitigation  string     `json:"mitigation"`
	Status      RiskStatus `json:"status"`
}

// Task is a unit of work on a project.
type Task struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	MilestoneID    string     `json:"milestone_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	AssigneeName   string     `json:"assignee_name,omitempty"`
	EstimatedHours float64    `json:"estimated_hours,omitempty"`
	ActualHours    float64    `json:"actual_hours,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Dependencies   []string   `json:"dependencies"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Update is a progress report submitted against a task.
type Update struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"task_id"`
	ProjectID      string     `json:"project_id"`
	Content        string     `json:"content"`
	ParsedProgress int        `json:"parsed_progress,omitempty"`
	ParsedStatus   TaskStatus `json:"parsed_status,omitempty"`
	ParsedBlockers []string   `json:"parsed_blockers,omitempty"`
	Channel        string     `json:"channel"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Escalation is a flagged issue requiring stakeholder attention.
type Escalation struct {
	ID                string             `json:"id"`
	ProjectID         string             `json:"project_id"`
	TaskID            string             `json:"task_id,omitempty"`
	TriggerType       EscalationTrigger  `json:"trigger_type"`
	Severity          EscalationSeverity `json:"severity"`
	Description       string             `json:"description"`
	RecommendedAction string             `json:"recommended_action"`
	Status            EscalationStatus   `json:"status"`
	EscalatedTo       string             `json:"escalated_to,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	ResolvedAt        *time.Time         `json:"resolved_at,omitempty"`
}

// IsValidTaskStatus checks if the given task status is supported.
func IsValidTaskStatus(st TaskStatus) bool {
	switch st {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusBlocked, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// IsValidPriority checks if the given priority is supported.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
