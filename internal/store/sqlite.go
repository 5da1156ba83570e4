// Package store provides storage backends for Autonoma.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/autonoma/autonoma/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

const projectColumns = `id, name, description, status, scale, objective, success_criteria, project_constraints, start_date, target_end_date, actual_end_date, health_score, created_at, updated_at`

func (s *SQLiteStore) CreateProject(p *models.Project) error {
	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.Exec(`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nilIfEmpty(p.Description), p.Status, p.Scale, p.Objective,
		marshalStrings(p.SuccessCriteria), marshalStrings(p.Constraints),
		nullableTime(p.StartDate), nilIfEmpty(p.TargetEndDate), nullableTime(p.ActualEndDate),
		p.HealthScore, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateProject failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to insert project: %w", err)
	}
	slog.Debug("SQLiteStore CreateProject succeeded", "projectID", p.ID, "name", p.Name)
	return nil
}

func (s *SQLiteStore) GetProject(id string) (*models.Project, error) {
	row := s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProject failed", "error", err, "projectID", id)
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) ListProjects() ([]models.Project, error) {
	rows, err := s.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("SQLiteStore ListProjects query failed", "error", err)
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(p *models.Project) error {
	p.UpdatedAt = time.Now()
	_, err := s.db.Exec(`UPDATE projects SET name = ?, description = ?, status = ?, scale = ?, objective = ?, success_criteria = ?, project_constraints = ?, start_date = ?, target_end_date = ?, actual_end_date = ?, health_score = ?, updated_at = ? WHERE id = ?`,
		p.Name, nilIfEmpty(p.Description), p.Status, p.Scale, p.Objective,
		marshalStrings(p.SuccessCriteria), marshalStrings(p.Constraints),
		nullableTime(p.StartDate), nilIfEmpty(p.TargetEndDate), nullableTime(p.ActualEndDate),
		p.HealthScore, p.UpdatedAt, p.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateProject failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(id string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteProject failed", "error", err, "projectID", id)
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateCharter(c *models.Charter) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.GeneratedAt = time.Now()
	contentJSON, err := json.Marshal(c.Content)
	if err != nil {
		return fmt.Errorf("failed to encode charter content: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO charters (id, project_id, version, content, generated_at, approved_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Version, string(contentJSON), c.GeneratedAt, nullableTime(c.ApprovedAt))
	if err != nil {
		slog.Error("SQLiteStore CreateCharter failed", "error", err, "projectID", c.ProjectID)
		return fmt.Errorf("failed to insert charter: %w", err)
	}
	slog.Debug("SQLiteStore CreateCharter succeeded", "projectID", c.ProjectID, "version", c.Version)
	return nil
}

func (s *SQLiteStore) GetLatestCharter(projectID string) (*models.Charter, error) {
	row := s.db.QueryRow(`SELECT id, project_id, version, content, generated_at, approved_at FROM charters WHERE project_id = ? ORDER BY version DESC LIMIT 1`, projectID)
	c, err := scanCharter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLatestCharter failed", "error", err, "projectID", projectID)
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) CreateMilestones(projectID string, ms []models.Milestone) error {
	for i := range ms {
		if ms[i].ID == "" {
			ms[i].ID = newID()
		}
		ms[i].ProjectID = projectID
		_, err := s.db.Exec(`INSERT INTO milestones (id, project_id, name, description, target_date, status, completion_percentage) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ms[i].ID, projectID, ms[i].Name, nilIfEmpty(ms[i].Description), nilIfEmpty(ms[i].TargetDate), ms[i].Status, ms[i].CompletionPercentage)
		if err != nil {
			slog.Error("SQLiteStore CreateMilestones failed", "error", err, "projectID", projectID)
			return fmt.Errorf("failed to insert milestone: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListMilestones(projectID string) ([]models.Milestone, error) {
	rows, err := s.db.Query(`SELECT id, project_id, name, description, target_date, status, completion_percentage FROM milestones WHERE project_id = ? ORDER BY target_date`, projectID)
	if err != nil {
		slog.Error("SQLiteStore ListMilestones query failed", "error", err, "projectID", projectID)
		return nil, fmt.Errorf("failed to query milestones: %w", err)
	}
	defer rows.Close()

	var ms []models.Milestone
	for rows.Next() {
		var m models.Milestone
		var description, targetDate sql.NullString
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &description, &targetDate, &m.Status, &m.CompletionPercentage); err != nil {
			return nil, fmt.Errorf("scan milestone failed: %w", err)
		}
		m.Description = description.String
		m.TargetDate = targetDate.String
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

func (s *SQLiteStore) CreateStakeholders(projectID string, ss []models.Stakeholder) error {
	for i := range ss {
		if ss[i].ID == "" {
			ss[i].ID = newID()
		}
		ss[i].ProjectID = projectID
		_, err := s.db.Exec(`INSERT INTO stakeholders (id, project_id, name, role, raci_level, email) VALUES (?, ?, ?, ?, ?, ?)`,
			ss[i].ID, projectID, ss[i].Name, nilIfEmpty(ss[i].Role), ss[i].RACILevel, nilIfEmpty(ss[i].Email))
		if err != nil {
			slog.Error("SQLiteStore CreateStakeholders failed", "error", err, "projectID", projectID)
			return fmt.Errorf("failed to insert stakeholder: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListStakeholders(projectID string) ([]models.Stakeholder, error) {
	rows, err := s.db.Query(`SELECT id, project_id, name, role, raci_level, email FROM stakeholders WHERE project_id = ?`, projectID)
	if err != nil {
		slog.Error("SQLiteStore ListStakeholders query failed", "error", err, "projectID", projectID)
		return nil, fmt.Errorf("failed to query stakeholders: %w", err)
	}
	defer rows.Close()

	var ss []models.Stakeholder
	for rows.Next() {
		var st models.Stakeholder
		var role, email sql.NullString
		if err := rows.Scan(&st.ID, &st.ProjectID, &st.Name, &role, &st.RACILevel, &email); err != nil {
			return nil, fmt.Errorf("scan stakeholder failed: %w", err)
		}
		st.Role = role.String
		st.Email = email.String
		ss = append(ss, st)
	}
	return ss, rows.Err()
}

func (s *SQLiteStore) CreateRisks(projectID string, rs []models.Risk) error {
	for i := range rs {
		if rs[i].ID == "" {
			rs[i].ID = newID()
		}
		rs[i].ProjectID = projectID
		_, err := s.db.Exec(`INSERT INTO risks (id, project_id, description, probability, impact, mitigation, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rs[i].ID, projectID, rs[i].Description, rs[i].Probability, rs[i].Impact, nilIfEmpty(rs[i].Mitigation), rs[i].Status)
		if err != nil {
			slog.Error("SQLiteStore CreateRisks failed", "error", err, "projectID", projectID)
			return fmt.Errorf("failed to insert risk: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListRisks(projectID string) ([]models.Risk, error) {
	rows, err := s.db.Query(`SELECT id, project_id, description, probability, impact, mitigation, status FROM risks WHERE project_id = ?`, projectID)
	if err != nil {
		slog.Error("SQLiteStore ListRisks query failed", "error", err, "projectID", projectID)
		return nil, fmt.Errorf("failed to query risks: %w", err)
	}
	defer rows.Close()

	var rs []models.Risk
	for rows.Next() {
		var r models.Risk
		var mitigation sql.NullString
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Description, &r.Probability, &r.Impact, &mitigation, &r.Status); err != nil {
			return nil, fmt.Errorf("scan risk failed: %w", err)
		}
		r.Mitigation = mitigation.String
		rs = append(rs, r)
	}
	return rs, rows.Err()
}

const taskColumns = `id, project_id, milestone_id, title, description, status, priority, assignee_name, estimated_hours, actual_hours, due_date, completed_at, dependencies, created_at, updated_at`

func (s *SQLiteStore) CreateTask(t *models.Task) error {
	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.Exec(`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, nilIfEmpty(t.MilestoneID), t.Title, nilIfEmpty(t.Description), t.Status, t.Priority,
		nilIfEmpty(t.AssigneeName), t.EstimatedHours, t.ActualHours, nullableTime(t.DueDate), nullableTime(t.CompletedAt),
		marshalStrings(t.Dependencies), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateTask failed", "error", err, "taskID", t.ID)
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(id string) (*models.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetTask failed", "error", err, "taskID", id)
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) ListTasks(projectID string) ([]models.Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		slog.Error("SQLiteStore ListTasks query failed", "error", err, "projectID", projectID)
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) UpdateTask(t *models.Task) error {
	t.UpdatedAt = time.Now()
	_, err := s.db.Exec(`UPDATE tasks SET milestone_id = ?, title = ?, description = ?, status = ?, priority = ?, assignee_name = ?, estimated_hours = ?, actual_hours = ?, due_date = ?, completed_at = ?, dependencies = ?, updated_at = ? WHERE id = ?`,
		nilIfEmpty(t.MilestoneID), t.Title, nilIfEmpty(t.Description), t.Status, t.Priority,
		nilIfEmpty(t.AssigneeName), t.EstimatedHours, t.ActualHours, nullableTime(t.DueDate), nullableTime(t.CompletedAt),
		marshalStrings(t.Dependencies), t.UpdatedAt, t.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateTask failed", "error", err, "taskID", t.ID)
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteTask failed", "error", err, "taskID", id)
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateUpdate(u *models.Update) error {
	if u.ID == "" {
		u.ID = newID()
	}
	u.CreatedAt = time.Now()
	_, err := s.db.Exec(`INSERT INTO task_updates (id, task_id, project_id, content, parsed_progress, parsed_status, parsed_blockers, channel, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.TaskID, u.ProjectID, u.Content, u.ParsedProgress, nilIfEmpty(string(u.ParsedStatus)), marshalStrings(u.ParsedBlockers), nilIfEmpty(u.Channel), u.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateUpdate failed", "error", err, "taskID", u.TaskID)
		return fmt.Errorf("failed to insert update: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUpdates(taskID string) ([]models.Update, error) {
	rows, err := s.db.Query(`SELECT id, task_id, project_id, content, parsed_progress, parsed_status, parsed_blockers, channel, created_at FROM task_updates WHERE task_id = ? ORDER BY created_at`, taskID)
	if err != nil {
		slog.Error("SQLiteStore ListUpdates query failed", "error", err, "taskID", taskID)
		return nil, fmt.Errorf("failed to query updates: %w", err)
	}
	defer rows.Close()

	var updates []models.Update
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func (s *SQLiteStore) CountUpdatesSince(projectID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM task_updates WHERE project_id = ? AND created_at >= ?`, projectID, since).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore CountUpdatesSince failed", "error", err, "projectID", projectID)
		return 0, fmt.Errorf("failed to count updates: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) CreateEscalation(e *models.Escalation) error {
	if e.ID == "" {
		e.ID = newID()
	}
	e.CreatedAt = time.Now()
	_, err := s.db.Exec(`INSERT INTO escalations (id, project_id, task_id, trigger_type, severity, description, recommended_action, status, escalated_to, created_at, resolved_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, nilIfEmpty(e.TaskID), e.TriggerType, e.Severity, e.Description, e.RecommendedAction, e.Status, nilIfEmpty(e.EscalatedTo), e.CreatedAt, nullableTime(e.ResolvedAt))
	if err != nil {
		slog.Error("SQLiteStore CreateEscalation failed", "error", err, "projectID", e.ProjectID)
		return fmt.Errorf("failed to insert escalation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetEscalation(id string) (*models.Escalation, error) {
	row := s.db.QueryRow(`SELECT id, project_id, task_id, trigger_type, severity, description, recommended_action, status, escalated_to, created_at, resolved_at FROM escalations WHERE id = ?`, id)
	e, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetEscalation failed", "error", err, "escalationID", id)
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) ListEscalations(projectID string) ([]models.Escalation, error) {
	rows, err := s.db.Query(`SELECT id, project_id, task_id, trigger_type, severity, description, recommended_action, status, escalated_to, created_at, resolved_at FROM escalations WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		slog.Error("SQLiteStore ListEscalations query failed", "error", err, "projectID", projectID)
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	var escalations []models.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		escalations = append(escalations, e)
	}
	return escalations, rows.Err()
}

func (s *SQLiteStore) UpdateEscalation(e *models.Escalation) error {
	_, err := s.db.Exec(`UPDATE escalations SET status = ?, escalated_to = ?, resolved_at = ? WHERE id = ?`,
		e.Status, nilIfEmpty(e.EscalatedTo), nullableTime(e.ResolvedAt), e.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateEscalation failed", "error", err, "escalationID", e.ID)
		return fmt.Errorf("failed to update escalation: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
