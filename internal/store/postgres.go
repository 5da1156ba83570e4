// Package store provides storage backends for Autonoma.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/autonoma/autonoma/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateProject(p *models.Project) error {
	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.Exec(`INSERT INTO projects (`+projectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.Name, nilIfEmpty(p.Description), p.Status, p.Scale, p.Objective,
		marshalStrings(p.SuccessCriteria), marshalStrings(p.Constraints),
		nullableTime(p.StartDate), nilIfEmpty(p.TargetEndDate), nullableTime(p.ActualEndDate),
		p.HealthScore, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateProject failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to insert project: %w", err)
	}
	slog.Debug("PostgresStore CreateProject succeeded", "projectID", p.ID, "name", p.Name)
	return nil
}

func (s *PostgresStore) GetProject(id string) (*models.Project, error) {
	row := s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProject failed", "error", err, "projectID", id)
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListProjects() ([]models.Project, error) {
	rows, err := s.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListProjects query failed", "error", err)
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

func (s *PostgresStore) UpdateProject(p *models.Project) error {
	p.UpdatedAt = time.Now()
	_, err := s.db.Exec(`UPDATE projects SET name = $1, description = $2, status = $3, scale = $4, objective = $5, success_criteria = $6, project_constraints = $7, start_date = $8, target_end_date = $9, actual_end_date = $10, health_score = $11, updated_at = $12 WHERE id = $13`,
		p.Name, nilIfEmpty(p.Description), p.Status, p.Scale, p.Objective,
		marshalStrings(p.SuccessCriteria), marshalStrings(p.Constraints),
		nullableTime(p.StartDate), nilIfEmpty(p.TargetEndDate), nullableTime(p.ActualEndDate),
		p.HealthScore, p.UpdatedAt, p.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateProject failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(id string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteProject failed", "error", err, "projectID", id)
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateCharter(c *models.Charter) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.GeneratedAt = time.Now()
	contentJSON, err := json.Marshal(c.Content)
	if err != nil {
		return fmt.Errorf("failed to encode charter content: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO charters (id, project_id, version, content, generated_at, approved_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.ProjectID, c.Version, string(contentJSON), c.GeneratedAt, nullableTime(c.ApprovedAt))
	if err != nil {
		slog.Error("PostgresStore CreateCharter failed", "error", err, "projectID", c.ProjectID)
		return fmt.Errorf("failed to insert charter: %w", err)
	}
	slog.Debug("PostgresStore CreateCharter succeeded", "projectID", c.ProjectID, "version", c.Version)
	return nil
}

func (s *PostgresStore) GetLatestCharter(projectID string) (*models.Charter, error) {
	row := s.db.QueryRow(`SELECT id, project_id, version, content, generated_at, approved_at FROM charters WHERE project_id = $1 ORDER BY version DESC LIMIT 1`, projectID)
	c, err := scanCharter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLatestCharter failed", "error", err, "projectID", projectID)
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateMilestones(projectID string, ms []models.Milestone) error {
	for i := range ms {
		if ms[i].ID == "" {
			ms[i].ID = newID()
		}
		ms[i].ProjectID = projectID
		_, err := s.db.Exec(`INSERT INTO milestones (id, project_id, name, description, target_date, status, completion_percentage) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ms[i].ID, projectID, ms[i].Name, nilIfEmpty(ms[i].Description), nilIfEmpty(ms[i].TargetDate), ms[i].Status, ms[i].CompletionPercentage)
		if err != nil {
			slog.Error("PostgresStore CreateMilestones failed", "error", err, "projectID", projectID)
			return fmt.Errorf("failed to insert milestone: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListMilestones(projectID string) ([]models.Milestone, error) {
	rows, err := s.db.Query(`SELECT id, project_id, name, description, target_date, status, completion_percentage FROM milestones WHERE project_id = $1 ORDER BY target_date`, projectID)
	if err != nil {
		slog.Error("PostgresStore ListMilestones query failed", "error", err, "projectID", projectID)
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

func (s *PostgresStore) CreateStakeholders(projectID string, ss []models.Stakeholder) error {
	for i := range ss {
		if ss[i].ID == "" {
			ss[i].ID = newID()
		}
		ss[i].ProjectID = projectID
		_, err := s.db.Exec(`INSERT INTO stakeholders (id, project_id, name, role, raci_level, email) VALUES ($1, $2, $3, $4, $5, $6)`,
			ss[i].ID, projectID, ss[i].Name, nilIfEmpty(ss[i].Role), ss[i].RACILevel, nilIfEmpty(ss[i].Email))
		if err != nil {
			slog.Error("PostgresStore CreateStakeholders failed", "error", err, "projectID", projectID)
			return fmt.Errorf("failed to insert stakeholder: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListStakeholders(projectID string) ([]models.Stakeholder, error) {
	rows, err := s.db.Query(`SELECT id, project_id, name, role, raci_level, email FROM stakeholders WHERE project_id = $1`, projectID)
	if err != nil {
		slog.Error("PostgresStore ListStakeholders query failed", "error", err, "projectID", projectID)
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

func (s *PostgresStore) CreateRisks(projectID string, rs []models.Risk) error {
	for i := range rs {
		if rs[i].ID == "" {
			rs[i].ID = newID()
		}
		rs[i].ProjectID = projectID
		_, err := s.db.Exec(`INSERT INTO risks (id, project_id, description, probability, impact, mitigation, status) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rs[i].ID, projectID, rs[i].Description, rs[i].Probability, rs[i].Impact, nilIfEmpty(rs[i].Mitigation), rs[i].Status)
		if err != nil {
			slog.Error("PostgresStore CreateRisks failed", "error", err, "projectID", projectID)
			return fmt.Errorf("failed to insert risk: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListRisks(projectID string) ([]models.Risk, error) {
	rows, err := s.db.Query(`SELECT id, project_id, description, probability, impact, mitigation, status FROM risks WHERE project_id = $1`, projectID)
	if err != nil {
		slog.Error("PostgresStore ListRisks query failed", "error", err, "projectID", projectID)
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

func (s *PostgresStore) CreateTask(t *models.Task) error {
	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.Exec(`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.ProjectID, nilIfEmpty(t.MilestoneID), t.Title, nilIfEmpty(t.Description), t.Status, t.Priority,
		nilIfEmpty(t.AssigneeName), t.EstimatedHours, t.ActualHours, nullableTime(t.DueDate), nullableTime(t.CompletedAt),
		marshalStrings(t.Dependencies), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateTask failed", "error", err, "taskID", t.ID)
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(id string) (*models.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetTask failed", "error", err, "taskID", id)
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) ListTasks(projectID string) ([]models.Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		slog.Error("PostgresStore ListTasks query failed", "error", err, "projectID", projectID)
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

func (s *PostgresStore) UpdateTask(t *models.Task) error {
	t.UpdatedAt = time.Now()
	_, err := s.db.Exec(`UPDATE tasks SET milestone_id = $1, title = $2, description = $3, status = $4, priority = $5, assignee_name = $6, estimated_hours = $7, actual_hours = $8, due_date = $9, completed_at = $10, dependencies = $11, updated_at = $12 WHERE id = $13`,
		nilIfEmpty(t.MilestoneID), t.Title, nilIfEmpty(t.Description), t.Status, t.Priority,
		nilIfEmpty(t.AssigneeName), t.EstimatedHours, t.ActualHours, nullableTime(t.DueDate), nullableTime(t.CompletedAt),
		marshalStrings(t.Dependencies), t.UpdatedAt, t.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateTask failed", "error", err, "taskID", t.ID)
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteTask failed", "error", err, "taskID", id)
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUpdate(u *models.Update) error {
	if u.ID == "" {
		u.ID = newID()
	}
	u.CreatedAt = time.Now()
	_, err := s.db.Exec(`INSERT INTO task_updates (id, task_id, project_id, content, parsed_progress, parsed_status, parsed_blockers, channel, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.TaskID, u.ProjectID, u.Content, u.ParsedProgress, nilIfEmpty(string(u.ParsedStatus)), marshalStrings(u.ParsedBlockers), nilIfEmpty(u.Channel), u.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateUpdate failed", "error", err, "taskID", u.TaskID)
		return fmt.Errorf("failed to insert update: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUpdates(taskID string) ([]models.Update, error) {
	rows, err := s.db.Query(`SELECT id, task_id, project_id, content, parsed_progress, parsed_status, parsed_blockers, channel, created_at FROM task_updates WHERE task_id = $1 ORDER BY created_at`, taskID)
	if err != nil {
		slog.Error("PostgresStore ListUpdates query failed", "error", err, "taskID", taskID)
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

func (s *PostgresStore) CountUpdatesSince(projectID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM task_updates WHERE project_id = $1 AND created_at >= $2`, projectID, since).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore CountUpdatesSince failed", "error", err, "projectID", projectID)
		return 0, fmt.Errorf("failed to count updates: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CreateEscalation(e *models.Escalation) error {
	if e.ID == "" {
		e.ID = newID()
	}
	e.CreatedAt = time.Now()
	_, err := s.db.Exec(`INSERT INTO escalations (id, project_id, task_id, trigger_type, severity, description, recommended_action, status, escalated_to, created_at, resolved_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.ProjectID, nilIfEmpty(e.TaskID), e.TriggerType, e.Severity, e.Description, e.RecommendedAction, e.Status, nilIfEmpty(e.EscalatedTo), e.CreatedAt, nullableTime(e.ResolvedAt))
	if err != nil {
		slog.Error("PostgresStore CreateEscalation failed", "error", err, "projectID", e.ProjectID)
		return fmt.Errorf("failed to insert escalation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEscalation(id string) (*models.Escalation, error) {
	row := s.db.QueryRow(`SELECT id, project_id, task_id, trigger_type, severity, description, recommended_action, status, escalated_to, created_at, resolved_at FROM escalations WHERE id = $1`, id)
	e, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetEscalation failed", "error", err, "escalationID", id)
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) ListEscalations(projectID string) ([]models.Escalation, error) {
	rows, err := s.db.Query(`SELECT id, project_id, task_id, trigger_type, severity, description, recommended_action, status, escalated_to, created_at, resolved_at FROM escalations WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		slog.Error("PostgresStore ListEscalations query failed", "error", err, "projectID", projectID)
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

func (s *PostgresStore) UpdateEscalation(e *models.Escalation) error {
	_, err := s.db.Exec(`UPDATE escalations SET status = $1, escalated_to = $2, resolved_at = $3 WHERE id = $4`,
		e.Status, nilIfEmpty(e.EscalatedTo), nullableTime(e.ResolvedAt), e.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateEscalation failed", "error", err, "escalationID", e.ID)
		return fmt.Errorf("failed to update escalation: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
