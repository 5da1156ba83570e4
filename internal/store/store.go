// Package store provides storage backends for Autonoma.
//
// It includes an in-memory store for tests and SQLite/PostgreSQL stores for
// persistent deployments. All backends implement the Store interface; lookups
// for missing records return (nil, nil) rather than an error.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/autonoma/autonoma/internal/models"
	"github.com/google/uuid"
)

// Store defines the persistence operations used by the API layer.
type Store interface {
	CreateProject(p *models.Project) error
	GetProject(id string) (*models.Project, error)
	ListProjects() ([]models.Project, error)
	UpdateProject(p *models.Project) error
	DeleteProject(id string) error

	CreateCharter(c *models.Charter) error
	GetLatestCharter(projectID string) (*models.Charter, error)

	CreateMilestones(projectID string, ms []models.Milestone) error
	ListMilestones(projectID string) ([]models.Milestone, error)

	CreateStakeholders(projectID string, ss []models.Stakeholder) error
	ListStakeholders(projectID string) ([]models.Stakeholder, error)

	CreateRisks(projectID string, rs []models.Risk) error
	ListRisks(projectID string) ([]models.Risk, error)

	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	ListTasks(projectID string) ([]models.Task, error)
	UpdateTask(t *models.Task) error
	DeleteTask(id string) error

	CreateUpdate(u *models.Update) error
	ListUpdates(taskID string) ([]models.Update, error)
	CountUpdatesSince(projectID string, since time.Time) (int, error)

	CreateEscalation(e *models.Escalation) error
	GetEscalation(id string) (*models.Escalation, error)
	ListEscalations(projectID string) ([]models.Escalation, error)
	UpdateEscalation(e *models.Escalation) error

	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	DSN    string
	Driver string
}

// Option configures a store backend.
type Option func(*Opts)

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "postgres"
	}
}

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "sqlite3"
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-style DSNs and "sqlite"
// for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// newID returns a fresh record identifier.
func newID() string {
	return uuid.NewString()
}

// InMemoryStore is a map-backed Store used in tests and as a fallback when
// no database DSN is configured.
type InMemoryStore struct {
	mu           sync.RWMutex
	projects     map[string]models.Project
	charters     map[string][]models.Charter // keyed by project ID, append-only
	milestones   map[string][]models.Milestone
	stakeholders map[string][]models.Stakeholder
	risks        map[string][]models.Risk
	tasks        map[string]models.Task
	updates      map[string][]models.Update // keyed by task ID
	escalations  map[string]models.Escalation
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		projects:     make(map[string]models.Project),
		charters:     make(map[string][]models.Charter),
		milestones:   make(map[string][]models.Milestone),
		stakeholders: make(map[string][]models.Stakeholder),
		risks:        make(map[string][]models.Risk),
		tasks:        make(map[string]models.Task),
		updates:      make(map[string][]models.Update),
		escalations:  make(map[string]models.Escalation),
	}
}

func (s *InMemoryStore) CreateProject(p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.projects[p.ID] = *p
	return nil
}

func (s *InMemoryStore) GetProject(id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) ListProjects() ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projects := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

func (s *InMemoryStore) UpdateProject(p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	s.projects[p.ID] = *p
	return nil
}

func (s *InMemoryStore) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	delete(s.charters, id)
	delete(s.milestones, id)
	delete(s.stakeholders, id)
	delete(s.risks, id)
	for taskID, t := range s.tasks {
		if t.ProjectID == id {
			delete(s.tasks, taskID)
			delete(s.updates, taskID)
		}
	}
	for escID, e := range s.escalations {
		if e.ProjectID == id {
			delete(s.escalations, escID)
		}
	}
	return nil
}

func (s *InMemoryStore) CreateCharter(c *models.Charter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = newID()
	}
	c.GeneratedAt = time.Now()
	s.charters[c.ProjectID] = append(s.charters[c.ProjectID], *c)
	return nil
}

func (s *InMemoryStore) GetLatestCharter(projectID string) (*models.Charter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.charters[projectID]
	if len(versions) == 0 {
		return nil, nil
	}
	latest := versions[0]
	for _, c := range versions[1:] {
		if c.Version > latest.Version {
			latest = c
		}
	}
	return &latest, nil
}

func (s *InMemoryStore) CreateMilestones(projectID string, ms []models.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range ms {
		if ms[i].ID == "" {
			ms[i].ID = newID()
		}
		ms[i].ProjectID = projectID
	}
	s.milestones[projectID] = append(s.milestones[projectID], ms...)
	return nil
}

func (s *InMemoryStore) ListMilestones(projectID string) ([]models.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms := append([]models.Milestone(nil), s.milestones[projectID]...)
	sort.Slice(ms, func(i, j int) bool { return ms[i].TargetDate < ms[j].TargetDate })
	return ms, nil
}

func (s *InMemoryStore) CreateStakeholders(projectID string, ss []models.Stakeholder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range ss {
		if ss[i].ID == "" {
			ss[i].ID = newID()
		}
		ss[i].ProjectID = projectID
	}
	s.stakeholders[projectID] = append(s.stakeholders[projectID], ss...)
	return nil
}

func (s *InMemoryStore) ListStakeholders(projectID string) ([]models.Stakeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Stakeholder(nil), s.stakeholders[projectID]...), nil
}

func (s *InMemoryStore) CreateRisks(projectID string, rs []models.Risk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rs {
		if rs[i].ID == "" {
			rs[i].ID = newID()
		}
		rs[i].ProjectID = projectID
	}
	s.risks[projectID] = append(s.risks[projectID], rs...)
	return nil
}

func (s *InMemoryStore) ListRisks(projectID string) ([]models.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Risk(nil), s.risks[projectID]...), nil
}

func (s *InMemoryStore) CreateTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks[t.ID] = *t
	return nil
}

func (s *InMemoryStore) GetTask(id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *InMemoryStore) ListTasks(projectID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tasks []models.Task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *InMemoryStore) UpdateTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.UpdatedAt = time.Now()
	s.tasks[t.ID] = *t
	return nil
}

func (s *InMemoryStore) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	delete(s.updates, id)
	return nil
}

func (s *InMemoryStore) CreateUpdate(u *models.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = newID()
	}
	u.CreatedAt = time.Now()
	s.updates[u.TaskID] = append(s.updates[u.TaskID], *u)
	return nil
}

func (s *InMemoryStore) ListUpdates(taskID string) ([]models.Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Update(nil), s.updates[taskID]...), nil
}

func (s *InMemoryStore) CountUpdatesSince(projectID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, us := range s.updates {
		for _, u := range us {
			if u.ProjectID == projectID && !u.CreatedAt.Before(since) {
				count++
			}
		}
	}
	return count, nil
}

func (s *InMemoryStore) CreateEscalation(e *models.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	e.CreatedAt = time.Now()
	s.escalations[e.ID] = *e
	return nil
}

func (s *InMemoryStore) GetEscalation(id string) (*models.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escalations[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *InMemoryStore) ListEscalations(projectID string) ([]models.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var escalations []models.Escalation
	for _, e := range s.escalations {
		if e.ProjectID == projectID {
			escalations = append(escalations, e)
		}
	}
	sort.Slice(escalations, func(i, j int) bool {
		return escalations[i].CreatedAt.After(escalations[j].CreatedAt)
	})
	return escalations, nil
}

func (s *InMemoryStore) UpdateEscalation(e *models.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalations[e.ID] = *e
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
