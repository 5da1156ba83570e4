// Package api provides HTTP handlers and the main API server logic for Autonoma.
//
// It exposes RESTful endpoints for conversational project intake, charter
// generation, task tracking, progress updates, health scoring, and
// escalation management. The API integrates with the flow, health, store,
// and notify modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/autonoma/autonoma/internal/flow"
	"github.com/autonoma/autonoma/internal/genai"
	"github.com/autonoma/autonoma/internal/health"
	"github.com/autonoma/autonoma/internal/models"
	"github.com/autonoma/autonoma/internal/notify"
	"github.com/autonoma/autonoma/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// updateWindow is the lookback period for counting progress updates when
// scoring resource health.
const updateWindow = 7 * 24 * time.Hour

// Opts holds configuration for the API server.
type Opts struct {
	Addr                string
	EscalationRecipient string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address for the API server.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithEscalationRecipient sets the default phone number escalation alerts
// are sent to.
func WithEscalationRecipient(to string) Option {
	return func(o *Opts) { o.EscalationRecipient = to }
}

// Server bundles the API's dependencies and HTTP handlers.
type Server struct {
	st         store.Store
	intake     *flow.IntakeEngine
	charterGen *flow.CharterGenerator
	analyzer   *flow.UpdateAnalyzer
	advisor    *flow.EscalationAdvisor
	notifier   notify.Notifier
	escalateTo string
	hasGenAI   bool
}

// NewServer creates a Server with the given store, GenAI client, and
// notifier. A nil GenAI client disables the intake, charter, analysis, and
// advisory endpoints; storage endpoints keep working.
func NewServer(st store.Store, gaClient genai.ClientInterface, notifier notify.Notifier, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	s := &Server{
		st:         st,
		notifier:   notifier,
		escalateTo: cfg.EscalationRecipient,
		hasGenAI:   gaClient != nil,
	}
	if gaClient != nil {
		s.intake = flow.NewIntakeEngine(gaClient)
		s.charterGen = flow.NewCharterGenerator(gaClient)
		s.analyzer = flow.NewUpdateAnalyzer(gaClient)
		s.advisor = flow.NewEscalationAdvisor(gaClient)
	}
	slog.Debug("Server.NewServer: server created", "hasGenAI", s.hasGenAI, "escalationRecipient_set", s.escalateTo != "")
	return s
}

// Handler builds the route table for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("POST /intake", s.intakeHandler)

	mux.HandleFunc("GET /projects", s.listProjectsHandler)
	mux.HandleFunc("POST /projects", s.createProjectHandler)
	mux.HandleFunc("GET /projects/{id}", s.getProjectHandler)
	mux.HandleFunc("PATCH /projects/{id}", s.patchProjectHandler)
	mux.HandleFunc("DELETE /projects/{id}", s.deleteProjectHandler)
	mux.HandleFunc("GET /projects/{id}/health", s.projectHealthHandler)
	mux.HandleFunc("GET /projects/{id}/escalations", s.listEscalationsHandler)
	mux.HandleFunc("POST /projects/{id}/escalations/advise", s.adviseEscalationHandler)

	mux.HandleFunc("POST /tasks", s.createTaskHandler)
	mux.HandleFunc("GET /tasks/{id}", s.getTaskHandler)
	mux.HandleFunc("PATCH /tasks/{id}", s.patchTaskHandler)
	mux.HandleFunc("DELETE /tasks/{id}", s.deleteTaskHandler)
	mux.HandleFunc("POST /tasks/{id}/updates", s.createTaskUpdateHandler)
	mux.HandleFunc("GET /tasks/{id}/updates", s.listTaskUpdatesHandler)

	mux.HandleFunc("PATCH /escalations/{id}", s.patchEscalationHandler)

	return mux
}

// Run wires up the store, GenAI client, and notifier from the given option
// sets and serves the API until the listener fails.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, notifyOpts []notify.Option, apiOpts []Option) error {
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}

	var st store.Store
	var err error
	switch {
	case storeCfg.DSN == "":
		slog.Warn("api.Run: no database DSN configured, using in-memory store")
		st = store.NewInMemoryStore()
	case storeCfg.Driver == "postgres":
		st, err = store.NewPostgresStore(storeOpts...)
	default:
		st, err = store.NewSQLiteStore(storeOpts...)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()
	slog.Info("api.Run: store initialized", "driver", storeCfg.Driver)

	var gaClient genai.ClientInterface
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("api.Run: GenAI client unavailable, AI endpoints disabled", "error", err)
	} else {
		gaClient = client
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	var notifyCfg notify.Opts
	for _, opt := range notifyOpts {
		opt(&notifyCfg)
	}
	if notifyCfg.AccountSID != "" {
		tn, err := notify.NewTwilioNotifier(notifyOpts...)
		if err != nil {
			slog.Warn("api.Run: Twilio notifier unavailable, escalation alerts disabled", "error", err)
		} else {
			notifier = tn
		}
	}

	var apiCfg Opts
	for _, opt := range apiOpts {
		opt(&apiCfg)
	}
	addr := apiCfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	srv := NewServer(st, gaClient, notifier, apiOpts...)
	slog.Info("api.Run: Autonoma API listening", "addr", addr)
	return http.ListenAndServe(addr, srv.Handler())
}

// computeHealth assembles the live snapshot for a project and scores it.
func (s *Server) computeHealth(projectID string) (models.HealthScore, error) {
	tasks, err := s.st.ListTasks(projectID)
	if err != nil {
		return models.HealthScore{}, err
	}
	milestones, err := s.st.ListMilestones(projectID)
	if err != nil {
		return models.HealthScore{}, err
	}
	escalations, err := s.st.ListEscalations(projectID)
	if err != nil {
		return models.HealthScore{}, err
	}
	updates, err := s.st.CountUpdatesSince(projectID, time.Now().Add(-updateWindow))
	if err != nil {
		return models.HealthScore{}, err
	}
	return health.Compute(health.Snapshot{
		Tasks:           tasks,
		Milestones:      milestones,
		Escalations:     escalations,
		UpdatesThisWeek: updates,
	}), nil
}
