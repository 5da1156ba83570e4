package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/autonoma/autonoma/internal/genai"
	"github.com/autonoma/autonoma/internal/models"
	"github.com/openai/openai-go"
)

// ErrRecommendationUnparseable indicates the model's escalation
// recommendation contained no parseable JSON object.
var ErrRecommendationUnparseable = errors.New("failed to parse escalation recommendation")

// advisorMaxTokens bounds the model output for escalation recommendations.
const advisorMaxTokens = 512

// ProjectStatusSummary is the condensed project state fed to the advisor.
type ProjectStatusSummary struct {
	Name         string   `json:"name"`
	HealthScore  int      `json:"health_score"`
	OverdueTasks int      `json:"overdue_tasks"`
	BlockedTasks int      `json:"blocked_tasks"`
	RecentIssues []string `json:"recent_issues"`
}

// EscalationRecommendation is the advisor's structured verdict.
type EscalationRecommendation struct {
	ShouldEscalate    bool                      `json:"should_escalate"`
	Severity          models.EscalationSeverity `json:"severity"`
	TriggerType       models.EscalationTrigger  `json:"trigger_type"`
	RecommendedAction string                    `json:"recommended_action"`
	Message           string                    `json:"message"`
}

// EscalationAdvisor decides whether a project's current state warrants an
// escalation and drafts the stakeholder message.
type EscalationAdvisor struct {
	genaiClient genai.ClientInterface
}

// NewEscalationAdvisor creates a new escalation advisor with the given GenAI client.
func NewEscalationAdvisor(genaiClient genai.ClientInterface) *EscalationAdvisor {
	slog.Debug("EscalationAdvisor.NewEscalationAdvisor: creating advisor", "hasGenAI", genaiClient != nil)
	return &EscalationAdvisor{genaiClient: genaiClient}
}

// Recommend evaluates the status summary and returns an escalation verdict.
func (a *EscalationAdvisor) Recommend(ctx context.Context, status ProjectStatusSummary) (*EscalationRecommendation, error) {
	slog.Debug("EscalationAdvisor.Recommend: evaluating project", "project", status.Name, "healthScore", status.HealthScore)

	prompt := fmt.Sprintf(`Analyze this project status and determine if escalation is needed:

Project: %s
Health Score: %d/100
Overdue Tasks: %d
Blocked Tasks: %d
Recent Issues: %s

Determine if escalation is needed. Return JSON:
{
  "should_escalate": boolean,
  "severity": "low|medium|high|critical",
  "trigger_type": "timeline|resource|scope|communication|quality|budget",
  "recommended_action": "what should be done",
  "message": "escalation message for stakeholders"
}`, status.Name, status.HealthScore, status.OverdueTasks, status.BlockedTasks, strings.Join(status.RecentIssues, ", "))

	text, err := a.genaiClient.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}, advisorMaxTokens)
	if err != nil {
		slog.Error("EscalationAdvisor.Recommend: model call failed", "error", err, "project", status.Name)
		return nil, fmt.Errorf("escalation model call failed: %w", err)
	}

	block, ok := ExtractJSONObject(text)
	if !ok {
		slog.Error("EscalationAdvisor.Recommend: no JSON object in model output", "project", status.Name)
		return nil, ErrRecommendationUnparseable
	}

	var rec EscalationRecommendation
	if err := json.Unmarshal([]byte(block), &rec); err != nil {
		slog.Error("EscalationAdvisor.Recommend: malformed recommendation JSON", "error", err, "project", status.Name)
		return nil, fmt.Errorf("%w: %v", ErrRecommendationUnparseable, err)
	}

	slog.Info("EscalationAdvisor.Recommend: recommendation produced", "project", status.Name, "shouldEscalate", rec.ShouldEscalate, "severity", rec.Severity, "trigger", rec.TriggerType)
	return &rec, nil
}
