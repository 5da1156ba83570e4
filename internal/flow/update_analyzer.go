package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/autonoma/autonoma/internal/genai"
	"github.com/autonoma/autonoma/internal/models"
	"github.com/openai/openai-go"
)

// ErrAnalysisUnparseable indicates the model's update analysis contained no
// parseable JSON object.
var ErrAnalysisUnparseable = errors.New("failed to parse update analysis")

// analyzerMaxTokens bounds the model output for update analysis.
const analyzerMaxTokens = 512

// UpdateAnalysis is the structured interpretation of a free-text progress update.
type UpdateAnalysis struct {
	ProgressPercentage int               `json:"progress_percentage"`
	NewStatus          models.TaskStatus `json:"new_status"`
	Blockers           []string          `json:"blockers"`
	Sentiment          string            `json:"sentiment"` // positive, neutral, concerning
	Summary            string            `json:"summary"`
}

// UpdateAnalyzer extracts structured progress information from free-text
// task updates.
type UpdateAnalyzer struct {
	genaiClient genai.ClientInterface
}

// NewUpdateAnalyzer creates a new update analyzer with the given GenAI client.
func NewUpdateAnalyzer(genaiClient genai.ClientInterface) *UpdateAnalyzer {
	slog.Debug("UpdateAnalyzer.NewUpdateAnalyzer: creating analyzer", "hasGenAI", genaiClient != nil)
	return &UpdateAnalyzer{genaiClient: genaiClient}
}

// Analyze interprets one progress update in the context of its task.
func (a *UpdateAnalyzer) Analyze(ctx context.Context, updateContent string, task models.Task) (*UpdateAnalysis, error) {
	slog.Debug("UpdateAnalyzer.Analyze: analyzing update", "taskID", task.ID, "contentLength", len(updateContent))

	prompt := fmt.Sprintf(`Analyze this project update and extract structured information:

Task: %s
Description: %s
Current Status: %s

Update from team member:
%q

Return JSON:
{
  "progress_percentage": 0-100,
  "new_status": "pending|in_progress|blocked|completed",
  "blockers": ["list any blockers mentioned"],
  "sentiment": "positive|neutral|concerning",
  "summary": "one sentence summary"
}`, task.Title, task.Description, task.Status, updateContent)

	text, err := a.genaiClient.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}, analyzerMaxTokens)
	if err != nil {
		slog.Error("UpdateAnalyzer.Analyze: model call failed", "error", err, "taskID", task.ID)
		return nil, fmt.Errorf("update analysis model call failed: %w", err)
	}

	block, ok := ExtractJSONObject(text)
	if !ok {
		slog.Error("UpdateAnalyzer.Analyze: no JSON object in model output", "taskID", task.ID)
		return nil, ErrAnalysisUnparseable
	}

	var analysis UpdateAnalysis
	if err := json.Unmarshal([]byte(block), &analysis); err != nil {
		slog.Error("UpdateAnalyzer.Analyze: malformed analysis JSON", "error", err, "taskID", task.ID)
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnparseable, err)
	}

	slog.Info("UpdateAnalyzer.Analyze: update analyzed", "taskID", task.ID, "newStatus", analysis.NewStatus, "progress", analysis.ProgressPercentage, "sentiment", analysis.Sentiment)
	return &analysis, nil
}
