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

// ErrCharterUnparseable indicates the model's charter output contained no
// parseable JSON object. Unlike intake turns there is no fallback: a project
// cannot be created without a charter.
var ErrCharterUnparseable = errors.New("failed to parse charter JSON")

// charterSystemPrompt is the fixed instruction for charter generation.
const charterSystemPrompt = "You are a professional project management expert. Generate detailed, actionable project charters. Always respond with valid JSON only."

// charterMaxTokens bounds the model output for charter generation.
const charterMaxTokens = 4096

// CharterGenerator produces a project charter from completed intake data
// with a single model call.
type CharterGenerator struct {
	genaiClient genai.ClientInterface
}

// NewCharterGenerator creates a new charter generator with the given GenAI client.
func NewCharterGenerator(genaiClient genai.ClientInterface) *CharterGenerator {
	slog.Debug("CharterGenerator.NewCharterGenerator: creating generator", "hasGenAI", genaiClient != nil)
	return &CharterGenerator{genaiClient: genaiClient}
}

// Generate builds a charter from the intake record. Any failure is fatal to
// the caller: a model transport error propagates, and output with no
// parseable JSON yields ErrCharterUnparseable. The parsed charter is
// returned without deeper structural validation; downstream consumers must
// tolerate missing or short arrays.
func (g *CharterGenerator) Generate(ctx context.Context, intake models.ProjectIntakeData) (*models.CharterContent, error) {
	slog.Debug("CharterGenerator.Generate: generating charter")

	intakeJSON, err := json.MarshalIndent(intake, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize intake data: %w", err)
	}

	prompt := fmt.Sprintf(`Generate a comprehensive project charter based on the following project information:

%s

Create a detailed charter with:
1. Executive summary (2-3 paragraphs)
2. SMART objectives with measurable targets
3. Scope definition (in-scope and out-of-scope items)
4. Stakeholder matrix with RACI assignments
5. Timeline with realistic milestones
6. Risk register with probability, impact, and mitigation strategies
7. Communication plan
8. Success metrics

Return the charter as a JSON object matching this structure:
{
  "executive_summary": "string",
  "objectives": [{"id": "string", "description": "string", "measurable_target": "string", "due_date": "string"}],
  "scope": {"in_scope": ["string"], "out_of_scope": ["string"]},
  "stakeholders": [{"id": "string", "name": "string", "role": "string", "raci_level": "responsible|accountable|consulted|informed"}],
  "timeline": [{"id": "string", "name": "string", "description": "string", "target_date": "string", "status": "pending", "completion_percentage": 0}],
  "risks": [{"id": "string", "description": "string", "probability": "low|medium|high", "impact": "low|medium|high", "mitigation": "string", "status": "identified"}],
  "communication_plan": "string",
  "success_metrics": ["string"]
}`, intakeJSON)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(charterSystemPrompt),
		openai.UserMessage(prompt),
	}

	text, err := g.genaiClient.GenerateWithMessages(ctx, messages, charterMaxTokens)
	if err != nil {
		slog.Error("CharterGenerator.Generate: model call failed", "error", err)
		return nil, fmt.Errorf("charter model call failed: %w", err)
	}

	block, ok := ExtractJSONObject(text)
	if !ok {
		slog.Error("CharterGenerator.Generate: no JSON object in model output", "responseLength", len(text))
		return nil, ErrCharterUnparseable
	}

	var charter models.CharterContent
	if err := json.Unmarshal([]byte(block), &charter); err != nil {
		slog.Error("CharterGenerator.Generate: malformed charter JSON", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCharterUnparseable, err)
	}

	slog.Info("CharterGenerator.Generate: charter generated", "objectives", len(charter.Objectives), "milestones", len(charter.Timeline), "risks", len(charter.Risks), "stakeholders", len(charter.Stakeholders))
	return &charter, nil
}
