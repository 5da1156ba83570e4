package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/autonoma/autonoma/internal/genai"
	"github.com/autonoma/autonoma/internal/models"
	"github.com/openai/openai-go"
)

// intakeSystemPrompt is the fixed persona instruction for the intake assistant.
const intakeSystemPrompt = `You are Autonoma, an autonomous project intelligence system that helps organizations initiate, plan, and manage projects. You are a professional, experienced project manager AI.

Your responsibilities:
1. Help users define projects through natural conversation
2. Extract key project parameters (objectives, constraints, stakeholders, timeline)
3. Ask clarifying questions when information is incomplete
4. Generate comprehensive project charters
5. Provide project management guidance

Communication style:
- Professional but approachable
- Concise and clear
- Ask one clarifying question at a time
- Summarize what you've understood before asking for more

Always extract and track these project parameters during intake:
- Project name and description
- Primary objective and success criteria
- Key stakeholders and their roles
- Timeline expectations
- Known constraints (budget, resources, dependencies)
- Team size and composition`

// intakeMaxTokens bounds the model output for one dialogue turn.
const intakeMaxTokens = 2048

// Confidence values reported when the model omits one or the reply could not
// be parsed at all.
const (
	defaultConfidence  = 0.7
	degradedConfidence = 0.5
)

// TurnResult is the outcome of one intake dialogue turn.
type TurnResult struct {
	Response      string                   `json:"response"`
	ExtractedData models.ProjectIntakeData `json:"extractedData"`
	Phase         models.ConversationPhase `json:"phase"`
	Confidence    float64                  `json:"confidence"`
}

// intakeModelReply mirrors the JSON object the model is instructed to return.
// Confidence is a pointer so an omitted value can fall back to the default.
type intakeModelReply struct {
	Response      string                   `json:"response"`
	ExtractedData models.ProjectIntakeData `json:"extractedData"`
	Phase         models.ConversationPhase `json:"phase"`
	Confidence    *float64                 `json:"confidence"`
	MissingFields []string                 `json:"missingFields"`
}

// IntakeEngine drives the conversational intake state machine. It is
// stateless across calls: the caller resends the accumulated context on
// every turn.
type IntakeEngine struct {
	genaiClient genai.ClientInterface
}

// NewIntakeEngine creates a new intake engine with the given GenAI client.
func NewIntakeEngine(genaiClient genai.ClientInterface) *IntakeEngine {
	slog.Debug("IntakeEngine.NewIntakeEngine: creating engine", "hasGenAI", genaiClient != nil)
	return &IntakeEngine{genaiClient: genaiClient}
}

// Advance processes one user message against the accumulated conversation
// context and returns the assistant's reply plus the updated intake data.
//
// A model transport failure is fatal and propagates to the caller. A model
// reply with no parseable JSON is not: the raw text becomes the response,
// the extracted data and phase pass through unchanged, and confidence drops
// to 0.5. The conversation must be able to continue on malformed output.
func (e *IntakeEngine) Advance(ctx context.Context, userMessage string, conv *models.ConversationContext) (*TurnResult, error) {
	slog.Debug("IntakeEngine.Advance: processing turn", "phase", conv.Phase, "historyLength", len(conv.Messages), "messageLength", len(userMessage))

	messages, err := e.buildTurnMessages(userMessage, conv)
	if err != nil {
		return nil, err
	}

	text, err := e.genaiClient.GenerateWithMessages(ctx, messages, intakeMaxTokens)
	if err != nil {
		slog.Error("IntakeEngine.Advance: model call failed", "error", err)
		return nil, fmt.Errorf("intake model call failed: %w", err)
	}

	result := e.parseTurnReply(text, conv)
	slog.Info("IntakeEngine.Advance: turn processed", "phase", result.Phase, "confidence", result.Confidence, "responseLength", len(result.Response))
	return result, nil
}

// buildTurnMessages assembles the completion request: the fixed system
// prompt, the full prior history, and a synthesized instruction turn that
// embeds the current extracted data, phase, and the verbatim user message.
func (e *IntakeEngine) buildTurnMessages(userMessage string, conv *models.ConversationContext) ([]openai.ChatCompletionMessageParamUnion, error) {
	extractedJSON, err := json.MarshalIndent(conv.ExtractedData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize extracted data: %w", err)
	}

	phase := conv.Phase
	if phase == "" {
		phase = models.PhaseIntake
	}

	instruction := fmt.Sprintf(`Current extracted project data:
%s

Current phase: %s

User message: %q

Instructions:
1. Update the extracted project data based on the user's message
2. Determine what information is still missing
3. If key information is missing, ask ONE clarifying question
4. If all essential information is gathered (name, objective, success criteria, timeline, stakeholders), move to confirmation phase
5. In confirmation phase, summarize the project and ask for approval

Respond in JSON format:
{
  "response": "Your conversational response to the user",
  "extractedData": { updated project data },
  "phase": "intake" | "clarification" | "confirmation" | "complete",
  "confidence": 0.0-1.0,
  "missingFields": ["list of missing important fields"]
}`, extractedJSON, phase, userMessage)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(intakeSystemPrompt),
	}
	for _, msg := range conv.Messages {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(instruction))
	return messages, nil
}

// parseTurnReply extracts and applies the model's structured reply, falling
// back to the degraded pass-through result on any parse failure.
func (e *IntakeEngine) parseTurnReply(text string, conv *models.ConversationContext) *TurnResult {
	degraded := &TurnResult{
		Response:      text,
		ExtractedData: conv.ExtractedData,
		Phase:         conv.Phase,
		Confidence:    degradedConfidence,
	}

	block, ok := ExtractJSONObject(text)
	if !ok {
		slog.Warn("IntakeEngine.parseTurnReply: no JSON object in model output, degrading to raw text", "responseLength", len(text))
		return degraded
	}

	var reply intakeModelReply
	if err := json.Unmarshal([]byte(block), &reply); err != nil {
		slog.Warn("IntakeEngine.parseTurnReply: malformed JSON in model output, degrading to raw text", "error", err)
		return degraded
	}

	phase := reply.Phase
	if phase == "" {
		phase = conv.Phase
	}
	confidence := defaultConfidence
	if reply.Confidence != nil {
		confidence = *reply.Confidence
	}

	return &TurnResult{
		Response:      reply.Response,
		ExtractedData: conv.ExtractedData.Merge(reply.ExtractedData),
		Phase:         phase,
		Confidence:    confidence,
	}
}
