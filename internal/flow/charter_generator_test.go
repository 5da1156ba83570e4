package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/autonoma/autonoma/internal/models"
)

func intakeFixture() models.ProjectIntakeData {
	name := "Warehouse Automation"
	objective := "Automate pick and pack"
	teamSize := 12
	return models.ProjectIntakeData{
		Name:            &name,
		Objective:       &objective,
		TeamSize:        &teamSize,
		SuccessCriteria: []string{"50% faster fulfillment"},
	}
}

func TestGenerateParsesCharter(t *testing.T) {
	reply := `Here is your charter:
{
  "executive_summary": "Automate the warehouse.",
  "objectives": [{"description": "Deploy robots", "measurable_target": "10 units"}],
  "scope": {"in_scope": ["picking"], "out_of_scope": ["shipping"]},
  "stakeholders": [{"name": "Ops Lead", "role": "Operations", "raci_level": "responsible"}],
  "timeline": [{"name": "Pilot", "description": "One aisle", "target_date": "2026-11-01", "status": "pending", "completion_percentage": 0}],
  "risks": [{"description": "Hardware delays", "probability": "high", "impact": "high", "mitigation": "Order early", "status": "identified"}],
  "communication_plan": "Biweekly report.",
  "success_metrics": ["throughput"]
}`
	gen := NewCharterGenerator(&mockClient{reply: reply})

	charter, err := gen.Generate(context.Background(), intakeFixture())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if charter.ExecutiveSummary != "Automate the warehouse." {
		t.Errorf("executive summary = %q", charter.ExecutiveSummary)
	}
	if len(charter.Objectives) != 1 || charter.Objectives[0].Description != "Deploy robots" {
		t.Errorf("objectives = %+v", charter.Objectives)
	}
	if len(charter.Timeline) != 1 || charter.Timeline[0].Status != models.MilestoneStatusPending {
		t.Errorf("timeline = %+v", charter.Timeline)
	}
	if len(charter.Risks) != 1 || charter.Risks[0].Probability != models.RiskLevelHigh {
		t.Errorf("risks = %+v", charter.Risks)
	}
}

func TestGenerateToleratesSparseCharter(t *testing.T) {
	// Short output with missing arrays parses fine; there is no structural
	// validation at this layer.
	gen := NewCharterGenerator(&mockClient{reply: `{"executive_summary": "Thin."}`})

	charter, err := gen.Generate(context.Background(), intakeFixture())
	if err != nil {
		t.Fatalf("Generate failed on sparse charter: %v", err)
	}
	if charter.ExecutiveSummary != "Thin." {
		t.Errorf("executive summary = %q", charter.ExecutiveSummary)
	}
	if len(charter.Objectives) != 0 {
		t.Errorf("objectives = %+v, want empty", charter.Objectives)
	}
}

func TestGenerateNoJSONIsFatal(t *testing.T) {
	gen := NewCharterGenerator(&mockClient{reply: "I cannot produce a charter right now."})

	_, err := gen.Generate(context.Background(), intakeFixture())
	if !errors.Is(err, ErrCharterUnparseable) {
		t.Fatalf("error = %v, want ErrCharterUnparseable", err)
	}
}

func TestGenerateMalformedJSONIsFatal(t *testing.T) {
	gen := NewCharterGenerator(&mockClient{reply: `{"objectives": "not an array"}`})

	_, err := gen.Generate(context.Background(), intakeFixture())
	if !errors.Is(err, ErrCharterUnparseable) {
		t.Fatalf("error = %v, want wrapped ErrCharterUnparseable", err)
	}
}

func TestGeneratePropagatesModelError(t *testing.T) {
	wantErr := errors.New("rate limited")
	gen := NewCharterGenerator(&mockClient{err: wantErr})

	_, err := gen.Generate(context.Background(), intakeFixture())
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want wrapped model error", err)
	}
}

func TestGenerateUsesCharterTokenBudget(t *testing.T) {
	mock := &mockClient{reply: `{"executive_summary": "x"}`}
	gen := NewCharterGenerator(mock)
	if _, err := gen.Generate(context.Background(), intakeFixture()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if mock.gotMaxTokens != charterMaxTokens {
		t.Errorf("maxTokens = %d, want %d", mock.gotMaxTokens, charterMaxTokens)
	}
}
