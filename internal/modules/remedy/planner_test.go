package remedy

import (
	"reflect"
	"testing"

	types "github.com/classforge/classforge-backend/internal/domain"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
)

func TestPlanKnowledgeSequenceAndCheckpoints(t *testing.T) {
	p := NewStrategyPlanner(testLogger(t))

	plan := p.Plan(
		types.GapAnalysis{GapCode: "recall_facts", Category: rtypes.CategoryKnowledge},
		types.GapEvidence{GapCode: "recall_facts"},
		nil,
	)

	want := []rtypes.Mode{
		rtypes.ModeReading,
		rtypes.ModeAssessment,
		rtypes.ModeWatching,
		rtypes.ModeAssessment,
	}
	if !reflect.DeepEqual(plan.SelectedModes, want) {
		t.Fatalf("mode sequence mismatch:\n got %v\nwant %v", plan.SelectedModes, want)
	}

	// 4 modes, 2 of them assessments: 15 + 2*4 + 3*2.
	if plan.EstimatedDurationMinutes != 29 {
		t.Fatalf("expected duration 29, got %d", plan.EstimatedDurationMinutes)
	}
	if plan.Priority != 1 {
		t.Fatalf("expected priority 1, got %d", plan.Priority)
	}
}

func TestPlanNeverPlacesConsecutiveAssessments(t *testing.T) {
	p := NewStrategyPlanner(testLogger(t))

	for _, category := range rtypes.Categories {
		plan := p.Plan(
			types.GapAnalysis{GapCode: "g", Category: category},
			types.GapEvidence{GapCode: "g"},
			nil,
		)
		for i := 1; i < len(plan.SelectedModes); i++ {
			if plan.SelectedModes[i] == rtypes.ModeAssessment && plan.SelectedModes[i-1] == rtypes.ModeAssessment {
				t.Fatalf("category %s: consecutive assessments in %v", category, plan.SelectedModes)
			}
		}
	}
}

func TestPlanContentSpecifications(t *testing.T) {
	p := NewStrategyPlanner(testLogger(t))

	plan := p.Plan(
		types.GapAnalysis{GapCode: "algebra_basics", Category: rtypes.CategoryFoundational},
		types.GapEvidence{GapCode: "algebra_basics", Evidence: []string{"failed placement test"}},
		[]string{"ctx-1"},
	)

	specs := plan.ContentSpecifications
	if specs["gap_code"] != "algebra_basics" {
		t.Fatalf("missing gap_code: %v", specs)
	}
	if specs["focus"] != "prerequisite_knowledge" {
		t.Fatalf("expected foundational focus, got %v", specs["focus"])
	}
	if specs["orchestration_strategy"] != "foundational_remediation_sequence" {
		t.Fatalf("unexpected orchestration_strategy %v", specs["orchestration_strategy"])
	}
	reqs, ok := specs["content_requirements"].(map[string]any)
	if !ok || reqs["escalation_required"] != true {
		t.Fatalf("foundational plans must require escalation, got %v", specs["content_requirements"])
	}
	if specs["targeted_remediation"] != true {
		t.Fatalf("expected targeted_remediation true")
	}
}

func TestPlanUnknownCategoryUsesDefaultStrategy(t *testing.T) {
	p := NewStrategyPlanner(testLogger(t))

	plan := p.Plan(
		types.GapAnalysis{GapCode: "g", Category: rtypes.GapCategory("mystery")},
		types.GapEvidence{GapCode: "g"},
		nil,
	)
	want := []rtypes.Mode{rtypes.ModeReading, rtypes.ModeAssessment}
	if !reflect.DeepEqual(plan.SelectedModes, want) {
		t.Fatalf("expected default strategy %v, got %v", want, plan.SelectedModes)
	}
}
