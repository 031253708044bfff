package remedy

import (
	types "github.com/classforge/classforge-backend/internal/domain"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

// Base mode sequences per gap category, before checkpoint insertion.
var modeStrategies = map[rtypes.GapCategory][]rtypes.Mode{
	rtypes.CategoryKnowledge:    {rtypes.ModeReading, rtypes.ModeWatching, rtypes.ModeAssessment},
	rtypes.CategoryConceptual:   {rtypes.ModeDebating, rtypes.ModeDoing, rtypes.ModeReading, rtypes.ModeAssessment},
	rtypes.CategoryApplication:  {rtypes.ModeSolving, rtypes.ModePlaying, rtypes.ModeDoing, rtypes.ModeAssessment},
	rtypes.CategoryFoundational: {rtypes.ModeReading, rtypes.ModeWatching, rtypes.ModeAssessment},
	rtypes.CategoryRetention:    {rtypes.ModeReading, rtypes.ModeSolving, rtypes.ModePlaying, rtypes.ModeAssessment},
	rtypes.CategoryEngagement:   {rtypes.ModePlaying, rtypes.ModeListening, rtypes.ModeWatching, rtypes.ModeAssessment},
}

var defaultStrategy = []rtypes.Mode{rtypes.ModeReading, rtypes.ModeAssessment}

type categorySpec struct {
	focus               string
	contentRequirements map[string]any
	assessmentFocus     string
	modeCoordination    string
}

var categorySpecs = map[rtypes.GapCategory]categorySpec{
	rtypes.CategoryKnowledge: {
		focus:            "factual_information_delivery",
		assessmentFocus:  "recall",
		modeCoordination: "sequential_information_build",
	},
	rtypes.CategoryConceptual: {
		focus:            "understanding_relationships",
		assessmentFocus:  "analysis",
		modeCoordination: "concept_building_sequence",
	},
	rtypes.CategoryApplication: {
		focus:            "practical_problem_solving",
		assessmentFocus:  "application",
		modeCoordination: "skill_building_progression",
	},
	rtypes.CategoryFoundational: {
		focus:               "prerequisite_knowledge",
		contentRequirements: map[string]any{"escalation_required": true},
		assessmentFocus:     "foundation_check",
		modeCoordination:    "prerequisite_building",
	},
	rtypes.CategoryRetention: {
		focus:            "spaced_repetition",
		assessmentFocus:  "retention_check",
		modeCoordination: "memory_reinforcement_cycle",
	},
	rtypes.CategoryEngagement: {
		focus:            "motivational_content",
		assessmentFocus:  "engagement_check",
		modeCoordination: "engagement_building_sequence",
	},
}

// StrategyPlanner turns a classified gap into a remediation plan: the mode
// sequence with checkpoint assessments interleaved, plus the content
// specifications downstream executors consume.
type StrategyPlanner struct {
	log *logger.Logger
}

func NewStrategyPlanner(baseLog *logger.Logger) *StrategyPlanner {
	return &StrategyPlanner{log: baseLog.With("module", "StrategyPlanner")}
}

/*
Plan builds the remediation plan for one classified gap.

Checkpoint insertion walks the category's base sequence and appends a
checkpoint assessment after every mode except:
	- the last mode in the sequence (no trailing duplicate),
	- assessments themselves, and
	- modes the base sequence already follows with an assessment,
so two assessments never run back to back.

Estimated duration is 15 minutes of overhead plus 2 per mode plus 3 per
assessment in the final sequence.
*/
func (p *StrategyPlanner) Plan(analysis types.GapAnalysis, gap types.GapEvidence, contextRefs []string) types.RemediationPlan {
	base, ok := modeStrategies[analysis.Category]
	if !ok {
		base = defaultStrategy
	}

	modes := make([]rtypes.Mode, 0, 2*len(base))
	for i, mode := range base {
		modes = append(modes, mode)
		if mode == rtypes.ModeAssessment {
			continue
		}
		if i >= len(base)-1 || base[i+1] == rtypes.ModeAssessment {
			continue
		}
		modes = append(modes, rtypes.ModeAssessment)
	}

	assessments := 0
	for _, m := range modes {
		if m == rtypes.ModeAssessment {
			assessments++
		}
	}
	duration := 15 + 2*len(modes) + 3*assessments

	spec := categorySpecs[analysis.Category]
	contentSpecs := map[string]any{
		"gap_code":               gap.GapCode,
		"gap_evidence":           gap.Evidence,
		"context_refs":           contextRefs,
		"targeted_remediation":   true,
		"focus":                  spec.focus,
		"assessment_focus":       spec.assessmentFocus,
		"mode_coordination":      spec.modeCoordination,
		"gap_type":               string(analysis.Category),
		"mode_sequence":          modesToStrings(modes),
		"orchestration_strategy": string(analysis.Category) + "_remediation_sequence",
	}
	if spec.contentRequirements != nil {
		contentSpecs["content_requirements"] = spec.contentRequirements
	}

	return types.RemediationPlan{
		GapCode:                  gap.GapCode,
		Category:                 analysis.Category,
		SelectedModes:            modes,
		ContentSpecifications:    contentSpecs,
		Priority:                 1,
		EstimatedDurationMinutes: duration,
	}
}

func modesToStrings(modes []rtypes.Mode) []string {
	out := make([]string, 0, len(modes))
	for _, m := range modes {
		out = append(out, string(m))
	}
	return out
}
