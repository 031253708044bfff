package remedy

import (
	"testing"

	types "github.com/classforge/classforge-backend/internal/domain"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestClassifyPreClassifiedGap(t *testing.T) {
	c := NewGapClassifier(testLogger(t))

	out := c.Classify(types.GapEvidence{
		GapCode: "algebra_linear_equations",
		GapType: "Foundational_gap",
	})
	if out.Category != rtypes.CategoryFoundational {
		t.Fatalf("expected foundational, got %s", out.Category)
	}
	if out.Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95, got %v", out.Confidence)
	}
	if out.Reasoning != "Using pre-classified type foundational" {
		t.Fatalf("unexpected reasoning %q", out.Reasoning)
	}
}

func TestClassifyKeywordScoring(t *testing.T) {
	c := NewGapClassifier(testLogger(t))

	out := c.Classify(types.GapEvidence{
		GapCode:  "cannot_recall_basic_facts",
		Evidence: []string{"forgets definitions", "weak term memory"},
	})
	if out.Category != rtypes.CategoryKnowledge {
		t.Fatalf("expected knowledge, got %s (%s)", out.Category, out.Reasoning)
	}
	if out.Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %v", out.Confidence)
	}
}

func TestClassifyZeroMatchesDefaultsToFirstCategory(t *testing.T) {
	c := NewGapClassifier(testLogger(t))

	out := c.Classify(types.GapEvidence{GapCode: "xyzzy"})
	if out.Category != rtypes.CategoryKnowledge {
		t.Fatalf("expected first category for zero matches, got %s", out.Category)
	}
	if out.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", out.Confidence)
	}
}

func TestClassifyTieBreaksToEarlierCategory(t *testing.T) {
	c := NewGapClassifier(testLogger(t))

	// "basic" appears in both the knowledge and foundational tables;
	// knowledge is declared first and must win the tie.
	out := c.Classify(types.GapEvidence{GapCode: "basic"})
	if out.Category != rtypes.CategoryKnowledge {
		t.Fatalf("expected knowledge on tie, got %s", out.Category)
	}
}

func TestClassifyTieBreaksOnRawScoreNotConfidence(t *testing.T) {
	c := NewGapClassifier(testLogger(t))

	// "recall" sits in both the knowledge and retention tables, so both
	// score 1. Retention's shorter table would yield a higher normalized
	// confidence, but the raw-score tie must still go to knowledge.
	out := c.Classify(types.GapEvidence{GapCode: "zzz", Evidence: []string{"recall"}})
	if out.Category != rtypes.CategoryKnowledge {
		t.Fatalf("expected knowledge on raw-score tie, got %s (%s)", out.Category, out.Reasoning)
	}
	want := 1.0 / 15.0 // score 1 over 2*7 keywords + 1 evidence item
	if out.Confidence != want {
		t.Fatalf("expected confidence %v, got %v", want, out.Confidence)
	}
}

func TestClassifyScoresKeywordOncePerEvidenceText(t *testing.T) {
	c := NewGapClassifier(testLogger(t))

	// Repeated evidence items concatenate into one text, so a keyword can
	// contribute at most +1 no matter how often it appears.
	out := c.Classify(types.GapEvidence{GapCode: "fact", Evidence: []string{"recall", "recall"}})
	if out.Category != rtypes.CategoryKnowledge {
		t.Fatalf("expected knowledge, got %s", out.Category)
	}
	if out.Confidence != 0.1875 { // (2 code + 1 evidence) / (2*7 + 2)
		t.Fatalf("expected confidence 0.1875, got %v", out.Confidence)
	}
}
