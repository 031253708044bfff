package remedy

import (
	"fmt"
	"strings"

	types "github.com/classforge/classforge-backend/internal/domain"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

// Keyword tables the classifier scores against. A hit in the gap code counts
// double a hit in the evidence text.
var gapTypeKeywords = map[rtypes.GapCategory][]string{
	rtypes.CategoryKnowledge:    {"basic", "fact", "term", "definition", "information", "recall", "memory"},
	rtypes.CategoryConceptual:   {"concept", "principle", "theory", "understanding", "relationship", "why", "how"},
	rtypes.CategoryApplication:  {"apply", "solve", "practice", "problem", "exercise", "implementation"},
	rtypes.CategoryFoundational: {"foundation", "prerequisite", "basic", "elementary", "grade", "level", "fundamental"},
	rtypes.CategoryRetention:    {"forgot", "remember", "recall", "retention", "spaced", "repetition"},
	rtypes.CategoryEngagement:   {"motivation", "interest", "attention", "participation", "bored", "disengaged"},
}

// GapClassifier buckets a detected learning gap into one of the six
// remediation categories.
type GapClassifier struct {
	log *logger.Logger
}

func NewGapClassifier(baseLog *logger.Logger) *GapClassifier {
	return &GapClassifier{log: baseLog.With("module", "GapClassifier")}
}

/*
Classify scores the gap against every category's keyword table and picks the
best match. It never errors: a gap with zero keyword hits classifies as the
first category with confidence 0.

When the gap arrives pre-classified (GapType set), the label is trusted
outright: the "_gap" suffix is stripped, the result is lowercased, and
confidence is fixed at 0.95.

Scoring per category:
	- +2 for each keyword found in the gap code
	- +1 for each keyword found in the joined evidence text
The raw scores decide the winner, ties resolving to the earliest category in
declaration order. Only the winner is normalized:
confidence = score / (2*len(keywords) + len(evidence)).
*/
func (c *GapClassifier) Classify(gap types.GapEvidence) types.GapAnalysis {
	if pre := strings.TrimSpace(gap.GapType); pre != "" {
		category := strings.ToLower(strings.TrimSuffix(pre, "_gap"))
		return types.GapAnalysis{
			GapCode:    gap.GapCode,
			Category:   rtypes.GapCategory(category),
			Confidence: 0.95,
			Reasoning:  fmt.Sprintf("Using pre-classified type %s", category),
		}
	}

	code := strings.ToLower(gap.GapCode)
	evidenceText := strings.ToLower(strings.Join(gap.Evidence, " "))

	best := rtypes.Categories[0]
	bestScore := -1
	bestHits := []string{}
	for _, category := range rtypes.Categories {
		score := 0
		var hits []string
		for _, kw := range gapTypeKeywords[category] {
			if strings.Contains(code, kw) {
				score += 2
				hits = append(hits, kw)
			}
			if strings.Contains(evidenceText, kw) {
				score++
				hits = append(hits, kw)
			}
		}
		if score > bestScore {
			bestScore = score
			best = category
			bestHits = hits
		}
	}

	confidence := 0.0
	if denom := 2*len(gapTypeKeywords[best]) + len(gap.Evidence); denom > 0 && bestScore > 0 {
		confidence = float64(bestScore) / float64(denom)
	}
	reasoning := fmt.Sprintf("Matched %s keywords: %s", best, strings.Join(bestHits, ", "))
	if len(bestHits) == 0 {
		reasoning = fmt.Sprintf("No keyword matches; defaulting to %s", best)
	}
	return types.GapAnalysis{
		GapCode:    gap.GapCode,
		Category:   best,
		Confidence: confidence,
		Reasoning:  reasoning,
	}
}
