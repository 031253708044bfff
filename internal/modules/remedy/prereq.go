package remedy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/classforge/classforge-backend/internal/data/repos"
	types "github.com/classforge/classforge-backend/internal/domain"
	ctypes "github.com/classforge/classforge-backend/internal/domain/content"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/classforge/classforge-backend/internal/platform/openai"
	"github.com/classforge/classforge-backend/internal/platform/pinecone"
)

const (
	nsLearningGaps       = "learning_gaps"
	nsEducationalContent = "educational_content"
)

// Static prerequisite tables, matched by substring against the lowercased gap
// code in staticPrerequisiteOrder. The safety net when both retrieval and the
// model are unavailable.
var staticPrerequisiteOrder = []string{"algebra", "geometry", "reading"}

var staticPrerequisites = map[string][]rtypes.PrerequisiteTopic{
	"algebra": {
		{Topic: "basic_arithmetic", GradeLevel: "elementary", Priority: 1},
		{Topic: "number_sense", GradeLevel: "elementary", Priority: 2},
		{Topic: "fractions", GradeLevel: "elementary", Priority: 3},
	},
	"geometry": {
		{Topic: "basic_shapes", GradeLevel: "elementary", Priority: 1},
		{Topic: "measurement", GradeLevel: "elementary", Priority: 2},
		{Topic: "spatial_reasoning", GradeLevel: "elementary", Priority: 3},
	},
	"reading": {
		{Topic: "phonics", GradeLevel: "kindergarten", Priority: 1},
		{Topic: "vocabulary", GradeLevel: "kindergarten", Priority: 2},
		{Topic: "comprehension", GradeLevel: "kindergarten", Priority: 3},
	},
}

// PrerequisiteDiscovery resolves the prerequisite topics for a foundational
// gap. Resolution order: cache, vector retrieval, LLM fallback, static
// tables. Every resolution (fallbacks included) is written back to the cache
// so repeat gaps never re-run discovery.
type PrerequisiteDiscovery struct {
	log    *logger.Logger
	cache  repos.PrereqCacheRepo
	store  pinecone.VectorStore
	openAI openai.Client
}

func NewPrerequisiteDiscovery(baseLog *logger.Logger, cache repos.PrereqCacheRepo, store pinecone.VectorStore, ai openai.Client) *PrerequisiteDiscovery {
	return &PrerequisiteDiscovery{
		log:    baseLog.With("module", "PrerequisiteDiscovery"),
		cache:  cache,
		store:  store,
		openAI: ai,
	}
}

func (d *PrerequisiteDiscovery) Discover(ctx context.Context, dbc dbctx.Context, gap types.GapEvidence) ([]rtypes.PrerequisiteTopic, error) {
	gapCode := strings.TrimSpace(gap.GapCode)
	if gapCode == "" {
		return nil, fmt.Errorf("missing gap_code")
	}
	gradeLevel := strings.TrimSpace(gap.GradeLevel)
	subject := strings.TrimSpace(gap.Subject)

	if d.cache != nil {
		entry, err := d.cache.Get(dbc, gapCode, gradeLevel, subject)
		if err != nil {
			d.log.Warn("prerequisite cache read failed", "gap_code", gapCode, "error", err)
		} else if entry != nil {
			var topics []rtypes.PrerequisiteTopic
			if err := json.Unmarshal(entry.Prerequisites, &topics); err == nil && len(topics) > 0 {
				return topics, nil
			}
		}
	}

	topics, source := d.retrieve(ctx, gapCode, gradeLevel, subject)
	if len(topics) == 0 {
		topics, source = d.llmFallback(ctx, gapCode, gradeLevel, subject)
	}
	if len(topics) == 0 {
		topics = staticFallback(gapCode)
		source = ctypes.PrereqSourceStaticFallback
	}

	d.writeCache(dbc, gapCode, gradeLevel, subject, topics, source)
	return topics, nil
}

// retrieve embeds the gap descriptor and queries both vector namespaces:
// historical remediations (what prerequisites worked for similar gaps) and
// the curriculum content index (declared prerequisites). Results are merged,
// deduped by lowercased topic keeping the highest success rate, and ordered
// by priority then success rate.
func (d *PrerequisiteDiscovery) retrieve(ctx context.Context, gapCode, gradeLevel, subject string) ([]rtypes.PrerequisiteTopic, string) {
	if d.store == nil || d.openAI == nil {
		return nil, ""
	}
	query := strings.TrimSpace(gapCode + " " + gradeLevel + " " + subject)
	vecs, err := d.openAI.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		d.log.Warn("prerequisite embed failed", "gap_code", gapCode, "error", err)
		return nil, ""
	}
	vec := vecs[0]

	var filter map[string]any
	if gradeLevel != "" || subject != "" {
		filter = map[string]any{}
		if gradeLevel != "" {
			filter["grade_level"] = map[string]any{"$lte": gradeLevel}
		}
		if subject != "" {
			filter["subject"] = subject
		}
	}

	var gapTopics, contentTopics []rtypes.PrerequisiteTopic
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		matches, qErr := d.store.QueryMatches(gctx, nsLearningGaps, vec, 10, filter)
		if qErr != nil {
			d.log.Warn("learning_gaps query failed", "gap_code", gapCode, "error", qErr)
			return nil
		}
		for _, m := range matches {
			gapTopics = append(gapTopics, topicsFromMetadata(m.Metadata, "successful_prerequisites", m.Score)...)
		}
		return nil
	})
	g.Go(func() error {
		matches, qErr := d.store.QueryMatches(gctx, nsEducationalContent, vec, 5, nil)
		if qErr != nil {
			d.log.Warn("educational_content query failed", "gap_code", gapCode, "error", qErr)
			return nil
		}
		for _, m := range matches {
			contentTopics = append(contentTopics, topicsFromMetadata(m.Metadata, "prerequisites", m.Score)...)
		}
		return nil
	})
	_ = g.Wait()

	found := append(gapTopics, contentTopics...)

	if len(found) == 0 {
		return nil, ""
	}

	deduped := dedupeTopics(found)
	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Priority != deduped[j].Priority {
			return deduped[i].Priority < deduped[j].Priority
		}
		return deduped[i].SuccessRate > deduped[j].SuccessRate
	})
	return deduped, ctypes.PrereqSourceVectorSearch
}

func topicsFromMetadata(meta map[string]any, key string, score float64) []rtypes.PrerequisiteTopic {
	raw, ok := meta[key]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []rtypes.PrerequisiteTopic
	for i, item := range items {
		switch v := item.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			out = append(out, rtypes.PrerequisiteTopic{
				Topic:       v,
				GradeLevel:  "previous",
				Priority:    i + 1,
				Source:      ctypes.PrereqSourceVectorSearch,
				SuccessRate: score,
			})
		case map[string]any:
			topic, _ := v["topic"].(string)
			if strings.TrimSpace(topic) == "" {
				continue
			}
			grade, _ := v["grade_level"].(string)
			if grade == "" {
				grade = "previous"
			}
			priority := i + 1
			if p, ok := v["priority"].(float64); ok && p > 0 {
				priority = int(p)
			}
			desc, _ := v["description"].(string)
			out = append(out, rtypes.PrerequisiteTopic{
				Topic:       topic,
				GradeLevel:  grade,
				Priority:    priority,
				Description: desc,
				Source:      ctypes.PrereqSourceVectorSearch,
				SuccessRate: score,
			})
		}
	}
	return out
}

func dedupeTopics(topics []rtypes.PrerequisiteTopic) []rtypes.PrerequisiteTopic {
	best := map[string]rtypes.PrerequisiteTopic{}
	var order []string
	for _, t := range topics {
		key := strings.ToLower(strings.TrimSpace(t.Topic))
		if key == "" {
			continue
		}
		existing, seen := best[key]
		if !seen {
			best[key] = t
			order = append(order, key)
			continue
		}
		if t.SuccessRate > existing.SuccessRate {
			best[key] = t
		}
	}
	out := make([]rtypes.PrerequisiteTopic, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func (d *PrerequisiteDiscovery) llmFallback(ctx context.Context, gapCode, gradeLevel, subject string) ([]rtypes.PrerequisiteTopic, string) {
	if d.openAI == nil {
		return nil, ""
	}
	system := "You are a curriculum specialist. List the prerequisite topics a student must master before the given topic. " +
		"One per line, formatted as '- topic: short description'. Mention the grade level when it matters."
	user := fmt.Sprintf("Topic: %s\nGrade level: %s\nSubject: %s", gapCode, gradeLevel, subject)
	raw, err := d.openAI.GenerateText(ctx, system, user)
	if err != nil {
		d.log.Warn("prerequisite llm fallback failed", "gap_code", gapCode, "error", err)
		return nil, ""
	}
	topics := parsePrerequisiteLines(raw)
	if len(topics) == 0 {
		return nil, ""
	}
	return topics, ctypes.PrereqSourceLLMFallback
}

func staticFallback(gapCode string) []rtypes.PrerequisiteTopic {
	code := strings.ToLower(gapCode)
	for _, key := range staticPrerequisiteOrder {
		table := staticPrerequisites[key]
		if strings.Contains(code, key) {
			out := make([]rtypes.PrerequisiteTopic, len(table))
			copy(out, table)
			for i := range out {
				out[i].Source = ctypes.PrereqSourceStaticFallback
				out[i].SuccessRate = 0.3
			}
			return out
		}
	}
	return []rtypes.PrerequisiteTopic{{
		Topic:       "basic_concepts",
		GradeLevel:  "previous",
		Priority:    1,
		Description: fmt.Sprintf("Fundamental concepts needed for %s", gapCode),
		Source:      ctypes.PrereqSourceStaticFallback,
		SuccessRate: 0.3,
	}}
}

func (d *PrerequisiteDiscovery) writeCache(dbc dbctx.Context, gapCode, gradeLevel, subject string, topics []rtypes.PrerequisiteTopic, source string) {
	if d.cache == nil || len(topics) == 0 {
		return
	}
	raw, err := json.Marshal(topics)
	if err != nil {
		return
	}
	entry := &types.PrerequisiteCacheEntry{
		GapCode:       gapCode,
		GradeLevel:    gradeLevel,
		Subject:       subject,
		Prerequisites: datatypes.JSON(raw),
		Source:        source,
	}
	if err := d.cache.Put(dbc, entry); err != nil {
		d.log.Warn("prerequisite cache write failed", "gap_code", gapCode, "error", err)
	}
}

/*
ApplyToPlan folds discovered prerequisites into a foundational plan:
	- content_specifications gains "prerequisites" and "escalation_level"=1
	- the mode sequence gains a trailing assessment if one is not already
	  last (idempotent across repeat applications)
*/
func ApplyToPlan(plan *types.RemediationPlan, topics []rtypes.PrerequisiteTopic) {
	if plan == nil {
		return
	}
	if plan.ContentSpecifications == nil {
		plan.ContentSpecifications = map[string]any{}
	}
	plan.ContentSpecifications["prerequisites"] = topics
	plan.ContentSpecifications["escalation_level"] = 1
	if len(plan.SelectedModes) == 0 || plan.SelectedModes[len(plan.SelectedModes)-1] != rtypes.ModeAssessment {
		plan.SelectedModes = append(plan.SelectedModes, rtypes.ModeAssessment)
	}
}

// BuildLearningPath orders prerequisite topics into a sequential mastery
// path: 2 hours per topic with a mastery checkpoint gating each one.
func BuildLearningPath(topics []rtypes.PrerequisiteTopic) rtypes.LearningPath {
	sorted := make([]rtypes.PrerequisiteTopic, len(topics))
	copy(sorted, topics)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	checkpoints := make([]rtypes.MasteryCheckpoint, 0, len(sorted))
	for _, t := range sorted {
		checkpoints = append(checkpoints, rtypes.MasteryCheckpoint{
			Topic:            t.Topic,
			CheckType:        "mastery_check",
			PassingThreshold: 0.8,
		})
	}
	return rtypes.LearningPath{
		Topics:                 sorted,
		EstimatedDurationHours: len(sorted) * 2,
		LearningStrategy:       "sequential_mastery",
		Checkpoints:            checkpoints,
	}
}
