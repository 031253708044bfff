package content

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/classforge/classforge-backend/internal/domain"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	pkgerrors "github.com/classforge/classforge-backend/internal/pkg/errors"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

// Collector is the always-run finalizer of every content workflow. It
// gathers whatever artifacts exist, merges them into the route's target
// document, and summarizes the run. It is also invoked directly by the
// salvage path, in which case the state carries no artifacts and they are
// reloaded from storage by job ID.
type Collector struct {
	log  *logger.Logger
	deps Deps
}

func NewCollector(deps Deps) *Collector {
	return &Collector{
		log:  deps.Log.With("module", "Collector"),
		deps: deps,
	}
}

type collectedArtifact struct {
	Mode    string
	Bucket  string
	Content map[string]any
}

func (c *Collector) Run(ctx context.Context, dbc dbctx.Context, jobID uuid.UUID, route string, req Request, snap orchestrator.State) (orchestrator.State, error) {
	artifacts := c.fromState(snap)
	if len(artifacts) == 0 {
		loaded, err := c.fromStorage(dbc, jobID)
		if err != nil {
			c.log.Warn("artifact reload failed", "job_id", jobID, "error", err)
		}
		artifacts = loaded
	}

	switch route {
	case types.RouteRemedy:
		return c.collectRemedy(dbc, jobID, req, snap, artifacts)
	default:
		return c.collectSession(dbc, req, snap, artifacts)
	}
}

func (c *Collector) fromState(snap orchestrator.State) []collectedArtifact {
	var out []collectedArtifact
	for _, mode := range rtypes.AllModes {
		raw, ok := snap[ArtifactKey(string(mode))].(map[string]any)
		if !ok {
			continue
		}
		content, _ := raw["content"].(map[string]any)
		bucket, _ := raw["bucket"].(string)
		if bucket == "" {
			bucket = BucketForMode(mode)
		}
		out = append(out, collectedArtifact{
			Mode:    string(mode),
			Bucket:  bucket,
			Content: content,
		})
	}
	return out
}

func (c *Collector) fromStorage(dbc dbctx.Context, jobID uuid.UUID) ([]collectedArtifact, error) {
	if c.deps.Artifacts == nil {
		return nil, nil
	}
	rows, err := c.deps.Artifacts.ListByJob(dbc, jobID)
	if err != nil {
		return nil, err
	}
	var out []collectedArtifact
	for _, row := range rows {
		var content map[string]any
		if len(row.Content) > 0 {
			_ = json.Unmarshal(row.Content, &content)
		}
		out = append(out, collectedArtifact{
			Mode:    row.Mode,
			Bucket:  BucketForMode(rtypes.Mode(row.Mode)),
			Content: content,
		})
	}
	return out, nil
}

// collectSession merges artifacts into the per-mode buckets of the session
// document. Existing bucket entries are kept; new material is appended.
func (c *Collector) collectSession(dbc dbctx.Context, req Request, snap orchestrator.State, artifacts []collectedArtifact) (orchestrator.State, error) {
	if len(artifacts) == 0 {
		return nil, pkgerrors.ErrNoArtifacts
	}
	sessionID, ok := req.SessionUUID()
	if !ok {
		return nil, fmt.Errorf("missing session_id")
	}

	buckets := map[string][]any{}
	for _, a := range artifacts {
		entry := map[string]any{"mode": a.Mode}
		for k, v := range a.Content {
			entry[k] = v
		}
		buckets[a.Bucket] = append(buckets[a.Bucket], entry)
	}

	if c.deps.Sessions != nil {
		doc, err := c.deps.Sessions.GetBySessionID(dbc, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load session doc: %w", err)
		}
		if doc == nil {
			doc = &types.SessionDoc{SessionID: sessionID}
		}
		doc.Topic = req.Topic
		doc.GradeLevel = req.GradeLevel
		doc.Status = "ready"
		doc.Texts = appendBucket(doc.Texts, buckets[BucketTexts])
		doc.Videos = appendBucket(doc.Videos, buckets[BucketVideos])
		doc.Games = appendBucket(doc.Games, buckets[BucketGames])
		doc.PracticeQuestions = appendBucket(doc.PracticeQuestions, buckets[BucketPracticeQuestions])
		doc.AssessmentQuestions = appendBucket(doc.AssessmentQuestions, buckets[BucketAssessmentQuestions])
		if err := c.deps.Sessions.Upsert(dbc, doc); err != nil {
			return nil, fmt.Errorf("write session doc: %w", err)
		}
	}

	counts := map[string]any{}
	for bucket, entries := range buckets {
		counts[bucket] = len(entries)
	}
	return orchestrator.State{
		"collected": map[string]any{
			"session_id":     sessionID.String(),
			"artifact_count": len(artifacts),
			"buckets":        counts,
		},
	}, nil
}

// collectRemedy appends one dated entry to the student's remediation report
// summarizing the gaps, plans, and diagnostics of this run.
func (c *Collector) collectRemedy(dbc dbctx.Context, jobID uuid.UUID, req Request, snap orchestrator.State, artifacts []collectedArtifact) (orchestrator.State, error) {
	studentID, ok := req.StudentUUID()
	if !ok {
		return nil, fmt.Errorf("missing student_id")
	}

	plans, _ := snap[KeyPlans].([]any)
	categories := map[string]bool{}
	for _, raw := range plans {
		if plan, ok := raw.(map[string]any); ok {
			if cat, ok := plan["category"].(string); ok && cat != "" {
				categories[cat] = true
			}
		}
	}
	distinct := make([]string, 0, len(categories))
	for cat := range categories {
		distinct = append(distinct, cat)
	}

	summary := map[string]any{
		"job_id":              jobID.String(),
		"created_at":          time.Now().UTC().Format(time.RFC3339),
		"total_gaps":          len(req.LearningGaps),
		"total_plans":         len(plans),
		"distinct_categories": distinct,
		"plans":               plans,
	}
	if diag, ok := snap[KeyDiagnostics].(map[string]any); ok {
		summary["diagnostics"] = diag
	}

	if c.deps.Reports != nil {
		if err := c.deps.Reports.AppendEntry(dbc, studentID, summary); err != nil {
			return nil, fmt.Errorf("append remedy report: %w", err)
		}
	}

	return orchestrator.State{KeyRemedySummary: summary}, nil
}

func appendBucket(existing datatypes.JSON, entries []any) datatypes.JSON {
	if len(entries) == 0 {
		return existing
	}
	var current []any
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &current)
	}
	current = append(current, entries...)
	raw, err := json.Marshal(current)
	if err != nil {
		return existing
	}
	return datatypes.JSON(raw)
}
