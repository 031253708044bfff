package content

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/classforge/classforge-backend/internal/domain"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	pkgerrors "github.com/classforge/classforge-backend/internal/pkg/errors"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
)

func bucketLen(t *testing.T, raw datatypes.JSON) int {
	t.Helper()
	if len(raw) == 0 {
		return 0
	}
	var entries []any
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode bucket: %v", err)
	}
	return len(entries)
}

func TestCollectorMergesArtifactsIntoSessionDoc(t *testing.T) {
	env := newTestEnv(t)
	c := NewCollector(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	sessionID := uuid.New()
	req := Request{SessionID: sessionID.String(), Topic: "fractions", GradeLevel: "4"}
	snap := orchestrator.State{
		ArtifactKey(string(rtypes.ModeReading)): map[string]any{
			"mode":    string(rtypes.ModeReading),
			"bucket":  BucketTexts,
			"content": map[string]any{"title": "Halves and quarters"},
		},
		ArtifactKey(string(rtypes.ModeWatching)): map[string]any{
			"mode":    string(rtypes.ModeWatching),
			"bucket":  BucketVideos,
			"content": map[string]any{"title": "Fractions video"},
		},
	}

	state, err := c.Run(ctx, dbc, uuid.New(), types.RouteAHS, req, snap)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	doc := env.sessions.docs[sessionID]
	if doc == nil {
		t.Fatalf("expected session doc upserted")
	}
	if doc.Topic != "fractions" || doc.Status != "ready" {
		t.Fatalf("unexpected doc %+v", doc)
	}
	if bucketLen(t, doc.Texts) != 1 || bucketLen(t, doc.Videos) != 1 {
		t.Fatalf("expected one text and one video, got texts=%s videos=%s", doc.Texts, doc.Videos)
	}

	collected, _ := state["collected"].(map[string]any)
	if collected["artifact_count"] != 2 {
		t.Fatalf("expected 2 artifacts, got %v", collected)
	}
}

func TestCollectorAppendsToExistingBuckets(t *testing.T) {
	env := newTestEnv(t)
	c := NewCollector(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	sessionID := uuid.New()
	existing, _ := json.Marshal([]any{map[string]any{"title": "Old text"}})
	env.sessions.docs[sessionID] = &types.SessionDoc{
		SessionID: sessionID,
		Texts:     datatypes.JSON(existing),
	}

	snap := orchestrator.State{
		ArtifactKey(string(rtypes.ModeReading)): map[string]any{
			"mode":    string(rtypes.ModeReading),
			"bucket":  BucketTexts,
			"content": map[string]any{"title": "New text"},
		},
	}
	if _, err := c.Run(ctx, dbc, uuid.New(), types.RouteAHS, Request{SessionID: sessionID.String()}, snap); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := bucketLen(t, env.sessions.docs[sessionID].Texts); got != 2 {
		t.Fatalf("expected existing entry kept plus new one, got %d", got)
	}
}

func TestCollectorReloadsArtifactsFromStorage(t *testing.T) {
	env := newTestEnv(t)
	c := NewCollector(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	jobID := uuid.New()
	sessionID := uuid.New()
	content, _ := json.Marshal(map[string]any{"title": "Recovered problems"})
	env.artifacts.rows = append(env.artifacts.rows, &types.Artifact{
		ID:        uuid.New(),
		JobID:     jobID,
		SessionID: &sessionID,
		Mode:      string(rtypes.ModeSolving),
		Content:   datatypes.JSON(content),
	})

	state, err := c.Run(ctx, dbc, jobID, types.RouteAHS, Request{SessionID: sessionID.String()}, orchestrator.State{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := bucketLen(t, env.sessions.docs[sessionID].PracticeQuestions); got != 1 {
		t.Fatalf("expected reloaded artifact in practice bucket, got %d", got)
	}
	collected, _ := state["collected"].(map[string]any)
	if collected["artifact_count"] != 1 {
		t.Fatalf("expected salvage to count 1 artifact, got %v", collected)
	}
}

func TestCollectorErrorsWhenNothingProduced(t *testing.T) {
	env := newTestEnv(t)
	c := NewCollector(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	_, err := c.Run(ctx, dbc, uuid.New(), types.RouteAHS, Request{SessionID: uuid.NewString()}, orchestrator.State{})
	if !errors.Is(err, pkgerrors.ErrNoArtifacts) {
		t.Fatalf("expected ErrNoArtifacts, got %v", err)
	}
}

func TestCollectorAppendsRemedyReportEntry(t *testing.T) {
	env := newTestEnv(t)
	c := NewCollector(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	studentID := uuid.New()
	jobID := uuid.New()
	snap := orchestrator.State{
		KeyPlans: []any{
			map[string]any{"gap_code": "basic_arithmetic_facts", "category": "knowledge"},
			map[string]any{"gap_code": "fraction_equivalence", "category": "conceptual"},
		},
		KeyDiagnostics: map[string]any{"gap_nature": "fundamental"},
	}
	req := Request{
		StudentID: studentID.String(),
		LearningGaps: []types.GapEvidence{
			{GapCode: "basic_arithmetic_facts"},
			{GapCode: "fraction_equivalence"},
		},
	}

	state, err := c.Run(ctx, dbc, jobID, types.RouteRemedy, req, snap)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	entries := env.reports.entries[studentID]
	if len(entries) != 1 {
		t.Fatalf("expected one report entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["job_id"] != jobID.String() || entry["total_plans"] != 2 || entry["total_gaps"] != 2 {
		t.Fatalf("unexpected entry %v", entry)
	}
	cats, _ := entry["distinct_categories"].([]string)
	if len(cats) != 2 {
		t.Fatalf("expected 2 distinct categories, got %v", entry["distinct_categories"])
	}
	if _, ok := entry["diagnostics"]; !ok {
		t.Fatalf("expected diagnostics carried into report entry")
	}

	summary, _ := state[KeyRemedySummary].(map[string]any)
	if summary == nil {
		t.Fatalf("expected remedy summary in state")
	}
}
