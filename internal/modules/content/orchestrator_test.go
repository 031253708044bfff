package content

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	types "github.com/classforge/classforge-backend/internal/domain"
	pkgerrors "github.com/classforge/classforge-backend/internal/pkg/errors"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/pinecone"
)

func TestOrchestratorRejectsIncompleteRequests(t *testing.T) {
	env := newTestEnv(t)
	o := NewOrchestrator(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	cases := []struct {
		name  string
		route string
		req   Request
	}{
		{"ahs missing topic", types.RouteAHS, Request{ContextRefs: []string{"ref-1"}}},
		{"ahs missing context refs", types.RouteAHS, Request{Topic: "fractions"}},
		{"remedy missing gaps", types.RouteRemedy, Request{StudentID: uuid.NewString()}},
		{"remedy content missing gaps", types.RouteRemedyContent, Request{Topic: "fractions"}},
		{"assessment missing topic", types.RouteAssessment, Request{}},
		{"unknown route", "DASHBOARD", Request{Topic: "fractions"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state, err := o.Run(ctx, dbc, uuid.New(), tc.route, tc.req)
			if !errors.Is(err, pkgerrors.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ok, _ := state[KeyDependenciesOK].(bool); ok {
				t.Fatalf("expected dependencies_ok=false, state=%v", state)
			}
		})
	}
}

func TestOrchestratorPublishesDBHandles(t *testing.T) {
	env := newTestEnv(t)
	o := NewOrchestrator(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	sessionID := uuid.NewString()
	state, err := o.Run(ctx, dbc, uuid.New(), types.RouteAHS, Request{
		Topic:       "fractions",
		ContextRefs: []string{"lesson-1"},
		SessionID:   sessionID,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	handles, _ := state[KeyDBHandles].(map[string]any)
	if handles["session_doc"] != "sessions/"+sessionID {
		t.Fatalf("expected session handle, got %v", handles)
	}

	studentID := uuid.NewString()
	state, err = o.Run(ctx, dbc, uuid.New(), types.RouteRemedy, Request{
		StudentID: studentID,
		LearningGaps: []types.GapEvidence{
			{GapCode: "fraction_equivalence", Evidence: []string{"confused halves and quarters"}},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	handles, _ = state[KeyDBHandles].(map[string]any)
	if handles["remedy_doc"] != "student_reports/"+studentID {
		t.Fatalf("expected remedy handle, got %v", handles)
	}
}

func TestOrchestratorResolvesContextBundle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	refSession := uuid.New()
	env.sessions.docs[refSession] = &types.SessionDoc{
		SessionID:  refSession,
		Topic:      "decimals",
		GradeLevel: "4",
		Status:     "ready",
	}
	env.vectors.matches = map[string][]pinecone.VectorMatch{
		"educational_content": {
			{ID: "c1", Score: 0.8, Metadata: map[string]any{"text": "Fractions name equal parts."}},
			{ID: "c2", Score: 0.2, Metadata: map[string]any{"other": "no text"}},
		},
	}
	o := NewOrchestrator(env.deps)

	state, err := o.Run(ctx, dbc, uuid.New(), types.RouteAHS, Request{
		Topic:       "fractions",
		SessionID:   uuid.NewString(),
		ContextRefs: []string{"lesson-fractions", refSession.String()},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	bundle, _ := state[KeyContextBundle].(map[string]any)
	if bundle == nil {
		t.Fatalf("expected context bundle in state, got %v", state)
	}
	excerpts, _ := bundle["excerpts"].([]any)
	if len(excerpts) != 1 {
		t.Fatalf("expected one text-bearing excerpt, got %v", bundle["excerpts"])
	}
	sessions, _ := bundle["recent_sessions"].([]any)
	if len(sessions) != 1 {
		t.Fatalf("expected one resolved session, got %v", bundle["recent_sessions"])
	}
	doc, _ := sessions[0].(map[string]any)
	if doc["topic"] != "decimals" {
		t.Fatalf("unexpected session excerpt %v", doc)
	}
}

func TestOrchestratorContextBundleDegradesPerRef(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	refSession := uuid.New()
	env.sessions.docs[refSession] = &types.SessionDoc{SessionID: refSession, Topic: "decimals"}
	env.vectors.err = errors.New("index unavailable")
	o := NewOrchestrator(env.deps)

	state, err := o.Run(ctx, dbc, uuid.New(), types.RouteAHS, Request{
		Topic:       "fractions",
		SessionID:   uuid.NewString(),
		ContextRefs: []string{"lesson-fractions", refSession.String()},
	})
	if err != nil {
		t.Fatalf("one resolvable ref must keep the stage alive: %v", err)
	}

	bundle, _ := state[KeyContextBundle].(map[string]any)
	unresolved, _ := bundle["unresolved"].([]string)
	if len(unresolved) != 1 || unresolved[0] != "lesson-fractions" {
		t.Fatalf("expected the failed ref listed as unresolved, got %v", bundle["unresolved"])
	}
	sessions, _ := bundle["recent_sessions"].([]any)
	if len(sessions) != 1 {
		t.Fatalf("expected the session ref still resolved, got %v", bundle["recent_sessions"])
	}
}

func TestOrchestratorContextBundleErrorsWhenAllRefsFail(t *testing.T) {
	env := newTestEnv(t)
	env.ai.embedErr = errors.New("embeddings down")
	o := NewOrchestrator(env.deps)
	ctx := context.Background()

	_, err := o.Run(ctx, dbctx.Context{Ctx: ctx}, uuid.New(), types.RouteAHS, Request{
		Topic:       "fractions",
		SessionID:   uuid.NewString(),
		ContextRefs: []string{"lesson-1", "lesson-2"},
	})
	if err == nil {
		t.Fatalf("expected error when every ref fails to resolve")
	}
}

func TestOrchestratorPlansAndPersistsRemedyGaps(t *testing.T) {
	env := newTestEnv(t)
	o := NewOrchestrator(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	jobID := uuid.New()

	state, err := o.Run(ctx, dbc, jobID, types.RouteRemedyContent, Request{
		StudentID: uuid.NewString(),
		LearningGaps: []types.GapEvidence{
			{GapCode: "basic_arithmetic_facts", Evidence: []string{"cannot recall multiplication tables"}},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	plans, ok := state[KeyPlans].([]map[string]any)
	if !ok || len(plans) != 1 {
		t.Fatalf("expected one plan in state, got %v", state[KeyPlans])
	}
	analysis, _ := plans[0]["analysis"].(map[string]any)
	if analysis["category"] != "knowledge" {
		t.Fatalf("expected knowledge classification, got %v", analysis)
	}

	if len(env.plans.docs) != 1 {
		t.Fatalf("expected one persisted plan doc, got %d", len(env.plans.docs))
	}
	doc := env.plans.docs[0]
	if doc.JobID != jobID || doc.GapCode != "basic_arithmetic_facts" || doc.GapCategory != "knowledge" {
		t.Fatalf("unexpected plan doc %+v", doc)
	}
	if doc.EstimatedDurationMinutes != 29 {
		t.Fatalf("expected 29 minute estimate, got %d", doc.EstimatedDurationMinutes)
	}
}

func TestOrchestratorFoundationalGapGainsPrerequisites(t *testing.T) {
	env := newTestEnv(t)
	o := NewOrchestrator(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	state, err := o.Run(ctx, dbc, uuid.New(), types.RouteRemedyContent, Request{
		StudentID: uuid.NewString(),
		LearningGaps: []types.GapEvidence{
			{GapCode: "algebra_readiness", GapType: "foundational_gap", GradeLevel: "5", Subject: "math"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	plans, _ := state[KeyPlans].([]map[string]any)
	if len(plans) != 1 {
		t.Fatalf("expected one plan, got %d", len(plans))
	}
	specs, _ := plans[0]["content_specifications"].(map[string]any)
	if specs == nil {
		t.Fatalf("missing content specifications: %v", plans[0])
	}
	if _, ok := specs["prerequisites"]; !ok {
		t.Fatalf("expected prerequisites attached, got %v", specs)
	}
	if lvl, ok := specs["escalation_level"].(float64); !ok || lvl != 1 {
		t.Fatalf("expected escalation_level 1, got %v", specs["escalation_level"])
	}
	if _, ok := specs["learning_path"]; !ok {
		t.Fatalf("expected learning path attached, got keys %v", specs)
	}
}

func TestOrchestratorRemedyDiagnostics(t *testing.T) {
	env := newTestEnv(t)
	o := NewOrchestrator(env.deps)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	state, err := o.Run(ctx, dbc, uuid.New(), types.RouteRemedy, Request{
		StudentID: uuid.NewString(),
		LearningGaps: []types.GapEvidence{
			{GapCode: "Basic_Number_Sense", Evidence: []string{"counts on fingers"}},
			{GapCode: "fraction_equivalence", Evidence: []string{"mixes up halves"}},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	diag, _ := state[KeyDiagnostics].(map[string]any)
	if diag == nil {
		t.Fatalf("expected diagnostics for REMEDY route")
	}
	if diag["gap_nature"] != "fundamental" {
		t.Fatalf("expected fundamental classification, got %v", diag["gap_nature"])
	}
	if diag["total_gaps"] != 2 {
		t.Fatalf("expected 2 gaps, got %v", diag["total_gaps"])
	}
	spiral, _ := diag["spiral_plan"].([]map[string]any)
	if len(spiral) != 2 {
		t.Fatalf("expected 2 spiral loops, got %v", diag["spiral_plan"])
	}
}
