package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/classforge/classforge-backend/internal/domain"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	"github.com/classforge/classforge-backend/internal/modules/remedy"
	pkgerrors "github.com/classforge/classforge-backend/internal/pkg/errors"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

const contentIndexNamespace = "educational_content"

var fundamentalKeywords = []string{"basic", "foundation", "pre", "prereq", "class", "grade", "tables", "phonics"}

// Orchestrator is the first stage of every content workflow. It validates the
// request against its route, classifies and plans remedy gaps, and publishes
// the db_handles downstream stages write through.
type Orchestrator struct {
	log        *logger.Logger
	deps       Deps
	classifier *remedy.GapClassifier
	planner    *remedy.StrategyPlanner
	prereq     *remedy.PrerequisiteDiscovery
}

func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		log:        deps.Log.With("module", "ContentOrchestrator"),
		deps:       deps,
		classifier: remedy.NewGapClassifier(deps.Log),
		planner:    remedy.NewStrategyPlanner(deps.Log),
		prereq:     remedy.NewPrerequisiteDiscovery(deps.Log, deps.PrereqCache, deps.Vectors, deps.AI),
	}
}

/*
Run validates route dependencies and prepares the workflow state.

Route requirements:
	- AHS: topic and at least one context ref
	- REMEDY / REMEDY_CONTENT: at least one learning gap
	- ASSESSMENT: topic

A requirement miss publishes dependencies_ok=false and errors, which aborts
the workflow (the collector finalizer still runs and the job salvages what it
can).
*/
func (o *Orchestrator) Run(ctx context.Context, dbc dbctx.Context, jobID uuid.UUID, route string, req Request) (orchestrator.State, error) {
	updates := orchestrator.State{
		KeyRoute:          route,
		KeyDependenciesOK: true,
	}

	if err := validateRoute(route, req); err != nil {
		updates[KeyDependenciesOK] = false
		return updates, err
	}

	updates[KeyDBHandles] = dbHandles(route, req)

	bundle, err := o.contextBundle(ctx, dbc, req)
	if err != nil {
		return updates, err
	}
	updates[KeyContextBundle] = bundle

	switch route {
	case types.RouteRemedy, types.RouteRemedyContent:
		plans, err := o.planGaps(ctx, dbc, jobID, req)
		if err != nil {
			return updates, err
		}
		updates[KeyPlans] = plans
		if route == types.RouteRemedy {
			updates[KeyDiagnostics] = diagnostics(req.LearningGaps)
		}
	}

	return updates, nil
}

func validateRoute(route string, req Request) error {
	switch route {
	case types.RouteAHS:
		if strings.TrimSpace(req.Topic) == "" || len(req.ContextRefs) == 0 {
			return fmt.Errorf("%w: route %s requires topic and context_refs", pkgerrors.ErrValidation, route)
		}
	case types.RouteRemedy, types.RouteRemedyContent:
		if len(req.LearningGaps) == 0 {
			return fmt.Errorf("%w: route %s requires learning_gaps", pkgerrors.ErrValidation, route)
		}
	case types.RouteAssessment:
		if strings.TrimSpace(req.Topic) == "" {
			return fmt.Errorf("%w: route %s requires topic", pkgerrors.ErrValidation, route)
		}
	default:
		return fmt.Errorf("%w: unknown route %q", pkgerrors.ErrValidation, route)
	}
	return nil
}

/*
contextBundle resolves the request's context refs into lightweight excerpts
for prompt conditioning. A ref that parses as a session UUID loads that
session's document; anything else is matched against the curriculum vector
index. A ref that cannot be resolved lands in the bundle's unresolved list
and the workflow carries on with partial context; the stage errors only when
every ref failed with a lookup error.
*/
func (o *Orchestrator) contextBundle(ctx context.Context, dbc dbctx.Context, req Request) (map[string]any, error) {
	excerpts := []any{}
	recentSessions := []any{}
	unresolved := []string{}

	attempted := 0
	failures := 0
	for _, raw := range req.ContextRefs {
		ref := strings.TrimSpace(raw)
		if ref == "" {
			continue
		}
		attempted++

		if sid, err := uuid.Parse(ref); err == nil && o.deps.Sessions != nil {
			doc, err := o.deps.Sessions.GetBySessionID(dbc, sid)
			if err != nil {
				o.log.Warn("context ref session lookup failed", "ref", ref, "error", err)
				failures++
				unresolved = append(unresolved, ref)
				continue
			}
			if doc == nil {
				unresolved = append(unresolved, ref)
				continue
			}
			recentSessions = append(recentSessions, map[string]any{
				"session_id":  doc.SessionID.String(),
				"topic":       doc.Topic,
				"grade_level": doc.GradeLevel,
				"status":      doc.Status,
			})
			continue
		}

		found, err := o.lookupExcerpts(ctx, ref)
		if err != nil {
			o.log.Warn("context ref lookup failed", "ref", ref, "error", err)
			failures++
			unresolved = append(unresolved, ref)
			continue
		}
		if len(found) == 0 {
			unresolved = append(unresolved, ref)
			continue
		}
		excerpts = append(excerpts, found...)
	}

	if attempted > 0 && failures == attempted {
		return nil, fmt.Errorf("context bundle: all %d refs failed to resolve", attempted)
	}
	return map[string]any{
		"excerpts":        excerpts,
		"recent_sessions": recentSessions,
		"unresolved":      unresolved,
	}, nil
}

// lookupExcerpts embeds the ref and pulls the closest curriculum snippets
// that carry text metadata. Missing collaborators resolve to nothing rather
// than erroring so offline deployments still run.
func (o *Orchestrator) lookupExcerpts(ctx context.Context, ref string) ([]any, error) {
	if o.deps.AI == nil || o.deps.Vectors == nil {
		return nil, nil
	}
	vecs, err := o.deps.AI.Embed(ctx, []string{ref})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("empty embedding for ref %q", ref)
	}
	matches, err := o.deps.Vectors.QueryMatches(ctx, contentIndexNamespace, vecs[0], 3, nil)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, m := range matches {
		text, _ := m.Metadata["text"].(string)
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, map[string]any{
			"ref":   ref,
			"text":  text,
			"score": m.Score,
		})
	}
	return out, nil
}

// dbHandles names the documents this workflow writes. Content routes target
// the session document; REMEDY appends to the student's report.
func dbHandles(route string, req Request) map[string]any {
	handles := map[string]any{}
	switch route {
	case types.RouteRemedy:
		if req.StudentID != "" {
			handles["remedy_doc"] = "student_reports/" + req.StudentID
		}
	default:
		if req.SessionID != "" {
			handles["session_doc"] = "sessions/" + req.SessionID
		}
	}
	return handles
}

// planGaps classifies each gap, plans its remediation, and for foundational
// gaps discovers prerequisites and folds them into the plan. Plans are
// persisted as rows and returned as state for the executors.
func (o *Orchestrator) planGaps(ctx context.Context, dbc dbctx.Context, jobID uuid.UUID, req Request) ([]map[string]any, error) {
	var docs []*types.RemediationPlanDoc
	var out []map[string]any

	var studentID *uuid.UUID
	if sid, ok := req.StudentUUID(); ok {
		studentID = &sid
	}

	for _, gap := range req.LearningGaps {
		analysis := o.classifier.Classify(gap)
		plan := o.planner.Plan(analysis, gap, req.ContextRefs)

		if analysis.Category == rtypes.CategoryFoundational {
			topics, err := o.prereq.Discover(ctx, dbc, gap)
			if err != nil {
				o.log.Warn("prerequisite discovery failed", "gap_code", gap.GapCode, "error", err)
			} else {
				remedy.ApplyToPlan(&plan, topics)
				plan.ContentSpecifications["learning_path"] = remedy.BuildLearningPath(topics)
			}
		}

		planMap, err := toMap(plan)
		if err != nil {
			return nil, fmt.Errorf("encode plan for %s: %w", gap.GapCode, err)
		}
		planMap["analysis"] = map[string]any{
			"category":   string(analysis.Category),
			"confidence": analysis.Confidence,
			"reasoning":  analysis.Reasoning,
		}
		out = append(out, planMap)

		specsJSON, _ := json.Marshal(plan.ContentSpecifications)
		modesJSON, _ := json.Marshal(plan.SelectedModes)
		docs = append(docs, &types.RemediationPlanDoc{
			JobID:                    jobID,
			StudentID:                studentID,
			GapCode:                  plan.GapCode,
			GapCategory:              string(plan.Category),
			SelectedModes:            datatypes.JSON(modesJSON),
			ContentSpecifications:    datatypes.JSON(specsJSON),
			Priority:                 plan.Priority,
			EstimatedDurationMinutes: plan.EstimatedDurationMinutes,
		})
	}

	if o.deps.Plans != nil && len(docs) > 0 {
		if _, err := o.deps.Plans.Create(dbc, docs); err != nil {
			return nil, fmt.Errorf("persist plans: %w", err)
		}
	}
	return out, nil
}

/*
diagnostics produces the REMEDY telemetry block: a coarse split of the gap
set into "fundamental" vs "procedural" plus a two-loop spiral focus. This is
observability output only; nothing downstream branches on it.
*/
func diagnostics(gaps []types.GapEvidence) map[string]any {
	codes := make([]string, 0, len(gaps))
	for _, g := range gaps {
		codes = append(codes, strings.ToLower(g.GapCode))
	}

	nature := "procedural"
	confidence := 0.55
	for _, code := range codes {
		for _, kw := range fundamentalKeywords {
			if strings.Contains(code, kw) {
				nature = "fundamental"
				confidence = 0.6
				break
			}
		}
		if nature == "fundamental" {
			break
		}
	}

	spiral := []map[string]any{}
	if len(codes) > 0 {
		spiral = append(spiral, map[string]any{"loop": 1, "focus": codes[:1]})
		second := codes[:1]
		if len(codes) > 1 {
			second = codes[1:2]
		}
		spiral = append(spiral, map[string]any{"loop": 2, "focus": second})
	}

	return map[string]any{
		"gap_codes":   codes,
		"gap_nature":  nature,
		"confidence":  confidence,
		"spiral_plan": spiral,
		"total_gaps":  len(codes),
	}
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
