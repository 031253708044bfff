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
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

// Session document buckets, one per kind of generated material.
const (
	BucketTexts               = "texts"
	BucketVideos              = "videos"
	BucketGames               = "games"
	BucketPracticeQuestions   = "practice_questions"
	BucketAssessmentQuestions = "assessment_questions"
)

// BucketForMode maps a learning mode to the session-doc bucket its artifacts
// land in. Text-like modes share the texts bucket.
func BucketForMode(mode rtypes.Mode) string {
	switch mode {
	case rtypes.ModeWatching:
		return BucketVideos
	case rtypes.ModePlaying:
		return BucketGames
	case rtypes.ModeSolving:
		return BucketPracticeQuestions
	case rtypes.ModeAssessment:
		return BucketAssessmentQuestions
	default:
		return BucketTexts
	}
}

var modePrompts = map[rtypes.Mode]string{
	rtypes.ModeReading:   "Write a short instructional text a student can read to close the described gap. Return JSON with keys: title, body, key_points (array of strings).",
	rtypes.ModeWatching:  "Propose a short video lesson outline for the described gap. Return JSON with keys: title, outline (array of strings), search_query (a phrase to find a matching video).",
	rtypes.ModeDoing:     "Design a hands-on activity for the described gap. Return JSON with keys: title, materials (array), steps (array of strings).",
	rtypes.ModeDebating:  "Write Socratic discussion prompts for the described gap. Return JSON with keys: title, questions (array of strings), misconceptions (array of strings).",
	rtypes.ModeListening: "Write a short dialogue script for listening and speaking practice on the described gap. Return JSON with keys: title, dialogue (array of {speaker, line}), vocabulary (array of strings).",
	rtypes.ModePlaying:   "Design a simple learning game for the described gap. Return JSON with keys: title, rules (array of strings), rounds (array of {prompt, answer}).",
	rtypes.ModeSolving:   "Write practice problems for the described gap. Return JSON with keys: title, problems (array of {question, answer, hint}).",
	rtypes.ModeWriting:   "Design a writing exercise for the described gap. Return JSON with keys: title, prompt, rubric (array of strings).",
	rtypes.ModeAssessment: "Write assessment questions that check mastery of the described gap. " +
		"Return JSON with keys: title, questions (array of {question, options (array of 4), correct_index, explanation}).",
}

// ModeExecutor generates the material for one learning mode and persists it
// as an artifact row before returning, so a later branch failure cannot lose
// the output.
type ModeExecutor struct {
	log  *logger.Logger
	deps Deps
	mode rtypes.Mode
}

func NewModeExecutor(deps Deps, mode rtypes.Mode) *ModeExecutor {
	return &ModeExecutor{
		log:  deps.Log.With("module", "ModeExecutor", "mode", string(mode)),
		deps: deps,
		mode: mode,
	}
}

func (m *ModeExecutor) Run(ctx context.Context, dbc dbctx.Context, jobID uuid.UUID, req Request, snap orchestrator.State) (orchestrator.State, error) {
	prompt, ok := modePrompts[m.mode]
	if !ok {
		return nil, fmt.Errorf("unsupported mode %q", m.mode)
	}
	if m.deps.AI == nil {
		return nil, fmt.Errorf("mode %s: AI client unavailable", m.mode)
	}

	system := "You generate educational content for a single learning mode. Respond with only the requested JSON object."
	user := m.describeTask(prompt, req, snap)

	content, err := m.deps.AI.GenerateJSON(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("mode %s: generate: %w", m.mode, err)
	}

	if m.mode == rtypes.ModeWatching {
		m.attachVideos(ctx, req, content)
	}

	artifact, err := m.persist(dbc, jobID, req, content)
	if err != nil {
		return nil, err
	}

	return orchestrator.State{
		ArtifactKey(string(m.mode)): map[string]any{
			"artifact_id": artifact.ID.String(),
			"mode":        string(m.mode),
			"bucket":      BucketForMode(m.mode),
			"content":     content,
		},
	}, nil
}

// describeTask assembles the generation brief: topic and grade from the
// request plus, for remedy jobs, the planner's content specifications for
// whichever plan selected this mode.
func (m *ModeExecutor) describeTask(prompt string, req Request, snap orchestrator.State) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\n")
	if req.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	}
	if req.GradeLevel != "" {
		fmt.Fprintf(&b, "Grade level: %s\n", req.GradeLevel)
	}
	if req.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", req.Subject)
	}
	if len(req.ContextRefs) > 0 {
		fmt.Fprintf(&b, "Context references: %s\n", strings.Join(req.ContextRefs, ", "))
	}
	if bundle, ok := snap[KeyContextBundle].(map[string]any); ok {
		if excerpts, ok := bundle["excerpts"].([]any); ok && len(excerpts) > 0 {
			if raw, err := json.Marshal(excerpts); err == nil {
				fmt.Fprintf(&b, "Context excerpts: %s\n", string(raw))
			}
		}
		if sessions, ok := bundle["recent_sessions"].([]any); ok && len(sessions) > 0 {
			if raw, err := json.Marshal(sessions); err == nil {
				fmt.Fprintf(&b, "Recent sessions: %s\n", string(raw))
			}
		}
	}
	if specs := m.specsForMode(snap); specs != nil {
		if raw, err := json.Marshal(specs); err == nil {
			fmt.Fprintf(&b, "Content specifications: %s\n", string(raw))
		}
	}
	return b.String()
}

// specsForMode finds the first plan whose mode sequence includes this
// executor's mode and returns its content specifications.
func (m *ModeExecutor) specsForMode(snap orchestrator.State) map[string]any {
	plans, ok := snap[KeyPlans].([]any)
	if !ok {
		return nil
	}
	for _, raw := range plans {
		plan, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		modes, ok := plan["selected_modes"].([]any)
		if !ok {
			continue
		}
		for _, mv := range modes {
			if s, ok := mv.(string); ok && s == string(m.mode) {
				if specs, ok := plan["content_specifications"].(map[string]any); ok {
					return specs
				}
			}
		}
	}
	return nil
}

// attachVideos runs the generated search query against the media backend and
// attaches what it finds. Media failures degrade to an empty list.
func (m *ModeExecutor) attachVideos(ctx context.Context, req Request, content map[string]any) {
	if m.deps.Media == nil {
		return
	}
	query, _ := content["search_query"].(string)
	if strings.TrimSpace(query) == "" {
		query = strings.TrimSpace(req.Topic + " " + req.GradeLevel)
	}
	if query == "" {
		return
	}
	results, err := m.deps.Media.SearchVideos(ctx, query, 3)
	if err != nil {
		m.log.Warn("video search failed", "query", query, "error", err)
		content["videos"] = []any{}
		return
	}
	videos := make([]any, 0, len(results))
	for _, r := range results {
		videos = append(videos, map[string]any{
			"url":         r.URL,
			"title":       r.Title,
			"description": r.Description,
		})
	}
	content["videos"] = videos
}

func (m *ModeExecutor) persist(dbc dbctx.Context, jobID uuid.UUID, req Request, content map[string]any) (*types.Artifact, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("mode %s: encode content: %w", m.mode, err)
	}
	meta, _ := json.Marshal(map[string]any{
		"bucket":      BucketForMode(m.mode),
		"topic":       req.Topic,
		"grade_level": req.GradeLevel,
	})

	artifact := &types.Artifact{
		JobID:    jobID,
		Mode:     string(m.mode),
		Content:  datatypes.JSON(raw),
		Metadata: datatypes.JSON(meta),
	}
	if sid, ok := req.SessionUUID(); ok {
		artifact.SessionID = &sid
	}
	if stid, ok := req.StudentUUID(); ok {
		artifact.StudentID = &stid
	}

	if m.deps.Artifacts == nil {
		return artifact, nil
	}
	rows, err := m.deps.Artifacts.Create(dbc, []*types.Artifact{artifact})
	if err != nil {
		return nil, fmt.Errorf("mode %s: persist artifact: %w", m.mode, err)
	}
	return rows[0], nil
}
