package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/classforge/classforge-backend/internal/domain"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	"github.com/classforge/classforge-backend/internal/modules/content"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/envutil"
	"github.com/classforge/classforge-backend/internal/platform/httpx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/classforge/classforge-backend/internal/platform/openai"
)

// Stage names and state keys of the assessment workflow.
const (
	StageSchema   = "schema"
	StageContext  = "context"
	StageGenerate = "generate_questions"
	StagePersist  = "persist"

	KeySchema    = "schema"
	KeyExcerpts  = "context_excerpts"
	KeyQuestions = "questions"

	defaultQuestionCount = 5
	maxQuestionCount     = 20

	contentNamespace = "educational_content"
)

// Builder runs the standalone assessment workflow:
//
//	schema + context (parallel) -> generate_questions -> persist (finalizer)
//
// It reuses the content module's dependency bundle and request shape; only
// the graph differs.
type Builder struct {
	log  *logger.Logger
	deps content.Deps
}

func NewBuilder(deps content.Deps) *Builder {
	return &Builder{
		log:  deps.Log.With("module", "AssessmentBuilder"),
		deps: deps,
	}
}

func (b *Builder) BuildStages(jobID uuid.UUID, req content.Request) []orchestrator.Stage {
	return []orchestrator.Stage{
		{
			Name: StageSchema,
			Run: func(ctx context.Context, snap orchestrator.State) (orchestrator.State, error) {
				return b.fetchSchema(req)
			},
		},
		{
			Name:      StageContext,
			Tolerated: true,
			Timeout:   30 * time.Second,
			Run: func(ctx context.Context, snap orchestrator.State) (orchestrator.State, error) {
				return b.gatherContext(ctx, req)
			},
		},
		{
			Name:    StageGenerate,
			Deps:    []string{StageSchema, StageContext},
			Timeout: 2 * time.Minute,
			Retry: orchestrator.RetryPolicy{
				MaxAttempts: 2,
				Retryable:   httpx.IsRetryableError,
			},
			Run: func(ctx context.Context, snap orchestrator.State) (orchestrator.State, error) {
				return b.generate(ctx, req, snap)
			},
		},
		{
			Name:      StagePersist,
			Deps:      []string{StageGenerate},
			Finalizer: true,
			Run: func(ctx context.Context, snap orchestrator.State) (orchestrator.State, error) {
				return b.persist(ctx, dbctx.Context{Ctx: ctx}, jobID, req, snap)
			},
		},
	}
}

// fetchSchema resolves the question schema for this request: how many
// questions and what shape each one takes.
func (b *Builder) fetchSchema(req content.Request) (orchestrator.State, error) {
	count := req.QuestionCount
	if count <= 0 {
		count = defaultQuestionCount
	}
	if count > maxQuestionCount {
		count = maxQuestionCount
	}
	return orchestrator.State{
		KeySchema: map[string]any{
			"question_count": count,
			"question_shape": map[string]any{
				"type":          "multiple_choice",
				"option_count":  4,
				"fields":        []any{"question", "options", "correct_index", "explanation"},
				"grade_level":   req.GradeLevel,
				"subject":       req.Subject,
			},
		},
	}, nil
}

// gatherContext pulls related curriculum excerpts from the vector index.
// Retrieval failures degrade to an empty excerpt list; the generator works
// from the topic alone in that case.
func (b *Builder) gatherContext(ctx context.Context, req content.Request) (orchestrator.State, error) {
	empty := orchestrator.State{KeyExcerpts: []any{}}
	if b.deps.Vectors == nil || b.deps.AI == nil {
		return empty, nil
	}
	query := strings.TrimSpace(req.Topic + " " + req.GradeLevel + " " + req.Subject)
	if query == "" {
		return empty, nil
	}

	vecs, err := b.deps.AI.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		b.log.Warn("context embed failed", "topic", req.Topic, "error", err)
		return empty, nil
	}
	matches, err := b.deps.Vectors.QueryMatches(ctx, contentNamespace, vecs[0], 5, nil)
	if err != nil {
		b.log.Warn("context query failed", "topic", req.Topic, "error", err)
		return empty, nil
	}

	excerpts := make([]any, 0, len(matches))
	for _, m := range matches {
		text, _ := m.Metadata["text"].(string)
		if strings.TrimSpace(text) == "" {
			continue
		}
		excerpts = append(excerpts, map[string]any{
			"text":  text,
			"score": m.Score,
		})
	}
	return orchestrator.State{KeyExcerpts: excerpts}, nil
}

func (b *Builder) generate(ctx context.Context, req content.Request, snap orchestrator.State) (orchestrator.State, error) {
	if b.deps.AI == nil {
		return nil, fmt.Errorf("assessment: AI client unavailable")
	}

	schema, _ := snap[KeySchema].(map[string]any)
	excerpts, _ := snap[KeyExcerpts].([]any)

	var brief strings.Builder
	fmt.Fprintf(&brief, "Write assessment questions on the topic %q.\n", req.Topic)
	if req.GradeLevel != "" {
		fmt.Fprintf(&brief, "Grade level: %s\n", req.GradeLevel)
	}
	if req.Subject != "" {
		fmt.Fprintf(&brief, "Subject: %s\n", req.Subject)
	}
	if raw, err := json.Marshal(schema); err == nil {
		fmt.Fprintf(&brief, "Question schema: %s\n", string(raw))
	}
	if len(excerpts) > 0 {
		if raw, err := json.Marshal(excerpts); err == nil {
			fmt.Fprintf(&brief, "Reference excerpts: %s\n", string(raw))
		}
	}
	brief.WriteString("Return JSON with keys: title, questions (array of {question, options (array of 4), correct_index, explanation}).")

	ai := b.deps.AI
	if model := envutil.Str("OPENAI_ASSESSMENT_MODEL", ""); model != "" {
		ai = openai.WithModel(ai, model)
	}

	system := "You write curriculum-aligned assessment questions. Respond with only the requested JSON object."
	out, err := ai.GenerateJSON(ctx, system, brief.String())
	if err != nil {
		return nil, fmt.Errorf("assessment: generate: %w", err)
	}
	return orchestrator.State{KeyQuestions: out}, nil
}

// persist writes the generated questions as an assessment artifact and, when
// the request carries a session, files them into the session document's
// assessment bucket.
func (b *Builder) persist(ctx context.Context, dbc dbctx.Context, jobID uuid.UUID, req content.Request, snap orchestrator.State) (orchestrator.State, error) {
	questions, ok := snap[KeyQuestions].(map[string]any)
	if !ok || len(questions) == 0 {
		return nil, fmt.Errorf("assessment: no questions to persist")
	}

	raw, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("assessment: encode questions: %w", err)
	}
	meta, _ := json.Marshal(map[string]any{
		"bucket":      content.BucketAssessmentQuestions,
		"topic":       req.Topic,
		"grade_level": req.GradeLevel,
	})

	artifact := &types.Artifact{
		JobID:    jobID,
		Mode:     string(rtypes.ModeAssessment),
		Content:  datatypes.JSON(raw),
		Metadata: datatypes.JSON(meta),
	}
	if sid, ok := req.SessionUUID(); ok {
		artifact.SessionID = &sid
	}
	if stid, ok := req.StudentUUID(); ok {
		artifact.StudentID = &stid
	}

	if b.deps.Artifacts != nil {
		rows, err := b.deps.Artifacts.Create(dbc, []*types.Artifact{artifact})
		if err != nil {
			return nil, fmt.Errorf("assessment: persist artifact: %w", err)
		}
		artifact = rows[0]
	}

	enriched := snap.Clone()
	enriched.Merge(orchestrator.State{
		content.ArtifactKey(string(rtypes.ModeAssessment)): map[string]any{
			"artifact_id": artifact.ID.String(),
			"mode":        string(rtypes.ModeAssessment),
			"bucket":      content.BucketAssessmentQuestions,
			"content":     questions,
		},
	})

	collector := content.NewCollector(b.deps)
	result, err := collector.Run(ctx, dbc, jobID, types.RouteAssessment, req, enriched)
	if err != nil {
		b.log.Warn("session doc update failed", "job_id", jobID, "error", err)
		result = orchestrator.State{}
	}
	if result == nil {
		result = orchestrator.State{}
	}
	result["persisted"] = map[string]any{
		"artifact_id": artifact.ID.String(),
		"mode":        string(rtypes.ModeAssessment),
	}
	return result, nil
}
