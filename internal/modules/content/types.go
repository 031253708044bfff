package content

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/classforge/classforge-backend/internal/data/repos"
	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/classforge/classforge-backend/internal/platform/media"
	"github.com/classforge/classforge-backend/internal/platform/openai"
	"github.com/classforge/classforge-backend/internal/platform/pinecone"
)

// State keys shared across the content workflow. Stage updates use these
// names so the collector and the salvage path can find everything.
const (
	KeyRoute          = "route"
	KeyRequest        = "req"
	KeyPlans          = "plans"
	KeyContextBundle  = "context_bundle"
	KeyDBHandles      = "db_handles"
	KeyDiagnostics    = "diagnostics"
	KeyDependenciesOK = "dependencies_ok"
	KeyRemedySummary  = "remedy_summary"

	artifactKeyPrefix = "artifact_"
)

// ArtifactKey names the state slot a mode executor writes its output into.
func ArtifactKey(mode string) string { return artifactKeyPrefix + mode }

// Request is the decoded job payload for content generation jobs.
type Request struct {
	SessionID      string              `json:"session_id,omitempty"`
	StudentID      string              `json:"student_id,omitempty"`
	Topic          string              `json:"topic,omitempty"`
	GradeLevel     string              `json:"grade_level,omitempty"`
	Subject        string              `json:"subject,omitempty"`
	ContextRefs    []string            `json:"context_refs,omitempty"`
	LearningGaps   []types.GapEvidence `json:"learning_gaps,omitempty"`
	RequestedModes []string            `json:"requested_modes,omitempty"`
	QuestionCount  int                 `json:"question_count,omitempty"`
}

// ParseRequest decodes a job payload map into a Request via a JSON round
// trip, so handlers and the engine share one shape.
func ParseRequest(payload map[string]any) (Request, error) {
	var req Request
	b, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func (r Request) SessionUUID() (uuid.UUID, bool) {
	id, err := uuid.Parse(r.SessionID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (r Request) StudentUUID() (uuid.UUID, bool) {
	id, err := uuid.Parse(r.StudentID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Deps bundles everything the content workflow touches. Pipelines build one
// per process and hand it to the graph builder.
type Deps struct {
	Log         *logger.Logger
	AI          openai.Client
	Media       media.Client
	Vectors     pinecone.VectorStore
	Artifacts   repos.ArtifactRepo
	Sessions    repos.SessionDocRepo
	Reports     repos.RemedyReportRepo
	Plans       repos.PlanRepo
	PrereqCache repos.PrereqCacheRepo
}
