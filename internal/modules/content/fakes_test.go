package content

import (
	"context"
	"testing"

	"github.com/google/uuid"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/classforge/classforge-backend/internal/platform/media"
	"github.com/classforge/classforge-backend/internal/platform/pinecone"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type fakeAI struct {
	jsonOut  map[string]any
	jsonErr  error
	textOut  string
	embedErr error
	prompts  []string
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	return f.textOut, nil
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user string) (map[string]any, error) {
	f.prompts = append(f.prompts, user)
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	out := map[string]any{}
	for k, v := range f.jsonOut {
		out[k] = v
	}
	return out, nil
}

type fakeMedia struct {
	results []media.Result
	err     error
}

func (f *fakeMedia) SearchVideos(ctx context.Context, query string, maxResults int) ([]media.Result, error) {
	return f.results, f.err
}

func (f *fakeMedia) SearchImages(ctx context.Context, query string, maxResults int) ([]media.Result, error) {
	return f.results, f.err
}

type fakeVectors struct {
	matches map[string][]pinecone.VectorMatch
	err     error
}

func (f *fakeVectors) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	return nil
}

func (f *fakeVectors) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]pinecone.VectorMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matches[namespace], nil
}

type fakeArtifacts struct {
	rows []*types.Artifact
}

func (f *fakeArtifacts) Create(dbc dbctx.Context, artifacts []*types.Artifact) ([]*types.Artifact, error) {
	for _, a := range artifacts {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		f.rows = append(f.rows, a)
	}
	return artifacts, nil
}

func (f *fakeArtifacts) ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Artifact, error) {
	var out []*types.Artifact
	for _, a := range f.rows {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeArtifacts) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Artifact, error) {
	var out []*types.Artifact
	for _, a := range f.rows {
		if a.SessionID != nil && *a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSessions struct {
	docs    map[uuid.UUID]*types.SessionDoc
	upserts int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{docs: map[uuid.UUID]*types.SessionDoc{}}
}

func (f *fakeSessions) GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) (*types.SessionDoc, error) {
	return f.docs[sessionID], nil
}

func (f *fakeSessions) Upsert(dbc dbctx.Context, doc *types.SessionDoc) error {
	f.upserts++
	f.docs[doc.SessionID] = doc
	return nil
}

func (f *fakeSessions) UpdateFields(dbc dbctx.Context, sessionID uuid.UUID, updates map[string]interface{}) error {
	return nil
}

type fakeReports struct {
	entries map[uuid.UUID][]map[string]any
}

func newFakeReports() *fakeReports {
	return &fakeReports{entries: map[uuid.UUID][]map[string]any{}}
}

func (f *fakeReports) GetByStudentID(dbc dbctx.Context, studentID uuid.UUID) (*types.RemedyReport, error) {
	return nil, nil
}

func (f *fakeReports) AppendEntry(dbc dbctx.Context, studentID uuid.UUID, entry map[string]any) error {
	f.entries[studentID] = append(f.entries[studentID], entry)
	return nil
}

type fakePlans struct {
	docs []*types.RemediationPlanDoc
}

func (f *fakePlans) Create(dbc dbctx.Context, plans []*types.RemediationPlanDoc) ([]*types.RemediationPlanDoc, error) {
	for _, p := range plans {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		f.docs = append(f.docs, p)
	}
	return plans, nil
}

func (f *fakePlans) ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.RemediationPlanDoc, error) {
	var out []*types.RemediationPlanDoc
	for _, p := range f.docs {
		if p.JobID == jobID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakePrereqCache struct {
	entries map[string]*types.PrerequisiteCacheEntry
}

func newFakePrereqCache() *fakePrereqCache {
	return &fakePrereqCache{entries: map[string]*types.PrerequisiteCacheEntry{}}
}

func (f *fakePrereqCache) Get(dbc dbctx.Context, gapCode, gradeLevel, subject string) (*types.PrerequisiteCacheEntry, error) {
	return f.entries[gapCode+"|"+gradeLevel+"|"+subject], nil
}

func (f *fakePrereqCache) Put(dbc dbctx.Context, entry *types.PrerequisiteCacheEntry) error {
	f.entries[entry.GapCode+"|"+entry.GradeLevel+"|"+entry.Subject] = entry
	return nil
}

type testEnv struct {
	deps      Deps
	ai        *fakeAI
	media     *fakeMedia
	vectors   *fakeVectors
	artifacts *fakeArtifacts
	sessions  *fakeSessions
	reports   *fakeReports
	plans     *fakePlans
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ai:        &fakeAI{jsonOut: map[string]any{"title": "Generated"}},
		media:     &fakeMedia{},
		vectors:   &fakeVectors{},
		artifacts: &fakeArtifacts{},
		sessions:  newFakeSessions(),
		reports:   newFakeReports(),
		plans:     &fakePlans{},
	}
	env.deps = Deps{
		Log:         testLogger(t),
		AI:          env.ai,
		Media:       env.media,
		Vectors:     env.vectors,
		Artifacts:   env.artifacts,
		Sessions:    env.sessions,
		Reports:     env.reports,
		Plans:       env.plans,
		PrereqCache: newFakePrereqCache(),
	}
	return env
}
