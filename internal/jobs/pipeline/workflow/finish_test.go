package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	jobrt "github.com/classforge/classforge-backend/internal/jobs/runtime"
	"github.com/classforge/classforge-backend/internal/modules/content"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// fakeJobRepo records the field updates the runtime context persists.
type fakeJobRepo struct {
	updates []map[string]interface{}
}

func (f *fakeJobRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	return jobs, nil
}

func (f *fakeJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRepo) GetLatestByEntity(dbc dbctx.Context, studentID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.updates = append(f.updates, updates)
	return nil
}

func (f *fakeJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	f.updates = append(f.updates, updates)
	return true, nil
}

func (f *fakeJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error { return nil }

func (f *fakeJobRepo) HasRunnableForEntity(dbc dbctx.Context, studentID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (bool, error) {
	return false, nil
}

func (f *fakeJobRepo) lastResultRef() (string, bool) {
	for i := len(f.updates) - 1; i >= 0; i-- {
		if ref, ok := f.updates[i]["result_ref"].(string); ok {
			return ref, true
		}
	}
	return "", false
}

type fakeNotifier struct{}

func (fakeNotifier) JobCreated(job *types.JobRun)                                        {}
func (fakeNotifier) JobProgress(job *types.JobRun, stage string, progress int, msg string) {}
func (fakeNotifier) JobFailed(job *types.JobRun, stage string, errorMessage string)      {}
func (fakeNotifier) JobDone(job *types.JobRun)                                           {}
func (fakeNotifier) JobCanceled(job *types.JobRun)                                       {}

type fakeArtifacts struct {
	rows []*types.Artifact
}

func (f *fakeArtifacts) Create(dbc dbctx.Context, artifacts []*types.Artifact) ([]*types.Artifact, error) {
	f.rows = append(f.rows, artifacts...)
	return artifacts, nil
}

func (f *fakeArtifacts) ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Artifact, error) {
	return f.rows, nil
}

func (f *fakeArtifacts) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Artifact, error) {
	return f.rows, nil
}

func newTestContext(t *testing.T, repo *fakeJobRepo) *jobrt.Context {
	t.Helper()
	job := &types.JobRun{
		ID:     uuid.New(),
		Status: types.JobStatusInProgress,
	}
	return jobrt.NewContext(context.Background(), nil, job, repo, fakeNotifier{}, nil)
}

func TestFinishSetsResultRefFromDBHandles(t *testing.T) {
	repo := &fakeJobRepo{}
	jc := newTestContext(t, repo)
	sessionID := uuid.NewString()

	res := &orchestrator.Result{
		Outcome: orchestrator.OutcomeCompleted,
		State: orchestrator.State{
			content.KeyDBHandles: map[string]any{"session_doc": "sessions/" + sessionID},
		},
	}
	Finish(jc, content.Deps{Log: testLogger(t)}, types.RouteAHS, content.Request{SessionID: sessionID}, res, nil)

	if jc.Job.Status != types.JobStatusCompleted || jc.Job.Progress != 100 {
		t.Fatalf("expected completed job, got status=%s progress=%d", jc.Job.Status, jc.Job.Progress)
	}
	if jc.Job.ResultRef != "sessions/"+sessionID {
		t.Fatalf("expected result_ref from db_handles, got %q", jc.Job.ResultRef)
	}
	if ref, ok := repo.lastResultRef(); !ok || ref != "sessions/"+sessionID {
		t.Fatalf("result_ref must be persisted, got %q (found=%v)", ref, ok)
	}
}

func TestFinishSetsResultRefOnDegradedCompletion(t *testing.T) {
	repo := &fakeJobRepo{}
	jc := newTestContext(t, repo)
	studentID := uuid.NewString()

	res := &orchestrator.Result{
		Outcome:  orchestrator.OutcomePartiallyCompleted,
		Failed:   []string{"learn_by_watching"},
		FirstErr: errors.New("media backend down"),
		State: orchestrator.State{
			content.KeyDBHandles: map[string]any{"remedy_doc": "student_reports/" + studentID},
		},
	}
	Finish(jc, content.Deps{Log: testLogger(t)}, types.RouteRemedy, content.Request{StudentID: studentID}, res, nil)

	if jc.Job.Status != types.JobStatusCompleted || jc.Job.Error == "" {
		t.Fatalf("expected degraded completion, got status=%s error=%q", jc.Job.Status, jc.Job.Error)
	}
	if jc.Job.ResultRef != "student_reports/"+studentID {
		t.Fatalf("expected remedy result_ref, got %q", jc.Job.ResultRef)
	}
}

func TestFinishSalvageDerivesResultRefFromRequest(t *testing.T) {
	repo := &fakeJobRepo{}
	jc := newTestContext(t, repo)
	sessionID := uuid.NewString()

	raw, _ := json.Marshal(map[string]any{"title": "Fractions"})
	deps := content.Deps{
		Log: testLogger(t),
		Artifacts: &fakeArtifacts{rows: []*types.Artifact{{
			ID:      uuid.New(),
			JobID:   jc.Job.ID,
			Mode:    "learn_by_reading",
			Content: datatypes.JSON(raw),
		}}},
	}

	Finish(jc, deps, types.RouteAHS, content.Request{SessionID: sessionID}, nil, errors.New("engine failed"))

	if jc.Job.Status != types.JobStatusCompleted || jc.Job.Progress != 90 {
		t.Fatalf("expected salvage completion at 90, got status=%s progress=%d", jc.Job.Status, jc.Job.Progress)
	}
	if jc.Job.ResultRef != "sessions/"+sessionID {
		t.Fatalf("salvage must still expose result_ref, got %q", jc.Job.ResultRef)
	}
}
