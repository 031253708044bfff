package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/classforge/classforge-backend/internal/data/repos"
	types "github.com/classforge/classforge-backend/internal/domain"
	pkgerrors "github.com/classforge/classforge-backend/internal/pkg/errors"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/classforge/classforge-backend/internal/services/jobcache"
)

const (
	JobTypeContentBuild    = "content_build"
	JobTypeRemedyBuild     = "remedy_build"
	JobTypeAssessmentBuild = "assessment_build"
)

// JobTypeForRoute maps a submission route to the handler type the worker
// dispatches on. REMEDY_CONTENT shares the content pipeline with AHS.
func JobTypeForRoute(route string) (string, error) {
	switch route {
	case types.RouteAHS, types.RouteRemedyContent:
		return JobTypeContentBuild, nil
	case types.RouteRemedy:
		return JobTypeRemedyBuild, nil
	case types.RouteAssessment:
		return JobTypeAssessmentBuild, nil
	default:
		return "", fmt.Errorf("%w: unknown route %q", pkgerrors.ErrInvalidArgument, route)
	}
}

type JobService interface {
	Submit(dbc dbctx.Context, route string, studentID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	Enqueue(dbc dbctx.Context, route string, jobType string, studentID *uuid.UUID, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	GetLatestByEntity(dbc dbctx.Context, studentID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	Cancel(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	cache  jobcache.Cache
	notify JobNotifier
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	cache jobcache.Cache,
	notify JobNotifier,
) JobService {
	return &jobService{
		db:     db,
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		cache:  cache,
		notify: notify,
	}
}

// Submit validates the route, resolves the job type, and enqueues the job.
// The payload is stored verbatim as the job request; session_id in the
// payload becomes the job's entity binding when present.
func (s *jobService) Submit(dbc dbctx.Context, route string, studentID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	jobType, err := JobTypeForRoute(route)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}

	entityType := ""
	var entityID *uuid.UUID
	if raw, ok := payload["session_id"].(string); ok {
		if sid, parseErr := uuid.Parse(raw); parseErr == nil {
			entityType = "session"
			entityID = &sid
		}
	}
	if entityID == nil && studentID != nil && *studentID != uuid.Nil {
		entityType = "student"
		entityID = studentID
	}

	return s.Enqueue(dbc, route, jobType, studentID, entityType, entityID, payload)
}

func (s *jobService) Enqueue(dbc dbctx.Context, route string, jobType string, studentID *uuid.UUID, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if route == "" {
		return nil, fmt.Errorf("missing route")
	}
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now()
	job := &types.JobRun{
		ID:         uuid.New(),
		StudentID:  studentID,
		Route:      route,
		JobType:    jobType,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     types.JobStatusPending,
		Stage:      "pending",
		Progress:   0,
		Attempts:   0,
		Message:    "Queued",
		Payload:    datatypes.JSON(b),
		Result:     datatypes.JSON([]byte(`{}`)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.notify.JobCreated(job)

	// Inside a real transaction the row is not visible yet; skip the cache
	// write until it can be read back.
	// gorm.DB pointers are frequently cloned (e.g. WithContext/Session), so
	// pointer inequality is NOT a reliable transaction detector.
	if s.cache != nil && !isDBTransaction(dbc.Tx) {
		s.cache.Put(dbc.Ctx, job)
	}
	return job, nil
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

func (s *jobService) GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("missing job_id")
	}
	if s.cache != nil && dbc.Tx == nil {
		if job, ok := s.cache.Get(dbc.Ctx, jobID); ok {
			return job, nil
		}
	}
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if job != nil && s.cache != nil && dbc.Tx == nil {
		s.cache.Put(dbc.Ctx, job)
	}
	return job, nil
}

func (s *jobService) GetLatestByEntity(dbc dbctx.Context, studentID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return s.repo.GetLatestByEntity(dbc, studentID, entityType, entityID, jobType)
}

// Cancel marks a pending or in_progress job canceled. Terminal jobs are
// returned unchanged.
func (s *jobService) Cancel(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("missing job_id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	var out *types.JobRun
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		job, err := s.repo.GetByID(inner, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s: %w", jobID, pkgerrors.ErrNotFound)
		}
		switch job.Status {
		case types.JobStatusCompleted, types.JobStatusFailed, types.JobStatusCanceled:
			out = job
			return nil
		}
		now := time.Now()
		if err := s.repo.UpdateFields(inner, jobID, map[string]interface{}{
			"status":     types.JobStatusCanceled,
			"stage":      "canceled",
			"message":    "Canceled",
			"locked_at":  nil,
			"updated_at": now,
		}); err != nil {
			return err
		}
		job.Status = types.JobStatusCanceled
		job.Stage = "canceled"
		job.Message = "Canceled"
		job.UpdatedAt = now
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(dbc.Ctx, jobID)
	}
	if out != nil && out.Status == types.JobStatusCanceled {
		s.notify.JobCanceled(out)
	}
	return out, nil
}
