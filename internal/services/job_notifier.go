package services

import (
	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

// JobNotifier publishes job lifecycle transitions. The current implementation
// emits structured log events; a push transport can be substituted without
// touching callers.
type JobNotifier interface {
	JobCreated(job *types.JobRun)
	JobProgress(job *types.JobRun, stage string, progress int, message string)
	JobFailed(job *types.JobRun, stage string, errorMessage string)
	JobDone(job *types.JobRun)
	JobCanceled(job *types.JobRun)
}

type jobNotifier struct {
	log *logger.Logger
}

func NewJobNotifier(baseLog *logger.Logger) JobNotifier {
	return &jobNotifier{log: baseLog.With("service", "JobNotifier")}
}

func (n *jobNotifier) JobCreated(job *types.JobRun) {
	if job == nil {
		return
	}
	n.log.Info("job created",
		"job_id", job.ID,
		"job_type", job.JobType,
		"route", job.Route,
	)
}

func (n *jobNotifier) JobProgress(job *types.JobRun, stage string, progress int, message string) {
	if job == nil {
		return
	}
	n.log.Info("job progress",
		"job_id", job.ID,
		"job_type", job.JobType,
		"stage", stage,
		"progress", progress,
		"message", message,
	)
}

func (n *jobNotifier) JobFailed(job *types.JobRun, stage string, errorMessage string) {
	if job == nil {
		return
	}
	n.log.Error("job failed",
		"job_id", job.ID,
		"job_type", job.JobType,
		"stage", stage,
		"error", errorMessage,
	)
}

func (n *jobNotifier) JobDone(job *types.JobRun) {
	if job == nil {
		return
	}
	n.log.Info("job done",
		"job_id", job.ID,
		"job_type", job.JobType,
		"progress", job.Progress,
	)
}

func (n *jobNotifier) JobCanceled(job *types.JobRun) {
	if job == nil {
		return
	}
	n.log.Info("job canceled",
		"job_id", job.ID,
		"job_type", job.JobType,
	)
}
