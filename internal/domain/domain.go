// Package domain re-exports the persisted models and core value types so
// callers can import a single package as `types`.
package domain

import (
	"github.com/classforge/classforge-backend/internal/domain/content"
	"github.com/classforge/classforge-backend/internal/domain/jobs"
	"github.com/classforge/classforge-backend/internal/domain/remedy"
)

// Jobs.
type JobRun = jobs.JobRun

// ValidRoute reports whether route is one of the known job routes.
var ValidRoute = jobs.ValidRoute

const (
	RouteAHS           = jobs.RouteAHS
	RouteRemedy        = jobs.RouteRemedy
	RouteRemedyContent = jobs.RouteRemedyContent
	RouteAssessment    = jobs.RouteAssessment

	JobStatusPending    = jobs.StatusPending
	JobStatusInProgress = jobs.StatusInProgress
	JobStatusCompleted  = jobs.StatusCompleted
	JobStatusFailed     = jobs.StatusFailed
	JobStatusCanceled   = jobs.StatusCanceled
)

// Content persistence.
type (
	Artifact               = content.Artifact
	SessionDoc             = content.SessionDoc
	RemedyReport           = content.RemedyReport
	RemediationPlanDoc     = content.RemediationPlanDoc
	PrerequisiteCacheEntry = content.PrerequisiteCacheEntry
)

// Remediation value types.
type (
	GapCategory       = remedy.GapCategory
	Mode              = remedy.Mode
	GapEvidence       = remedy.GapEvidence
	GapAnalysis       = remedy.GapAnalysis
	RemediationPlan   = remedy.RemediationPlan
	PrerequisiteTopic = remedy.PrerequisiteTopic
	LearningPath      = remedy.LearningPath
	MasteryCheckpoint = remedy.MasteryCheckpoint
)

// AllModels is the authoritative migration list.
func AllModels() []any {
	return []any{
		&JobRun{},
		&Artifact{},
		&SessionDoc{},
		&RemedyReport{},
		&RemediationPlanDoc{},
		&PrerequisiteCacheEntry{},
	}
}
