package repos

import (
	"gorm.io/gorm"

	"github.com/classforge/classforge-backend/internal/data/repos/content"
	"github.com/classforge/classforge-backend/internal/data/repos/jobs"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

type JobRunRepo = jobs.JobRunRepo

type ArtifactRepo = content.ArtifactRepo
type SessionDocRepo = content.SessionDocRepo
type RemedyReportRepo = content.RemedyReportRepo
type PrereqCacheRepo = content.PrereqCacheRepo
type PlanRepo = content.PlanRepo

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return content.NewArtifactRepo(db, baseLog)
}

func NewSessionDocRepo(db *gorm.DB, baseLog *logger.Logger) SessionDocRepo {
	return content.NewSessionDocRepo(db, baseLog)
}

func NewRemedyReportRepo(db *gorm.DB, baseLog *logger.Logger) RemedyReportRepo {
	return content.NewRemedyReportRepo(db, baseLog)
}

func NewPrereqCacheRepo(db *gorm.DB, baseLog *logger.Logger) PrereqCacheRepo {
	return content.NewPrereqCacheRepo(db, baseLog)
}

func NewPlanRepo(db *gorm.DB, baseLog *logger.Logger) PlanRepo {
	return content.NewPlanRepo(db, baseLog)
}
