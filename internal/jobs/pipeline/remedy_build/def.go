package remedy_build

import (
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	"github.com/classforge/classforge-backend/internal/modules/content"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/classforge/classforge-backend/internal/services"
)

// Pipeline runs REMEDY jobs: classify the reported gaps, plan their
// remediation, append the report entry, then fan out one REMEDY_CONTENT
// child job per gap so content generation happens on its own job rows.
type Pipeline struct {
	log    *logger.Logger
	deps   content.Deps
	jobs   services.JobService
	engine *orchestrator.Engine
}

func New(baseLog *logger.Logger, deps content.Deps, jobs services.JobService) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", services.JobTypeRemedyBuild),
		deps:   deps,
		jobs:   jobs,
		engine: orchestrator.NewEngine(baseLog),
	}
}

func (p *Pipeline) Type() string { return services.JobTypeRemedyBuild }
