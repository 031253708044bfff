package assessment_build

import (
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	"github.com/classforge/classforge-backend/internal/modules/content"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/classforge/classforge-backend/internal/services"
)

// Pipeline runs standalone ASSESSMENT jobs through the same engine as the
// content routes, with the assessment module's graph.
type Pipeline struct {
	log    *logger.Logger
	deps   content.Deps
	engine *orchestrator.Engine
}

func New(baseLog *logger.Logger, deps content.Deps) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", services.JobTypeAssessmentBuild),
		deps:   deps,
		engine: orchestrator.NewEngine(baseLog),
	}
}

func (p *Pipeline) Type() string { return services.JobTypeAssessmentBuild }
