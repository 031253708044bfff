package content_build

import (
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	"github.com/classforge/classforge-backend/internal/modules/content"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/classforge/classforge-backend/internal/services"
)

// Pipeline runs content generation jobs for the AHS and REMEDY_CONTENT
// routes: orchestrate, fan out over the requested modes, collect into the
// session document.
type Pipeline struct {
	log    *logger.Logger
	deps   content.Deps
	engine *orchestrator.Engine
}

func New(baseLog *logger.Logger, deps content.Deps) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", services.JobTypeContentBuild),
		deps:   deps,
		engine: orchestrator.NewEngine(baseLog),
	}
}

func (p *Pipeline) Type() string { return services.JobTypeContentBuild }
