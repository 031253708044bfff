package content_build

import (
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	"github.com/classforge/classforge-backend/internal/jobs/pipeline/workflow"
	jobrt "github.com/classforge/classforge-backend/internal/jobs/runtime"
	"github.com/classforge/classforge-backend/internal/modules/content"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	req, err := content.ParseRequest(jc.Payload())
	if err != nil {
		jc.Fail("validate", err)
		return nil
	}
	route := jc.Job.Route

	jc.Progress(content.StageOrchestrate, 10, "Planning content generation")
	stages := content.BuildStages(p.deps, jc.Job.ID, route, req)
	res, runErr := p.engine.Run(jc.Ctx, stages, orchestrator.State{content.KeyRoute: route})
	workflow.Finish(jc, p.deps, route, req, res, runErr)
	return nil
}
