package assessment_build

import (
	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	"github.com/classforge/classforge-backend/internal/jobs/pipeline/workflow"
	jobrt "github.com/classforge/classforge-backend/internal/jobs/runtime"
	"github.com/classforge/classforge-backend/internal/modules/assessment"
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

	jc.Progress(assessment.StageSchema, 10, "Preparing assessment generation")
	stages := assessment.NewBuilder(p.deps).BuildStages(jc.Job.ID, req)
	res, runErr := p.engine.Run(jc.Ctx, stages, orchestrator.State{content.KeyRoute: types.RouteAssessment})
	workflow.Finish(jc, p.deps, types.RouteAssessment, req, res, runErr)
	return nil
}
