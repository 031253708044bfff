package remedy_build

import (
	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	"github.com/classforge/classforge-backend/internal/jobs/pipeline/workflow"
	jobrt "github.com/classforge/classforge-backend/internal/jobs/runtime"
	"github.com/classforge/classforge-backend/internal/modules/content"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
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

	jc.Progress(content.StageOrchestrate, 10, "Analyzing learning gaps")
	stages := content.BuildStages(p.deps, jc.Job.ID, types.RouteRemedy, req)
	res, runErr := p.engine.Run(jc.Ctx, stages, orchestrator.State{content.KeyRoute: types.RouteRemedy})

	if runErr == nil && res != nil && res.Outcome != orchestrator.OutcomeFailed {
		if ids := p.fanOutContentJobs(jc, req); len(ids) > 0 {
			res.State["content_job_ids"] = ids
		}
	}

	workflow.Finish(jc, p.deps, types.RouteRemedy, req, res, runErr)
	return nil
}

// fanOutContentJobs enqueues one REMEDY_CONTENT child job per reported gap.
// An enqueue failure drops that gap's content job but never fails the parent
// run; the report entry is already written.
func (p *Pipeline) fanOutContentJobs(jc *jobrt.Context, req content.Request) []string {
	if p.jobs == nil {
		return nil
	}
	var ids []string
	for _, gap := range req.LearningGaps {
		payload := map[string]any{
			"student_id":    req.StudentID,
			"learning_gaps": []types.GapEvidence{gap},
			"context_refs":  req.ContextRefs,
			"grade_level":   req.GradeLevel,
			"subject":       req.Subject,
			"parent_job_id": jc.Job.ID.String(),
		}
		job, err := p.jobs.Submit(dbctx.Context{Ctx: jc.Ctx}, types.RouteRemedyContent, jc.Job.StudentID, payload)
		if err != nil {
			p.log.Warn("child content job enqueue failed", "gap_code", gap.GapCode, "error", err)
			continue
		}
		ids = append(ids, job.ID.String())
	}
	return ids
}
