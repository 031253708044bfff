package workflow

import (
	"fmt"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	jobrt "github.com/classforge/classforge-backend/internal/jobs/runtime"
	"github.com/classforge/classforge-backend/internal/modules/content"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
)

/*
Finish maps an engine result onto the job's terminal transition.

	Completed            -> completed, progress 100
	PartiallyCompleted   -> completed, progress 95, error = first branch failure
	Failed / engine err  -> salvage: run the collector directly against whatever
	                        artifacts were persisted; if it assembles anything,
	                        completed at progress 90 with the original error,
	                        otherwise failed.

A completed status therefore never guarantees a full result; callers must
check the error field to detect degraded runs.
*/
func Finish(jc *jobrt.Context, deps content.Deps, route string, req content.Request, res *orchestrator.Result, runErr error) {
	if runErr == nil && res != nil {
		switch res.Outcome {
		case orchestrator.OutcomeCompleted:
			jc.SetResultRef(resultRef(route, req, res.State))
			jc.Succeed("done", res.State)
			return
		case orchestrator.OutcomePartiallyCompleted:
			jc.SetResultRef(resultRef(route, req, res.State))
			jc.SucceedDegraded(failedStage(res), res.State, res.FirstErr, 95)
			return
		}
	}

	cause := runErr
	if cause == nil && res != nil {
		cause = res.FirstErr
	}
	if cause == nil {
		cause = fmt.Errorf("workflow failed")
	}

	salvaged, err := content.NewCollector(deps).Run(
		jc.Ctx,
		dbctx.Context{Ctx: jc.Ctx},
		jc.Job.ID,
		route,
		req,
		orchestrator.State{content.KeyRoute: route},
	)
	if err != nil {
		jc.Fail("run", cause)
		return
	}
	jc.SetResultRef(resultRef(route, req, salvaged))
	jc.SucceedDegraded("salvage", salvaged, cause, 90)
}

func failedStage(res *orchestrator.Result) string {
	if len(res.Failed) > 0 {
		return res.Failed[0]
	}
	return content.StageCollect
}

// resultRef picks the job's primary output handle from the run's db_handles,
// falling back to the request when the state was rebuilt by the salvage path.
func resultRef(route string, req content.Request, state orchestrator.State) string {
	if handles, ok := state[content.KeyDBHandles].(map[string]any); ok {
		if ref, ok := handles["session_doc"].(string); ok && ref != "" {
			return ref
		}
		if ref, ok := handles["remedy_doc"].(string); ok && ref != "" {
			return ref
		}
	}
	switch route {
	case types.RouteRemedy:
		if req.StudentID != "" {
			return "student_reports/" + req.StudentID
		}
	default:
		if req.SessionID != "" {
			return "sessions/" + req.SessionID
		}
	}
	return ""
}
