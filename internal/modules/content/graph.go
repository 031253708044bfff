package content

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/classforge/classforge-backend/internal/domain"
	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
	"github.com/classforge/classforge-backend/internal/jobs/orchestrator"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/httpx"
)

const (
	StageOrchestrate = "orchestrate"
	StageCollect     = "collect"

	modeStageTimeout = 2 * time.Minute
)

var defaultContentModes = []rtypes.Mode{
	rtypes.ModeReading,
	rtypes.ModeWatching,
	rtypes.ModeSolving,
}

// Assessment generation grounds itself on the text-like outputs, so its stage
// also waits for whichever of these modes the request selected.
var assessmentAnchors = []rtypes.Mode{
	rtypes.ModeReading,
	rtypes.ModeSolving,
	rtypes.ModeWriting,
}

// RequestedModes resolves the mode set a content job executes. Invalid names
// and duplicates are dropped; an empty selection falls back to the default
// trio. REMEDY jobs produce plans and a report, never content, so they get no
// mode stages.
func RequestedModes(route string, req Request) []rtypes.Mode {
	if route == types.RouteRemedy {
		return nil
	}
	var out []rtypes.Mode
	seen := map[rtypes.Mode]bool{}
	for _, name := range req.RequestedModes {
		mode := rtypes.Mode(name)
		if !rtypes.ValidMode(mode) || seen[mode] {
			continue
		}
		seen[mode] = true
		out = append(out, mode)
	}
	if len(out) == 0 {
		out = append(out, defaultContentModes...)
	}
	return out
}

/*
BuildStages shapes the workflow graph for one content job:

	orchestrate -> mode stages (fan-out) -> collect (finalizer)

Mode stages are tolerated unless the request asked for exactly one mode, in
which case that mode failing fails the run. The collect finalizer always runs
and assembles whatever the surviving branches produced.
*/
func BuildStages(deps Deps, jobID uuid.UUID, route string, req Request) []orchestrator.Stage {
	orch := NewOrchestrator(deps)
	collector := NewCollector(deps)
	modes := RequestedModes(route, req)

	stages := []orchestrator.Stage{{
		Name: StageOrchestrate,
		Run: func(ctx context.Context, snap orchestrator.State) (orchestrator.State, error) {
			return orch.Run(ctx, dbctx.Context{Ctx: ctx}, jobID, route, req)
		},
	}}

	tolerated := len(modes) > 1
	present := map[rtypes.Mode]bool{}
	for _, m := range modes {
		present[m] = true
	}

	collectDeps := []string{StageOrchestrate}
	for _, mode := range modes {
		stageDeps := []string{StageOrchestrate}
		if mode == rtypes.ModeAssessment {
			for _, anchor := range assessmentAnchors {
				if present[anchor] {
					stageDeps = append(stageDeps, string(anchor))
				}
			}
		}
		exec := NewModeExecutor(deps, mode)
		stages = append(stages, orchestrator.Stage{
			Name:      string(mode),
			Deps:      stageDeps,
			Tolerated: tolerated,
			Timeout:   modeStageTimeout,
			Retry: orchestrator.RetryPolicy{
				MaxAttempts: 2,
				Retryable:   httpx.IsRetryableError,
			},
			Run: func(ctx context.Context, snap orchestrator.State) (orchestrator.State, error) {
				return exec.Run(ctx, dbctx.Context{Ctx: ctx}, jobID, req, snap)
			},
		})
		collectDeps = append(collectDeps, string(mode))
	}

	stages = append(stages, orchestrator.Stage{
		Name:      StageCollect,
		Deps:      collectDeps,
		Finalizer: true,
		Run: func(ctx context.Context, snap orchestrator.State) (orchestrator.State, error) {
			return collector.Run(ctx, dbctx.Context{Ctx: ctx}, jobID, route, req, snap)
		},
	})
	return stages
}
