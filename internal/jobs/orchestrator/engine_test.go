package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/classforge/classforge-backend/internal/platform/logger"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewEngine(log)
}

func TestEngineRunsStagesInDependencyOrder(t *testing.T) {
	e := testEngine(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(ctx context.Context, snap State) (State, error) {
		return func(ctx context.Context, snap State) (State, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return State{name: "done"}, nil
		}
	}

	stages := []Stage{
		{Name: "plan", Run: record("plan")},
		{Name: "build", Deps: []string{"plan"}, Run: record("build")},
		{Name: "collect", Deps: []string{"build"}, Finalizer: true, Run: record("collect")},
	}

	res, err := e.Run(context.Background(), stages, State{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got %s", res.Outcome)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 executions, got %v", order)
	}
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	if pos["plan"] > pos["build"] || pos["build"] > pos["collect"] {
		t.Fatalf("dependency order violated: %v", order)
	}
	if res.State["collect"] != "done" {
		t.Fatalf("expected finalizer updates merged, state=%v", res.State)
	}
}

func TestEngineToleratedFailureStillReachesDependents(t *testing.T) {
	e := testEngine(t)

	var collected State
	stages := []Stage{
		{Name: "reading", Run: func(ctx context.Context, snap State) (State, error) {
			return State{"reading": "text"}, nil
		}},
		{Name: "watching", Tolerated: true, Run: func(ctx context.Context, snap State) (State, error) {
			return nil, errors.New("video backend down")
		}},
		{Name: "collect", Deps: []string{"reading", "watching"}, Finalizer: true, Run: func(ctx context.Context, snap State) (State, error) {
			collected = snap
			return State{"assembled": true}, nil
		}},
	}

	res, err := e.Run(context.Background(), stages, State{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomePartiallyCompleted {
		t.Fatalf("expected partially_completed, got %s", res.Outcome)
	}
	if res.Stages["collect"].Status != StageSucceeded {
		t.Fatalf("finalizer should have run, got %s", res.Stages["collect"].Status)
	}
	if collected["reading"] != "text" {
		t.Fatalf("finalizer should see successful branch output, got %v", collected)
	}
	if _, ok := collected["watching"]; ok {
		t.Fatalf("failed branch must not contribute state, got %v", collected)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "watching" {
		t.Fatalf("expected watching in failed list, got %v", res.Failed)
	}
}

func TestEngineFatalFailureSkipsPendingAndRunsFinalizers(t *testing.T) {
	e := testEngine(t)

	finalizerRan := false
	planRan := false
	stages := []Stage{
		{Name: "classify", Run: func(ctx context.Context, snap State) (State, error) {
			return nil, errors.New("boom")
		}},
		{Name: "plan", Deps: []string{"classify"}, Run: func(ctx context.Context, snap State) (State, error) {
			planRan = true
			return nil, nil
		}},
		{Name: "persist", Finalizer: true, Run: func(ctx context.Context, snap State) (State, error) {
			finalizerRan = true
			return nil, nil
		}},
	}

	res, err := e.Run(context.Background(), stages, State{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomePartiallyCompleted {
		t.Fatalf("expected partially_completed (finalizer succeeded), got %s", res.Outcome)
	}
	if !finalizerRan {
		t.Fatalf("finalizer must always run")
	}
	if planRan {
		t.Fatalf("plan must not run after fatal classify failure")
	}
	if res.Stages["plan"].Status != StageSkipped {
		t.Fatalf("expected plan skipped, got %s", res.Stages["plan"].Status)
	}
	if res.FirstErr == nil {
		t.Fatalf("expected FirstErr for fatal stage failure")
	}
}

func TestEngineFinalizerFailureFailsRun(t *testing.T) {
	e := testEngine(t)

	stages := []Stage{
		{Name: "work", Run: func(ctx context.Context, snap State) (State, error) {
			return State{"ok": true}, nil
		}},
		{Name: "persist", Finalizer: true, Run: func(ctx context.Context, snap State) (State, error) {
			return nil, errors.New("db write failed")
		}},
	}

	res, err := e.Run(context.Background(), stages, State{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Fatalf("expected failed when finalizer fails, got %s", res.Outcome)
	}
}

func TestEngineRetriesUntilSuccess(t *testing.T) {
	e := testEngine(t)

	var mu sync.Mutex
	calls := 0
	stages := []Stage{
		{
			Name: "flaky",
			Retry: RetryPolicy{
				MaxAttempts: 3,
				MinBackoff:  time.Millisecond,
				MaxBackoff:  2 * time.Millisecond,
			},
			Run: func(ctx context.Context, snap State) (State, error) {
				mu.Lock()
				calls++
				n := calls
				mu.Unlock()
				if n < 3 {
					return nil, fmt.Errorf("transient %d", n)
				}
				return State{"flaky": "ok"}, nil
			},
		},
	}

	res, err := e.Run(context.Background(), stages, State{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("expected completed after retries, got %s", res.Outcome)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if res.Stages["flaky"].Attempts != 3 {
		t.Fatalf("expected attempts recorded, got %d", res.Stages["flaky"].Attempts)
	}
}

func TestEngineStageTimeout(t *testing.T) {
	e := testEngine(t)

	stages := []Stage{
		{
			Name:      "slow",
			Tolerated: true,
			Timeout:   10 * time.Millisecond,
			Run: func(ctx context.Context, snap State) (State, error) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Second):
					return State{}, nil
				}
			},
		},
	}

	res, err := e.Run(context.Background(), stages, State{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stages["slow"].Status != StageFailed {
		t.Fatalf("expected timeout failure, got %s", res.Stages["slow"].Status)
	}
	if res.Outcome != OutcomePartiallyCompleted {
		t.Fatalf("expected partially_completed, got %s", res.Outcome)
	}
}

func TestEngineRejectsCycles(t *testing.T) {
	e := testEngine(t)

	stages := []Stage{
		{Name: "a", Deps: []string{"b"}, Run: func(ctx context.Context, snap State) (State, error) { return nil, nil }},
		{Name: "b", Deps: []string{"a"}, Run: func(ctx context.Context, snap State) (State, error) { return nil, nil }},
	}
	if _, err := e.Run(context.Background(), stages, State{}); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestEngineRejectsUnknownDependency(t *testing.T) {
	e := testEngine(t)

	stages := []Stage{
		{Name: "a", Deps: []string{"ghost"}, Run: func(ctx context.Context, snap State) (State, error) { return nil, nil }},
	}
	if _, err := e.Run(context.Background(), stages, State{}); err == nil {
		t.Fatalf("expected unknown dependency error")
	}
}

func TestStateSnapshotsAreIsolated(t *testing.T) {
	e := testEngine(t)

	initial := State{"shared": map[string]any{"k": "v"}}
	stages := []Stage{
		{Name: "mutator", Run: func(ctx context.Context, snap State) (State, error) {
			if m, ok := snap["shared"].(map[string]any); ok {
				m["k"] = "mutated"
			}
			return nil, nil
		}},
	}
	res, err := e.Run(context.Background(), stages, initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if m, ok := res.State["shared"].(map[string]any); !ok || m["k"] != "v" {
		t.Fatalf("stage mutation of its snapshot leaked into run state: %v", res.State)
	}
	if m, ok := initial["shared"].(map[string]any); !ok || m["k"] != "v" {
		t.Fatalf("stage mutation leaked into caller state: %v", initial)
	}
}
