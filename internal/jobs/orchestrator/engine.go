package orchestrator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/classforge/classforge-backend/internal/platform/logger"
)

// -------------------- Public API --------------------

type RetryPolicy struct {
	MaxAttempts int
	Retryable   func(err error) bool

	MinBackoff time.Duration // default 1s
	MaxBackoff time.Duration // default 30s
	JitterFrac float64       // default 0.20
}

// Stage is one node of a workflow graph.
//
// Deps name the stages whose settlement gates this one. A Tolerated stage
// may fail without aborting the run; its dependents still execute against
// whatever state exists. A Finalizer runs after every non-finalizer has
// settled, regardless of upstream failures.
type Stage struct {
	Name      string
	Deps      []string
	Tolerated bool
	Finalizer bool
	Timeout   time.Duration
	Retry     RetryPolicy
	Run       func(ctx context.Context, snap State) (State, error)
}

type Outcome string

const (
	OutcomeCompleted          Outcome = "completed"
	OutcomePartiallyCompleted Outcome = "partially_completed"
	OutcomeFailed             Outcome = "failed"
)

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

type StageResult struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Attempts   int         `json:"attempts"`
	LastError  string      `json:"last_error,omitempty"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// Result summarizes one workflow run.
//
// Outcome semantics:
//   - Completed: every stage succeeded.
//   - PartiallyCompleted: at least one stage failed but every finalizer
//     succeeded, so the run still produced a usable result.
//   - Failed: a finalizer failed (or the run never started cleanly).
type Result struct {
	Outcome  Outcome                 `json:"outcome"`
	State    State                   `json:"-"`
	Stages   map[string]*StageResult `json:"stages"`
	Failed   []string                `json:"failed,omitempty"`
	FirstErr error                   `json:"-"`
}

type Engine struct {
	log *logger.Logger

	// OnStage, when set, observes every stage settlement.
	OnStage func(name string, status StageStatus)
}

func NewEngine(baseLog *logger.Logger) *Engine {
	return &Engine{log: baseLog.With("component", "WorkflowEngine")}
}

// Run executes the graph. The returned error is non-nil only for invalid
// graphs or a nil context; execution failures are reported through
// Result.Outcome so callers can distinguish degraded runs from broken ones.
func (e *Engine) Run(ctx context.Context, stages []Stage, initial State) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateGraph(stages); err != nil {
		return nil, err
	}

	res := &Result{
		Outcome: OutcomeCompleted,
		State:   initial.Clone(),
		Stages:  map[string]*StageResult{},
	}
	if len(stages) == 0 {
		return res, nil
	}

	defs := map[string]Stage{}
	for _, s := range stages {
		defs[s.Name] = s
		res.Stages[s.Name] = &StageResult{Name: s.Name, Status: StagePending}
	}

	var core, finalizers []Stage
	for _, s := range stages {
		if s.Finalizer {
			finalizers = append(finalizers, s)
		} else {
			core = append(core, s)
		}
	}

	fatal := e.runCore(ctx, core, defs, res)
	if fatal {
		for _, s := range core {
			if sr := res.Stages[s.Name]; sr.Status == StagePending {
				sr.Status = StageSkipped
				e.observe(s.Name, StageSkipped)
			}
		}
	}

	finalizerFailed := e.runFinalizers(ctx, finalizers, res)

	switch {
	case finalizerFailed:
		res.Outcome = OutcomeFailed
	case len(res.Failed) > 0:
		res.Outcome = OutcomePartiallyCompleted
	default:
		res.Outcome = OutcomeCompleted
	}
	return res, nil
}

// -------------------- core scheduling --------------------

type stageDone struct {
	name    string
	updates State
	err     error
}

// runCore schedules the non-finalizer stages concurrently. Returns true when
// a non-tolerated failure (or context cancellation) aborted the run; in-flight
// stages are always drained before returning.
func (e *Engine) runCore(ctx context.Context, core []Stage, defs map[string]Stage, res *Result) bool {
	remaining := map[string]int{}
	dependents := map[string][]string{}
	for _, s := range core {
		n := 0
		for _, d := range s.Deps {
			if defs[d].Finalizer {
				continue
			}
			n++
			dependents[d] = append(dependents[d], s.Name)
		}
		remaining[s.Name] = n
	}

	done := make(chan stageDone, len(core))
	inflight := 0
	fatal := false

	launch := func(s Stage) {
		sr := res.Stages[s.Name]
		sr.Status = StageRunning
		now := time.Now().UTC()
		sr.StartedAt = &now
		e.observe(s.Name, StageRunning)
		snap := res.State.Clone()
		inflight++
		go func(def Stage, snap State) {
			updates, err := e.runStage(ctx, def, snap, res.Stages[def.Name])
			done <- stageDone{name: def.Name, updates: updates, err: err}
		}(s, snap)
	}

	for _, s := range core {
		if remaining[s.Name] == 0 {
			launch(s)
		}
	}

	for inflight > 0 {
		d := <-done
		inflight--
		sr := res.Stages[d.name]
		now := time.Now().UTC()
		sr.FinishedAt = &now
		def := defs[d.name]

		if d.err == nil {
			sr.Status = StageSucceeded
			res.State.Merge(d.updates)
			e.observe(d.name, StageSucceeded)
		} else {
			sr.Status = StageFailed
			sr.LastError = d.err.Error()
			res.Failed = append(res.Failed, d.name)
			e.observe(d.name, StageFailed)
			e.log.Warn("workflow stage failed",
				"stage", d.name,
				"tolerated", def.Tolerated,
				"error", d.err,
			)
			if !def.Tolerated {
				fatal = true
				if res.FirstErr == nil {
					res.FirstErr = fmt.Errorf("stage %q: %w", d.name, d.err)
				}
			}
		}

		if fatal {
			continue
		}
		// A tolerated failure still resolves its dependents.
		for _, depName := range dependents[d.name] {
			remaining[depName]--
			if remaining[depName] == 0 && res.Stages[depName].Status == StagePending {
				launch(defs[depName])
			}
		}

		if ctx.Err() != nil {
			fatal = true
			if res.FirstErr == nil {
				res.FirstErr = ctx.Err()
			}
		}
	}

	return fatal
}

// runFinalizers executes finalizer stages sequentially in dependency order.
// Finalizers always run, even after a fatal core failure. Returns true if any
// finalizer failed.
func (e *Engine) runFinalizers(ctx context.Context, finalizers []Stage, res *Result) bool {
	failed := false
	for _, s := range topoOrder(finalizers) {
		sr := res.Stages[s.Name]
		sr.Status = StageRunning
		start := time.Now().UTC()
		sr.StartedAt = &start
		e.observe(s.Name, StageRunning)

		updates, err := e.runStage(ctx, s, res.State.Clone(), sr)
		end := time.Now().UTC()
		sr.FinishedAt = &end
		if err != nil {
			sr.Status = StageFailed
			sr.LastError = err.Error()
			res.Failed = append(res.Failed, s.Name)
			failed = true
			if res.FirstErr == nil {
				res.FirstErr = fmt.Errorf("finalizer %q: %w", s.Name, err)
			}
			e.observe(s.Name, StageFailed)
			e.log.Error("workflow finalizer failed", "stage", s.Name, "error", err)
			continue
		}
		sr.Status = StageSucceeded
		res.State.Merge(updates)
		e.observe(s.Name, StageSucceeded)
	}
	return failed
}

func (e *Engine) observe(name string, status StageStatus) {
	if e.OnStage != nil {
		e.OnStage(name, status)
	}
}

// -------------------- stage execution --------------------

// runStage drives one stage through its retry loop. Each attempt gets a fresh
// snapshot clone so a failed attempt cannot leak partial writes.
func (e *Engine) runStage(ctx context.Context, def Stage, snap State, sr *StageResult) (State, error) {
	var lastErr error
	attempts := 0
	for {
		attempts++
		sr.Attempts = attempts
		updates, err := e.runAttempt(ctx, def, snap.Clone())
		if err == nil {
			return updates, nil
		}
		lastErr = err
		if !shouldRetry(def.Retry, attempts, err) {
			return nil, lastErr
		}
		delay := computeBackoff(def.Retry, attempts)
		e.log.Debug("workflow stage retrying",
			"stage", def.Name,
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(delay):
		}
	}
}

func (e *Engine) runAttempt(ctx context.Context, def Stage, snap State) (State, error) {
	if def.Timeout <= 0 {
		return def.Run(ctx, snap)
	}
	tctx, cancel := context.WithTimeout(ctx, def.Timeout)
	defer cancel()
	type out struct {
		updates State
		err     error
	}
	ch := make(chan out, 1)
	go func() {
		updates, err := def.Run(tctx, snap)
		ch <- out{updates: updates, err: err}
	}()
	select {
	case <-tctx.Done():
		return nil, fmt.Errorf("stage %q timed out: %w", def.Name, tctx.Err())
	case o := <-ch:
		return o.updates, o.err
	}
}

// -------------------- validation --------------------

func validateGraph(stages []Stage) error {
	byName := map[string]Stage{}
	for _, s := range stages {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("stage missing Name")
		}
		if _, dup := byName[s.Name]; dup {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		if s.Run == nil {
			return fmt.Errorf("stage %q: Run is nil", s.Name)
		}
		byName[s.Name] = s
	}
	for _, s := range stages {
		for _, d := range s.Deps {
			dep, ok := byName[d]
			if !ok {
				return fmt.Errorf("stage %q: unknown dependency %q", s.Name, d)
			}
			if dep.Finalizer && !s.Finalizer {
				return fmt.Errorf("stage %q: cannot depend on finalizer %q", s.Name, d)
			}
		}
	}
	// Kahn's algorithm over the whole graph to reject cycles.
	indeg := map[string]int{}
	next := map[string][]string{}
	for _, s := range stages {
		indeg[s.Name] += 0
		for _, d := range s.Deps {
			indeg[s.Name]++
			next[d] = append(next[d], s.Name)
		}
	}
	var queue []string
	for name, n := range indeg {
		if n == 0 {
			queue = append(queue, name)
		}
	}
	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, m := range next[name] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if visited != len(stages) {
		return fmt.Errorf("workflow graph contains a cycle")
	}
	return nil
}

// topoOrder sorts stages so dependencies come first; ties keep a stable
// name order so runs are deterministic.
func topoOrder(stages []Stage) []Stage {
	byName := map[string]Stage{}
	indeg := map[string]int{}
	next := map[string][]string{}
	for _, s := range stages {
		byName[s.Name] = s
		indeg[s.Name] += 0
	}
	for _, s := range stages {
		for _, d := range s.Deps {
			// Deps outside this set (core stages) have already settled.
			if _, ok := indeg[d]; !ok {
				continue
			}
			indeg[s.Name]++
			next[d] = append(next[d], s.Name)
		}
	}
	var queue []string
	for name, n := range indeg {
		if n == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)
	var out []Stage
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		out = append(out, byName[name])
		added := false
		for _, m := range next[name] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
				added = true
			}
		}
		if added {
			sort.Strings(queue)
		}
	}
	return out
}

// -------------------- retry/backoff --------------------

func shouldRetry(r RetryPolicy, attempts int, err error) bool {
	if r.MaxAttempts <= 0 || attempts >= r.MaxAttempts {
		return false
	}
	if r.Retryable == nil {
		return true
	}
	return r.Retryable(err)
}

func computeBackoff(r RetryPolicy, attempts int) time.Duration {
	minB := r.MinBackoff
	maxB := r.MaxBackoff
	j := r.JitterFrac
	if minB <= 0 {
		minB = 1 * time.Second
	}
	if maxB <= 0 {
		maxB = 30 * time.Second
	}
	if j <= 0 {
		j = 0.20
	}
	if attempts < 1 {
		attempts = 1
	}
	d := time.Duration(float64(minB) * math.Pow(2, float64(attempts-1)))
	if d > maxB {
		d = maxB
	}
	delta := float64(d) * j
	low := float64(d) - delta
	high := float64(d) + delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*(high-low))
}
