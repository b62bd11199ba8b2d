package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leadstack/crm-mcp-server/internal/audit"
	"github.com/leadstack/crm-mcp-server/internal/engine/filter"
	"github.com/leadstack/crm-mcp-server/internal/engine/project"
	"github.com/leadstack/crm-mcp-server/internal/engine/ratelimit"
	"github.com/leadstack/crm-mcp-server/internal/engine/resolve"
	"github.com/leadstack/crm-mcp-server/internal/executor"
	"github.com/leadstack/crm-mcp-server/internal/security"
)

// acquireTimeout bounds how long one invocation waits for a rate
// limiter token before failing its step.
const acquireTimeout = 30 * time.Second

// Executor runs pipelines against the abstract tool executor. All
// collaborators are injected; there is no hidden global state.
type Executor struct {
	// Exec performs the actual operations.
	Exec executor.ToolExecutor
	// Limiter is the shared external-API token bucket.
	Limiter *ratelimit.Limiter
	// Logger receives step-level debug logging.
	Logger *slog.Logger
	// Audit records run and step events.
	Audit audit.Logger
}

// stepFailure is an internal failure record for one step.
type stepFailure struct {
	message          string
	validationErrors []string
}

// Execute validates and runs the pipeline, returning a structured
// result in every case. Partial progress survives failures and
// timeouts: step_results keeps the full payload of every step that
// completed.
func (e Executor) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	runID := uuid.NewString()

	if msgs := Validate(req); len(msgs) > 0 {
		e.record(ctx, audit.Event{Type: "pipeline_invalid", RunID: runID, Index: -1, Reason: strings.Join(msgs, "; ")})
		return Result{
			Success:    false,
			TotalSteps: len(req.Steps),
			Error: &RunError{
				StepID:           ValidationStepID,
				Message:          "pipeline validation failed",
				ValidationErrors: msgs,
			},
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	e.record(ctx, audit.Event{Type: "pipeline_start", RunID: runID, Index: -1, Reason: fmt.Sprintf("%d steps", len(req.Steps))})

	vars := resolve.Context{}
	stepResults := make(map[string]StepOutcome, len(req.Steps))
	completed := 0
	var lastValue any
	var warnings []string

	for _, step := range req.Steps {
		if step.DelayMs > 0 {
			select {
			case <-time.After(time.Duration(step.DelayMs) * time.Millisecond):
			case <-ctx.Done():
				return e.terminated(ctx, req, runID, step.ID, completed, stepResults, start)
			}
		}

		// Run the step in its own goroutine so the overall deadline
		// interrupts the run even if the executor ignores ctx. A late
		// result from an abandoned step is discarded, never merged.
		type stepDone struct {
			value any
			fail  *stepFailure
		}
		done := make(chan stepDone, 1)
		go func(step Step, vars resolve.Context) {
			value, fail := e.runStep(ctx, runID, step, vars)
			done <- stepDone{value: value, fail: fail}
		}(step, vars)

		var outcome stepDone
		select {
		case outcome = <-done:
		case <-ctx.Done():
			return e.terminated(ctx, req, runID, step.ID, completed, stepResults, start)
		}

		if outcome.fail != nil {
			stepResults[step.ID] = StepOutcome{Success: false, Error: outcome.fail.message}
			e.record(ctx, audit.Event{Type: "step_error", RunID: runID, Tool: step.ToolName, StepID: step.ID, Index: -1, Reason: outcome.fail.message})
			return Result{
				Success:        false,
				StepsCompleted: completed,
				TotalSteps:     len(req.Steps),
				StepResults:    stepResults,
				Error: &RunError{
					StepID:           step.ID,
					Message:          outcome.fail.message,
					ValidationErrors: outcome.fail.validationErrors,
				},
				DurationMs: time.Since(start).Milliseconds(),
			}
		}

		if step.ResultFilter != "" {
			filtered, filterErr := filter.Apply(outcome.value, step.ResultFilter)
			if filterErr != "" {
				warnings = append(warnings, fmt.Sprintf("step %q: %s", step.ID, filterErr))
			}
			outcome.value = filtered
		}

		vars[step.ID] = outcome.value
		stepResults[step.ID] = StepOutcome{Success: true, Result: outcome.value}
		lastValue = outcome.value
		completed++
		e.record(ctx, audit.Event{Type: "step_ok", RunID: runID, Tool: step.ToolName, StepID: step.ID, Index: -1})
	}

	result, shapeWarnings := e.shapeResult(req, vars, lastValue)
	warnings = append(warnings, shapeWarnings...)
	e.record(ctx, audit.Event{Type: "pipeline_ok", RunID: runID, Index: -1})
	return Result{
		Success:        true,
		StepsCompleted: completed,
		TotalSteps:     len(req.Steps),
		Result:         result,
		StepResults:    stepResults,
		Warnings:       warnings,
		DurationMs:     time.Since(start).Milliseconds(),
	}
}

// runStep executes one plain or loop step with variables resolved
// against the accumulated context.
func (e Executor) runStep(ctx context.Context, runID string, step Step, vars resolve.Context) (any, *stepFailure) {
	if step.Loop != "" {
		return e.runLoop(ctx, runID, step, vars)
	}
	return e.invoke(ctx, runID, step, vars, -1)
}

// invoke resolves args and calls the executor once, drawing one token
// from the shared limiter first. index is the loop position, -1 for
// plain steps.
func (e Executor) invoke(ctx context.Context, runID string, step Step, vars resolve.Context, index int) (any, *stepFailure) {
	args := resolve.ResolveArgs(step.Args, vars)

	if e.Logger != nil {
		e.Logger.Debug("executing step",
			"run_id", runID,
			"step_id", step.ID,
			"tool", step.ToolName,
			"args", security.RedactValue(args),
		)
	}

	if e.Limiter != nil && !e.Limiter.Acquire(ctx, acquireTimeout) {
		message := fmt.Sprintf("step %q: rate limit acquire failed", step.ID)
		if index >= 0 {
			message = fmt.Sprintf("loop item %d: rate limit acquire failed", index)
		}
		return nil, &stepFailure{message: message}
	}

	out := e.Exec.Execute(ctx, step.ToolName, args)
	if !out.Success {
		message := out.Error
		if message == "" {
			message = fmt.Sprintf("tool %q failed", step.ToolName)
		}
		if index >= 0 {
			message = fmt.Sprintf("loop item %d: %s", index, message)
		}
		return nil, &stepFailure{message: message, validationErrors: out.ValidationErrors}
	}
	return out.Result, nil
}

// runLoop expands a loop step: resolve the loop token to an array,
// filter items, and execute the rest under bounded concurrency.
// Concurrency bounds how many invocations are in flight, not the output
// order, which always mirrors input order.
func (e Executor) runLoop(ctx context.Context, runID string, step Step, vars resolve.Context) (any, *stepFailure) {
	resolved := resolve.Resolve(step.Loop, vars)
	items, ok := resolved.([]any)
	if !ok {
		return nil, &stepFailure{message: fmt.Sprintf("loop expression %q did not resolve to an array", step.Loop)}
	}

	type loopItem struct {
		index int
		value any
	}
	included := make([]loopItem, 0, len(items))
	for i, item := range items {
		if step.Filter != "" {
			scope := vars.WithLoop(item, i)
			if !resolve.Truthy(resolve.Resolve(step.Filter, scope)) {
				continue
			}
		}
		included = append(included, loopItem{index: i, value: item})
	}

	concurrency := step.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]any, len(included))

	// Once one item fails the group context is cancelled and in-flight
	// siblings fail too, as cancellation artifacts. Only the first
	// failure is the cause, so only it may reach the caller.
	var firstFailure atomic.Pointer[stepFailure]

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for pos, item := range included {
		group.Go(func() error {
			scope := vars.WithLoop(item.value, item.index)
			value, fail := e.invoke(groupCtx, runID, step, scope, item.index)
			if fail != nil {
				firstFailure.CompareAndSwap(nil, fail)
				return errors.New(fail.message)
			}
			results[pos] = value
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if fail := firstFailure.Load(); fail != nil {
			return nil, fail
		}
		return nil, &stepFailure{message: err.Error()}
	}
	return results, nil
}

// terminated builds the result for a run cut short by its deadline or
// by caller cancellation, preserving everything completed so far.
func (e Executor) terminated(ctx context.Context, req Request, runID, stepID string, completed int, stepResults map[string]StepOutcome, start time.Time) Result {
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	message := "pipeline cancelled"
	if timedOut {
		message = fmt.Sprintf("pipeline timeout after %dms", req.TimeoutMs)
	}
	e.record(ctx, audit.Event{Type: "pipeline_timeout", RunID: runID, StepID: stepID, Index: -1, Reason: message})
	return Result{
		Success:        false,
		StepsCompleted: completed,
		TotalSteps:     len(req.Steps),
		StepResults:    stepResults,
		Error:          &RunError{StepID: stepID, Message: message},
		TimedOut:       timedOut,
		DurationMs:     time.Since(start).Milliseconds(),
	}
}

// shapeResult applies the return template, or falls back to the last
// executed step's raw value.
func (e Executor) shapeResult(req Request, vars resolve.Context, lastValue any) (any, []string) {
	if len(req.Return) == 0 {
		return lastValue, nil
	}

	shaped := make(map[string]any, len(req.Return))
	var warnings []string
	for stepID, paths := range req.Return {
		value, ok := vars[stepID]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("return template: step %q produced no result", stepID))
			continue
		}
		projected, projectWarnings := project.FieldsWithWarnings(value, paths)
		shaped[stepID] = projected
		for _, w := range projectWarnings {
			warnings = append(warnings, fmt.Sprintf("step %q: %s", stepID, w))
		}
	}
	return shaped, warnings
}

func (e Executor) record(ctx context.Context, event audit.Event) {
	if e.Audit != nil {
		e.Audit.Record(ctx, event)
	}
}
