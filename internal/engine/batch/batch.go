package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leadstack/crm-mcp-server/internal/audit"
	"github.com/leadstack/crm-mcp-server/internal/engine/project"
	"github.com/leadstack/crm-mcp-server/internal/engine/ratelimit"
	"github.com/leadstack/crm-mcp-server/internal/executor"
	"github.com/leadstack/crm-mcp-server/internal/security"
)

// acquireTimeout bounds how long one attempt waits for a rate limiter
// token before failing its item.
const acquireTimeout = 30 * time.Second

// Retry spacing.
const (
	backoffBase = 250 * time.Millisecond
	backoffMax  = 5 * time.Second
)

// Executor runs batches against the abstract tool executor.
type Executor struct {
	// Exec performs the actual operations.
	Exec executor.ToolExecutor
	// Limiter is the shared external-API token bucket.
	Limiter *ratelimit.Limiter
	// Logger receives item-level debug logging.
	Logger *slog.Logger
	// Audit records run and item events.
	Audit audit.Logger
}

// itemFailure is an internal failure record for one item.
type itemFailure struct {
	message          string
	validationErrors []string
}

// Execute validates and runs the batch. Output positions always match
// input positions regardless of completion order. With on_error "stop"
// a failure prevents further items from starting; items already in
// flight finish, and items never started appear in neither results nor
// errors.
func (e Executor) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	runID := uuid.NewString()

	if msgs := Validate(req); len(msgs) > 0 {
		e.record(ctx, audit.Event{Type: "batch_invalid", RunID: runID, Tool: req.ToolName, Index: -1, Reason: strings.Join(msgs, "; ")})
		return Result{
			Success: false,
			Error: &ValidationError{
				Message:          "batch validation failed",
				ValidationErrors: msgs,
			},
			RateLimitState: e.limiterState(),
		}
	}

	opts := normalized(req.Options)
	e.record(ctx, audit.Event{Type: "batch_start", RunID: runID, Tool: req.ToolName, Index: -1, Reason: fmt.Sprintf("%d items", len(req.Items))})

	outcomes := make([]*ItemResult, len(req.Items))
	failures := make([]*itemFailure, len(req.Items))
	var stopped atomic.Bool

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Concurrency)
	for i, item := range req.Items {
		group.Go(func() error {
			if stopped.Load() || groupCtx.Err() != nil {
				return nil
			}
			value, fail := e.runItem(groupCtx, runID, req.ToolName, item, opts)
			if fail != nil {
				failures[i] = fail
				outcomes[i] = &ItemResult{Index: i, Success: false, Error: fail.message}
				e.record(groupCtx, audit.Event{Type: "item_error", RunID: runID, Tool: req.ToolName, Index: i, Reason: fail.message})
				if opts.OnError == OnErrorStop {
					stopped.Store(true)
				}
				return nil
			}
			outcomes[i] = &ItemResult{Index: i, Success: true, Result: value}
			return nil
		})
	}
	_ = group.Wait() // workers record failures in place and never return errors

	report := &Report{
		Total:  len(req.Items),
		Errors: []ItemError{},
	}
	for i, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		if outcome.Success {
			report.Succeeded++
			if opts.ResultMode == ModeDetail && len(opts.SelectFields) > 0 {
				outcome.Result = project.Fields(outcome.Result, opts.SelectFields)
			}
		} else {
			report.Failed++
			report.Errors = append(report.Errors, ItemError{
				Index:            i,
				Error:            outcome.Error,
				ValidationErrors: failures[i].validationErrors,
			})
		}
		if opts.ResultMode == ModeDetail {
			report.Results = append(report.Results, *outcome)
		}
	}
	report.DurationMs = time.Since(start).Milliseconds()

	e.record(ctx, audit.Event{Type: "batch_done", RunID: runID, Tool: req.ToolName, Index: -1, Reason: fmt.Sprintf("%d ok, %d failed", report.Succeeded, report.Failed)})
	return Result{
		Success:        report.Failed == 0,
		Data:           report,
		StoppedEarly:   stopped.Load(),
		RateLimitState: e.limiterState(),
	}
}

// runItem executes one item, retrying transient failures. Tool-reported
// validation errors never retry: the same arguments would fail again.
func (e Executor) runItem(ctx context.Context, runID, tool string, item any, opts Options) (any, *itemFailure) {
	args, ok := item.(map[string]any)
	if !ok {
		return nil, &itemFailure{message: "item is not an object"}
	}

	if e.Logger != nil {
		e.Logger.Debug("executing batch item",
			"run_id", runID,
			"tool", tool,
			"args", security.RedactValue(args),
		)
	}

	var last *itemFailure
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(ratelimit.Backoff(attempt-1, backoffBase, backoffMax)):
			case <-ctx.Done():
				return nil, last
			}
		}

		if e.Limiter != nil && !e.Limiter.Acquire(ctx, acquireTimeout) {
			return nil, &itemFailure{message: "rate limit acquire failed"}
		}

		out := e.Exec.Execute(ctx, tool, args)
		if out.Success {
			return out.Result, nil
		}
		message := out.Error
		if message == "" {
			message = fmt.Sprintf("tool %q failed", tool)
		}
		last = &itemFailure{message: message, validationErrors: out.ValidationErrors}
		if len(out.ValidationErrors) > 0 {
			break
		}
	}
	return nil, last
}

func (e Executor) limiterState() *ratelimit.State {
	if e.Limiter == nil {
		return nil
	}
	state := e.Limiter.State()
	return &state
}

func (e Executor) record(ctx context.Context, event audit.Event) {
	if e.Audit != nil {
		e.Audit.Record(ctx, event)
	}
}
