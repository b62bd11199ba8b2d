// Package batch applies one tool to many argument sets under bounded
// concurrency and the shared rate limiter, retrying transient failures
// with jittered backoff and aggregating outcomes into a summary or a
// full per-item report.
package batch

import "github.com/leadstack/crm-mcp-server/internal/engine/ratelimit"

// On-error policies.
const (
	OnErrorContinue = "continue"
	OnErrorStop     = "stop"
)

// Result modes.
const (
	ModeSummary = "summary"
	ModeDetail  = "detail"
)

// Request limits.
const (
	MaxItems           = 100
	MinConcurrency     = 1
	MaxConcurrency     = 10
	DefaultConcurrency = 5
	MaxRetries         = 3
)

// Options tune one batch run. The zero value means all defaults.
type Options struct {
	// Concurrency bounds in-flight executions (1..10, default 5).
	Concurrency int `json:"concurrency,omitempty"`
	// OnError is "continue" (default) or "stop".
	OnError string `json:"on_error,omitempty"`
	// ResultMode is "summary" (default) or "detail".
	ResultMode string `json:"result_mode,omitempty"`
	// SelectFields projects each detail-mode result to these paths.
	SelectFields []string `json:"select_fields,omitempty"`
	// MaxRetries re-attempts transient failures (0..3, default 0).
	MaxRetries int `json:"max_retries,omitempty"`
}

// Request is a full batch declaration.
type Request struct {
	// ToolName is the operation applied to every item.
	ToolName string `json:"tool_name"`
	// Items are the argument objects, one per execution (1..100).
	Items []any `json:"items"`
	// Options tune concurrency, error policy, aggregation, and retries.
	Options *Options `json:"options,omitempty"`
}

// ItemError records one failed item by its original input index.
type ItemError struct {
	// Index is the item's position in the request.
	Index int `json:"index"`
	// Error is the failure message after retries were exhausted.
	Error string `json:"error"`
	// ValidationErrors lists argument problems reported by the tool.
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// ItemResult is one item's outcome in detail mode.
type ItemResult struct {
	// Index is the item's position in the request.
	Index int `json:"index"`
	// Success indicates whether the item completed.
	Success bool `json:"success"`
	// Result is the (optionally field-projected) payload on success.
	Result any `json:"result,omitempty"`
	// Error is the failure message.
	Error string `json:"error,omitempty"`
}

// Report aggregates a run. Results is populated in detail mode only.
type Report struct {
	// Total is the number of items in the request.
	Total int `json:"total"`
	// Succeeded counts items that completed.
	Succeeded int `json:"succeeded"`
	// Failed counts items that exhausted their attempts.
	Failed int `json:"failed"`
	// DurationMs is the wall-clock run duration.
	DurationMs int64 `json:"duration_ms"`
	// Errors lists every failed item in input order.
	Errors []ItemError `json:"errors"`
	// Results lists every processed item in input order (detail mode).
	Results []ItemResult `json:"results,omitempty"`
}

// ValidationError reports structural request problems. Nothing executes
// when it is set.
type ValidationError struct {
	// Message is a fixed human-readable summary.
	Message string `json:"message"`
	// ValidationErrors lists all problems found.
	ValidationErrors []string `json:"validation_errors"`
}

// Result is the terminal response of a batch run.
type Result struct {
	// Success indicates every processed item completed.
	Success bool `json:"success"`
	// Data is the aggregated report, absent on validation failure.
	Data *Report `json:"data,omitempty"`
	// StoppedEarly marks runs cut short by on_error "stop".
	StoppedEarly bool `json:"stopped_early,omitempty"`
	// RateLimitState snapshots the shared token bucket after the run.
	RateLimitState *ratelimit.State `json:"rate_limit_state,omitempty"`
	// Error describes a validation failure.
	Error *ValidationError `json:"error,omitempty"`
}
