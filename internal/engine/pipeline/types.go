// Package pipeline executes an ordered list of tool invocations against
// the abstract executor, passing data between steps through {{id.path}}
// variables, expanding loop steps under bounded concurrency, and
// shaping the final result through return-template projection.
package pipeline

// Step declares one tool invocation. A step with Loop set expands into
// one sub-execution per array element, with "item" and "index" bound
// for variable resolution.
type Step struct {
	// ID names the step; later steps reference its result by this id.
	ID string `json:"id"`
	// ToolName is the operation to execute.
	ToolName string `json:"tool_name"`
	// Args are the tool arguments; values may contain variable tokens.
	Args map[string]any `json:"args,omitempty"`
	// DelayMs sleeps before the step executes (0..30000).
	DelayMs int `json:"delay_ms,omitempty"`
	// Loop is a variable token that must resolve to an array.
	Loop string `json:"loop,omitempty"`
	// Filter is a variable token evaluated per loop item; falsy skips.
	Filter string `json:"filter,omitempty"`
	// ResultFilter is a comparison expression applied to the step's
	// result before it enters the context, e.g. "status = active".
	ResultFilter string `json:"result_filter,omitempty"`
	// Concurrency bounds in-flight loop executions (1..10, default 5).
	Concurrency int `json:"concurrency,omitempty"`
}

// Request is a full pipeline declaration.
type Request struct {
	// Steps execute strictly in declaration order (1..20).
	Steps []Step `json:"steps"`
	// Return maps step ids to projection paths shaping the final result.
	Return map[string][]string `json:"return,omitempty"`
	// TimeoutMs bounds the whole run (1..300000).
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// StepOutcome records one step's result or error. Full payloads are
// retained even when the run fails so callers can recover partial work.
type StepOutcome struct {
	// Success indicates whether the step completed.
	Success bool `json:"success"`
	// Result is the step's resolved result value.
	Result any `json:"result,omitempty"`
	// Error is the failure message.
	Error string `json:"error,omitempty"`
}

// RunError locates and describes a pipeline failure. Validation
// failures use the sentinel step id "_validation" and never execute
// anything.
type RunError struct {
	// StepID is the failing step, or "_validation".
	StepID string `json:"step_id"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// ValidationErrors lists all structural problems found up front.
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// Result is the terminal response of a pipeline run, success or not.
type Result struct {
	// Success indicates the whole pipeline completed.
	Success bool `json:"success"`
	// StepsCompleted counts steps that finished successfully.
	StepsCompleted int `json:"steps_completed"`
	// TotalSteps is the declared step count.
	TotalSteps int `json:"total_steps"`
	// Result is the projected return template, or the last step's value.
	Result any `json:"result,omitempty"`
	// StepResults maps step id to outcome, retained even on failure.
	StepResults map[string]StepOutcome `json:"step_results,omitempty"`
	// Warnings lists non-fatal issues such as unmatched return paths.
	Warnings []string `json:"warnings,omitempty"`
	// Error describes the failure, when Success is false.
	Error *RunError `json:"error,omitempty"`
	// TimedOut marks runs ended by the overall deadline.
	TimedOut bool `json:"timed_out,omitempty"`
	// DurationMs is the wall-clock run duration.
	DurationMs int64 `json:"duration_ms"`
}

// ValidationStepID is the sentinel step id reported for structural
// request problems.
const ValidationStepID = "_validation"

// Request limits.
const (
	MaxSteps           = 20
	MaxDelayMs         = 30000
	MinTimeoutMs       = 1
	MaxTimeoutMs       = 300000
	MinConcurrency     = 1
	MaxConcurrency     = 10
	DefaultConcurrency = 5
)
