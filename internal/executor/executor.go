// Package executor defines the seam between the orchestration engine
// and the concrete CRM operation registry. The engine never performs
// I/O itself: every tool invocation flows through a ToolExecutor.
package executor

import "context"

// Outcome is the uniform result of one tool invocation. Execution
// failures are data, not Go errors, so the engine can attach them to
// the owning step or item.
type Outcome struct {
	// Success indicates whether the operation completed.
	Success bool `json:"success"`
	// Result is the operation payload on success.
	Result any `json:"result,omitempty"`
	// Error is a human-readable message on failure.
	Error string `json:"error,omitempty"`
	// ValidationErrors lists argument problems reported by the operation.
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// ToolExecutor performs a named operation with the given arguments. It
// may be slow and may fail transiently; it must honor ctx cancellation.
type ToolExecutor interface {
	// Execute runs the named tool.
	Execute(ctx context.Context, tool string, args map[string]any) Outcome
}

// Func adapts a plain function to ToolExecutor.
type Func func(ctx context.Context, tool string, args map[string]any) Outcome

// Execute calls f.
func (f Func) Execute(ctx context.Context, tool string, args map[string]any) Outcome {
	return f(ctx, tool, args)
}
