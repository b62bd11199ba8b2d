package pipeline

import (
	"fmt"
	"sort"

	"github.com/leadstack/crm-mcp-server/internal/engine/resolve"
)

// Validate checks the whole request before anything executes and
// returns every problem found, so the agent can fix a request in one
// round trip.
func Validate(req Request) []string {
	var msgs []string

	if len(req.Steps) == 0 || len(req.Steps) > MaxSteps {
		msgs = append(msgs, fmt.Sprintf("pipeline must contain between 1 and %d steps", MaxSteps))
	}
	if req.TimeoutMs != 0 && (req.TimeoutMs < MinTimeoutMs || req.TimeoutMs > MaxTimeoutMs) {
		msgs = append(msgs, fmt.Sprintf("timeout_ms must be between %d and %d", MinTimeoutMs, MaxTimeoutMs))
	}

	position := make(map[string]int, len(req.Steps))
	for i, step := range req.Steps {
		if step.ID == "" {
			continue
		}
		if _, exists := position[step.ID]; !exists {
			position[step.ID] = i
		}
	}

	seen := make(map[string]struct{}, len(req.Steps))
	for i, step := range req.Steps {
		if step.ID == "" {
			msgs = append(msgs, fmt.Sprintf("steps[%d].id is required", i))
		} else if _, dup := seen[step.ID]; dup {
			msgs = append(msgs, fmt.Sprintf("duplicate step id: %s", step.ID))
		}
		if step.ID != "" {
			seen[step.ID] = struct{}{}
		}

		if step.ToolName == "" {
			msgs = append(msgs, fmt.Sprintf("steps[%d].tool_name is required", i))
		}
		if step.DelayMs < 0 || step.DelayMs > MaxDelayMs {
			msgs = append(msgs, fmt.Sprintf("steps[%d].delay_ms must be between 0 and %d", i, MaxDelayMs))
		}
		if step.Loop == "" {
			if step.Filter != "" {
				msgs = append(msgs, fmt.Sprintf("steps[%d].filter requires loop", i))
			}
			if step.Concurrency != 0 {
				msgs = append(msgs, fmt.Sprintf("steps[%d].concurrency requires loop", i))
			}
		} else if step.Concurrency != 0 && (step.Concurrency < MinConcurrency || step.Concurrency > MaxConcurrency) {
			msgs = append(msgs, fmt.Sprintf("steps[%d].concurrency must be between %d and %d", i, MinConcurrency, MaxConcurrency))
		}

		msgs = append(msgs, referenceErrors(i, step, position)...)
	}

	// Map iteration order is random; sort the keys so validation
	// messages are stable between runs.
	returnIDs := make([]string, 0, len(req.Return))
	for stepID := range req.Return {
		returnIDs = append(returnIDs, stepID)
	}
	sort.Strings(returnIDs)
	for _, stepID := range returnIDs {
		if _, ok := position[stepID]; !ok {
			msgs = append(msgs, fmt.Sprintf("return template references unknown step %q", stepID))
		}
	}
	return msgs
}

// referenceErrors checks every variable token in args, loop, and filter
// against the step list. The declaration order is the only ordering
// primitive, so a reference to a later step ("forward reference") and a
// reference to a step that does not exist at all ("unknown step") are
// reported as distinct problems.
func referenceErrors(index int, step Step, position map[string]int) []string {
	var msgs []string
	report := func(field string, tokens []resolve.Token, loopScope bool) {
		seenIdent := map[string]struct{}{}
		for _, tok := range tokens {
			if _, dup := seenIdent[tok.Ident]; dup {
				continue
			}
			seenIdent[tok.Ident] = struct{}{}

			if tok.Ident == resolve.ItemVar || tok.Ident == resolve.IndexVar {
				if !loopScope {
					msgs = append(msgs, fmt.Sprintf("steps[%d].%s uses %q outside of a loop", index, field, tok.Ident))
				}
				continue
			}
			pos, known := position[tok.Ident]
			switch {
			case !known:
				msgs = append(msgs, fmt.Sprintf("steps[%d].%s references unknown step %q", index, field, tok.Ident))
			case pos >= index:
				msgs = append(msgs, fmt.Sprintf("steps[%d].%s references step %q before it executes", index, field, tok.Ident))
			}
		}
	}

	report("args", sortedTokens(step.Args), step.Loop != "")
	if step.Loop != "" {
		report("loop", resolve.Tokens(step.Loop), false)
		if step.Filter != "" {
			report("filter", resolve.Tokens(step.Filter), true)
		}
	}
	return msgs
}

// sortedTokens collects tokens from an argument map in deterministic
// order; map iteration alone would shuffle validation messages between
// runs.
func sortedTokens(args map[string]any) []resolve.Token {
	tokens := resolve.Tokens(args)
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Ident != tokens[j].Ident {
			return tokens[i].Ident < tokens[j].Ident
		}
		return tokens[i].Raw < tokens[j].Raw
	})
	return tokens
}
