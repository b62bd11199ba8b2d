package pipeline_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadstack/crm-mcp-server/internal/engine/pipeline"
)

func TestValidateAcceptsMinimalRequest(t *testing.T) {
	t.Parallel()

	req := pipeline.Request{Steps: []pipeline.Step{
		{ID: "a", ToolName: "search_contacts"},
	}}
	assert.Empty(t, pipeline.Validate(req))
}

func TestValidateStepCount(t *testing.T) {
	t.Parallel()

	assert.Contains(t, pipeline.Validate(pipeline.Request{})[0], "between 1 and 20")

	steps := make([]pipeline.Step, 21)
	for i := range steps {
		steps[i] = pipeline.Step{ID: fmt.Sprintf("s%d", i), ToolName: "t"}
	}
	msgs := pipeline.Validate(pipeline.Request{Steps: steps})
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "between 1 and 20")
}

func TestValidateIDs(t *testing.T) {
	t.Parallel()

	msgs := pipeline.Validate(pipeline.Request{Steps: []pipeline.Step{
		{ID: "", ToolName: "t"},
		{ID: "a", ToolName: "t"},
		{ID: "a", ToolName: ""},
	}})
	assert.Contains(t, msgs, "steps[0].id is required")
	assert.Contains(t, msgs, "duplicate step id: a")
	assert.Contains(t, msgs, "steps[2].tool_name is required")
}

func TestValidateNumericRanges(t *testing.T) {
	t.Parallel()

	msgs := pipeline.Validate(pipeline.Request{
		TimeoutMs: 300001,
		Steps: []pipeline.Step{
			{ID: "a", ToolName: "t", DelayMs: 30001},
			{ID: "b", ToolName: "t", Loop: "{{a}}", Concurrency: 11},
		},
	})
	assert.Contains(t, msgs, "timeout_ms must be between 1 and 300000")
	assert.Contains(t, msgs, "steps[0].delay_ms must be between 0 and 30000")
	assert.Contains(t, msgs, "steps[1].concurrency must be between 1 and 10")
}

func TestValidateLoopOnlyOptions(t *testing.T) {
	t.Parallel()

	msgs := pipeline.Validate(pipeline.Request{Steps: []pipeline.Step{
		{ID: "a", ToolName: "t", Filter: "{{item.x}}"},
		{ID: "b", ToolName: "t", Concurrency: 3},
	}})
	assert.Contains(t, msgs, "steps[0].filter requires loop")
	assert.Contains(t, msgs, "steps[1].concurrency requires loop")
}

func TestValidateDistinguishesUnknownAndForwardReferences(t *testing.T) {
	t.Parallel()

	msgs := pipeline.Validate(pipeline.Request{Steps: []pipeline.Step{
		{ID: "a", ToolName: "t", Args: map[string]any{"x": "{{later.id}}", "y": "{{ghost.id}}"}},
		{ID: "later", ToolName: "t"},
	}})
	assert.Contains(t, msgs, `steps[0].args references unknown step "ghost"`)
	assert.Contains(t, msgs, `steps[0].args references step "later" before it executes`)
}

func TestValidateSelfReferenceIsForward(t *testing.T) {
	t.Parallel()

	msgs := pipeline.Validate(pipeline.Request{Steps: []pipeline.Step{
		{ID: "a", ToolName: "t", Args: map[string]any{"x": "{{a.id}}"}},
	}})
	assert.Contains(t, msgs, `steps[0].args references step "a" before it executes`)
}

func TestValidateLoopVariablesOutsideLoop(t *testing.T) {
	t.Parallel()

	msgs := pipeline.Validate(pipeline.Request{Steps: []pipeline.Step{
		{ID: "a", ToolName: "t", Args: map[string]any{"x": "{{item.id}}"}},
	}})
	assert.Contains(t, msgs, `steps[0].args uses "item" outside of a loop`)
}

func TestValidateLoopVariablesInsideLoop(t *testing.T) {
	t.Parallel()

	msgs := pipeline.Validate(pipeline.Request{Steps: []pipeline.Step{
		{ID: "a", ToolName: "t"},
		{
			ID:       "b",
			ToolName: "t",
			Loop:     "{{a.items}}",
			Filter:   "{{item.active}}",
			Args:     map[string]any{"id": "{{item.id}}", "pos": "{{index}}"},
		},
	}})
	assert.Empty(t, msgs)
}

func TestValidateLoopExpressionCannotUseItem(t *testing.T) {
	t.Parallel()

	msgs := pipeline.Validate(pipeline.Request{Steps: []pipeline.Step{
		{ID: "a", ToolName: "t"},
		{ID: "b", ToolName: "t", Loop: "{{item.rows}}"},
	}})
	assert.Contains(t, msgs, `steps[1].loop uses "item" outside of a loop`)
}

func TestValidateReturnTemplate(t *testing.T) {
	t.Parallel()

	msgs := pipeline.Validate(pipeline.Request{
		Steps:  []pipeline.Step{{ID: "a", ToolName: "t"}},
		Return: map[string][]string{"a": {"x"}, "ghost": {"y"}},
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, `return template references unknown step "ghost"`, msgs[0])
}
