package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadstack/crm-mcp-server/internal/engine/filter"
)

func TestParse(t *testing.T) {
	t.Parallel()

	parsed := filter.Parse("status = open")
	require.NotNil(t, parsed)
	assert.Equal(t, "status", parsed.Field)
	assert.Equal(t, filter.OpEquals, parsed.Operator)
	assert.Equal(t, "open", parsed.Value)

	parsed = filter.Parse("contact.email IS_NOT_NULL")
	require.NotNil(t, parsed)
	assert.Equal(t, filter.OpIsNotNull, parsed.Operator)
	assert.Empty(t, parsed.Value)

	parsed = filter.Parse(`name STARTS_WITH "Jo"`)
	require.NotNil(t, parsed)
	assert.Equal(t, filter.OpStartsWith, parsed.Operator)
	assert.Equal(t, "Jo", parsed.Value)

	parsed = filter.Parse("count != 3")
	require.NotNil(t, parsed)
	assert.Equal(t, filter.OpNotEquals, parsed.Operator)
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"", "status", "status LIKE x", "a b = c", "x IS_NULL extra"} {
		assert.Nil(t, filter.Parse(expr), "expression %q should not parse", expr)
	}
}

func TestEvaluateEquals(t *testing.T) {
	t.Parallel()

	obj := map[string]any{
		"name":   "John",
		"score":  42.0,
		"active": true,
		"tags":   []any{"VIP", "lead"},
	}

	assert.True(t, filter.Evaluate(obj, filter.Parse("name = john")), "string equality is case-insensitive")
	assert.False(t, filter.Evaluate(obj, filter.Parse("name = jane")))
	assert.True(t, filter.Evaluate(obj, filter.Parse("score = 42")))
	assert.True(t, filter.Evaluate(obj, filter.Parse("active = true")))
	assert.False(t, filter.Evaluate(obj, filter.Parse("active = false")))
	assert.True(t, filter.Evaluate(obj, filter.Parse("tags = vip")), "array equality means contains")
	assert.True(t, filter.Evaluate(obj, filter.Parse("tags != partner")))
}

func TestEvaluateOrdering(t *testing.T) {
	t.Parallel()

	obj := map[string]any{
		"score":   42.0,
		"name":    "John",
		"created": "2025-03-01T10:00:00Z",
	}

	assert.True(t, filter.Evaluate(obj, filter.Parse("score > 10")))
	assert.False(t, filter.Evaluate(obj, filter.Parse("score > 42")))
	assert.True(t, filter.Evaluate(obj, filter.Parse("score < 100")))
	assert.True(t, filter.Evaluate(obj, filter.Parse("name > Alice")), "strings compare lexicographically")
	assert.True(t, filter.Evaluate(obj, filter.Parse("created > 2025-01-01")), "dates compare chronologically")
	assert.True(t, filter.Evaluate(obj, filter.Parse("created < 2026-01-01")))
}

func TestEvaluateNullChecks(t *testing.T) {
	t.Parallel()

	obj := map[string]any{"email": nil, "name": "x"}

	assert.True(t, filter.Evaluate(obj, filter.Parse("email IS_NULL")), "explicit null")
	assert.True(t, filter.Evaluate(obj, filter.Parse("phone IS_NULL")), "absent key")
	assert.False(t, filter.Evaluate(obj, filter.Parse("name IS_NULL")))
	assert.True(t, filter.Evaluate(obj, filter.Parse("name IS_NOT_NULL")))
	assert.False(t, filter.Evaluate(obj, filter.Parse("email IS_NOT_NULL")))
}

func TestEvaluateSubstring(t *testing.T) {
	t.Parallel()

	obj := map[string]any{
		"email": "John@Acme.IO",
		"tags":  []any{"Partner", "VIP"},
	}

	assert.True(t, filter.Evaluate(obj, filter.Parse("email CONTAINS acme")))
	assert.True(t, filter.Evaluate(obj, filter.Parse("email STARTS_WITH john")))
	assert.False(t, filter.Evaluate(obj, filter.Parse("email STARTS_WITH acme")))
	assert.True(t, filter.Evaluate(obj, filter.Parse("tags CONTAINS vip")), "arrays match when any element matches")
}

func TestApplyArray(t *testing.T) {
	t.Parallel()

	arr := []any{
		map[string]any{"s": "a"},
		map[string]any{"s": "B"},
	}
	result, errMsg := filter.Apply(arr, "s = a")
	assert.Empty(t, errMsg)
	assert.Equal(t, []any{map[string]any{"s": "a"}}, result)
}

func TestApplySingleObject(t *testing.T) {
	t.Parallel()

	obj := map[string]any{"s": "a"}

	result, errMsg := filter.Apply(obj, "s = a")
	assert.Empty(t, errMsg)
	assert.Equal(t, obj, result)

	// Non-matching single objects come back as nil, not an empty list.
	result, errMsg = filter.Apply(obj, "s = z")
	assert.Empty(t, errMsg)
	assert.Nil(t, result)
}

func TestApplyUnparsableExpression(t *testing.T) {
	t.Parallel()

	obj := map[string]any{"s": "a"}
	result, errMsg := filter.Apply(obj, "not an expression at all")
	assert.Equal(t, obj, result, "original value is returned")
	assert.Contains(t, errMsg, "invalid filter expression")
}
