// Package filter parses and evaluates the step-filter micro-language:
//
//	<field-path> <OPERATOR> [<value>]
//
// Parse and Evaluate are separate pure functions so expressions are
// parsed once per pipeline step, not per item.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leadstack/crm-mcp-server/internal/engine/path"
)

// Operators, longest first so prefixes never shadow longer names
// (IS_NOT_NULL before IS_NULL, != before =).
const (
	OpIsNotNull  = "IS_NOT_NULL"
	OpIsNull     = "IS_NULL"
	OpStartsWith = "STARTS_WITH"
	OpContains   = "CONTAINS"
	OpNotEquals  = "!="
	OpEquals     = "="
	OpGreater    = ">"
	OpLess       = "<"
)

var operators = []string{
	OpIsNotNull,
	OpIsNull,
	OpStartsWith,
	OpContains,
	OpNotEquals,
	OpEquals,
	OpGreater,
	OpLess,
}

// ParsedFilter is a compiled filter expression.
type ParsedFilter struct {
	// Field is the field path the filter inspects.
	Field string
	// Operator is one of the Op constants.
	Operator string
	// Value is the comparison literal; empty for the null checks.
	Value string

	segs []path.Segment
}

// Parse compiles an expression, or returns nil when it does not match
// the grammar.
func Parse(expression string) *ParsedFilter {
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return nil
	}

	for _, op := range operators {
		field, value, ok := splitOnOperator(expr, op)
		if !ok {
			continue
		}
		if op == OpIsNull || op == OpIsNotNull {
			if value != "" {
				return nil
			}
		}
		segs, err := path.Parse(field)
		if err != nil {
			return nil
		}
		return &ParsedFilter{Field: field, Operator: op, Value: unquote(value), segs: segs}
	}
	return nil
}

func splitOnOperator(expr, op string) (field, value string, ok bool) {
	idx := strings.Index(expr, " "+op)
	if idx < 0 {
		return "", "", false
	}
	rest := expr[idx+1+len(op):]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return "", "", false
	}
	field = strings.TrimSpace(expr[:idx])
	if field == "" || strings.ContainsAny(field, " ") {
		return "", "", false
	}
	return field, strings.TrimSpace(rest), true
}

func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// Evaluate reports whether value matches the parsed filter.
func Evaluate(value any, f *ParsedFilter) bool {
	if f == nil {
		return false
	}
	field, found := path.Lookup(value, f.segs)

	switch f.Operator {
	case OpIsNull:
		return !found || field == nil
	case OpIsNotNull:
		return found && field != nil
	}
	if !found {
		return false
	}

	switch f.Operator {
	case OpEquals:
		return equals(field, f.Value)
	case OpNotEquals:
		return !equals(field, f.Value)
	case OpGreater:
		return ordered(field, f.Value, false)
	case OpLess:
		return ordered(field, f.Value, true)
	case OpContains:
		return matchString(field, f.Value, strings.Contains)
	case OpStartsWith:
		return matchString(field, f.Value, strings.HasPrefix)
	}
	return false
}

// Apply filters value by expression. Arrays keep matching elements. A
// single object comes back unchanged on match and as nil on mismatch;
// callers must treat nil as "no match", not as an empty list. An
// unparsable expression returns the original value with a descriptive
// error string.
func Apply(value any, expression string) (any, string) {
	parsed := Parse(expression)
	if parsed == nil {
		return value, fmt.Sprintf("invalid filter expression: %q", expression)
	}

	if arr, ok := value.([]any); ok {
		out := make([]any, 0, len(arr))
		for _, elem := range arr {
			if Evaluate(elem, parsed) {
				out = append(out, elem)
			}
		}
		return out, ""
	}

	if Evaluate(value, parsed) {
		return value, ""
	}
	return nil, ""
}

func equals(field any, literal string) bool {
	switch v := field.(type) {
	case string:
		return strings.EqualFold(v, literal)
	case float64:
		parsed, err := strconv.ParseFloat(literal, 64)
		return err == nil && v == parsed
	case int:
		parsed, err := strconv.ParseFloat(literal, 64)
		return err == nil && float64(v) == parsed
	case bool:
		return v == (literal == "true")
	case []any:
		for _, elem := range v {
			if equals(elem, literal) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ordered handles > and < : numeric when the field is numeric,
// chronological when both sides parse as dates, lexicographic for
// remaining strings. Other types never match.
func ordered(field any, literal string, less bool) bool {
	switch v := field.(type) {
	case float64:
		parsed, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return false
		}
		if less {
			return v < parsed
		}
		return v > parsed
	case int:
		return ordered(float64(v), literal, less)
	case string:
		fieldTime, fieldOK := parseTime(v)
		literalTime, literalOK := parseTime(literal)
		if fieldOK && literalOK {
			if less {
				return fieldTime.Before(literalTime)
			}
			return fieldTime.After(literalTime)
		}
		if less {
			return v < literal
		}
		return v > literal
	default:
		return false
	}
}

func parseTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func matchString(field any, literal string, test func(s, substr string) bool) bool {
	switch v := field.(type) {
	case string:
		return test(strings.ToLower(v), strings.ToLower(literal))
	case []any:
		for _, elem := range v {
			if matchString(elem, literal, test) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
