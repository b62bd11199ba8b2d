// Package resolve substitutes {{id.path}} variable tokens with values
// from the pipeline context. A string that is exactly one token keeps
// the underlying value's type; tokens embedded in longer strings are
// interpolated as text. Resolution is pure: no I/O, no mutation of the
// input value.
package resolve

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/leadstack/crm-mcp-server/internal/engine/path"
)

// Context maps step ids to their resolved results. Inside a loop body
// the pseudo-identifiers "item" and "index" are layered on top.
type Context map[string]any

// ItemVar and IndexVar are the loop-scoped pseudo-identifiers.
const (
	ItemVar  = "item"
	IndexVar = "index"
)

var tokenRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)((?:\.[^.\s\[\]{}]+|\[\d+\])*)\s*\}\}`)

// WithLoop layers the current loop element and its 0-based position on
// top of ctx without mutating it.
func (c Context) WithLoop(item any, index int) Context {
	layered := make(Context, len(c)+2)
	for k, v := range c {
		layered[k] = v
	}
	layered[ItemVar] = item
	layered[IndexVar] = float64(index)
	return layered
}

// Resolve walks value and substitutes every variable token from ctx.
// Containers are rebuilt; primitives pass through. Map entries whose
// value is a single token targeting a missing path are omitted; the
// same token as an array element is kept as nil instead, so element
// positions stay aligned with the input.
func Resolve(value any, ctx Context) any {
	resolved, _ := resolveValue(value, ctx)
	return resolved
}

// ResolveArgs resolves a tool argument map, dropping entries whose
// single-token value resolved to nothing.
func ResolveArgs(args map[string]any, ctx Context) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for key, val := range args {
		resolved, present := resolveValue(val, ctx)
		if !present {
			continue
		}
		out[key] = resolved
	}
	return out
}

func resolveValue(value any, ctx Context) (any, bool) {
	switch v := value.(type) {
	case string:
		return resolveString(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			resolved, present := resolveValue(val, ctx)
			if !present {
				continue
			}
			out[key] = resolved
		}
		return out, true
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, _ := resolveValue(item, ctx)
			out[i] = resolved
		}
		return out, true
	default:
		return value, true
	}
}

func resolveString(s string, ctx Context) (any, bool) {
	match := tokenRE.FindStringSubmatchIndex(s)
	if match == nil {
		return s, true
	}

	// Whole-string token: keep the underlying type.
	if match[0] == 0 && match[1] == len(s) {
		ident := s[match[2]:match[3]]
		rest := s[match[4]:match[5]]
		return lookupToken(ident, rest, ctx)
	}

	interpolated := tokenRE.ReplaceAllStringFunc(s, func(token string) string {
		groups := tokenRE.FindStringSubmatch(token)
		value, ok := lookupToken(groups[1], groups[2], ctx)
		if !ok {
			return ""
		}
		return Stringify(value)
	})
	return interpolated, true
}

func lookupToken(ident, rest string, ctx Context) (any, bool) {
	root, ok := ctx[ident]
	if !ok {
		return nil, false
	}
	if rest == "" {
		return root, true
	}
	segs, err := path.Parse(strings.TrimPrefix(rest, "."))
	if err != nil {
		return nil, false
	}
	return path.Lookup(root, segs)
}

// Stringify renders a resolved value for string interpolation: strings
// stay as-is, nil contributes nothing, everything else takes its JSON
// form.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Token is one variable reference found in a request, reported for
// validation.
type Token struct {
	// Ident is the referenced step id or loop pseudo-identifier.
	Ident string
	// Raw is the full token text as written.
	Raw string
}

// Tokens collects every variable token reachable in value, in
// depth-first order.
func Tokens(value any) []Token {
	var out []Token
	collectTokens(value, &out)
	return out
}

func collectTokens(value any, out *[]Token) {
	switch v := value.(type) {
	case string:
		for _, groups := range tokenRE.FindAllStringSubmatch(v, -1) {
			*out = append(*out, Token{Ident: groups[1], Raw: groups[0]})
		}
	case map[string]any:
		for _, item := range v {
			collectTokens(item, out)
		}
	case []any:
		for _, item := range v {
			collectTokens(item, out)
		}
	}
}

// Truthy reports whether a resolved filter value passes: nil, false,
// zero numbers, empty strings, and empty containers fail; everything
// else passes.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
