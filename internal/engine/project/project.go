// Package project extracts field subsets from tool results using
// dot/index/wildcard paths, rebuilding the path's structure around the
// extracted leaves so callers receive recognizably-shaped objects
// instead of flattened keys.
package project

import (
	"fmt"

	"github.com/leadstack/crm-mcp-server/internal/engine/path"
)

// Fields projects value down to the requested paths. Missing paths are
// silently dropped; projecting a value where nothing matches yields an
// empty object (or per-element empty objects for arrays).
func Fields(value any, paths []string) any {
	result, _ := FieldsWithWarnings(value, paths)
	return result
}

// FieldsWithWarnings behaves like Fields and additionally reports one
// warning per requested path that found nothing anywhere in the value.
func FieldsWithWarnings(value any, paths []string) (any, []string) {
	if len(paths) == 0 {
		return value, nil
	}

	if arr, ok := value.([]any); ok {
		return projectArray(arr, paths)
	}

	out := map[string]any{}
	var warnings []string
	for _, raw := range paths {
		projected, ok := projectPath(value, raw)
		if !ok {
			warnings = append(warnings, notFound(raw))
			continue
		}
		merge(out, projected)
	}
	return out, warnings
}

// projectArray applies every path to each element independently,
// preserving element positions. A path written against the array itself
// (leading "[*]") is stripped of its prefix first, so return templates
// work whether or not the upstream value is wrapped in an array.
func projectArray(arr []any, paths []string) ([]any, []string) {
	found := make(map[string]bool, len(paths))
	stripped := make([]string, len(paths))
	for i, raw := range paths {
		stripped[i] = stripArrayPrefix(raw)
	}

	out := make([]any, len(arr))
	for i, elem := range arr {
		projected := map[string]any{}
		for j, p := range stripped {
			elemResult, ok := projectPath(elem, p)
			if !ok {
				continue
			}
			found[paths[j]] = true
			merge(projected, elemResult)
		}
		out[i] = projected
	}

	var warnings []string
	for _, raw := range paths {
		if !found[raw] {
			warnings = append(warnings, notFound(raw))
		}
	}
	return out, warnings
}

func stripArrayPrefix(raw string) string {
	segs, err := path.Parse(raw)
	if err != nil || len(segs) < 2 || segs[0].Kind != path.KindWildcard {
		return raw
	}
	return path.String(segs[1:])
}

// projectPath extracts one path and rebuilds its structure. The result
// of "contact.email" on {contact:{email:e}} is {contact:{email:e}},
// not a bare e.
func projectPath(value any, raw string) (map[string]any, bool) {
	segs, err := path.Parse(raw)
	if err != nil || len(segs) == 0 || segs[0].Kind != path.KindKey {
		return nil, false
	}
	projected, ok := descend(value, segs)
	if !ok {
		return nil, false
	}
	obj, ok := projected.(map[string]any)
	if !ok {
		return nil, false
	}
	return obj, true
}

func descend(value any, segs []path.Segment) (any, bool) {
	if len(segs) == 0 {
		return value, true
	}
	seg := segs[0]
	switch seg.Kind {
	case path.KindKey:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		child, ok := obj[seg.Key]
		if !ok {
			return nil, false
		}
		sub, ok := descend(child, segs[1:])
		if !ok {
			return nil, false
		}
		return map[string]any{seg.Key: sub}, true
	case path.KindIndex:
		arr, ok := value.([]any)
		if !ok || seg.Index >= len(arr) {
			return nil, false
		}
		return descend(arr[seg.Index], segs[1:])
	case path.KindWildcard:
		arr, ok := value.([]any)
		if !ok {
			return nil, false
		}
		// A trailing bare [*] returns the array unchanged.
		if len(segs) == 1 {
			return arr, true
		}
		// Collect the remainder's leaf per element, then rebuild the
		// remainder's key structure once around the collected array:
		// items[*].a on {items:[{a:1},{a:2}]} projects to {items:{a:[1,2]}}.
		leaves := make([]any, 0, len(arr))
		for _, elem := range arr {
			if leaf, ok := path.Lookup(elem, segs[1:]); ok {
				leaves = append(leaves, leaf)
			}
		}
		if len(leaves) == 0 {
			return nil, false
		}
		return rebuild(segs[1:], leaves), true
	}
	return nil, false
}

// rebuild wraps value in the key segments of segs, innermost last.
func rebuild(segs []path.Segment, value any) any {
	out := value
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].Kind == path.KindKey {
			out = map[string]any{segs[i].Key: out}
		}
	}
	return out
}

// merge deep-merges src into dst so multiple projected paths under a
// shared prefix combine into one object.
func merge(dst, src map[string]any) {
	for key, val := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = val
			continue
		}
		dstChild, dstOK := existing.(map[string]any)
		srcChild, srcOK := val.(map[string]any)
		if dstOK && srcOK {
			merge(dstChild, srcChild)
			continue
		}
		dst[key] = val
	}
}

func notFound(raw string) string {
	return fmt.Sprintf("Field %q not found in result", raw)
}
