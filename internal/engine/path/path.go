// Package path implements the field path grammar shared by the variable
// resolver, the field projector, and the result filter:
//
//	segment ('.' segment | '[' (index|'*') ']')*
//
// A parsed path is a flat list of segments; lookup walks decoded JSON
// values (map[string]any, []any) without reflection.
package path

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates path segment types.
type Kind int

const (
	// KindKey selects an object property.
	KindKey Kind = iota
	// KindIndex selects an array element by position.
	KindIndex
	// KindWildcard selects all array elements.
	KindWildcard
)

// Segment is one step of a parsed field path.
type Segment struct {
	// Kind identifies the segment type.
	Kind Kind
	// Key is the property name for KindKey segments.
	Key string
	// Index is the array position for KindIndex segments.
	Index int
}

// Parse converts a path string into segments. It accepts a leading
// bracket segment (e.g. "[*].name") so callers can address top-level
// arrays.
func Parse(raw string) ([]Segment, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}

	var segs []Segment
	for len(s) > 0 {
		switch s[0] {
		case '.':
			if len(segs) == 0 {
				return nil, fmt.Errorf("path %q starts with a dot", raw)
			}
			s = s[1:]
			if s == "" {
				return nil, fmt.Errorf("path %q ends with a dot", raw)
			}
			if s[0] == '.' || s[0] == '[' {
				return nil, fmt.Errorf("path %q has an empty segment", raw)
			}
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q has an unclosed bracket", raw)
			}
			inner := s[1:end]
			s = s[end+1:]
			if inner == "*" {
				segs = append(segs, Segment{Kind: KindWildcard})
				continue
			}
			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("path %q has invalid index %q", raw, inner)
			}
			segs = append(segs, Segment{Kind: KindIndex, Index: idx})
		default:
			stop := strings.IndexAny(s, ".[")
			if stop < 0 {
				stop = len(s)
			}
			key := s[:stop]
			if key == "" {
				return nil, fmt.Errorf("path %q has an empty segment", raw)
			}
			segs = append(segs, Segment{Kind: KindKey, Key: key})
			s = s[stop:]
		}
	}
	return segs, nil
}

// Lookup walks value along segs and returns the leaf. Wildcard segments
// collect the remainder's leaf from every element that has it, so a
// nested path like "contacts[*].email" yields an array of emails. The
// second return is false when the path finds nothing.
func Lookup(value any, segs []Segment) (any, bool) {
	if len(segs) == 0 {
		return value, true
	}
	seg := segs[0]
	switch seg.Kind {
	case KindKey:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		child, ok := obj[seg.Key]
		if !ok {
			return nil, false
		}
		return Lookup(child, segs[1:])
	case KindIndex:
		arr, ok := value.([]any)
		if !ok || seg.Index >= len(arr) {
			return nil, false
		}
		return Lookup(arr[seg.Index], segs[1:])
	case KindWildcard:
		arr, ok := value.([]any)
		if !ok {
			return nil, false
		}
		if len(segs) == 1 {
			return arr, true
		}
		leaves := make([]any, 0, len(arr))
		for _, elem := range arr {
			if leaf, ok := Lookup(elem, segs[1:]); ok {
				leaves = append(leaves, leaf)
			}
		}
		if len(leaves) == 0 {
			return nil, false
		}
		return leaves, true
	}
	return nil, false
}

// String reassembles segments into the canonical path form.
func String(segs []Segment) string {
	var b strings.Builder
	for i, seg := range segs {
		switch seg.Kind {
		case KindKey:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.Key)
		case KindIndex:
			fmt.Fprintf(&b, "[%d]", seg.Index)
		case KindWildcard:
			b.WriteString("[*]")
		}
	}
	return b.String()
}
