package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Key derives a stable cache key from a tool name and its request
// value. The value is serialized to canonical JSON (sorted object keys)
// and hashed, so structurally equal requests map to the same key
// regardless of map iteration order.
func Key(toolName string, value any) (string, error) {
	data, err := canonicalJSON(value)
	if err != nil {
		return "", fmt.Errorf("canonicalize request: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", toolName, hex.EncodeToString(sum[:])), nil
}

func canonicalJSON(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return []byte(strconv.Quote(v)), nil
	case json.Number:
		return []byte(v.String()), nil
	case bool, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return json.Marshal(v)
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := canonicalJSON(item)
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		return canonicalMapJSON(v)
	default:
		// Structs round-trip through encoding/json so their map form
		// canonicalizes like any other object.
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, err
		}
		if _, again := decoded.(map[string]any); again {
			return canonicalJSON(decoded)
		}
		if _, again := decoded.([]any); again {
			return canonicalJSON(decoded)
		}
		return data, nil
	}
}

func canonicalMapJSON(value map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(value))
	for key := range value {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(key))
		buf.WriteByte(':')
		data, err := canonicalJSON(value[key])
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
