package store

import (
	"strconv"
	"strings"
)

// Document is a decoded collection file: a mapping from a collection key
// (e.g. "users") to a sequence of records, plus an optional "metadata"
// object with counters and a last-updated timestamp.
type Document map[string]any

// Record is a single entity's field map within a collection's sequence.
// The store is schema-agnostic; typed conversion happens at the entity
// layer.
type Record map[string]any

// records returns the record sequence stored under key, or nil when the
// key is absent or not a sequence.
func (d Document) records(key string) []any {
	seq, _ := d[key].([]any)
	return seq
}

// metadata returns the optional metadata object, or nil.
func (d Document) metadata() map[string]any {
	meta, _ := d["metadata"].(map[string]any)
	return meta
}

// clone deep-copies a document so cached state is never mutated before a
// write commits.
func (d Document) clone() Document {
	return Document(deepCopyMap(d))
}

func deepCopyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case Record:
		return Record(deepCopyMap(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// singularize trims trailing plural markers the way the metadata counter
// names expect: "users" becomes "user", "services" becomes "service".
func singularize(key string) string {
	return strings.TrimRight(key, "s")
}

// numericID parses a record identifier as an integer; non-numeric ids are
// ignored during max-scan id generation.
func numericID(v any) (int, bool) {
	switch id := v.(type) {
	case string:
		n, err := strconv.Atoi(id)
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		return int(id), true
	case int:
		return id, true
	default:
		return 0, false
	}
}

// asInt coerces a JSON-decoded counter value to an int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
