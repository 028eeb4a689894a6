// Package envelope converts the backend's PascalCase response envelope into
// the camelCase shape the rest of the console consumes.
package envelope

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Keys whose presence marks a body as a backend envelope.
var markerKeys = []string{"Data", "Message", "Success", "StatusCode"}

// Keys consumed by normalization and therefore not copied through.
var consumedKeys = map[string]bool{
	"Data":       true,
	"Message":    true,
	"Success":    true,
	"StatusCode": true,
	"MetaData":   true,
}

// IsEnvelope reports whether body is a JSON object carrying at least one of
// the envelope marker keys.
func IsEnvelope(body any) bool {
	m, ok := body.(map[string]any)
	if !ok || m == nil {
		return false
	}
	for _, k := range markerKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// Normalize returns the normalized form of a decoded JSON body. Envelopes
// become {data, message, success, statusCode} plus any unrecognised keys;
// array data with an object MetaData becomes a paged result. Anything else is
// returned as a deep copy. The input is never modified and Normalize never
// panics on unexpected shapes.
func Normalize(body any) any {
	if !IsEnvelope(body) {
		return deepCopy(body)
	}
	m := body.(map[string]any)

	data, _ := pick(m, "Data", "data")
	meta, hasMeta := pick(m, "MetaData", "metaData")
	metaObj, metaIsObj := meta.(map[string]any)

	out := make(map[string]any, len(m)+4)
	switch items, isArray := data.([]any); {
	case hasMeta && metaIsObj && isArray:
		out["data"] = pagedResult(items, metaObj)
	case hasMeta && metaIsObj && data == nil:
		out["data"] = pagedResult(nil, metaObj)
	default:
		out["data"] = deepCopy(data)
	}

	msg, _ := pick(m, "Message", "message")
	out["message"] = toString(msg)

	success, _ := pick(m, "Success", "success")
	out["success"] = toBool(success)

	status, _ := pick(m, "StatusCode", "statusCode")
	code, _ := toInt(status)
	out["statusCode"] = code

	for k, v := range m {
		if consumedKeys[k] {
			continue
		}
		if _, taken := out[k]; taken {
			continue
		}
		out[k] = deepCopy(v)
	}
	return out
}

func pagedResult(items []any, meta map[string]any) map[string]any {
	copied := make([]any, len(items))
	for i, it := range items {
		copied[i] = deepCopy(it)
	}

	totalItems := intField(meta, 0, "TotalItems", "totalItems")
	if totalItems < 0 {
		totalItems = 0
	}
	pageIndex := intField(meta, 1, "CurrentPage", "currentPage")
	if pageIndex < 1 {
		pageIndex = 1
	}
	defaultSize := len(copied)
	if defaultSize < 1 {
		defaultSize = 1
	}
	pageSize := intField(meta, defaultSize, "PageSize", "pageSize")
	if pageSize < 1 {
		pageSize = defaultSize
	}
	totalPages := intField(meta, -1, "TotalPages", "totalPages")
	if totalPages < 0 {
		totalPages = (totalItems + pageSize - 1) / pageSize
	}

	return map[string]any{
		"items":           copied,
		"pageIndex":       pageIndex,
		"pageSize":        pageSize,
		"totalItems":      totalItems,
		"totalPages":      totalPages,
		"hasPreviousPage": boolField(meta, "HasPrev", "hasPrev"),
		"hasNextPage":     boolField(meta, "HasNext", "hasNext"),
	}
}

// pick returns the value under the preferred key, falling back to the
// alternate key when the preferred one is absent or null.
func pick(m map[string]any, preferred, fallback string) (any, bool) {
	if v, ok := m[preferred]; ok && v != nil {
		return v, true
	}
	v, ok := m[fallback]
	if ok && v != nil {
		return v, true
	}
	_, present := m[preferred]
	return nil, present || ok
}

func intField(m map[string]any, def int, keys ...string) int {
	v, ok := pick(m, keys[0], keys[1])
	if !ok || v == nil {
		return def
	}
	n, ok := toInt(v)
	if !ok {
		return def
	}
	return n
}

func boolField(m map[string]any, keys ...string) bool {
	v, _ := pick(m, keys[0], keys[1])
	return toBool(v)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	case nil:
		return false
	}
	n, ok := toInt(v)
	return ok && n != 0
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return fmt.Sprint(v)
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	}
	return v
}
