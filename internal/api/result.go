package api

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Result is a decoded backend answer: {ok, data?, error?, message?, ...}.
type Result map[string]any

// decodeResult turns a response body into a Result. Bodies that are not a
// JSON object are wrapped instead of rejected.
func decodeResult(body []byte, success bool) Result {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{"ok": success, "message": string(body)}
	}
	if m, ok := decoded.(map[string]any); ok {
		return Result(m)
	}
	return Result{"ok": success, "data": decoded}
}

// OK reports the application-level flag. A missing flag counts as success.
func (r Result) OK() bool {
	v, present := r["ok"]
	if !present {
		return true
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return !strings.EqualFold(x, "false")
	default:
		return true
	}
}

// ErrorMessage returns the body's error or message text.
func (r Result) ErrorMessage() string {
	return r.String("error", "message")
}

// String returns the first non-empty string-ish value among keys.
func (r Result) String(keys ...string) string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// Object returns the first nested object among keys.
func (r Result) Object(keys ...string) Result {
	for _, k := range keys {
		if m, ok := r[k].(map[string]any); ok {
			return Result(m)
		}
	}
	return nil
}

// Rows returns the first array of objects among keys. Non-object entries are skipped.
func (r Result) Rows(keys ...string) ([]map[string]any, bool) {
	for _, k := range keys {
		arr, ok := r[k].([]any)
		if !ok {
			continue
		}
		rows := make([]map[string]any, 0, len(arr))
		for _, item := range arr {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		return rows, true
	}
	return nil, false
}
