package model

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// slots is a positional record. Reads past the end yield the zero Result,
// which every accessor below maps to its declared default.
type slots []gjson.Result

func (s slots) at(i int) gjson.Result {
	if i < 0 || i >= len(s) {
		return gjson.Result{}
	}
	return s[i]
}

// present reports whether v holds a non-null value.
func present(v gjson.Result) bool {
	return v.Type != gjson.Null
}

func stringOf(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	default:
		return ""
	}
}

func optString(v gjson.Result) *string {
	if !present(v) || v.IsObject() || v.IsArray() {
		return nil
	}
	s := stringOf(v)
	return &s
}

func floatOf(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number, gjson.String:
		return v.Float()
	default:
		return 0
	}
}

func intOf(v gjson.Result) int64 {
	switch v.Type {
	case gjson.Number, gjson.String:
		return v.Int()
	default:
		return 0
	}
}

func optInt(v gjson.Result) *int64 {
	if v.Type != gjson.Number && v.Type != gjson.String {
		return nil
	}
	n := v.Int()
	return &n
}

func boolOf(v gjson.Result) bool {
	return v.Type == gjson.True
}

func optBool(v gjson.Result) *bool {
	switch v.Type {
	case gjson.True, gjson.False:
		b := v.Type == gjson.True
		return &b
	default:
		return nil
	}
}

// opaque keeps a value as raw JSON without interpreting it.
func opaque(v gjson.Result) json.RawMessage {
	if !present(v) {
		return nil
	}
	return json.RawMessage(v.Raw)
}

func rawList(v gjson.Result) []json.RawMessage {
	out := []json.RawMessage{}
	if !v.IsArray() {
		return out
	}
	for _, el := range v.Array() {
		out = append(out, json.RawMessage(el.Raw))
	}
	return out
}

// nonEmptyObject reports whether v is a JSON object with at least one key.
func nonEmptyObject(v gjson.Result) bool {
	if !v.IsObject() {
		return false
	}
	found := false
	v.ForEach(func(_, _ gjson.Result) bool {
		found = true
		return false
	})
	return found
}
