package prettylogs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const DefaultLevel = "info"

type Field struct {
	Key   string
	Value string
}

// Line is one log line split into its well-known structured fields.
type Line struct {
	Raw        string
	Structured bool

	Level  string
	Time   string
	Msg    string
	Fields []Field
}

// ParseLine decodes a JSON object line. Anything else is returned unstructured.
// Fields other than level, msg and time are kept as key=JSON, sorted by key.
func ParseLine(s string) Line {
	out := Line{Raw: s}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return out
	}
	out.Structured = true
	out.Level = stringField(obj, "level")
	if out.Level == "" {
		out.Level = DefaultLevel
	}
	out.Msg = stringField(obj, "msg")
	out.Time = stringField(obj, "time")

	for k, v := range obj {
		switch k {
		case "level", "msg", "time":
			continue
		}
		out.Fields = append(out.Fields, Field{Key: k, Value: compact(v)})
	}
	slices.SortFunc(out.Fields, func(a, b Field) int { return strings.Compare(a.Key, b.Key) })
	return out
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func compact(raw json.RawMessage) string {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}
