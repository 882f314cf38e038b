package tools

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
)

// normalizeInput returns input as a JSON object, treating empty or null input
// as an empty object.
func normalizeInput(input json.RawMessage) (json.RawMessage, map[string]any, error) {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`), map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return nil, nil, invalidf("input must be a JSON object")
	}
	return trimmed, obj, nil
}

// validate checks required fields and primitive types declared in schema.
// Properties the schema does not declare are ignored.
func validate(schema mcp.ToolInputSchema, args map[string]any) error {
	for _, name := range schema.Required {
		if v, ok := args[name]; !ok || v == nil {
			return invalidf("missing required field %q", name)
		}
	}
	for name, raw := range schema.Properties {
		v, present := args[name]
		if !present || v == nil {
			continue
		}
		prop, _ := raw.(map[string]any)
		if err := checkProperty(name, prop, v); err != nil {
			return err
		}
	}
	return nil
}

func checkProperty(name string, prop map[string]any, v any) error {
	typ, _ := prop["type"].(string)
	switch typ {
	case "number", "integer":
		n, ok := v.(float64)
		if !ok {
			return invalidf("field %q must be a number", name)
		}
		if typ == "integer" && n != math.Trunc(n) {
			return invalidf("field %q must be an integer", name)
		}
		if minimum, ok := prop["minimum"].(float64); ok && n < minimum {
			return invalidf("field %q must be at least %v", name, minimum)
		}
	case "string":
		s, ok := v.(string)
		if !ok {
			return invalidf("field %q must be a string", name)
		}
		if enum, ok := prop["enum"].([]string); ok && !slices.Contains(enum, s) {
			return invalidf("field %q must be one of %v", name, enum)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return invalidf("field %q must be a boolean", name)
		}
	}
	return nil
}

// decode unmarshals validated input into the tool parameter struct.
func decode(input json.RawMessage, dst any) error {
	if err := json.Unmarshal(input, dst); err != nil {
		return invalidf("%v", err)
	}
	return nil
}
