// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package registry

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/fabriq/fabriq/internal/capability"
)

// validateConfig validates a settings payload against a plugin's
// declared schema and returns the validated, defaulted value map.
// Validation is strict: unknown fields are rejected. All offending
// fields are reported in one pass as ValidationErrors, sorted by field
// path for determinism.
//
// A nil schema means the plugin accepts no settings; any provided field
// is unknown.
func validateConfig(schema *capability.Schema, settings map[string]any) (map[string]any, error) {
	var fields map[string]capability.Field
	if schema != nil {
		fields = schema.Fields
	}

	var errs ValidationErrors
	out := make(map[string]any, len(fields))

	for name := range settings {
		if _, known := fields[name]; !known {
			errs = append(errs, FieldError{Path: name, Message: "unknown field"})
		}
	}

	for name, field := range fields {
		value, present := settings[name]
		if !present {
			if field.Required {
				errs = append(errs, FieldError{Path: name, Message: "required field is missing"})
				continue
			}
			if field.Default != nil {
				// Defaults pass through the same checks as provided
				// values, so a buggy schema cannot smuggle an invalid
				// value into a stored configuration.
				if msg := checkField(field, field.Default); msg != "" {
					errs = append(errs, FieldError{Path: name, Message: "schema default is invalid: " + msg})
					continue
				}
				out[name] = field.Default
			}
			continue
		}

		if msg := checkField(field, value); msg != "" {
			errs = append(errs, FieldError{Path: name, Message: msg})
			continue
		}
		out[name] = value
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
		return nil, errs
	}
	return out, nil
}

// checkField validates one present value against its field description,
// returning "" when valid.
func checkField(field capability.Field, value any) string {
	switch field.Type {
	case capability.StringField:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("expected string, got %T", value)
		}
		if field.Pattern != "" {
			re, err := regexp.Compile(field.Pattern)
			if err != nil {
				return fmt.Sprintf("schema pattern %q is invalid: %v", field.Pattern, err)
			}
			if !re.MatchString(s) {
				return fmt.Sprintf("value %q does not match pattern %q", s, field.Pattern)
			}
		}

	case capability.IntField:
		n, ok := asInt(value)
		if !ok {
			return fmt.Sprintf("expected integer, got %v (%T)", value, value)
		}
		if msg := checkBounds(field, float64(n)); msg != "" {
			return msg
		}

	case capability.FloatField:
		f, ok := asFloat(value)
		if !ok {
			return fmt.Sprintf("expected number, got %T", value)
		}
		if msg := checkBounds(field, f); msg != "" {
			return msg
		}

	case capability.BoolField:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("expected bool, got %T", value)
		}

	default:
		return fmt.Sprintf("schema field type %q is not supported", field.Type)
	}

	if len(field.Enum) > 0 && !enumContains(field.Enum, value) {
		return fmt.Sprintf("value %v is not one of the allowed values", value)
	}
	return ""
}

// checkBounds applies inclusive Min/Max constraints to a numeric value.
func checkBounds(field capability.Field, v float64) string {
	if field.Min != nil && v < *field.Min {
		return fmt.Sprintf("value %v is below minimum %v", v, *field.Min)
	}
	if field.Max != nil && v > *field.Max {
		return fmt.Sprintf("value %v is above maximum %v", v, *field.Max)
	}
	return ""
}

// asInt accepts the integer shapes YAML and JSON decoding produce.
// Floats count only when integral.
func asInt(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// asFloat accepts any numeric shape.
func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// enumContains compares numerically for numbers so 4 and 4.0 are the
// same enum member regardless of decoder.
func enumContains(enum []any, value any) bool {
	for _, allowed := range enum {
		if allowed == value {
			return true
		}
		af, aok := asFloat(allowed)
		vf, vok := asFloat(value)
		if aok && vok && af == vf {
			return true
		}
	}
	return false
}
