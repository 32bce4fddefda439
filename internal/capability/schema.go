// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package capability

// FieldType tags the expected type of a configuration field.
type FieldType string

// Field types supported by plugin configuration schemas.
const (
	StringField FieldType = "string"
	IntField    FieldType = "int"
	FloatField  FieldType = "float"
	BoolField   FieldType = "bool"
)

// Field describes one configuration field. Schemas are data-only so the
// validator stays independent of any validation library.
type Field struct {
	Type     FieldType
	Required bool
	// Default is applied when an optional field is omitted. Must be nil
	// for required fields.
	Default any
	// Enum restricts the field to one of the listed values.
	Enum []any
	// Min and Max bound numeric fields (inclusive).
	Min *float64
	Max *float64
	// Pattern is an RE2 regular expression string fields must match.
	Pattern string
}

// Schema describes a plugin's configuration: field name to field
// description. Unknown fields in a settings payload are always
// rejected.
type Schema struct {
	Fields map[string]Field
}
