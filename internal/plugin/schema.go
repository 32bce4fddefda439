// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package plugin

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id advertised for plugin.yaml manifest files.
const SchemaID = "https://fabriq.dev/schemas/plugin.schema.json"

// GenerateManifestSchema generates a JSON Schema from the Manifest
// struct for editor integration and strict validation.
func GenerateManifestSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Manifest{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Fabriq Capability Plugin Manifest"
	schema.Description = "Schema for plugin.yaml manifest files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// compileManifestSchema compiles the reflected schema exactly once per
// process.
var compileManifestSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	schemaBytes, err := GenerateManifestSchema()
	if err != nil {
		return nil, err
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("plugin.schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	sch, err := c.Compile("plugin.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
})

// ValidateManifestSchema validates raw plugin.yaml bytes against the
// manifest JSON Schema. Structural validation only; Manifest.Validate
// enforces the semantic constraints (name grammar, known category,
// version shapes).
func ValidateManifestSchema(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("manifest data is empty")
	}

	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	sch, err := compileManifestSchema()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	if err := sch.Validate(toJSONTypes(yamlDoc)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// toJSONTypes converts YAML-parsed data into the JSON-compatible shapes
// the schema validator expects.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case string, int, int64, float64, bool, nil:
		return val
	default:
		// Uncommon YAML node types go through a JSON round-trip.
		if b, err := json.Marshal(val); err == nil {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return val
	}
}
