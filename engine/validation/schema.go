package validation

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// ValidateAgainstSchema checks instance against schema (both raw JSON) and
// returns a descriptive error when instance fails. schema and instance are
// assumed to already be well-formed JSON; a nil/empty schema means "no
// declared schema", and every instance passes.
//
// Grounds spec.md §8 S6 (manual-invoke input_data validated against a
// trigger's declared input_schema) and the provider-adapter input schema
// check: both compile the schema fresh per call, since schemas are small
// and change rarely enough that caching a compiled *jsonschema.Schema
// isn't worth the bookkeeping here.
func ValidateAgainstSchema(schema, instance json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(schema)
	if err != nil {
		return fmt.Errorf("compile json schema: %w", err)
	}
	var data any
	if len(instance) > 0 {
		if err := json.Unmarshal(instance, &data); err != nil {
			return fmt.Errorf("decode instance: %w", err)
		}
	}
	result := compiled.Validate(data)
	if result.IsValid() {
		return nil
	}
	details, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("schema validation failed")
	}
	return fmt.Errorf("schema validation failed: %s", details)
}
