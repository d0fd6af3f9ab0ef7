package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAgainstSchema(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"repo": {"type": "string"},
			"stars": {"type": "integer", "minimum": 0}
		},
		"required": ["repo"]
	}`)

	t.Run("Should return nil when no schema is set", func(t *testing.T) {
		err := ValidateAgainstSchema(nil, json.RawMessage(`{"anything": true}`))
		assert.NoError(t, err)
	})

	t.Run("Should accept an instance satisfying the schema", func(t *testing.T) {
		err := ValidateAgainstSchema(schema, json.RawMessage(`{"repo": "hookflow", "stars": 10}`))
		assert.NoError(t, err)
	})

	t.Run("Should reject an instance missing a required property", func(t *testing.T) {
		err := ValidateAgainstSchema(schema, json.RawMessage(`{"stars": 10}`))
		require.Error(t, err)
	})

	t.Run("Should reject an instance with the wrong type", func(t *testing.T) {
		err := ValidateAgainstSchema(schema, json.RawMessage(`{"repo": "hookflow", "stars": -1}`))
		require.Error(t, err)
	})

	t.Run("Should reject an unparsable schema", func(t *testing.T) {
		err := ValidateAgainstSchema(json.RawMessage(`not json`), json.RawMessage(`{}`))
		require.Error(t, err)
	})

	t.Run("Should reject an unparsable instance", func(t *testing.T) {
		err := ValidateAgainstSchema(schema, json.RawMessage(`not json`))
		require.Error(t, err)
	})

	t.Run("Should validate an empty instance against a schema with no required fields", func(t *testing.T) {
		openSchema := json.RawMessage(`{"type": "object"}`)
		err := ValidateAgainstSchema(openSchema, nil)
		assert.NoError(t, err)
	})
}
