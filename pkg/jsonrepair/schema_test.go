package jsonrepair

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const verdictSchema = `{
  "type": "object",
  "required": ["passes", "notes"],
  "properties": {
    "passes": {"type": "boolean"},
    "notes": {"type": "array", "items": {"type": "string"}}
  }
}`

type verdict struct {
	Passes bool     `json:"passes"`
	Notes  []string `json:"notes"`
}

func TestDecodeWithSchema(t *testing.T) {
	var v verdict
	err := DecodeWithSchema("```json\n{\"passes\": true, \"notes\": [\"line\none\"]}\n```", verdictSchema, &v)
	require.NoError(t, err)
	assert.True(t, v.Passes)
	assert.Equal(t, []string{"line\none"}, v.Notes)
}

func TestDecodeWithSchemaTypeViolation(t *testing.T) {
	var v verdict
	err := DecodeWithSchema(`{"passes": "yes", "notes": [1]}`, verdictSchema, &v)
	require.Error(t, err)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Len(t, schemaErr.Errors, 2)
	assert.False(t, v.Passes, "target must not be written on schema failure")
}

func TestDecodeWithSchemaMissingField(t *testing.T) {
	var v verdict
	err := DecodeWithSchema(`{"passes": false}`, verdictSchema, &v)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Error(), "notes")
}

func TestDecodeWithSchemaUnparseable(t *testing.T) {
	var v verdict
	err := DecodeWithSchema("no json here", verdictSchema, &v)

	var parseErr *Error
	assert.True(t, errors.As(err, &parseErr))
}
