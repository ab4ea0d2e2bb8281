package jsonrepair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// FieldError is one schema violation.
type FieldError struct {
	Field   string
	Message string
}

// SchemaError lists the schema violations of a decoded document.
type SchemaError struct {
	Errors []FieldError
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// DecodeWithSchema decodes the JSON object in raw like Decode, validates it against the JSON
// schema, and only then unmarshals it into v.
func DecodeWithSchema(raw, schema string, v interface{}) (err error) {
	var doc json.RawMessage
	err = Decode(raw, &doc)
	if err != nil {
		return err
	}

	var result *gojsonschema.Result
	result, err = gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		err = errors.Wrap(err, "schema validation could not run")
		return err
	}

	if !result.Valid() {
		schemaErr := &SchemaError{Errors: make([]FieldError, 0, len(result.Errors()))}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			schemaErr.Errors = append(schemaErr.Errors, FieldError{Field: field, Message: desc.Description()})
		}
		err = schemaErr
		return err
	}

	err = json.Unmarshal(doc, v)
	if err != nil {
		err = errors.Wrap(err, "failed to decode validated document")
	}
	return err
}
